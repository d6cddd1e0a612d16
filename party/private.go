// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package party

import (
	"golang.org/x/crypto/ed25519"

	"github.com/bitmark-inc/notaryd/fault"
)

// PrivateKey - signing key held by the notary or by test fixtures
type PrivateKey struct {
	Test       bool
	PrivateKey []byte
}

// GenerateKeypair - make a new random keypair
func GenerateKeypair(test bool) (*Party, *PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if nil != err {
		return nil, nil, err
	}
	p := &Party{
		Test:      test,
		PublicKey: publicKey,
	}
	k := &PrivateKey{
		Test:       test,
		PrivateKey: privateKey,
	}
	return p, k, nil
}

// PrivateKeyFromBytes - rebuild a private key from its binary form
func PrivateKeyFromBytes(test bool, buffer []byte) (*PrivateKey, error) {
	if ed25519.PrivateKeySize != len(buffer) {
		return nil, fault.ErrKeyLength
	}
	k := make([]byte, ed25519.PrivateKeySize)
	copy(k, buffer)
	return &PrivateKey{
		Test:       test,
		PrivateKey: k,
	}, nil
}

// Party - the public identity corresponding to this key
func (key *PrivateKey) Party() *Party {
	publicKey := make([]byte, ed25519.PublicKeySize)
	copy(publicKey, key.PrivateKey[ed25519.PublicKeySize:])
	return &Party{
		Test:      key.Test,
		PublicKey: publicKey,
	}
}

// Sign - sign a message
func (key *PrivateKey) Sign(message []byte) Signature {
	return Signature(ed25519.Sign(key.PrivateKey, message))
}
