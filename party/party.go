// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package party - account holding identities known to the notary
//
// a party is identified by an ED25519 public key; the text form is a
// Base58 string of: key-variant varint || public key || checksum
package party

import (
	"bytes"
	"encoding/binary"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ed25519"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/notaryd/fault"
)

// miscellaneous constants
const (
	checksumLength = 4

	// bits in key code starting from LSB
	publicKeyCode = 0x01
	testKeyCode   = 0x02

	algorithmShift = 4 // shift 4 bits to get algorithm

	// the only supported algorithm
	ed25519Algorithm = 0x01
)

// Party - an account holding identity
type Party struct {
	Test      bool
	PublicKey []byte
}

// FromBase58 - this converts a Base58 encoded string and returns a party
func FromBase58(partyBase58Encoded string) (*Party, error) {
	decoded, err := base58.Decode(partyBase58Encoded)
	if nil != err || 0 == len(decoded) {
		return nil, fault.ErrCannotDecodeParty
	}

	keyVariant, keyVariantLength := binary.Uvarint(decoded)
	if keyVariantLength <= 0 || keyVariant&publicKeyCode != publicKeyCode {
		return nil, fault.ErrNotPublicKey
	}

	if keyVariant>>algorithmShift != ed25519Algorithm {
		return nil, fault.ErrInvalidKeyType
	}

	isTest := 0 != keyVariant&testKeyCode

	keyLength := len(decoded) - keyVariantLength - checksumLength
	if keyLength != ed25519.PublicKeySize {
		return nil, fault.ErrInvalidKeyLength
	}

	checksumStart := len(decoded) - checksumLength
	checksum := sha3.Sum256(decoded[:checksumStart])
	if !bytes.Equal(checksum[:checksumLength], decoded[checksumStart:]) {
		return nil, fault.ErrChecksumMismatch
	}

	return &Party{
		Test:      isTest,
		PublicKey: decoded[keyVariantLength:checksumStart],
	}, nil
}

// FromBytes - turn a binary packed party into its structure
func FromBytes(buffer []byte) (*Party, error) {

	keyVariant, keyVariantLength := binary.Uvarint(buffer)
	if keyVariantLength <= 0 || keyVariant&publicKeyCode != publicKeyCode {
		return nil, fault.ErrNotPublicKey
	}
	if keyVariant>>algorithmShift != ed25519Algorithm {
		return nil, fault.ErrInvalidKeyType
	}
	if len(buffer)-keyVariantLength != ed25519.PublicKeySize {
		return nil, fault.ErrInvalidKeyLength
	}

	publicKey := make([]byte, ed25519.PublicKeySize)
	copy(publicKey, buffer[keyVariantLength:])

	return &Party{
		Test:      0 != keyVariant&testKeyCode,
		PublicKey: publicKey,
	}, nil
}

// keyVariant - key variant code for this party
func (party *Party) keyVariant() uint64 {
	variant := uint64(ed25519Algorithm)<<algorithmShift | publicKeyCode
	if party.Test {
		variant |= testKeyCode
	}
	return variant
}

// Bytes - binary form: key variant varint followed by the public key
func (party *Party) Bytes() []byte {
	variant := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(variant, party.keyVariant())
	return append(variant[:n], party.PublicKey...)
}

// CheckSignature - verify an ED25519 signature over a message
func (party *Party) CheckSignature(message []byte, signature Signature) error {
	if ed25519.SignatureSize != len(signature) {
		return fault.ErrInvalidSignature
	}
	if !ed25519.Verify(party.PublicKey, message, signature) {
		return fault.ErrInvalidSignature
	}
	return nil
}

// String - base58 encoded binary form with checksum
func (party Party) String() string {
	buffer := party.Bytes()
	checksum := sha3.Sum256(buffer)
	buffer = append(buffer, checksum[:checksumLength]...)
	return base58.Encode(buffer)
}

// MarshalText - convert a party to its text form
func (party Party) MarshalText() ([]byte, error) {
	return []byte(party.String()), nil
}

// UnmarshalText - convert a text form back to a party
func (party *Party) UnmarshalText(s []byte) error {
	p, err := FromBase58(string(s))
	if nil != err {
		return err
	}
	*party = *p
	return nil
}

// Equal - compare two parties
func (party *Party) Equal(other *Party) bool {
	if nil == party || nil == other {
		return party == other
	}
	return party.Test == other.Test && bytes.Equal(party.PublicKey, other.PublicKey)
}
