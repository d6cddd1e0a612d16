// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mint - digital cash issuing and verification
//
// a mint issues bearer tokens of fixed denominations against a cash
// reserve account; tokens circulate outside the notary and come back
// through deposit, where the spent-token record stops reuse
package mint

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/util"
)

// Token - one bearer cash token
//
// the nonce is chosen by the withdrawing party and makes the
// spendable id unlinkable to the withdrawal
type Token struct {
	Series       uint64
	Asset        digest.Digest
	Notary       digest.Digest
	Denomination int64
	Nonce        []byte
	Signature    party.Signature // mint's signature, empty until issued
}

// SpendableID - cleartext identifier used by the spent-token record
func (token *Token) SpendableID() digest.Digest {
	return digest.NewDigest(token.PackPayload())
}

// PackPayload - canonical binary form without the mint's signature
func (token *Token) PackPayload() []byte {
	buffer := util.AppendUvarint(nil, token.Series)
	buffer = append(buffer, token.Asset[:]...)
	buffer = append(buffer, token.Notary[:]...)
	buffer = util.AppendVarint(buffer, token.Denomination)
	buffer = util.AppendBytes(buffer, token.Nonce)
	return buffer
}

// Pack - full binary form
//
// an unissued token packs with a zero length signature
func (token *Token) Pack() []byte {
	return util.AppendBytes(token.PackPayload(), token.Signature)
}

// UnpackToken - rebuild a token from its packed form
func UnpackToken(buffer []byte) (*Token, error) {
	r := util.NewReader(buffer)
	token, err := readToken(r)
	if nil != err {
		return nil, err
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	return token, nil
}

func readToken(r *util.Reader) (*Token, error) {
	token := &Token{}
	token.Series = r.Uvarint()
	token.Asset = r.Digest()
	token.Notary = r.Digest()
	token.Denomination = r.Varint()
	token.Nonce = r.Bytes()
	token.Signature = party.Signature(r.Bytes())
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 == len(token.Nonce) {
		return nil, fault.ErrInvalidStructure
	}
	return token, nil
}
