// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mint

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/util"
)

// Purse - an owned container of tokens of one asset type
//
// Pop removes the token from the purse; a handler drains the input
// purse and refills an output purse so every token is visited once
type Purse struct {
	Asset  digest.Digest
	Notary digest.Digest
	tokens []*Token
}

// NewPurse - empty purse for one asset
func NewPurse(asset digest.Digest, notary digest.Digest) *Purse {
	return &Purse{
		Asset:  asset,
		Notary: notary,
	}
}

// Add - put a token into the purse
//
// the token must match the purse's asset and notary
func (purse *Purse) Add(token *Token) error {
	if nil == token {
		return fault.ErrInvalidStructure
	}
	if 0 != digest.Compare(token.Asset, purse.Asset) {
		return fault.ErrAssetMismatch
	}
	if 0 != digest.Compare(token.Notary, purse.Notary) {
		return fault.ErrNotaryMismatch
	}
	purse.tokens = append(purse.tokens, token)
	return nil
}

// Pop - remove and return the next token, nil when empty
func (purse *Purse) Pop() *Token {
	if 0 == len(purse.tokens) {
		return nil
	}
	token := purse.tokens[0]
	purse.tokens = purse.tokens[1:]
	return token
}

// Count - tokens currently held
func (purse *Purse) Count() int {
	return len(purse.tokens)
}

// TotalValue - sum of all denominations currently held
func (purse *Purse) TotalValue() int64 {
	total := int64(0)
	for _, token := range purse.tokens {
		total += token.Denomination
	}
	return total
}

// Pack - binary form: asset, notary, count, packed tokens
func (purse *Purse) Pack() []byte {
	buffer := append([]byte{}, purse.Asset[:]...)
	buffer = append(buffer, purse.Notary[:]...)
	buffer = util.AppendUvarint(buffer, uint64(len(purse.tokens)))
	for _, token := range purse.tokens {
		buffer = util.AppendBytes(buffer, token.Pack())
	}
	return buffer
}

// UnpackPurse - rebuild a purse from its packed form
func UnpackPurse(buffer []byte) (*Purse, error) {
	r := util.NewReader(buffer)

	purse := &Purse{}
	purse.Asset = r.Digest()
	purse.Notary = r.Digest()

	count := r.Uvarint()
	for i := uint64(0); i < count; i += 1 {
		packed := r.Bytes()
		if nil != r.Err() {
			return nil, r.Err()
		}
		token, err := UnpackToken(packed)
		if nil != err {
			return nil, err
		}
		if err := purse.Add(token); nil != err {
			return nil, err
		}
	}
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	return purse, nil
}
