// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mint

import (
	"time"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
)

// Mint - one cash-issuing series
//
// failures from any implementation are ordinary rejections, never
// fatal to the engine
type Mint interface {

	// Sign - issue a token by signing it, the token must be unissued
	Sign(token *Token) error

	// Verify - check an issued token's signature, identity and
	// denomination
	Verify(token *Token, denomination int64) error

	// AccountID - the series' cash-reserve account reference
	AccountID() digest.Digest

	// Expired - the series is outside its validity window
	Expired(now time.Time) bool

	// Series - the series number tokens carry
	Series() uint64
}

// LocalMint - an ed25519 mint held by this notary
type LocalMint struct {
	series        uint64
	asset         digest.Digest
	notary        digest.Digest
	key           *party.PrivateKey
	reserve       digest.Digest // cash-reserve account reference
	validFrom     int64         // unix seconds
	validUntil    int64         // unix seconds
	denominations map[int64]struct{}
}

// NewLocalMint - create a series
//
// only the listed denominations are issuable and verifiable
func NewLocalMint(series uint64, asset digest.Digest, notary digest.Digest, key *party.PrivateKey, reserve digest.Digest, validFrom time.Time, validUntil time.Time, denominations []int64) (*LocalMint, error) {
	if nil == key || 0 == len(denominations) {
		return nil, fault.ErrInvalidStructure
	}
	if !validUntil.After(validFrom) {
		return nil, fault.ErrInvalidStructure
	}
	allowed := make(map[int64]struct{}, len(denominations))
	for _, d := range denominations {
		if d <= 0 {
			return nil, fault.ErrInvalidDenomination
		}
		allowed[d] = struct{}{}
	}
	return &LocalMint{
		series:        series,
		asset:         asset,
		notary:        notary,
		key:           key,
		reserve:       reserve,
		validFrom:     validFrom.Unix(),
		validUntil:    validUntil.Unix(),
		denominations: allowed,
	}, nil
}

// Sign - issue a token
func (mint *LocalMint) Sign(token *Token) error {
	if nil == token {
		return fault.ErrInvalidStructure
	}
	if 0 != len(token.Signature) {
		return fault.ErrInvalidStructure
	}
	if err := mint.checkIdentity(token); nil != err {
		return err
	}
	if _, ok := mint.denominations[token.Denomination]; !ok {
		return fault.ErrInvalidDenomination
	}
	token.Signature = mint.key.Sign(token.PackPayload())
	return nil
}

// Verify - check an issued token
func (mint *LocalMint) Verify(token *Token, denomination int64) error {
	if nil == token || 0 == len(token.Signature) {
		return fault.ErrTokenVerifyFailed
	}
	if err := mint.checkIdentity(token); nil != err {
		return err
	}
	if token.Denomination != denomination {
		return fault.ErrInvalidDenomination
	}
	if _, ok := mint.denominations[denomination]; !ok {
		return fault.ErrInvalidDenomination
	}
	if err := mint.key.Party().CheckSignature(token.PackPayload(), token.Signature); nil != err {
		return fault.ErrTokenVerifyFailed
	}
	return nil
}

// AccountID - the cash-reserve account reference
func (mint *LocalMint) AccountID() digest.Digest {
	return mint.reserve
}

// Expired - outside the validity window
func (mint *LocalMint) Expired(now time.Time) bool {
	t := now.Unix()
	return t < mint.validFrom || t > mint.validUntil
}

// Series - the series number
func (mint *LocalMint) Series() uint64 {
	return mint.series
}

func (mint *LocalMint) checkIdentity(token *Token) error {
	if token.Series != mint.series {
		return fault.ErrMintNotFound
	}
	if 0 != digest.Compare(token.Asset, mint.asset) {
		return fault.ErrAssetMismatch
	}
	if 0 != digest.Compare(token.Notary, mint.notary) {
		return fault.ErrNotaryMismatch
	}
	return nil
}
