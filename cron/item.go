// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cron - registry of long-lived recurring items
//
// market offers, payment plans and smart contracts stay registered
// between notarizations; the scheduler driving them runs elsewhere,
// this package only tracks membership and performs removal with its
// closing receipts
package cron

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/util"
)

// Kind - the recurring item variants
type Kind uint64

// item kinds
const (
	nullKind = Kind(iota)

	MarketOffer   = Kind(iota)
	PaymentPlan   = Kind(iota)
	SmartContract = Kind(iota)

	invalidKind = Kind(iota)
)

// String - printable kind
func (kind Kind) String() string {
	switch kind {
	case MarketOffer:
		return "market-offer"
	case PaymentPlan:
		return "payment-plan"
	case SmartContract:
		return "smart-contract"
	default:
		return "*unknown*"
	}
}

// PartyNumbers - one party's stake in a recurring item
type PartyNumbers struct {
	Party   *party.Party
	Account digest.Digest
	Opening uint64   // the number held open while the item is active
	Closing []uint64 // ascending, closed when the item is removed
}

// Item - one registered recurring item
//
// the originating party is Parties[0] and its opening number is the
// registry key
type Item struct {
	Kind       Kind
	Notary     digest.Digest
	Asset      digest.Digest
	Parties    []*PartyNumbers
	ValidFrom  int64  // unix seconds
	ValidUntil int64  // unix seconds, zero for no expiry
	Terms      []byte // kind specific packed terms
}

// OpeningNumber - the registry key
func (item *Item) OpeningNumber() uint64 {
	if 0 == len(item.Parties) {
		return 0
	}
	return item.Parties[0].Opening
}

// Originator - the party that activated the item
func (item *Item) Originator() *party.Party {
	if 0 == len(item.Parties) {
		return nil
	}
	return item.Parties[0].Party
}

// HasParty - the party holds a stake in this item
func (item *Item) HasParty(p *party.Party) bool {
	for _, stake := range item.Parties {
		if stake.Party.Equal(p) {
			return true
		}
	}
	return false
}

// check the invariants a registered item must hold
func (item *Item) check() error {
	if item.Kind <= nullKind || item.Kind >= invalidKind {
		return fault.ErrInvalidStructure
	}
	if 0 == len(item.Parties) {
		return fault.ErrInvalidStructure
	}
	for _, stake := range item.Parties {
		if nil == stake.Party || 0 == stake.Opening {
			return fault.ErrInvalidStructure
		}
	}
	return nil
}

// Pack - binary form for the cron item pool
func (item *Item) Pack() []byte {
	buffer := util.AppendUvarint(nil, uint64(item.Kind))
	buffer = append(buffer, item.Notary[:]...)
	buffer = append(buffer, item.Asset[:]...)
	buffer = util.AppendUvarint(buffer, uint64(len(item.Parties)))
	for _, stake := range item.Parties {
		buffer = util.AppendBytes(buffer, stake.Party.Bytes())
		buffer = append(buffer, stake.Account[:]...)
		buffer = util.AppendUvarint(buffer, stake.Opening)
		buffer = util.AppendUvarint(buffer, uint64(len(stake.Closing)))
		for _, n := range stake.Closing {
			buffer = util.AppendUvarint(buffer, n)
		}
	}
	buffer = util.AppendVarint(buffer, item.ValidFrom)
	buffer = util.AppendVarint(buffer, item.ValidUntil)
	buffer = util.AppendBytes(buffer, item.Terms)
	return buffer
}

// Unpack - rebuild an item from its packed form
func Unpack(buffer []byte) (*Item, error) {
	r := util.NewReader(buffer)

	item := &Item{}
	item.Kind = Kind(r.Uvarint())
	item.Notary = r.Digest()
	item.Asset = r.Digest()

	count := r.Uvarint()
	for i := uint64(0); i < count; i += 1 {
		partyBytes := r.Bytes()
		if nil != r.Err() {
			return nil, r.Err()
		}
		p, err := party.FromBytes(partyBytes)
		if nil != err {
			return nil, err
		}
		stake := &PartyNumbers{
			Party:   p,
			Account: r.Digest(),
			Opening: r.Uvarint(),
		}
		closingCount := r.Uvarint()
		for j := uint64(0); j < closingCount; j += 1 {
			stake.Closing = append(stake.Closing, r.Uvarint())
		}
		item.Parties = append(item.Parties, stake)
	}
	item.ValidFrom = r.Varint()
	item.ValidUntil = r.Varint()
	item.Terms = r.Bytes()

	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	if err := item.check(); nil != err {
		return nil, err
	}
	return item, nil
}
