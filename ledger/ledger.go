// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger - ordered boxes of pending transactions
//
// three roles that never mix:
//
//	Inbox  - receipts awaiting the owning party's acknowledgment
//	Outbox - pending sends awaiting the counterparty's acceptance
//	Nymbox - party wide notices, not tied to one account
//
// every entry is addressable by a transaction number unique within
// its box; the full entry payload ("box receipt") is persisted
// separately from the box index so large attachments are not re-read
// on every box load
package ledger

import (
	"sort"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/transactionrecord"
	"github.com/bitmark-inc/notaryd/util"
)

// Role - which box this ledger is
type Role int

// the three box roles
const (
	Inbox Role = iota
	Outbox
	Nymbox
)

// String - role name for logging
func (role Role) String() string {
	switch role {
	case Inbox:
		return "inbox"
	case Outbox:
		return "outbox"
	case Nymbox:
		return "nymbox"
	default:
		return "*unknown*"
	}
}

// Ledger - one box owned by one party
type Ledger struct {
	Role    Role
	Owner   *party.Party
	Account digest.Digest // zero for a nymbox
	Notary  digest.Digest

	entries map[uint64]*transactionrecord.Transaction
}

// New - an empty box
func New(role Role, owner *party.Party, account digest.Digest, notary digest.Digest) *Ledger {
	return &Ledger{
		Role:    role,
		Owner:   owner,
		Account: account,
		Notary:  notary,
		entries: make(map[uint64]*transactionrecord.Transaction),
	}
}

// Add - insert an entry under its transaction number
//
// only signed box entry records are admitted
func (l *Ledger) Add(tx *transactionrecord.Transaction) error {
	if nil == tx || 0 == tx.Number {
		return fault.ErrInvalidStructure
	}
	if !tx.Tag.IsBoxEntry() {
		return fault.ErrInvalidStructure
	}
	if 0 == len(tx.Signature) {
		return fault.ErrTransactionNotSigned
	}
	if _, ok := l.entries[tx.Number]; ok {
		return fault.ErrDuplicateTransactionNumber
	}
	l.entries[tx.Number] = tx
	return nil
}

// Remove - delete an entry by its transaction number
func (l *Ledger) Remove(number uint64) error {
	if _, ok := l.entries[number]; !ok {
		return fault.ErrBoxEntryNotFound
	}
	delete(l.entries, number)
	return nil
}

// Get - fetch an entry, nil if absent
func (l *Ledger) Get(number uint64) *transactionrecord.Transaction {
	return l.entries[number]
}

// Count - number of entries
func (l *Ledger) Count() int {
	return len(l.entries)
}

// Numbers - sorted transaction numbers of all entries
func (l *Ledger) Numbers() []uint64 {
	numbers := make([]uint64, 0, len(l.entries))
	for n := range l.entries {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i int, j int) bool {
		return numbers[i] < numbers[j]
	})
	return numbers
}

// Each - visit entries in transaction number order
func (l *Ledger) Each(callback func(tx *transactionrecord.Transaction) bool) {
	for _, n := range l.Numbers() {
		if !callback(l.entries[n]) {
			return
		}
	}
}

// BalanceTotal - sum of all entry amounts
func (l *Ledger) BalanceTotal() int64 {
	total := int64(0)
	l.Each(func(tx *transactionrecord.Transaction) bool {
		total += tx.Amount
		return true
	})
	return total
}

// Project - pure post-state projection
//
// returns an independent copy with the given entries removed; the
// receiver is untouched so a failed validation cannot leak state
func (l *Ledger) Project(removals []uint64) (*Ledger, error) {
	projected := New(l.Role, l.Owner, l.Account, l.Notary)
	for n, tx := range l.entries {
		projected.entries[n] = tx
	}
	for _, n := range removals {
		if _, ok := projected.entries[n]; !ok {
			return nil, fault.ErrBoxEntryNotFound
		}
		delete(projected.entries, n)
	}
	return projected, nil
}

// Verify - check every entry carries a valid signature of the signer
func (l *Ledger) Verify(signer *party.Party) error {
	for _, n := range l.Numbers() {
		payload := l.entries[n].PackPayload()
		if err := signer.CheckSignature(payload, l.entries[n].Signature); nil != err {
			return err
		}
	}
	return nil
}

// Hash - digest over the canonical packed form of the whole box
//
// computed over the slim index form so the hash is identical before
// and after a save/load cycle; used in statements and change
// notifications
func (l *Ledger) Hash() digest.Digest {
	return digest.NewDigest(l.packIndex(true))
}

// Pack - the slim packed index, as stored and as pushed in change
// notifications
func (l *Ledger) Pack() []byte {
	return l.packIndex(true)
}

// canonical packed form
//
// slim form replaces each entry's opaque attachment by its digest;
// the full attachment lives in the separately stored box receipt
func (l *Ledger) packIndex(slim bool) []byte {
	buffer := util.AppendUvarint(nil, uint64(len(l.entries)))
	for _, n := range l.Numbers() {
		tx := l.entries[n]
		if slim && 0 != len(tx.Reference) {
			tx = tx.StripAttachment()
		}
		buffer = appendPacked(buffer, tx)
	}
	return buffer
}

func appendPacked(buffer []byte, tx *transactionrecord.Transaction) []byte {
	packed, err := tx.Pack(nil)
	if nil != err {
		// Add only admits records that pack
		logger.Panicf("ledger: unpackable entry %d: %s", tx.Number, err)
	}
	return util.AppendBytes(buffer, packed)
}
