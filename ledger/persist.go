// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
	"github.com/bitmark-inc/notaryd/util"
)

// pool - the storage pool for this box role
func (l *Ledger) pool() *storage.PoolHandle {
	switch l.Role {
	case Inbox:
		return storage.Pool.Inboxes
	case Outbox:
		return storage.Pool.Outboxes
	default:
		return storage.Pool.Nymboxes
	}
}

// storageKey - index key for this box
//
// account boxes are keyed by account reference, the nymbox by the
// owning party
func (l *Ledger) storageKey() []byte {
	if Nymbox == l.Role {
		return l.Owner.Bytes()
	}
	return l.Account[:]
}

func (l *Ledger) receiptKey(number uint64) []byte {
	key := append([]byte{byte(l.Role)}, l.storageKey()...)
	return util.AppendUvarint(key, number)
}

// Save - stage the slim box index onto a transaction
func (l *Ledger) Save(trx *storage.Transaction) {
	trx.Put(l.pool(), l.storageKey(), l.packIndex(true))
}

// SaveBoxReceipt - stage the full payload of one entry
func (l *Ledger) SaveBoxReceipt(trx *storage.Transaction, number uint64) error {
	tx, ok := l.entries[number]
	if !ok {
		return fault.ErrBoxEntryNotFound
	}
	packed, err := tx.Pack(nil)
	if nil != err {
		return err
	}
	trx.Put(storage.Pool.BoxReceipts, l.receiptKey(number), packed)
	return nil
}

// DeleteBoxReceipt - stage removal of a stored receipt payload
func (l *Ledger) DeleteBoxReceipt(trx *storage.Transaction, number uint64) {
	trx.Delete(storage.Pool.BoxReceipts, l.receiptKey(number))
}

// LoadBoxReceipt - fetch the full payload of one entry
func (l *Ledger) LoadBoxReceipt(number uint64) (*transactionrecord.Transaction, error) {
	packed := storage.Pool.BoxReceipts.Get(l.receiptKey(number))
	if nil == packed {
		return nil, fault.ErrBoxReceiptNotFound
	}
	return transactionrecord.Packed(packed).Unpack()
}

// Load - fetch a box from storage
//
// a box with no stored record is empty, not an error
func Load(role Role, owner *party.Party, account digest.Digest, notary digest.Digest) (*Ledger, error) {
	l := New(role, owner, account, notary)

	buffer := l.pool().Get(l.storageKey())
	if nil == buffer {
		return l, nil
	}

	r := util.NewReader(buffer)
	count := r.Uvarint()

	for i := uint64(0); i < count; i += 1 {
		packed := r.Bytes()
		if nil != r.Err() {
			return nil, r.Err()
		}
		tx, err := transactionrecord.Packed(packed).Unpack()
		if nil != err {
			return nil, err
		}

		if _, ok := l.entries[tx.Number]; ok {
			return nil, fault.ErrDuplicateTransactionNumber
		}
		l.entries[tx.Number] = tx
	}
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	return l, nil
}
