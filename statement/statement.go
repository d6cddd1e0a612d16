// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package statement - party-signed snapshots of account state
//
// a statement is the party's claim about what its account, boxes and
// issued number set will look like once the requested operation has
// been applied; the notary recomputes the same snapshot and rejects
// the request on any disagreement
package statement

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/transactionrecord"
	"github.com/bitmark-inc/notaryd/util"
)

// Statement - one party-signed snapshot
//
// Balance and Issued are post-operation values, the box hashes cover
// the boxes as the party last saw them
type Statement struct {
	Party      *party.Party
	Account    digest.Digest
	Balance    int64
	InboxHash  digest.Digest
	OutboxHash digest.Digest
	Issued     []uint64 // ascending
	Signature  party.Signature
}

// PackPayload - canonical binary form without the signature
func (statement *Statement) PackPayload() []byte {
	buffer := util.AppendBytes(nil, statement.Party.Bytes())
	buffer = append(buffer, statement.Account[:]...)
	buffer = util.AppendVarint(buffer, statement.Balance)
	buffer = append(buffer, statement.InboxHash[:]...)
	buffer = append(buffer, statement.OutboxHash[:]...)
	buffer = util.AppendUvarint(buffer, uint64(len(statement.Issued)))
	for _, n := range statement.Issued {
		buffer = util.AppendUvarint(buffer, n)
	}
	return buffer
}

// Pack - full binary form, signature appended
//
// the record must already be signed
func (statement *Statement) Pack() ([]byte, error) {
	if nil == statement.Party {
		return nil, fault.ErrInvalidStructure
	}
	if 0 == len(statement.Signature) {
		return nil, fault.ErrTransactionNotSigned
	}
	payload := statement.PackPayload()
	return util.AppendBytes(payload, statement.Signature), nil
}

// Sign - sign with the party's key
func (statement *Statement) Sign(key *party.PrivateKey) {
	statement.Signature = key.Sign(statement.PackPayload())
}

// CheckSignature - verify the statement was signed by its party
func (statement *Statement) CheckSignature() error {
	if nil == statement.Party {
		return fault.ErrInvalidSignature
	}
	return statement.Party.CheckSignature(statement.PackPayload(), statement.Signature)
}

// Unpack - rebuild a statement from its packed form
func Unpack(buffer []byte) (*Statement, error) {

	r := util.NewReader(buffer)

	statement := &Statement{}

	partyBytes := r.Bytes()
	if nil != r.Err() {
		return nil, r.Err()
	}
	p, err := party.FromBytes(partyBytes)
	if nil != err {
		return nil, err
	}
	statement.Party = p
	statement.Account = r.Digest()
	statement.Balance = r.Varint()
	statement.InboxHash = r.Digest()
	statement.OutboxHash = r.Digest()

	count := r.Uvarint()
	previous := uint64(0)
	for i := uint64(0); i < count; i += 1 {
		n := r.Uvarint()
		if nil != r.Err() {
			return nil, r.Err()
		}
		if 0 != len(statement.Issued) && n <= previous {
			return nil, fault.ErrInvalidStructure
		}
		statement.Issued = append(statement.Issued, n)
		previous = n
	}
	statement.Signature = party.Signature(r.Bytes())

	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	return statement, nil
}

// FromItem - extract the statement carried by a request item
//
// the item must be one of the two statement item types with the
// packed statement as its attachment
func FromItem(item *transactionrecord.Item) (*Statement, error) {
	if nil == item {
		return nil, fault.ErrStatementMissing
	}
	switch item.Type {
	case transactionrecord.BalanceStatementItem, transactionrecord.TransactionStatementItem:
	default:
		return nil, fault.ErrStatementMissing
	}
	if 0 == len(item.Attachment) {
		return nil, fault.ErrStatementMissing
	}
	return Unpack(item.Attachment)
}
