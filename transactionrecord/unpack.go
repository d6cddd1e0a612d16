// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/util"
)

// Unpack - turn a packed record back into a transaction
//
// the signature is structurally checked but not verified; callers
// verify against the owning party where required
func (record Packed) Unpack() (*Transaction, error) {

	r := util.NewReader(record)

	t := &Transaction{}
	t.Tag = TagType(r.Uvarint())
	t.Number = r.Uvarint()
	t.ClosingNumber = r.Uvarint()
	t.ReferenceTo = r.Uvarint()

	partyBytes := r.Bytes()
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != len(partyBytes) {
		p, err := party.FromBytes(partyBytes)
		if nil != err {
			return nil, err
		}
		t.Party = p
	}

	t.Account = r.Digest()
	t.Notary = r.Digest()
	t.Amount = r.Varint()
	t.ReferenceHash = r.Digest()

	itemCount := r.Uvarint()
	if nil != r.Err() {
		return nil, r.Err()
	}
	if itemCount > uint64(len(record)) {
		return nil, fault.ErrInvalidStructure
	}
	t.Items = make([]*Item, 0, itemCount)
	for i := uint64(0); i < itemCount; i += 1 {
		item, err := unpackItem(r)
		if nil != err {
			return nil, err
		}
		t.Items = append(t.Items, item)
	}

	t.Reference = r.Bytes()
	t.Signature = party.Signature(r.Bytes())
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	if t.Tag <= NullTag || t.Tag >= InvalidTag {
		return nil, fault.ErrInvalidStructure
	}
	// an attachment, when present, must match its signed digest
	if 0 != len(t.Reference) && digest.NewDigest(t.Reference) != t.ReferenceHash {
		return nil, fault.ErrInvalidStructure
	}
	return t, nil
}

func unpackItem(r *util.Reader) (*Item, error) {
	item := &Item{}
	item.Type = ItemType(r.Uvarint())
	item.Status = ItemStatus(r.Uvarint())
	item.Number = r.Uvarint()
	item.Amount = r.Varint()
	item.Destination = r.Digest()
	item.Note = string(r.Bytes())
	item.Attachment = r.Bytes()
	item.Response = r.Bytes()
	item.Signature = party.Signature(r.Bytes())
	if nil != r.Err() {
		return nil, r.Err()
	}
	if item.Type <= NullItem || item.Type >= invalidItem {
		return nil, fault.ErrInvalidItem
	}
	return item, nil
}
