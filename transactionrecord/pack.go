// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/util"
)

// PackPayload - canonical binary form of the record without its signature
//
// this is the byte sequence the owning party signs
func (t *Transaction) PackPayload() Packed {
	buffer := util.AppendUvarint(nil, uint64(t.Tag))
	buffer = util.AppendUvarint(buffer, t.Number)
	buffer = util.AppendUvarint(buffer, t.ClosingNumber)
	buffer = util.AppendUvarint(buffer, t.ReferenceTo)
	if nil == t.Party {
		buffer = util.AppendBytes(buffer, nil)
	} else {
		buffer = util.AppendBytes(buffer, t.Party.Bytes())
	}
	buffer = append(buffer, t.Account[:]...)
	buffer = append(buffer, t.Notary[:]...)
	buffer = util.AppendVarint(buffer, t.Amount)
	hash := t.AttachmentHash()
	buffer = append(buffer, hash[:]...)

	buffer = util.AppendUvarint(buffer, uint64(len(t.Items)))
	for _, item := range t.Items {
		buffer = item.pack(buffer)
	}
	return buffer
}

// Pack - pack the record for storage or transmission
//
// the record must already be signed; the signature is verified
// against the supplied party before the packed form is produced
func (t *Transaction) Pack(signer *party.Party) (Packed, error) {
	if t.Tag <= NullTag || t.Tag >= InvalidTag {
		return nil, fault.ErrInvalidStructure
	}
	payload := t.PackPayload()
	if 0 == len(t.Signature) {
		return nil, fault.ErrTransactionNotSigned
	}
	if nil != signer {
		if err := signer.CheckSignature(payload, t.Signature); nil != err {
			return nil, err
		}
	}
	// the attachment itself travels outside the signed payload
	packed := util.AppendBytes(payload, t.Reference)
	return util.AppendBytes(packed, t.Signature), nil
}

// Sign - sign the record with the given key
func (t *Transaction) Sign(key *party.PrivateKey) {
	t.Signature = key.Sign(t.PackPayload())
}

// pack - append the full binary form of an item, signature included
func (item *Item) pack(buffer []byte) []byte {
	buffer = item.packFields(buffer)
	return util.AppendBytes(buffer, item.Signature)
}

// common fields of payload and packed form
func (item *Item) packFields(buffer []byte) []byte {
	buffer = util.AppendUvarint(buffer, uint64(item.Type))
	buffer = util.AppendUvarint(buffer, uint64(item.Status))
	buffer = util.AppendUvarint(buffer, item.Number)
	buffer = util.AppendVarint(buffer, item.Amount)
	buffer = append(buffer, item.Destination[:]...)
	buffer = util.AppendBytes(buffer, []byte(item.Note))
	buffer = util.AppendBytes(buffer, item.Attachment)
	buffer = util.AppendBytes(buffer, item.Response)
	return buffer
}

// PackPayload - the byte sequence an item signature covers
//
// the parent transaction number is mixed in so a signed item cannot
// be spliced into a different transaction
func (item *Item) PackPayload(parentNumber uint64) Packed {
	buffer := util.AppendUvarint(nil, parentNumber)
	return item.packFields(buffer)
}

// Sign - sign an item in the scope of its parent transaction
func (item *Item) Sign(parentNumber uint64, key *party.PrivateKey) {
	item.Signature = key.Sign(item.PackPayload(parentNumber))
}

// CheckSignature - verify an item signature against a party
func (item *Item) CheckSignature(parentNumber uint64, p *party.Party) error {
	if nil == p {
		return fault.ErrInvalidSignature
	}
	return p.CheckSignature(item.PackPayload(parentNumber), item.Signature)
}
