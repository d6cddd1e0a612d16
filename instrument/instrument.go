// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package instrument - payment instruments moved between parties
//
// a single flat record with a tag and a capability set instead of an
// inheritance chain; handlers branch on the tag
package instrument

import (
	"time"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/util"
)

// Tag - instrument kind
type Tag uint64

// instrument kinds
const (
	nullTag = Tag(iota)

	// a cheque drawn on a party's account
	Cheque = Tag(iota)

	// a cheque drawn on the notary's internal reserve account
	Voucher = Tag(iota)

	invalidTag = Tag(iota)
)

// Instrument - one payment instrument
type Instrument struct {
	Tag               Tag
	Amount            int64
	Asset             digest.Digest
	Notary            digest.Digest
	TransactionNumber uint64        // drawer's backing number, zero for vouchers
	Drawer            *party.Party  // nil for vouchers, the notary is the payor
	DrawerAccount     digest.Digest // account the funds are drawn from
	Payee             *party.Party  // optional named payee
	ValidFrom         int64         // unix seconds
	ValidUntil        int64         // unix seconds, zero for no expiry
	Signature         party.Signature
}

// capability set

// HasValidityWindow - instrument carries a validity window
func (instrument *Instrument) HasValidityWindow() bool {
	return 0 != instrument.ValidUntil
}

// HasSenderIdentity - instrument names the drawing party
func (instrument *Instrument) HasSenderIdentity() bool {
	return Cheque == instrument.Tag
}

// HasTransactionNumber - instrument consumes a party's number on deposit
func (instrument *Instrument) HasTransactionNumber() bool {
	return Cheque == instrument.Tag
}

// IsExpired - check the validity window against a point in time
func (instrument *Instrument) IsExpired(now time.Time) bool {
	if !instrument.HasValidityWindow() {
		return false
	}
	t := now.Unix()
	return t < instrument.ValidFrom || t > instrument.ValidUntil
}

// PackPayload - canonical binary form without the signature
func (instrument *Instrument) PackPayload() []byte {
	buffer := util.AppendUvarint(nil, uint64(instrument.Tag))
	buffer = util.AppendVarint(buffer, instrument.Amount)
	buffer = append(buffer, instrument.Asset[:]...)
	buffer = append(buffer, instrument.Notary[:]...)
	buffer = util.AppendUvarint(buffer, instrument.TransactionNumber)
	buffer = appendParty(buffer, instrument.Drawer)
	buffer = append(buffer, instrument.DrawerAccount[:]...)
	buffer = appendParty(buffer, instrument.Payee)
	buffer = util.AppendVarint(buffer, instrument.ValidFrom)
	buffer = util.AppendVarint(buffer, instrument.ValidUntil)
	return buffer
}

// Pack - full binary form, signature appended
//
// the record must already be signed
func (instrument *Instrument) Pack() ([]byte, error) {
	if instrument.Tag <= nullTag || instrument.Tag >= invalidTag {
		return nil, fault.ErrInvalidStructure
	}
	if 0 == len(instrument.Signature) {
		return nil, fault.ErrTransactionNotSigned
	}
	payload := instrument.PackPayload()
	return util.AppendBytes(payload, instrument.Signature), nil
}

// Sign - sign with the drawer's (or the notary's) key
func (instrument *Instrument) Sign(key *party.PrivateKey) {
	instrument.Signature = key.Sign(instrument.PackPayload())
}

// CheckSignature - verify the signature against a signer
func (instrument *Instrument) CheckSignature(signer *party.Party) error {
	if nil == signer {
		return fault.ErrInvalidSignature
	}
	return signer.CheckSignature(instrument.PackPayload(), instrument.Signature)
}

// Unpack - rebuild an instrument from its packed form
func Unpack(buffer []byte) (*Instrument, error) {

	r := util.NewReader(buffer)

	instrument := &Instrument{}
	instrument.Tag = Tag(r.Uvarint())
	instrument.Amount = r.Varint()
	instrument.Asset = r.Digest()
	instrument.Notary = r.Digest()
	instrument.TransactionNumber = r.Uvarint()

	var err error
	instrument.Drawer, err = readParty(r)
	if nil != err {
		return nil, err
	}
	instrument.DrawerAccount = r.Digest()
	instrument.Payee, err = readParty(r)
	if nil != err {
		return nil, err
	}
	instrument.ValidFrom = r.Varint()
	instrument.ValidUntil = r.Varint()
	instrument.Signature = party.Signature(r.Bytes())

	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	if instrument.Tag <= nullTag || instrument.Tag >= invalidTag {
		return nil, fault.ErrInvalidStructure
	}
	return instrument, nil
}

// party framing, the rest of the binary helpers live in util

func readParty(r *util.Reader) (*party.Party, error) {
	data := r.Bytes()
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 == len(data) {
		return nil, nil
	}
	return party.FromBytes(data)
}

func appendParty(buffer []byte, p *party.Party) []byte {
	if nil == p {
		return util.AppendBytes(buffer, nil)
	}
	return util.AppendBytes(buffer, p.Bytes())
}
