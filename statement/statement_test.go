// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package statement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/client"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/statement"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

type fixture struct {
	owner     *party.Party
	ownerKey  *party.PrivateKey
	notaryKey *party.PrivateKey
	notary    digest.Digest
	view      statement.View
}

func newFixture(t *testing.T) *fixture {
	owner, ownerKey, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	notaryParty, notaryKey, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	notary := digest.NewDigest(notaryParty.Bytes())
	asset := digest.NewDigest([]byte("gold"))

	acct := account.NewAccount(owner, asset, notary, "main", false)
	acct.Balance = 100

	context := client.NewContext(owner)
	for _, n := range []uint64{4, 7, 9} {
		if err := context.AddIssued(n); nil != err {
			t.Fatalf("add issued error: %s", err)
		}
	}

	inbox := ledger.New(ledger.Inbox, owner, acct.Reference, notary)
	entry := &transactionrecord.Transaction{
		Tag:     transactionrecord.PendingTag,
		Number:  7,
		Party:   owner,
		Account: acct.Reference,
		Notary:  notary,
		Amount:  25,
	}
	entry.Sign(notaryKey)
	if err := inbox.Add(entry); nil != err {
		t.Fatalf("inbox add error: %s", err)
	}
	outbox := ledger.New(ledger.Outbox, owner, acct.Reference, notary)

	return &fixture{
		owner:     owner,
		ownerKey:  ownerKey,
		notaryKey: notaryKey,
		notary:    notary,
		view: statement.View{
			Account: acct,
			Inbox:   inbox,
			Outbox:  outbox,
			Context: context,
		},
	}
}

// the claim a well-behaved party would submit
func (f *fixture) claim(delta int64, closing []uint64) *statement.Statement {
	st := &statement.Statement{
		Party:      f.owner,
		Account:    f.view.Account.Reference,
		Balance:    f.view.Account.Balance + delta,
		InboxHash:  f.view.Inbox.Hash(),
		OutboxHash: f.view.Outbox.Hash(),
		Issued:     statement.ExpectedIssued(f.view.Context, closing),
	}
	st.Sign(f.ownerKey)
	return st
}

func TestVerifyPass(t *testing.T) {
	f := newFixture(t)

	st := f.claim(-30, []uint64{7})
	assert.Nil(t, statement.Verify(st, f.view, -30, []uint64{7}), "matching claim rejected")
}

func TestVerifyNeverMutates(t *testing.T) {
	f := newFixture(t)

	st := f.claim(-30, []uint64{7})
	assert.Nil(t, statement.Verify(st, f.view, -30, []uint64{7}), "matching claim rejected")

	assert.Equal(t, []uint64{4, 7, 9}, f.view.Context.IssuedNumbers(), "context mutated")
	assert.Equal(t, int64(100), f.view.Account.Balance, "account mutated")
	assert.Equal(t, 1, f.view.Inbox.Count(), "inbox mutated")
}

func TestVerifyRejectsWrongBalance(t *testing.T) {
	f := newFixture(t)

	st := f.claim(-30, nil)
	st.Balance = 99
	st.Sign(f.ownerKey)
	assert.Equal(t, fault.ErrStatementMismatch, statement.Verify(st, f.view, -30, nil), "wrong balance accepted")
}

func TestVerifyRejectsWrongIssuedSet(t *testing.T) {
	f := newFixture(t)

	// claims 7 still issued while the operation closes it
	st := f.claim(-30, nil)
	assert.Equal(t, fault.ErrStatementMismatch, statement.Verify(st, f.view, -30, []uint64{7}), "stale issued set accepted")
}

func TestVerifyRejectsWrongBoxHash(t *testing.T) {
	f := newFixture(t)

	st := f.claim(0, nil)
	st.InboxHash = digest.NewDigest([]byte("not the inbox"))
	st.Sign(f.ownerKey)
	assert.Equal(t, fault.ErrStatementMismatch, statement.Verify(st, f.view, 0, nil), "wrong inbox hash accepted")
}

func TestVerifyRejectsWrongAccount(t *testing.T) {
	f := newFixture(t)

	st := f.claim(0, nil)
	st.Account = digest.NewDigest([]byte("somebody else"))
	st.Sign(f.ownerKey)
	assert.Equal(t, fault.ErrStatementMismatch, statement.Verify(st, f.view, 0, nil), "wrong account accepted")
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	f := newFixture(t)

	st := f.claim(0, nil)
	st.Signature = f.notaryKey.Sign(st.PackPayload())
	assert.NotNil(t, statement.Verify(st, f.view, 0, nil), "forged signature accepted")
}

func TestVerifyRejectsForeignParty(t *testing.T) {
	f := newFixture(t)

	other, otherKey, err := party.GenerateKeypair(true)
	assert.Nil(t, err, "generate keypair error")

	st := f.claim(0, nil)
	st.Party = other
	st.Sign(otherKey)
	assert.Equal(t, fault.ErrWrongOwner, statement.Verify(st, f.view, 0, nil), "foreign party accepted")
}

func TestVerifyRejectsMissing(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, fault.ErrStatementMissing, statement.Verify(nil, f.view, 0, nil), "missing statement accepted")
}

func TestPackUnpackRoundTrip(t *testing.T) {
	f := newFixture(t)

	st := f.claim(-30, []uint64{7})
	packed, err := st.Pack()
	assert.Nil(t, err, "pack error")

	unpacked, err := statement.Unpack(packed)
	assert.Nil(t, err, "unpack error")
	assert.Equal(t, st.Balance, unpacked.Balance, "balance lost")
	assert.Equal(t, st.Issued, unpacked.Issued, "issued set lost")
	assert.Nil(t, unpacked.CheckSignature(), "signature lost")

	repacked, err := unpacked.Pack()
	assert.Nil(t, err, "repack error")
	assert.Equal(t, packed, repacked, "pack not canonical")
}

func TestUnpackRejectsUnsortedIssued(t *testing.T) {
	f := newFixture(t)

	st := f.claim(0, nil)
	st.Issued = []uint64{9, 4, 7}
	st.Sign(f.ownerKey)
	packed, err := st.Pack()
	assert.Nil(t, err, "pack error")

	_, err = statement.Unpack(packed)
	assert.Equal(t, fault.ErrInvalidStructure, err, "unsorted issued list accepted")
}

func TestUnpackRejectsTrailingGarbage(t *testing.T) {
	f := newFixture(t)

	st := f.claim(0, nil)
	packed, err := st.Pack()
	assert.Nil(t, err, "pack error")

	_, err = statement.Unpack(append(packed, 0x00))
	assert.Equal(t, fault.ErrInvalidStructure, err, "trailing garbage accepted")
}

func TestFromItem(t *testing.T) {
	f := newFixture(t)

	st := f.claim(0, nil)
	packed, err := st.Pack()
	assert.Nil(t, err, "pack error")

	item := &transactionrecord.Item{
		Type:       transactionrecord.BalanceStatementItem,
		Attachment: packed,
	}
	recovered, err := statement.FromItem(item)
	assert.Nil(t, err, "from item error")
	assert.Nil(t, statement.Verify(recovered, f.view, 0, nil), "recovered statement rejected")

	_, err = statement.FromItem(nil)
	assert.Equal(t, fault.ErrStatementMissing, err, "nil item accepted")

	item.Type = transactionrecord.TransferItem
	_, err = statement.FromItem(item)
	assert.Equal(t, fault.ErrStatementMissing, err, "non-statement item accepted")
}
