// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

func makeTransfer(t *testing.T) (*transactionrecord.Transaction, *party.Party, *party.PrivateKey) {
	p, key, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}

	item := &transactionrecord.Item{
		Type:        transactionrecord.TransferItem,
		Status:      transactionrecord.StatusRequest,
		Amount:      30,
		Destination: digest.NewDigest([]byte("destination account")),
	}

	tx := &transactionrecord.Transaction{
		Tag:     transactionrecord.TransferTag,
		Number:  41,
		Party:   p,
		Account: digest.NewDigest([]byte("source account")),
		Notary:  digest.NewDigest([]byte("notary")),
		Amount:  30,
		Items:   []*transactionrecord.Item{item},
	}
	item.Sign(tx.Number, key)
	tx.Sign(key)
	return tx, p, key
}

func TestPackUnpackRoundTrip(t *testing.T) {
	tx, p, _ := makeTransfer(t)

	packed, err := tx.Pack(p)
	assert.Nil(t, err, "pack error")

	back, err := packed.Unpack()
	assert.Nil(t, err, "unpack error")

	assert.Equal(t, tx.Tag, back.Tag, "tag mismatch")
	assert.Equal(t, tx.Number, back.Number, "number mismatch")
	assert.Equal(t, tx.Account, back.Account, "account mismatch")
	assert.Equal(t, tx.Amount, back.Amount, "amount mismatch")
	assert.True(t, tx.Party.Equal(back.Party), "party mismatch")
	assert.Equal(t, len(tx.Items), len(back.Items), "item count mismatch")
	assert.Equal(t, tx.Items[0].Destination, back.Items[0].Destination, "item destination mismatch")
	assert.Equal(t, tx.Signature, back.Signature, "signature mismatch")

	// repack of the unpack must be byte identical
	repacked, err := back.Pack(p)
	assert.Nil(t, err, "repack error")
	assert.Equal(t, []byte(packed), []byte(repacked), "packed form not canonical")
}

func TestPackUnsigned(t *testing.T) {
	tx, p, _ := makeTransfer(t)
	tx.Signature = nil

	_, err := tx.Pack(p)
	assert.Equal(t, fault.ErrTransactionNotSigned, err, "unsigned record packed")
}

func TestPackWrongSigner(t *testing.T) {
	tx, _, _ := makeTransfer(t)

	other, _, err := party.GenerateKeypair(true)
	assert.Nil(t, err, "generate keypair error")

	_, err = tx.Pack(other)
	assert.Equal(t, fault.ErrInvalidSignature, err, "wrong signer accepted")
}

func TestItemSignatureScope(t *testing.T) {
	tx, p, _ := makeTransfer(t)
	item := tx.Items[0]

	assert.Nil(t, item.CheckSignature(tx.Number, p), "valid item signature rejected")

	// the same item under a different parent number must fail
	assert.Equal(t, fault.ErrInvalidSignature, item.CheckSignature(tx.Number+1, p),
		"item signature valid under foreign transaction")
}

func TestUnpackTruncated(t *testing.T) {
	tx, p, _ := makeTransfer(t)

	packed, err := tx.Pack(p)
	assert.Nil(t, err, "pack error")

	for _, cut := range []int{1, len(packed) / 2, len(packed) - 1} {
		_, err := packed[:cut].Unpack()
		assert.NotNil(t, err, "truncated record at %d accepted", cut)
	}

	// trailing garbage is also invalid
	_, err = append(transactionrecord.Packed{}, append(packed, 0x00)...).Unpack()
	assert.NotNil(t, err, "trailing garbage accepted")
}

func TestStatementItemLookup(t *testing.T) {
	tx, _, key := makeTransfer(t)

	assert.Nil(t, tx.StatementItem(), "phantom statement item")

	statement := &transactionrecord.Item{
		Type:   transactionrecord.BalanceStatementItem,
		Status: transactionrecord.StatusRequest,
	}
	statement.Sign(tx.Number, key)
	tx.Items = append(tx.Items, statement)

	assert.Equal(t, statement, tx.StatementItem(), "statement item not found")
}

func TestTagClassification(t *testing.T) {
	assert.True(t, transactionrecord.TransferTag.IsRequest(), "transfer not a request")
	assert.True(t, transactionrecord.ProcessNymboxTag.IsRequest(), "process nymbox not a request")
	assert.False(t, transactionrecord.PendingTag.IsRequest(), "pending is a request")

	assert.True(t, transactionrecord.PendingTag.IsBoxEntry(), "pending not a box entry")
	assert.True(t, transactionrecord.FinalReceiptTag.IsBoxEntry(), "final receipt not a box entry")
	assert.False(t, transactionrecord.TransferTag.IsBoxEntry(), "transfer is a box entry")
}
