// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/client"
	"github.com/bitmark-inc/notaryd/cron"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/mint"
	"github.com/bitmark-inc/notaryd/mode"
	"github.com/bitmark-inc/notaryd/notary"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/sequence"
	"github.com/bitmark-inc/notaryd/statement"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

type fixture struct {
	dir       string
	notaryKey *party.PrivateKey
	notaryID  digest.Digest
	asset     digest.Digest
	sequence  *sequence.Generator
}

// one notarizing party with one funded account
type testClient struct {
	party *party.Party
	key   *party.PrivateKey
	acct  *account.Account
}

func setupNotary(t *testing.T) (*fixture, func()) {
	dir, err := ioutil.TempDir("", "notary-test")
	if nil != err {
		t.Fatalf("tempdir error: %s", err)
	}

	if err := logger.Initialise(logger.Configuration{
		Directory: dir,
		File:      "test.log",
		Size:      50000,
		Count:     10,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}); nil != err {
		t.Fatalf("logger initialise error: %s", err)
	}
	if err := mode.Initialise(); nil != err {
		t.Fatalf("mode initialise error: %s", err)
	}
	if err := storage.Initialise(filepath.Join(dir, "db")); nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}

	notaryParty, notaryKey, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	seq := sequence.New(storage.Pool.Sequence)

	if err := mint.Initialise(); nil != err {
		t.Fatalf("mint initialise error: %s", err)
	}
	if err := cron.Initialise(10, notaryKey, seq); nil != err {
		t.Fatalf("cron initialise error: %s", err)
	}
	if err := notify.Initialise(&notify.Configuration{}); nil != err {
		t.Fatalf("notify initialise error: %s", err)
	}
	if err := notary.Initialise(notaryKey, seq, notary.Limits{
		RatePerParty:        1000,
		RateBurst:           1000,
		VoucherValidityDays: 180,
	}); nil != err {
		t.Fatalf("notary initialise error: %s", err)
	}
	mode.Set(mode.Normal)

	f := &fixture{
		dir:       dir,
		notaryKey: notaryKey,
		notaryID:  digest.NewDigest(notaryParty.Bytes()),
		asset:     digest.NewDigest([]byte("test-asset-contract")),
		sequence:  seq,
	}
	teardown := func() {
		notary.Finalise()
		notify.Finalise()
		cron.Finalise()
		mint.Finalise()
		storage.Finalise()
		mode.Finalise()
		logger.Finalise()
		os.RemoveAll(dir)
	}
	return f, teardown
}

// a funded account plus a context seeded with issued numbers
func (f *fixture) newClient(t *testing.T, balance int64, numbers ...uint64) *testClient {
	owner, key, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	acct := account.NewAccount(owner, f.asset, f.notaryID, "main", false)
	acct.Balance = balance

	trx := storage.NewTransaction()
	if err := acct.Save(trx, f.notaryKey); nil != err {
		t.Fatalf("account save error: %s", err)
	}
	context := client.NewContext(owner)
	for _, n := range numbers {
		if err := context.AddIssued(n); nil != err {
			t.Fatalf("add issued error: %s", err)
		}
	}
	context.Save(trx)
	if err := trx.Commit(); nil != err {
		t.Fatalf("commit error: %s", err)
	}
	return &testClient{
		party: owner,
		key:   key,
		acct:  acct,
	}
}

// an extra account for an already registered party
func (f *fixture) newAccount(t *testing.T, c *testClient, assetID digest.Digest, label string, balance int64) *account.Account {
	acct := account.NewAccount(c.party, assetID, f.notaryID, label, false)
	acct.Balance = balance

	trx := storage.NewTransaction()
	if err := acct.Save(trx, f.notaryKey); nil != err {
		t.Fatalf("account save error: %s", err)
	}
	if err := trx.Commit(); nil != err {
		t.Fatalf("commit error: %s", err)
	}
	return acct
}

// the same party acting through another account
func (c *testClient) withAccount(acct *account.Account) *testClient {
	return &testClient{
		party: c.party,
		key:   c.key,
		acct:  acct,
	}
}

// a balance statement claiming the post-operation balance and issued
// set over the currently stored boxes
func (f *fixture) balanceStatement(t *testing.T, c *testClient, balance int64, issued []uint64) *transactionrecord.Item {
	inbox, err := ledger.Load(ledger.Inbox, c.party, c.acct.Reference, f.notaryID)
	if nil != err {
		t.Fatalf("inbox load error: %s", err)
	}
	outbox, err := ledger.Load(ledger.Outbox, c.party, c.acct.Reference, f.notaryID)
	if nil != err {
		t.Fatalf("outbox load error: %s", err)
	}

	claim := &statement.Statement{
		Party:      c.party,
		Account:    c.acct.Reference,
		Balance:    balance,
		InboxHash:  inbox.Hash(),
		OutboxHash: outbox.Hash(),
		Issued:     issued,
	}
	claim.Sign(c.key)
	packed, err := claim.Pack()
	if nil != err {
		t.Fatalf("statement pack error: %s", err)
	}
	return &transactionrecord.Item{
		Type:       transactionrecord.BalanceStatementItem,
		Attachment: packed,
	}
}

func (f *fixture) makeRequest(c *testClient, tag transactionrecord.TagType, number uint64, items ...*transactionrecord.Item) *transactionrecord.Transaction {
	request := &transactionrecord.Transaction{
		Tag:     tag,
		Number:  number,
		Party:   c.party,
		Account: c.acct.Reference,
		Notary:  f.notaryID,
		Items:   items,
	}
	for _, item := range items {
		item.Sign(number, c.key)
	}
	request.Sign(c.key)
	return request
}

func dispatchAcknowledged(t *testing.T, request *transactionrecord.Transaction) *transactionrecord.Transaction {
	response, err := notary.Dispatch(request)
	if nil != err {
		t.Fatalf("dispatch error: %s", err)
	}
	if transactionrecord.StatusAcknowledged != response.Items[0].Status {
		t.Fatalf("request rejected: %q", response.Items[0].Note)
	}
	return response
}

func dispatchRejected(t *testing.T, request *transactionrecord.Transaction) string {
	response, err := notary.Dispatch(request)
	if nil != err {
		t.Fatalf("dispatch error: %s", err)
	}
	if transactionrecord.StatusRejected != response.Items[0].Status {
		t.Fatal("request unexpectedly acknowledged")
	}
	return response.Items[0].Note
}

func loadBalance(t *testing.T, reference digest.Digest) int64 {
	acct, err := account.Load(reference)
	if nil != err {
		t.Fatalf("account load error: %s", err)
	}
	return acct.Balance
}

func TestTransferLifecycle(t *testing.T) {
	f, teardown := setupNotary(t)
	defer teardown()

	alice := f.newClient(t, 100, 1, 2, 3)
	bob := f.newClient(t, 50, 10, 11, 12)

	// alice sends 30; her number 1 stays issued until the transfer
	// receipt comes back
	transfer := f.makeRequest(alice, transactionrecord.TransferTag, 1,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      30,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 70, []uint64{1, 2, 3}),
	)
	response := dispatchAcknowledged(t, transfer)
	pendingNumber := response.Items[0].Number
	assert.NotZero(t, pendingNumber, "expected a receipt number")

	assert.Equal(t, int64(70), loadBalance(t, alice.acct.Reference), "source balance")
	assert.Equal(t, int64(50), loadBalance(t, bob.acct.Reference), "destination balance before acceptance")

	bobInbox, _ := ledger.Load(ledger.Inbox, bob.party, bob.acct.Reference, f.notaryID)
	entry := bobInbox.Get(pendingNumber)
	if assert.NotNil(t, entry, "pending entry") {
		assert.Equal(t, transactionrecord.PendingTag, entry.Tag)
		assert.Equal(t, int64(30), entry.Amount)
	}

	// bob accepts and is credited
	accept := f.makeRequest(bob, transactionrecord.ProcessInboxTag, 10,
		&transactionrecord.Item{
			Type:   transactionrecord.AcceptPendingItem,
			Number: pendingNumber,
		},
		f.balanceStatement(t, bob, 80, []uint64{11, 12}),
	)
	dispatchAcknowledged(t, accept)

	assert.Equal(t, int64(80), loadBalance(t, bob.acct.Reference), "destination balance after acceptance")

	bobInbox, _ = ledger.Load(ledger.Inbox, bob.party, bob.acct.Reference, f.notaryID)
	assert.Zero(t, bobInbox.Count(), "inbox should be cleared")

	// the transfer receipt is waiting for alice, closing her number 1
	aliceInbox, _ := ledger.Load(ledger.Inbox, alice.party, alice.acct.Reference, f.notaryID)
	assert.Equal(t, 1, aliceInbox.Count(), "sender receipt")
	var receiptNumber uint64
	aliceInbox.Each(func(tx *transactionrecord.Transaction) bool {
		assert.Equal(t, transactionrecord.TransferReceiptTag, tx.Tag)
		assert.Equal(t, uint64(1), tx.ClosingNumber)
		receiptNumber = tx.Number
		return true
	})

	aliceOutbox, _ := ledger.Load(ledger.Outbox, alice.party, alice.acct.Reference, f.notaryID)
	assert.Zero(t, aliceOutbox.Count(), "outbox mirror should be gone")

	// alice collects the receipt, number 1 finally closes
	collect := f.makeRequest(alice, transactionrecord.ProcessInboxTag, 2,
		&transactionrecord.Item{
			Type:   transactionrecord.AcceptReceiptItem,
			Number: receiptNumber,
		},
		f.balanceStatement(t, alice, 70, []uint64{3}),
	)
	dispatchAcknowledged(t, collect)

	context, err := client.Load(alice.party)
	if nil != err {
		t.Fatalf("context load error: %s", err)
	}
	assert.Equal(t, []uint64{3}, context.IssuedNumbers(), "only number 3 should remain issued")
}

func TestTransferRejectionRefundsSender(t *testing.T) {
	f, teardown := setupNotary(t)
	defer teardown()

	alice := f.newClient(t, 100, 1, 2)
	bob := f.newClient(t, 0, 10, 11)

	transfer := f.makeRequest(alice, transactionrecord.TransferTag, 1,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      40,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 60, []uint64{1, 2}),
	)
	response := dispatchAcknowledged(t, transfer)
	pendingNumber := response.Items[0].Number

	rejectIt := f.makeRequest(bob, transactionrecord.ProcessInboxTag, 10,
		&transactionrecord.Item{
			Type:   transactionrecord.RejectPendingItem,
			Number: pendingNumber,
		},
		f.balanceStatement(t, bob, 0, []uint64{11}),
	)
	dispatchAcknowledged(t, rejectIt)

	assert.Equal(t, int64(100), loadBalance(t, alice.acct.Reference), "refunded balance")
	assert.Equal(t, int64(0), loadBalance(t, bob.acct.Reference), "rejector balance")

	// the receipt still closes alice's number, amount negated to
	// mark the bounce
	aliceInbox, _ := ledger.Load(ledger.Inbox, alice.party, alice.acct.Reference, f.notaryID)
	assert.Equal(t, 1, aliceInbox.Count())
	aliceInbox.Each(func(tx *transactionrecord.Transaction) bool {
		assert.Equal(t, transactionrecord.TransferReceiptTag, tx.Tag)
		assert.Equal(t, int64(-40), tx.Amount)
		assert.Equal(t, uint64(1), tx.ClosingNumber)
		return true
	})
}

func TestStatementMismatchMutatesNothing(t *testing.T) {
	f, teardown := setupNotary(t)
	defer teardown()

	alice := f.newClient(t, 100, 1, 2)
	bob := f.newClient(t, 50, 10)

	// wrong post-operation balance claimed
	transfer := f.makeRequest(alice, transactionrecord.TransferTag, 1,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      30,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 75, []uint64{1, 2}),
	)
	note := dispatchRejected(t, transfer)
	assert.Equal(t, fault.ErrStatementMismatch.Error(), note)

	assert.Equal(t, int64(100), loadBalance(t, alice.acct.Reference), "balance untouched")
	assert.Equal(t, int64(50), loadBalance(t, bob.acct.Reference), "destination untouched")

	bobInbox, _ := ledger.Load(ledger.Inbox, bob.party, bob.acct.Reference, f.notaryID)
	assert.Zero(t, bobInbox.Count(), "no pending entry")

	// the rejected request burned its number, the corrected attempt
	// needs the next one
	context, err := client.Load(alice.party)
	if nil != err {
		t.Fatalf("context load error: %s", err)
	}
	assert.Equal(t, []uint64{2}, context.IssuedNumbers(), "number 1 burned on rejection")

	retry := f.makeRequest(alice, transactionrecord.TransferTag, 2,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      30,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 70, []uint64{2}),
	)
	dispatchAcknowledged(t, retry)
	assert.Equal(t, int64(70), loadBalance(t, alice.acct.Reference))
}

func TestNumberReuseRejected(t *testing.T) {
	f, teardown := setupNotary(t)
	defer teardown()

	alice := f.newClient(t, 100, 1, 2)
	bob := f.newClient(t, 0, 10)

	transfer := f.makeRequest(alice, transactionrecord.TransferTag, 1,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      10,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 90, []uint64{1, 2}),
	)
	dispatchAcknowledged(t, transfer)

	// number 1 is consumed, a second spend must bounce
	again := f.makeRequest(alice, transactionrecord.TransferTag, 1,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      10,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 80, []uint64{1, 2}),
	)
	note := dispatchRejected(t, again)
	assert.Equal(t, fault.ErrNumberNotAvailable.Error(), note)
	assert.Equal(t, int64(90), loadBalance(t, alice.acct.Reference))
}

func TestProcessNymboxBootstrap(t *testing.T) {
	f, teardown := setupNotary(t)
	defer teardown()

	owner, key, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}

	issued, err := notary.IssueNumbers(owner, 3)
	if nil != err {
		t.Fatalf("issue numbers error: %s", err)
	}
	assert.Equal(t, 3, len(issued))

	nymbox, err := ledger.Load(ledger.Nymbox, owner, digest.Digest{}, f.notaryID)
	if nil != err {
		t.Fatalf("nymbox load error: %s", err)
	}
	assert.Equal(t, 3, nymbox.Count(), "blanks waiting")

	claim := &statement.Statement{
		Party:     owner,
		InboxHash: nymbox.Hash(),
		Issued:    issued,
	}
	claim.Sign(key)
	packedClaim, err := claim.Pack()
	if nil != err {
		t.Fatalf("statement pack error: %s", err)
	}

	items := make([]*transactionrecord.Item, 0, 4)
	for _, n := range issued {
		items = append(items, &transactionrecord.Item{
			Type:   transactionrecord.AcceptNoticeItem,
			Number: n,
		})
	}
	items = append(items, &transactionrecord.Item{
		Type:       transactionrecord.BalanceStatementItem,
		Attachment: packedClaim,
	})

	// a party with no numbers yet submits with number zero
	request := &transactionrecord.Transaction{
		Tag:    transactionrecord.ProcessNymboxTag,
		Party:  owner,
		Notary: f.notaryID,
		Items:  items,
	}
	for _, item := range items {
		item.Sign(0, key)
	}
	request.Sign(key)
	dispatchAcknowledged(t, request)

	context, err := client.Load(owner)
	if nil != err {
		t.Fatalf("context load error: %s", err)
	}
	assert.Equal(t, issued, context.IssuedNumbers(), "blanks became issued numbers")
	assert.Equal(t, issued, context.AvailableNumbers(), "and are spendable")

	nymbox, _ = ledger.Load(ledger.Nymbox, owner, digest.Digest{}, f.notaryID)
	assert.Zero(t, nymbox.Count(), "nymbox emptied")
}

func TestRateLimit(t *testing.T) {
	f, teardown := setupNotary(t)
	defer teardown()

	// rebuild with a one request budget
	notary.Finalise()
	if err := notary.Initialise(f.notaryKey, f.sequence, notary.Limits{
		RatePerParty:        0.001,
		RateBurst:           1,
		VoucherValidityDays: 180,
	}); nil != err {
		t.Fatalf("notary initialise error: %s", err)
	}

	alice := f.newClient(t, 100, 1, 2)
	bob := f.newClient(t, 0, 10)

	first := f.makeRequest(alice, transactionrecord.TransferTag, 1,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      10,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 90, []uint64{1, 2}),
	)
	dispatchAcknowledged(t, first)

	second := f.makeRequest(alice, transactionrecord.TransferTag, 2,
		&transactionrecord.Item{
			Type:        transactionrecord.TransferItem,
			Amount:      10,
			Destination: bob.acct.Reference,
		},
		f.balanceStatement(t, alice, 80, []uint64{1, 2}),
	)
	note := dispatchRejected(t, second)
	assert.Equal(t, fault.ErrRateLimitExceeded.Error(), note)
}
