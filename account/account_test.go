// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
)

var (
	testNotary    digest.Digest
	testNotaryKey *party.PrivateKey
	testAsset     digest.Digest
)

func setup(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "account-test")
	if nil != err {
		t.Fatalf("mkdir temp error: %s", err)
	}

	_ = logger.Initialise(logger.Configuration{
		Directory: dir,
		File:      "test.log",
		Size:      50000,
		Count:     10,
		Levels:    map[string]string{logger.DefaultTag: "critical"},
	})

	if err := storage.Initialise(filepath.Join(dir, "db")); nil != err {
		t.Fatalf("storage initialise error: %s", err)
	}

	notaryParty, notaryKey, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	testNotary = digest.NewDigest(notaryParty.Bytes())
	testNotaryKey = notaryKey
	testAsset = digest.NewDigest([]byte("test asset"))

	return func() {
		storage.Finalise()
		logger.Finalise()
		os.RemoveAll(dir)
	}
}

func makeFundedAccount(t *testing.T, balance int64) *account.Account {
	owner, _, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	acct := account.NewAccount(owner, testAsset, testNotary, "", false)
	acct.Balance = balance

	trx := storage.NewTransaction()
	if err := acct.Save(trx, testNotaryKey); nil != err {
		t.Fatalf("save error: %s", err)
	}
	if err := trx.Commit(); nil != err {
		t.Fatalf("commit error: %s", err)
	}
	return acct
}

func TestPackUnpackRoundTrip(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	acct := makeFundedAccount(t, 100)

	loaded, err := account.Load(acct.Reference)
	assert.Nil(t, err, "load error")
	assert.Equal(t, acct.Reference, loaded.Reference, "reference mismatch")
	assert.Equal(t, int64(100), loaded.Balance, "balance mismatch")
	assert.True(t, acct.Owner.Equal(loaded.Owner), "owner mismatch")
	assert.False(t, loaded.Internal, "internal flag mismatch")

	// notary signature valid
	assert.Nil(t, loaded.CheckSignature(testNotaryKey.Party()), "stored signature invalid")

	// and invalid against another notary
	other, _, err := party.GenerateKeypair(true)
	assert.Nil(t, err, "generate keypair error")
	assert.NotNil(t, loaded.CheckSignature(other), "foreign notary accepted")
}

func TestLoadMissing(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	_, err := account.Load(digest.NewDigest([]byte("no such account")))
	assert.Equal(t, fault.ErrAccountNotFound, err, "wrong error for missing account")
}

func TestDebitCredit(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	acct := makeFundedAccount(t, 100)

	set, err := account.CheckoutOne(acct.Reference)
	assert.Nil(t, err, "checkout error")
	c := set.Get(acct.Reference)

	assert.Equal(t, fault.ErrInsufficientBalance, c.Debit(101), "overdraft allowed")
	assert.Equal(t, fault.ErrInvalidCount, c.Debit(0), "zero debit allowed")
	assert.Equal(t, fault.ErrInvalidCount, c.Debit(-5), "negative debit allowed")

	assert.Nil(t, c.Debit(30), "debit error")
	assert.Equal(t, int64(70), c.Account.Balance, "wrong balance after debit")
	assert.Equal(t, int64(-30), set.NetChange(), "wrong net change")

	set.Abort()

	// abort must leave stored state untouched
	loaded, err := account.Load(acct.Reference)
	assert.Nil(t, err, "load error")
	assert.Equal(t, int64(100), loaded.Balance, "abort leaked a debit")
}

func TestCommit(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	source := makeFundedAccount(t, 100)
	destination := makeFundedAccount(t, 50)

	set, err := account.CheckoutAll(
		[]digest.Digest{source.Reference, destination.Reference}, nil)
	assert.Nil(t, err, "checkout error")

	assert.Nil(t, set.Get(source.Reference).Debit(30), "debit error")
	assert.Nil(t, set.Get(destination.Reference).Credit(30), "credit error")
	assert.Equal(t, int64(0), set.NetChange(), "transfer does not conserve")

	trx := storage.NewTransaction()
	assert.Nil(t, set.Commit(trx, testNotaryKey), "commit error")

	loadedSource, _ := account.Load(source.Reference)
	loadedDestination, _ := account.Load(destination.Reference)
	assert.Equal(t, int64(70), loadedSource.Balance, "source balance wrong")
	assert.Equal(t, int64(80), loadedDestination.Balance, "destination balance wrong")
}

func TestCheckoutCreate(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	source := makeFundedAccount(t, 100)

	reserve := account.NewAccount(source.Owner, testAsset, testNotary, "voucher", true)
	assert.False(t, account.Exists(reserve.Reference), "reserve pre-exists")

	set, err := account.CheckoutAll(
		[]digest.Digest{source.Reference, reserve.Reference},
		map[digest.Digest]*account.Account{reserve.Reference: reserve})
	assert.Nil(t, err, "checkout error")

	assert.Nil(t, set.Get(source.Reference).Debit(40), "debit error")
	assert.Nil(t, set.Get(reserve.Reference).Credit(40), "credit error")

	trx := storage.NewTransaction()
	assert.Nil(t, set.Commit(trx, testNotaryKey), "commit error")

	loaded, err := account.Load(reserve.Reference)
	assert.Nil(t, err, "reserve not created")
	assert.Equal(t, int64(40), loaded.Balance, "reserve balance wrong")
	assert.True(t, loaded.Internal, "reserve not internal")
}

func TestCheckoutMissingWithoutCreate(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	source := makeFundedAccount(t, 100)
	missing := digest.NewDigest([]byte("missing"))

	_, err := account.CheckoutAll([]digest.Digest{source.Reference, missing}, nil)
	assert.Equal(t, fault.ErrAccountNotFound, err, "missing account accepted")

	// all locks must have been released
	set, err := account.CheckoutOne(source.Reference)
	assert.Nil(t, err, "lock leaked by failed checkout")
	set.Abort()
}

func TestOppositeOrderCheckoutNoDeadlock(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	a := makeFundedAccount(t, 100)
	b := makeFundedAccount(t, 100)

	const rounds = 200

	var wg sync.WaitGroup
	wg.Add(2)

	worker := func(refs []digest.Digest) {
		defer wg.Done()
		for i := 0; i < rounds; i += 1 {
			set, err := account.CheckoutAll(refs, nil)
			if nil != err {
				t.Errorf("checkout error: %s", err)
				return
			}
			_ = set.Get(refs[0]).Debit(1)
			_ = set.Get(refs[1]).Credit(1)
			set.Abort()
		}
	}

	go worker([]digest.Digest{a.Reference, b.Reference})
	go worker([]digest.Digest{b.Reference, a.Reference})

	wg.Wait()

	loadedA, _ := account.Load(a.Reference)
	loadedB, _ := account.Load(b.Reference)
	assert.Equal(t, int64(100), loadedA.Balance, "aborted mutations leaked")
	assert.Equal(t, int64(100), loadedB.Balance, "aborted mutations leaked")
}
