// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mint_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/mint"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
)

var (
	testAsset  = digest.NewDigest([]byte("gold"))
	testNotary = digest.NewDigest([]byte("the notary"))
)

func setup(t *testing.T) func() {
	dir, err := ioutil.TempDir("", "mint-test")
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
	if err := mint.Initialise(); nil != err {
		t.Fatalf("mint initialise error: %s", err)
	}

	return func() {
		mint.Finalise()
		storage.Finalise()
		logger.Finalise()
		os.RemoveAll(dir)
	}
}

func newTestMint(t *testing.T, series uint64) *mint.LocalMint {
	_, key, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	reserve := digest.NewDigest([]byte("cash reserve"))
	m, err := mint.NewLocalMint(
		series, testAsset, testNotary, key, reserve,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour),
		[]int64{1, 5, 10, 50},
	)
	if nil != err {
		t.Fatalf("new local mint error: %s", err)
	}
	return m
}

func newToken(denomination int64, nonce string) *mint.Token {
	return &mint.Token{
		Series:       7,
		Asset:        testAsset,
		Notary:       testNotary,
		Denomination: denomination,
		Nonce:        []byte(nonce),
	}
}

func TestSignAndVerify(t *testing.T) {
	m := newTestMint(t, 7)

	token := newToken(10, "nonce-1")
	assert.Nil(t, m.Sign(token), "sign error")
	assert.NotEmpty(t, token.Signature, "token not signed")

	assert.Nil(t, m.Verify(token, 10), "verify error")
	assert.Equal(t, fault.ErrInvalidDenomination, m.Verify(token, 50), "wrong denomination accepted")

	// altering the nonce must break the signature
	token.Nonce = []byte("nonce-2")
	assert.Equal(t, fault.ErrTokenVerifyFailed, m.Verify(token, 10), "tampered token accepted")
}

func TestSignRejectsBadTokens(t *testing.T) {
	m := newTestMint(t, 7)

	assert.Equal(t, fault.ErrInvalidDenomination, m.Sign(newToken(3, "n")), "unknown denomination issued")

	wrongSeries := newToken(10, "n")
	wrongSeries.Series = 8
	assert.Equal(t, fault.ErrMintNotFound, m.Sign(wrongSeries), "wrong series issued")

	wrongAsset := newToken(10, "n")
	wrongAsset.Asset = digest.NewDigest([]byte("silver"))
	assert.Equal(t, fault.ErrAssetMismatch, m.Sign(wrongAsset), "wrong asset issued")

	issued := newToken(10, "n")
	assert.Nil(t, m.Sign(issued), "sign error")
	assert.NotNil(t, m.Sign(issued), "token issued twice")
}

func TestVerifyRejectsForeignMint(t *testing.T) {
	m := newTestMint(t, 7)
	other := newTestMint(t, 7)

	token := newToken(10, "n")
	assert.Nil(t, other.Sign(token), "sign error")
	assert.Equal(t, fault.ErrTokenVerifyFailed, m.Verify(token, 10), "foreign token accepted")
}

func TestExpiry(t *testing.T) {
	_, key, err := party.GenerateKeypair(true)
	assert.Nil(t, err, "generate keypair error")

	m, err := mint.NewLocalMint(
		1, testAsset, testNotary, key, digest.NewDigest([]byte("r")),
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour),
		[]int64{1},
	)
	assert.Nil(t, err, "new local mint error")
	assert.True(t, m.Expired(time.Now()), "expired series reported live")
	assert.False(t, m.Expired(time.Now().Add(-90*time.Minute)), "live series reported expired")
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestMint(t, 7)

	token := newToken(50, "round-trip")
	assert.Nil(t, m.Sign(token), "sign error")

	recovered, err := mint.UnpackToken(token.Pack())
	assert.Nil(t, err, "unpack error")
	assert.Equal(t, token, recovered, "token changed in transit")
	assert.Equal(t, token.SpendableID(), recovered.SpendableID(), "spendable id unstable")
	assert.Nil(t, m.Verify(recovered, 50), "recovered token rejected")

	_, err = mint.UnpackToken(append(token.Pack(), 0x00))
	assert.Equal(t, fault.ErrInvalidStructure, err, "trailing garbage accepted")
}

func TestPurse(t *testing.T) {
	m := newTestMint(t, 7)

	purse := mint.NewPurse(testAsset, testNotary)
	for i, d := range []int64{10, 5, 50} {
		token := newToken(d, string(rune('a'+i)))
		assert.Nil(t, m.Sign(token), "sign error")
		assert.Nil(t, purse.Add(token), "add error")
	}
	assert.Equal(t, 3, purse.Count(), "wrong count")
	assert.Equal(t, int64(65), purse.TotalValue(), "wrong total")

	foreign := &mint.Token{
		Series:       7,
		Asset:        digest.NewDigest([]byte("silver")),
		Notary:       testNotary,
		Denomination: 10,
		Nonce:        []byte("x"),
	}
	assert.Equal(t, fault.ErrAssetMismatch, purse.Add(foreign), "foreign token admitted")

	recovered, err := mint.UnpackPurse(purse.Pack())
	assert.Nil(t, err, "unpack error")
	assert.Equal(t, int64(65), recovered.TotalValue(), "value lost in transit")

	// pop consumes in order
	values := []int64{}
	for token := recovered.Pop(); nil != token; token = recovered.Pop() {
		values = append(values, token.Denomination)
	}
	assert.Equal(t, []int64{10, 5, 50}, values, "pop order wrong")
	assert.Equal(t, 0, recovered.Count(), "purse not drained")
	assert.Nil(t, recovered.Pop(), "pop from empty purse")
}

func TestRegistry(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	m := newTestMint(t, 7)
	assert.Nil(t, mint.Register(testAsset, m), "register error")

	found, err := mint.Find(testAsset, 7)
	assert.Nil(t, err, "find error")
	assert.Equal(t, uint64(7), found.Series(), "wrong mint resolved")

	_, err = mint.Find(testAsset, 8)
	assert.Equal(t, fault.ErrMintNotFound, err, "phantom series resolved")

	_, err = mint.Find(digest.NewDigest([]byte("silver")), 7)
	assert.Equal(t, fault.ErrMintNotFound, err, "phantom asset resolved")
}

func TestSpentRecord(t *testing.T) {
	teardown := setup(t)
	defer teardown()

	m := newTestMint(t, 7)
	token := newToken(10, "spend-once")
	assert.Nil(t, m.Sign(token), "sign error")

	assert.Nil(t, mint.CheckSpent(token), "fresh token reported spent")

	trx := storage.NewTransaction()
	mint.RecordSpent(trx, token)

	// staged but not committed: still spendable
	assert.Nil(t, mint.CheckSpent(token), "uncommitted record visible")

	assert.Nil(t, trx.Commit(), "commit error")
	assert.Equal(t, fault.ErrTokenAlreadySpent, mint.CheckSpent(token), "double spend allowed")
}
