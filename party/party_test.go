// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package party_test

import (
	"testing"

	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
)

func TestBase58RoundTrip(t *testing.T) {

	p, _, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}

	encoded := p.String()
	back, err := party.FromBase58(encoded)
	if nil != err {
		t.Fatalf("from base58 error: %s", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip mismatch: %v != %v", p, back)
	}
	if !back.Test {
		t.Error("test flag lost in round trip")
	}
}

func TestBytesRoundTrip(t *testing.T) {

	p, _, err := party.GenerateKeypair(false)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}

	back, err := party.FromBytes(p.Bytes())
	if nil != err {
		t.Fatalf("from bytes error: %s", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip mismatch: %v != %v", p, back)
	}
}

func TestCheckSignature(t *testing.T) {

	p, key, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}

	message := []byte("settle 30 from a to b")
	signature := key.Sign(message)

	if err := p.CheckSignature(message, signature); nil != err {
		t.Errorf("valid signature rejected: %s", err)
	}

	// flip one bit
	bad := make(party.Signature, len(signature))
	copy(bad, signature)
	bad[0] ^= 0x01
	if err := p.CheckSignature(message, bad); fault.ErrInvalidSignature != err {
		t.Errorf("corrupted signature not rejected, got: %v", err)
	}

	if err := p.CheckSignature(message, bad[:10]); fault.ErrInvalidSignature != err {
		t.Errorf("truncated signature not rejected, got: %v", err)
	}

	if err := p.CheckSignature([]byte("settle 31 from a to b"), signature); fault.ErrInvalidSignature != err {
		t.Errorf("wrong message not rejected, got: %v", err)
	}
}

func TestPrivateKeyParty(t *testing.T) {

	p, key, err := party.GenerateKeypair(true)
	if nil != err {
		t.Fatalf("generate keypair error: %s", err)
	}
	if !p.Equal(key.Party()) {
		t.Error("private key does not recover its party")
	}
}

func TestBadBase58(t *testing.T) {

	testData := []string{
		"",
		"not-base-58-0OIl",
		"3MvykBZzN", // too short for an ED25519 key
	}

	for i, s := range testData {
		if _, err := party.FromBase58(s); nil == err {
			t.Errorf("%d: invalid party accepted: %q", i, s)
		}
	}
}
