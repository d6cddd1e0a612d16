// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package account - per asset balance stores
//
// an account holds one party's balance of one asset at one notary;
// every stored record carries the notary's own signature so a forged
// or corrupted record is detected on load
//
// all mutation goes through an exclusive checkout (see checkout.go):
// debits and credits are staged in memory and either committed as
// part of one atomic storage transaction or discarded
package account

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/util"
)

// Account - one asset holding
type Account struct {
	Reference digest.Digest   `json:"reference"`
	Owner     *party.Party    `json:"owner"`
	Asset     digest.Digest   `json:"asset"`
	Notary    digest.Digest   `json:"notary"`
	Balance   int64           `json:"balance,string"`
	Internal  bool            `json:"internal"` // reserve accounts, no ordinary transfers
	Signature party.Signature `json:"signature"` // notary's signature over the record
}

// NewReference - deterministic account reference
//
// the label distinguishes multiple accounts of the same asset held by
// one party (e.g. "" for the main account, "voucher" for a reserve)
func NewReference(owner *party.Party, assetID digest.Digest, notary digest.Digest, label string) digest.Digest {
	buffer := owner.Bytes()
	buffer = append(buffer, assetID[:]...)
	buffer = append(buffer, notary[:]...)
	buffer = append(buffer, []byte(label)...)
	return digest.NewDigest(buffer)
}

// NewAccount - a fresh zero balance account
func NewAccount(owner *party.Party, assetID digest.Digest, notary digest.Digest, label string, internal bool) *Account {
	return &Account{
		Reference: NewReference(owner, assetID, notary, label),
		Owner:     owner,
		Asset:     assetID,
		Notary:    notary,
		Balance:   0,
		Internal:  internal,
	}
}

// PackPayload - canonical binary form without the notary signature
func (account *Account) PackPayload() []byte {
	buffer := append([]byte{}, account.Reference[:]...)
	buffer = util.AppendBytes(buffer, account.Owner.Bytes())
	buffer = append(buffer, account.Asset[:]...)
	buffer = append(buffer, account.Notary[:]...)
	buffer = util.AppendVarint(buffer, account.Balance)
	if account.Internal {
		buffer = append(buffer, 0x01)
	} else {
		buffer = append(buffer, 0x00)
	}
	return buffer
}

// Sign - the notary countersigns the current state
func (account *Account) Sign(key *party.PrivateKey) {
	account.Signature = key.Sign(account.PackPayload())
}

// CheckSignature - verify the stored record was signed by this notary
func (account *Account) CheckSignature(notary *party.Party) error {
	if nil == notary {
		return fault.ErrInvalidSignature
	}
	return notary.CheckSignature(account.PackPayload(), account.Signature)
}

// Pack - full binary form
func (account *Account) Pack() ([]byte, error) {
	if 0 == len(account.Signature) {
		return nil, fault.ErrTransactionNotSigned
	}
	return util.AppendBytes(account.PackPayload(), account.Signature), nil
}

// Unpack - rebuild an account from its packed form
func Unpack(buffer []byte) (*Account, error) {

	r := util.NewReader(buffer)

	account := &Account{}
	account.Reference = r.Digest()

	ownerBytes := r.Bytes()
	if nil != r.Err() {
		return nil, r.Err()
	}
	owner, err := party.FromBytes(ownerBytes)
	if nil != err {
		return nil, err
	}
	account.Owner = owner

	account.Asset = r.Digest()
	account.Notary = r.Digest()
	account.Balance = r.Varint()
	account.Internal = 0x01 == r.Byte()
	account.Signature = party.Signature(r.Bytes())

	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}
	return account, nil
}

// Load - fetch and unpack an account record
func Load(reference digest.Digest) (*Account, error) {
	packed := storage.Pool.Accounts.Get(reference[:])
	if nil == packed {
		return nil, fault.ErrAccountNotFound
	}
	account, err := Unpack(packed)
	if nil != err {
		return nil, err
	}
	if account.Reference != reference {
		return nil, fault.ErrInvalidStructure
	}
	return account, nil
}

// Exists - check an account record is on file
func Exists(reference digest.Digest) bool {
	return storage.Pool.Accounts.Has(reference[:])
}

// Save - sign the current state and stage it onto a transaction
func (account *Account) Save(trx *storage.Transaction, key *party.PrivateKey) error {
	account.Sign(key)
	packed, err := account.Pack()
	if nil != err {
		return err
	}
	trx.Put(storage.Pool.Accounts, account.Reference[:], packed)
	return nil
}
