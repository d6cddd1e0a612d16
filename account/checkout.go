// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

import (
	"sort"
	"sync"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
)

// per account exclusive locks
//
// locks are created on demand and kept for the life of the process;
// the population of accounts at one notary is small enough that no
// eviction is needed
var checkoutData struct {
	sync.Mutex
	locks map[digest.Digest]*sync.Mutex
}

func init() {
	checkoutData.locks = make(map[digest.Digest]*sync.Mutex)
}

func lockFor(reference digest.Digest) *sync.Mutex {
	checkoutData.Lock()
	defer checkoutData.Unlock()
	l, ok := checkoutData.locks[reference]
	if !ok {
		l = new(sync.Mutex)
		checkoutData.locks[reference] = l
	}
	return l
}

// Checkout - one exclusively held account
type Checkout struct {
	Account *Account
	opening int64 // balance at checkout, for conservation checks
	created bool  // record did not exist before this notarization
}

// Opening - the balance at checkout time
func (c *Checkout) Opening() int64 {
	return c.opening
}

// Debit - stage removal of value
//
// internal accounts are issuer side liability records and may go
// negative; ordinary accounts may not
func (c *Checkout) Debit(amount int64) error {
	if amount <= 0 {
		return fault.ErrInvalidCount
	}
	if !c.Account.Internal && c.Account.Balance < amount {
		return fault.ErrInsufficientBalance
	}
	c.Account.Balance -= amount
	return nil
}

// Credit - stage addition of value
func (c *Checkout) Credit(amount int64) error {
	if amount <= 0 {
		return fault.ErrInvalidCount
	}
	c.Account.Balance += amount
	return nil
}

// Set - all accounts exclusively held by one notarization
//
// terminal operations: Commit persists every staged mutation
// atomically and releases all locks; Abort discards and releases;
// exactly one of the two must be called
type Set struct {
	checkouts []*Checkout
	order     []digest.Digest // acquisition (= release) order
	done      bool
}

// CheckoutAll - exclusively acquire a group of accounts
//
// references are deduplicated and locked in canonical digest order so
// opposite direction operations can never deadlock; missing accounts
// are an error unless a replacement record is supplied in create
func CheckoutAll(references []digest.Digest, create map[digest.Digest]*Account) (*Set, error) {

	unique := make(map[digest.Digest]struct{})
	order := make([]digest.Digest, 0, len(references))
	for _, reference := range references {
		if _, ok := unique[reference]; ok {
			continue
		}
		unique[reference] = struct{}{}
		order = append(order, reference)
	}
	sort.Slice(order, func(i int, j int) bool {
		return digest.Compare(order[i], order[j]) < 0
	})

	set := &Set{
		order: order,
	}

	for _, reference := range order {
		lockFor(reference).Lock()

		acct, err := Load(reference)
		if nil != err {
			if fault.ErrAccountNotFound == err && nil != create {
				if fresh, ok := create[reference]; ok {
					set.checkouts = append(set.checkouts, &Checkout{
						Account: fresh,
						opening: fresh.Balance,
						created: true,
					})
					continue
				}
			}
			// undo the locks taken so far, including this one
			set.checkouts = append(set.checkouts, nil)
			set.unlock()
			return nil, err
		}

		set.checkouts = append(set.checkouts, &Checkout{
			Account: acct,
			opening: acct.Balance,
		})
	}

	return set, nil
}

// Checkout - single account convenience wrapper
func CheckoutOne(reference digest.Digest) (*Set, error) {
	return CheckoutAll([]digest.Digest{reference}, nil)
}

// Get - the checkout for one reference
func (set *Set) Get(reference digest.Digest) *Checkout {
	for i, r := range set.order {
		if r == reference {
			return set.checkouts[i]
		}
	}
	return nil
}

// Each - visit all checkouts in acquisition order
func (set *Set) Each(callback func(c *Checkout)) {
	for _, c := range set.checkouts {
		if nil != c {
			callback(c)
		}
	}
}

// NetChange - sum of balance deltas across the whole set
//
// zero for every conserving operation
func (set *Set) NetChange() int64 {
	net := int64(0)
	set.Each(func(c *Checkout) {
		net += c.Account.Balance - c.opening
	})
	return net
}

// Commit - stage every account onto the transaction, write the whole
// batch atomically and release all locks
func (set *Set) Commit(trx *storage.Transaction, key *party.PrivateKey) error {
	if set.done {
		logger.Panic("account set already terminated")
	}

	for _, c := range set.checkouts {
		if nil == c {
			continue
		}
		if err := c.Account.Save(trx, key); nil != err {
			set.Abort()
			return err
		}
	}
	if err := trx.Commit(); nil != err {
		set.Abort()
		return err
	}
	set.done = true
	set.unlock()
	return nil
}

// Abort - discard all staged mutations and release all locks
func (set *Set) Abort() {
	if set.done {
		return
	}
	set.done = true
	for _, c := range set.checkouts {
		if nil == c {
			continue
		}
		c.Account.Balance = c.opening
	}
	set.unlock()
}

func (set *Set) unlock() {
	// every index in checkouts holds an acquired lock, release in
	// reverse acquisition order
	for i := len(set.checkouts) - 1; i >= 0; i -= 1 {
		lockFor(set.order[i]).Unlock()
	}
}
