// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cron

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/sequence"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// globals for this module
type globalDataType struct {
	sync.RWMutex
	log              *logger.L
	maxItemsPerParty int
	key              *party.PrivateKey
	sequence         *sequence.Generator
	initialised      bool
}

var globalData globalDataType

// Initialise - start the registry
//
// the storage pool is the single source of truth; registration and
// removal stage onto the caller's transaction so an item can never
// outlive or predate the notarization that carries it
func Initialise(maxItemsPerParty int, key *party.PrivateKey, seq *sequence.Generator) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}
	if maxItemsPerParty <= 0 || nil == key || nil == seq {
		return fault.ErrInvalidStructure
	}

	globalData.log = logger.New("cron")
	globalData.log.Info("starting…")

	globalData.maxItemsPerParty = maxItemsPerParty
	globalData.key = key
	globalData.sequence = seq

	// verify every stored record still unpacks
	count := 0
	loadError := error(nil)
	storage.Pool.CronItems.Scan(func(key []byte, value []byte) bool {
		if _, err := Unpack(value); nil != err {
			loadError = err
			return false
		}
		count += 1
		return true
	})
	if nil != loadError {
		return loadError
	}
	globalData.log.Infof("%d items registered", count)

	globalData.initialised = true
	return nil
}

// Finalise - stop the registry
func Finalise() error {
	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.initialised = false
	globalData.log.Flush()
	return nil
}

// MaxItemsPerParty - cap on concurrently open items per party
func MaxItemsPerParty() int {
	globalData.RLock()
	defer globalData.RUnlock()
	return globalData.maxItemsPerParty
}

// CountForParty - open items the party holds a stake in
func CountForParty(p *party.Party) int {
	count := 0
	storage.Pool.CronItems.Scan(func(key []byte, value []byte) bool {
		if item, err := Unpack(value); nil == err && item.HasParty(p) {
			count += 1
		}
		return true
	})
	return count
}

// Add - stage an item's registration onto the caller's transaction
//
// the caller has already verified every party's numbers and
// signatures; nothing is registered until the transaction commits
func Add(trx *storage.Transaction, item *Item, now time.Time) error {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}
	if nil == trx || nil == item {
		return fault.ErrInvalidStructure
	}
	if err := item.check(); nil != err {
		return err
	}
	if 0 != item.ValidUntil && now.Unix() > item.ValidUntil {
		return fault.ErrInstrumentExpired
	}

	opening := item.OpeningNumber()
	if storage.Pool.CronItems.Has(itemKey(opening)) {
		return fault.ErrDuplicateTransactionNumber
	}

	for _, stake := range item.Parties {
		if CountForParty(stake.Party) >= globalData.maxItemsPerParty {
			return fault.ErrCronItemLimit
		}
	}

	trx.Put(storage.Pool.CronItems, itemKey(opening), item.Pack())

	globalData.log.Infof("staged %s item: opening %d, %d parties", item.Kind, opening, len(item.Parties))
	return nil
}

// FindByOpeningNumber - look up an active item
func FindByOpeningNumber(number uint64) (*Item, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	value := storage.Pool.CronItems.Get(itemKey(number))
	if nil == value {
		return nil, fault.ErrCronItemNotFound
	}
	return Unpack(value)
}

// RemoveByOpeningNumber - stage an item's removal and its closing
// receipts onto the caller's transaction
//
// the acting party must hold a stake in the item; a final receipt
// is added to every stakeholder's inbox so each can close its
// opening number through its own inbox processing
func RemoveByOpeningNumber(trx *storage.Transaction, number uint64, acting *party.Party) (*Item, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	if nil == trx {
		return nil, fault.ErrInvalidStructure
	}
	value := storage.Pool.CronItems.Get(itemKey(number))
	if nil == value {
		return nil, fault.ErrCronItemNotFound
	}
	item, err := Unpack(value)
	if nil != err {
		return nil, err
	}
	if !item.HasParty(acting) {
		return nil, fault.ErrNotTheCronItemOwner
	}

	// several stakes may share one account, so one box instance per
	// account or the later save would drop the earlier receipt
	boxes := make(map[digest.Digest]*ledger.Ledger)

	for _, stake := range item.Parties {
		inbox, ok := boxes[stake.Account]
		if !ok {
			var err error
			inbox, err = ledger.Load(ledger.Inbox, stake.Party, stake.Account, item.Notary)
			if nil != err {
				return nil, err
			}
			boxes[stake.Account] = inbox
		}

		receipt := &transactionrecord.Transaction{
			Tag:           transactionrecord.FinalReceiptTag,
			Number:        globalData.sequence.Next(),
			ClosingNumber: stake.Opening,
			ReferenceTo:   number,
			Party:         globalData.key.Party(),
			Account:       stake.Account,
			Notary:        item.Notary,
		}
		receipt.Sign(globalData.key)

		if err := inbox.Add(receipt); nil != err {
			return nil, err
		}
	}
	for _, inbox := range boxes {
		inbox.Save(trx)
	}
	trx.Delete(storage.Pool.CronItems, itemKey(number))

	globalData.log.Infof("staged removal of %s item: opening %d", item.Kind, number)
	return item, nil
}

func itemKey(opening uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, opening)
	return key
}
