// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package notary - the notarization engine
//
// one Dispatch call takes a party's signed request through the
// precondition gate, the matching handler and the signed response;
// state is mutated only after the party's statement has been
// verified against the server's own view
package notary

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/sequence"
)

// limits applied to every requesting party
type Limits struct {
	RatePerParty        float64 // notarizations per second
	RateBurst           int
	VoucherValidityDays int
}

// globals for this module
type globalDataType struct {
	sync.RWMutex
	log             *logger.L
	key             *party.PrivateKey
	notaryID        digest.Digest
	sequence        *sequence.Generator
	voucherValidity time.Duration

	limitRate  rate.Limit
	limitBurst int
	limiters   map[string]*rate.Limiter

	initialised bool
}

var globalData globalDataType

// Initialise - start the engine
func Initialise(key *party.PrivateKey, seq *sequence.Generator, limits Limits) error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}
	if nil == key || nil == seq {
		return fault.ErrInvalidStructure
	}
	if limits.RatePerParty <= 0 || limits.RateBurst <= 0 || limits.VoucherValidityDays <= 0 {
		return fault.ErrInvalidStructure
	}

	globalData.log = logger.New("notary")
	globalData.log.Info("starting…")

	globalData.key = key
	globalData.notaryID = digest.NewDigest(key.Party().Bytes())
	globalData.sequence = seq
	globalData.voucherValidity = time.Duration(limits.VoucherValidityDays) * 24 * time.Hour
	globalData.limitRate = rate.Limit(limits.RatePerParty)
	globalData.limitBurst = limits.RateBurst
	globalData.limiters = make(map[string]*rate.Limiter)

	globalData.initialised = true
	return nil
}

// Finalise - stop the engine
func Finalise() error {
	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.limiters = nil
	globalData.initialised = false
	globalData.log.Flush()
	return nil
}

// NotaryID - identity digest responses and box entries are scoped to
func NotaryID() digest.Digest {
	globalData.RLock()
	defer globalData.RUnlock()
	return globalData.notaryID
}

// one token bucket per party, created on first contact
func limiterFor(p *party.Party) *rate.Limiter {
	globalData.Lock()
	defer globalData.Unlock()

	id := p.String()
	l, ok := globalData.limiters[id]
	if !ok {
		l = rate.NewLimiter(globalData.limitRate, globalData.limitBurst)
		globalData.limiters[id] = l
	}
	return l
}
