// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mint

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
)

// registry expiry times
const (
	registryTTL          = 12 * time.Hour
	registryCleanupCycle = 1 * time.Hour
)

// globals for this module
type globalDataType struct {
	sync.RWMutex
	log         *logger.L
	cache       *gocache.Cache
	initialised bool
}

var globalData globalDataType

// Initialise - start the mint registry
func Initialise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}

	globalData.log = logger.New("mint")
	globalData.log.Info("starting…")

	globalData.cache = gocache.New(registryTTL, registryCleanupCycle)

	globalData.initialised = true
	return nil
}

// Finalise - stop all background tasks
func Finalise() error {
	if !globalData.initialised {
		return fault.ErrNotInitialised
	}

	globalData.log.Info("shutting down…")
	globalData.cache.Flush()
	globalData.initialised = false
	globalData.log.Flush()
	return nil
}

// Register - make a mint resolvable by (asset, series)
//
// registering the same series again replaces the earlier entry and
// refreshes its expiry
func Register(asset digest.Digest, m Mint) error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}
	if nil == m {
		return fault.ErrInvalidStructure
	}
	globalData.cache.Set(registryKey(asset, m.Series()), m, gocache.DefaultExpiration)
	globalData.log.Infof("registered mint: asset %s series %d", asset, m.Series())
	return nil
}

// Find - resolve the mint for a token's asset and series
func Find(asset digest.Digest, series uint64) (Mint, error) {
	globalData.RLock()
	defer globalData.RUnlock()

	if !globalData.initialised {
		return nil, fault.ErrNotInitialised
	}
	entry, found := globalData.cache.Get(registryKey(asset, series))
	if !found {
		return nil, fault.ErrMintNotFound
	}
	return entry.(Mint), nil
}

func registryKey(asset digest.Digest, series uint64) string {
	return fmt.Sprintf("%s:%d", asset, series)
}
