// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sequence - transaction number issuance
//
// a single monotonically increasing counter shared by all
// notarizations; this is the one global sequencing point of the
// engine so it carries its own dedicated lock, independent of any
// account lock, and is passed by handle into every handler
package sequence

import (
	"sync"

	"github.com/bitmark-inc/notaryd/storage"
)

// database key for the persisted high-water mark
var highWaterKey = []byte("high-water")

// Generator - issues transaction numbers
type Generator struct {
	sync.Mutex
	pool    *storage.PoolHandle
	current uint64
}

// New - create a generator resuming from the persisted high-water mark
func New(pool *storage.PoolHandle) *Generator {
	current := uint64(0)
	if nil != pool {
		if n, ok := pool.GetN(highWaterKey); ok {
			current = n
		}
	}
	return &Generator{
		pool:    pool,
		current: current,
	}
}

// Next - allocate the next transaction number
//
// the number is durable before it is handed out so a restart can
// never reissue it
func (g *Generator) Next() uint64 {
	g.Lock()
	defer g.Unlock()

	g.current += 1
	if nil != g.pool {
		g.pool.PutN(highWaterKey, g.current)
	}
	return g.current
}

// Current - the last allocated number
func (g *Generator) Current() uint64 {
	g.Lock()
	defer g.Unlock()
	return g.current
}
