// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sequence_test

import (
	"sync"
	"testing"

	"github.com/bitmark-inc/notaryd/sequence"
)

func TestMonotonic(t *testing.T) {

	g := sequence.New(nil)

	previous := uint64(0)
	for i := 0; i < 1000; i += 1 {
		n := g.Next()
		if n <= previous {
			t.Fatalf("number not monotonic: %d after %d", n, previous)
		}
		previous = n
	}
	if 1000 != g.Current() {
		t.Errorf("wrong current: %d", g.Current())
	}
}

func TestNoDuplicatesUnderConcurrency(t *testing.T) {

	g := sequence.New(nil)

	const workers = 8
	const perWorker = 500

	results := make(chan uint64, workers*perWorker)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i += 1 {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j += 1 {
				results <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]struct{})
	for n := range results {
		if _, ok := seen[n]; ok {
			t.Fatalf("duplicate number issued: %d", n)
		}
		seen[n] = struct{}{}
	}
	if workers*perWorker != len(seen) {
		t.Errorf("wrong number of allocations: %d", len(seen))
	}
}
