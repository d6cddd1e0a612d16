// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package client - per (notary, party) bookkeeping
//
// tracks the three transaction number sets of one party:
//
//	issued    - numbers the party is responsible for until closed
//	available - issued numbers not yet consumed by an operation
//	open cron - issued numbers backing an active recurring item
//
// invariant: available ⊆ issued and open cron ⊆ issued
package client

import (
	"sort"

	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
)

// Context - the number bookkeeping for one party
type Context struct {
	Party *party.Party

	issued    map[uint64]struct{}
	available map[uint64]struct{}
	openCron  map[uint64]struct{}
}

// NewContext - empty bookkeeping for a party
func NewContext(p *party.Party) *Context {
	return &Context{
		Party:     p,
		issued:    make(map[uint64]struct{}),
		available: make(map[uint64]struct{}),
		openCron:  make(map[uint64]struct{}),
	}
}

// IsIssued - check a number is on the issued list
func (context *Context) IsIssued(number uint64) bool {
	_, ok := context.issued[number]
	return ok
}

// IsAvailable - check a number can still be spent
func (context *Context) IsAvailable(number uint64) bool {
	_, ok := context.available[number]
	return ok
}

// IsOpenCron - check a number backs an active recurring item
func (context *Context) IsOpenCron(number uint64) bool {
	_, ok := context.openCron[number]
	return ok
}

// AddIssued - record a freshly issued number
//
// the number becomes both issued and available
func (context *Context) AddIssued(number uint64) error {
	if context.IsIssued(number) {
		return fault.ErrDuplicateTransactionNumber
	}
	context.issued[number] = struct{}{}
	context.available[number] = struct{}{}
	return nil
}

// Consume - spend a number for an in-flight operation
//
// the number leaves available but stays issued
func (context *Context) Consume(number uint64) error {
	if !context.IsAvailable(number) {
		return fault.ErrNumberNotAvailable
	}
	delete(context.available, number)
	return nil
}

// Restore - undo Consume after an aborted operation
func (context *Context) Restore(number uint64) error {
	if !context.IsIssued(number) {
		return fault.ErrNumberNotIssued
	}
	context.available[number] = struct{}{}
	return nil
}

// Release - close a number permanently
//
// removes it from every set; it can never be used again
func (context *Context) Release(number uint64) error {
	if !context.IsIssued(number) {
		return fault.ErrNumberNotIssued
	}
	delete(context.issued, number)
	delete(context.available, number)
	delete(context.openCron, number)
	return nil
}

// MarkOpenCron - record a number as backing an active recurring item
func (context *Context) MarkOpenCron(number uint64) error {
	if !context.IsIssued(number) {
		return fault.ErrNumberNotIssued
	}
	context.openCron[number] = struct{}{}
	return nil
}

// ClearOpenCron - recurring item closed, number no longer backs it
func (context *Context) ClearOpenCron(number uint64) {
	delete(context.openCron, number)
}

// OpenCronCount - number of active recurring items backed by this party
func (context *Context) OpenCronCount() int {
	return len(context.openCron)
}

// IssuedNumbers - sorted copy of the issued set
func (context *Context) IssuedNumbers() []uint64 {
	return sortedKeys(context.issued)
}

// AvailableNumbers - sorted copy of the available set
func (context *Context) AvailableNumbers() []uint64 {
	return sortedKeys(context.available)
}

// Clone - independent deep copy
//
// used to project a post-operation view without touching the live context
func (context *Context) Clone() *Context {
	clone := NewContext(context.Party)
	for n := range context.issued {
		clone.issued[n] = struct{}{}
	}
	for n := range context.available {
		clone.available[n] = struct{}{}
	}
	for n := range context.openCron {
		clone.openCron[n] = struct{}{}
	}
	return clone
}

func sortedKeys(set map[uint64]struct{}) []uint64 {
	numbers := make([]uint64, 0, len(set))
	for n := range set {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i int, j int) bool {
		return numbers[i] < numbers[j]
	})
	return numbers
}
