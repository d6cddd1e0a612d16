// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package client

import (
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/util"
)

// Pack - binary form of the three number sets
//
// layout: three length-prefixed lists of varint numbers, each list in
// ascending order so the packed form is canonical
func (context *Context) Pack() []byte {
	buffer := []byte{}
	for _, set := range [][]uint64{
		sortedKeys(context.issued),
		sortedKeys(context.available),
		sortedKeys(context.openCron),
	} {
		buffer = util.AppendUvarint(buffer, uint64(len(set)))
		for _, n := range set {
			buffer = util.AppendUvarint(buffer, n)
		}
	}
	return buffer
}

// Unpack - rebuild a context from its packed form
func Unpack(p *party.Party, buffer []byte) (*Context, error) {
	context := NewContext(p)

	sets := []map[uint64]struct{}{
		context.issued,
		context.available,
		context.openCron,
	}
	r := util.NewReader(buffer)
	for _, set := range sets {
		count := r.Uvarint()
		for i := uint64(0); i < count; i += 1 {
			value := r.Uvarint()
			if nil != r.Err() {
				return nil, r.Err()
			}
			set[value] = struct{}{}
		}
	}
	if nil != r.Err() {
		return nil, r.Err()
	}
	if 0 != r.Remaining() {
		return nil, fault.ErrInvalidStructure
	}

	// reject a corrupt record that breaks the subset invariant
	for n := range context.available {
		if !context.IsIssued(n) {
			return nil, fault.ErrInvalidStructure
		}
	}
	for n := range context.openCron {
		if !context.IsIssued(n) {
			return nil, fault.ErrInvalidStructure
		}
	}

	return context, nil
}

// Load - fetch a party's context from storage
//
// a party with no stored record gets a fresh empty context
func Load(p *party.Party) (*Context, error) {
	buffer := storage.Pool.Contexts.Get(p.Bytes())
	if nil == buffer {
		return NewContext(p), nil
	}
	return Unpack(p, buffer)
}

// Save - stage the context onto a storage transaction
func (context *Context) Save(trx *storage.Transaction) {
	trx.Put(storage.Pool.Contexts, context.Party.Bytes(), context.Pack())
}
