// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - maintain the on-disk data store
//
// maintains a single LevelDB database split into prefixed pools, one
// pool per record kind: accounts, the three ledger boxes, box
// receipts, client contexts, spent tokens, audit receipts and the
// transaction number sequence state
//
// each individual pool is accessed via its handle in storage.Pool;
// multi-record mutations are staged on a Transaction and written as
// one atomic LevelDB batch
package storage
