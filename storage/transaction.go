// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/bitmark-inc/logger"
)

// Transaction - a set of staged writes committed as one LevelDB batch
//
// a notarization stages every mutation it intends to make and either
// commits all of them atomically or abandons the whole set; there is
// no partially written state
type Transaction struct {
	batch     *leveldb.Batch
	committed bool
}

// NewTransaction - start staging a set of writes
func NewTransaction() *Transaction {
	return &Transaction{
		batch: new(leveldb.Batch),
	}
}

// Put - stage a key/value write into a pool
func (t *Transaction) Put(p *PoolHandle, key []byte, value []byte) {
	t.batch.Put(p.prefixKey(key), value)
}

// PutN - stage an 8 byte big endian value write into a pool
func (t *Transaction) PutN(p *PoolHandle, key []byte, value uint64) {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)
	t.batch.Put(p.prefixKey(key), buffer)
}

// Delete - stage a key removal from a pool
func (t *Transaction) Delete(p *PoolHandle, key []byte) {
	t.batch.Delete(p.prefixKey(key))
}

// Commit - write all staged changes atomically
func (t *Transaction) Commit() error {
	poolData.RLock()
	defer poolData.RUnlock()
	if nil == poolData.db {
		logger.Panic("transaction.Commit nil database")
		return nil
	}
	if t.committed {
		logger.Panic("transaction.Commit already committed")
		return nil
	}
	err := poolData.db.Write(t.batch, nil)
	if nil == err {
		t.committed = true
	}
	return err
}

// Abort - discard all staged changes
func (t *Transaction) Abort() {
	t.batch.Reset()
}
