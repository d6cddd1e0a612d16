// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"reflect"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/notaryd/fault"
)

// exported storage pools
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type pools struct {
	Accounts     *PoolHandle `prefix:"A"`
	Assets       *PoolHandle `prefix:"T"`
	AuditFailure *PoolHandle `prefix:"F"`
	AuditSuccess *PoolHandle `prefix:"U"`
	BoxReceipts  *PoolHandle `prefix:"R"`
	Contexts     *PoolHandle `prefix:"C"`
	CronItems    *PoolHandle `prefix:"K"`
	Inboxes      *PoolHandle `prefix:"I"`
	Nymboxes     *PoolHandle `prefix:"N"`
	Outboxes     *PoolHandle `prefix:"O"`
	Sequence     *PoolHandle `prefix:"Q"`
	Shares       *PoolHandle `prefix:"H"`
	SpentTokens  *PoolHandle `prefix:"S"`
}

// Pool - the set of exported pools
var Pool pools

// holds the database handle
var poolData struct {
	sync.RWMutex
	db  *leveldb.DB
	log *logger.L

	// set once during initialise
	initialised bool
}

// Initialise - open up the database connection
//
// this must be called before any pool is accessed
func Initialise(database string) error {
	poolData.Lock()
	defer poolData.Unlock()

	if poolData.initialised {
		return fault.ErrAlreadyInitialised
	}

	poolData.log = logger.New("storage")
	poolData.log.Info("starting…")

	db, err := leveldb.OpenFile(database, nil)
	if nil != err {
		poolData.log.Criticalf("cannot open database: %q  error: %s", database, err)
		return err
	}
	poolData.db = db

	// this will be a struct type
	poolType := reflect.TypeOf(Pool)

	// get write access by using pointer + Elem()
	poolValue := reflect.ValueOf(&Pool).Elem()

	// scan each field to set up its handle
	for i := 0; i < poolType.NumField(); i += 1 {

		fieldInfo := poolType.Field(i)
		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			logger.Panicf("pool: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}

		handle := &PoolHandle{
			prefix: prefixTag[0],
			limit:  []byte{prefixTag[0] + 1},
		}
		poolValue.Field(i).Set(reflect.ValueOf(handle))
	}

	poolData.initialised = true
	return nil
}

// Finalise - close the database connection
func Finalise() {
	poolData.Lock()
	defer poolData.Unlock()

	if !poolData.initialised {
		return
	}

	poolData.log.Info("shutting down…")
	poolData.db.Close()
	poolData.db = nil
	poolData.initialised = false
	poolData.log.Info("finished")
	poolData.log.Flush()
}

// IsInitialised - check the database is connected
func IsInitialised() bool {
	poolData.RLock()
	defer poolData.RUnlock()
	return poolData.initialised
}
