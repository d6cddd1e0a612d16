// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package audit - flat record of completed notarizations
//
// one record per party and account, split by outcome, overwritten on
// every completed notarization; kept for dispute resolution only and
// never consulted during live validation
package audit

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// Record - stage the signed response into the audit pool
//
// the response must already be signed; rides on the same storage
// transaction as the notarization so the record and the state it
// describes commit together
func Record(trx *storage.Transaction, p *party.Party, account digest.Digest, response *transactionrecord.Transaction, success bool) error {
	if nil == p || nil == response {
		return fault.ErrInvalidStructure
	}
	packed, err := response.Pack(nil)
	if nil != err {
		return err
	}
	trx.Put(pool(success), key(p, account), packed)
	return nil
}

// Load - fetch the latest record for one outcome
func Load(p *party.Party, account digest.Digest, success bool) (*transactionrecord.Transaction, error) {
	packed := pool(success).Get(key(p, account))
	if nil == packed {
		return nil, fault.ErrAuditRecordNotFound
	}
	return transactionrecord.Packed(packed).Unpack()
}

func pool(success bool) *storage.PoolHandle {
	if success {
		return storage.Pool.AuditSuccess
	}
	return storage.Pool.AuditFailure
}

func key(p *party.Party, account digest.Digest) []byte {
	k := p.Bytes()
	return append(k, account[:]...)
}
