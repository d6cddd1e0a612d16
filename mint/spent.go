// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mint

import (
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/storage"
)

// spent-token record: append-only, check before insert
//
// keyed by the token's spendable id, the stored value is the full
// packed token for dispute resolution

// CheckSpent - reject a token already in the spent record
func CheckSpent(token *Token) error {
	if nil == token {
		return fault.ErrInvalidStructure
	}
	id := token.SpendableID()
	if storage.Pool.SpentTokens.Has(id[:]) {
		return fault.ErrTokenAlreadySpent
	}
	return nil
}

// RecordSpent - stage the token into the spent record
//
// the caller must have passed CheckSpent under the same account
// checkout that commits this transaction
func RecordSpent(trx *storage.Transaction, token *Token) {
	id := token.SpendableID()
	trx.Put(storage.Pool.SpentTokens, id[:], token.Pack())
}
