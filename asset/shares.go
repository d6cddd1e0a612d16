// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package asset

import (
	"encoding/binary"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/storage"
)

// share register: outstanding shares of an asset per holder account
// key: asset id || holder account reference

func shareKey(assetID digest.Digest, account digest.Digest) []byte {
	key := make([]byte, 0, 2*digest.Length)
	key = append(key, assetID[:]...)
	return append(key, account[:]...)
}

// SetShares - record the holding of one account
func SetShares(assetID digest.Digest, account digest.Digest, quantity uint64) {
	if 0 == quantity {
		storage.Pool.Shares.Delete(shareKey(assetID, account))
		return
	}
	storage.Pool.Shares.PutN(shareKey(assetID, account), quantity)
}

// Shares - the holding of one account
func Shares(assetID digest.Digest, account digest.Digest) uint64 {
	n, _ := storage.Pool.Shares.GetN(shareKey(assetID, account))
	return n
}

// EachShareholder - visit every holder account of an asset in key order
//
// the callback returns false to stop the scan early
func EachShareholder(assetID digest.Digest, callback func(account digest.Digest, quantity uint64) bool) {
	storage.Pool.Shares.Scan(func(key []byte, value []byte) bool {
		if len(key) != 2*digest.Length {
			return true
		}
		var scanAsset digest.Digest
		copy(scanAsset[:], key[:digest.Length])
		if scanAsset != assetID {
			return true
		}
		var account digest.Digest
		copy(account[:], key[digest.Length:])
		if len(value) < 8 {
			return true
		}
		quantity := binary.BigEndian.Uint64(value[:8])
		return callback(account, quantity)
	})
}

// TotalShares - sum of all holdings of an asset
func TotalShares(assetID digest.Digest) uint64 {
	total := uint64(0)
	EachShareholder(assetID, func(account digest.Digest, quantity uint64) bool {
		total += quantity
		return true
	})
	return total
}
