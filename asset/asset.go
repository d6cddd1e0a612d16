// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package asset - asset types settled by the notary
//
// an asset is identified by the digest of its issuance contract; a
// basket asset additionally lists its components and is exchanged
// through the ExchangeBasket operation
package asset

import (
	"encoding/json"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
)

// Component - one constituent of a basket asset
type Component struct {
	Asset  digest.Digest `json:"asset"`
	Weight int64         `json:"weight"` // units per basket unit
}

// Asset - one settleable asset type
type Asset struct {
	ID         digest.Digest `json:"id"`
	Symbol     string        `json:"symbol"`
	Issuer     *party.Party  `json:"issuer"`   // signer of the issuance contract
	Contract   []byte        `json:"contract"` // the issuance contract itself
	Components []Component   `json:"components,omitempty"`
}

// NewAsset - build an asset record, its id is the contract digest
func NewAsset(symbol string, issuer *party.Party, contract []byte, components []Component) *Asset {
	return &Asset{
		ID:         digest.NewDigest(contract),
		Symbol:     symbol,
		Issuer:     issuer,
		Contract:   contract,
		Components: components,
	}
}

// IsBasket - check for a basket asset
func (asset *Asset) IsBasket() bool {
	return 0 != len(asset.Components)
}

// Store - persist the asset record
func (asset *Asset) Store() error {
	packed, err := json.Marshal(asset)
	if nil != err {
		return err
	}
	storage.Pool.Assets.Put(asset.ID[:], packed)
	return nil
}

// Get - fetch an asset record by id
func Get(id digest.Digest) (*Asset, error) {
	packed := storage.Pool.Assets.Get(id[:])
	if nil == packed {
		return nil, fault.ErrAssetNotFound
	}
	asset := &Asset{}
	if err := json.Unmarshal(packed, asset); nil != err {
		return nil, err
	}
	return asset, nil
}
