// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/asset"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// the internal account absorbing one side of every basket exchange,
// one per asset; these run negative as issued baskets are a
// liability of the notary, not an asset
func basketReserveAccount(assetID digest.Digest) *account.Account {
	return account.NewAccount(globalData.key.Party(), assetID, globalData.notaryID, "basket reserve", true)
}

// exchange basket currency units against their components
//
// the main item's amount is the unit count, positive to assemble
// baskets from components, negative to break baskets back apart; one
// movement item per component names the party's sub-account and
// burns one of the party's numbers
func handleExchangeBasket(st *state) (*transactionrecord.Item, error) {
	st.close(st.request.Number)

	item := st.request.FindItem(transactionrecord.ExchangeBasketItem)
	if nil == item {
		return nil, fault.ErrInvalidItem
	}
	units := item.Amount
	if 0 == units {
		return nil, fault.ErrInvalidCount
	}
	assembling := units > 0
	magnitude := units
	if !assembling {
		magnitude = -units
	}

	basketAsset, err := asset.Get(item.Destination)
	if nil != err {
		return nil, err
	}
	if !basketAsset.IsBasket() {
		return nil, fault.ErrBasketNotABasket
	}

	movements := make([]*transactionrecord.Item, 0, len(basketAsset.Components))
	for _, sub := range st.request.Items {
		if transactionrecord.BasketMovementItem == sub.Type {
			movements = append(movements, sub)
		}
	}
	if len(movements) != len(basketAsset.Components) {
		return nil, fault.ErrInvalidBasketCount
	}

	// pair each component with its movement by the sub-account's
	// asset and check the weighted quantity
	type leg struct {
		movement *transactionrecord.Item
		subAcct  *account.Account
		quantity int64
	}
	legs := make([]leg, 0, len(movements))
	references := []digest.Digest{st.request.Account}
	create := make(map[digest.Digest]*account.Account)

	main, err := account.Load(st.request.Account)
	if nil != err {
		return nil, err
	}
	if 0 != digest.Compare(main.Asset, basketAsset.ID) {
		return nil, fault.ErrAssetMismatch
	}
	mainReserve := basketReserveAccount(basketAsset.ID)
	references = append(references, mainReserve.Reference)
	create[mainReserve.Reference] = mainReserve

	matched := make(map[int]bool)
	for _, component := range basketAsset.Components {
		found := false
		for i, movement := range movements {
			if matched[i] {
				continue
			}
			subAcct, err := account.Load(movement.Destination)
			if nil != err {
				return nil, err
			}
			if 0 != digest.Compare(subAcct.Asset, component.Asset) {
				continue
			}
			quantity := component.Weight * magnitude
			if movement.Amount != quantity {
				return nil, fault.ErrBasketComponentMissing
			}
			if !subAcct.Owner.Equal(st.party) {
				return nil, fault.ErrNotTheAccountOwner
			}
			matched[i] = true
			found = true

			legs = append(legs, leg{movement: movement, subAcct: subAcct, quantity: quantity})
			references = append(references, movement.Destination)
			reserve := basketReserveAccount(component.Asset)
			if _, ok := create[reserve.Reference]; !ok {
				references = append(references, reserve.Reference)
				create[reserve.Reference] = reserve
			}
			break
		}
		if !found {
			return nil, fault.ErrBasketComponentMissing
		}
	}

	// each movement burns its number now; the receipts dropped into
	// the sub-account inboxes are informational
	for _, l := range legs {
		if 0 == l.movement.Number {
			return nil, fault.ErrNumberNotAvailable
		}
		if err := st.context.Consume(l.movement.Number); nil != err {
			return nil, err
		}
		st.close(l.movement.Number)
		if err := st.context.Release(l.movement.Number); nil != err {
			return nil, err
		}
	}

	set, err := account.CheckoutAll(references, create)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	delta := units
	if err := verifyAccountStatement(st, set.Get(st.request.Account).Account, delta); nil != err {
		return nil, err
	}

	// verified: move the basket units and every component leg
	if assembling {
		if err := set.Get(mainReserve.Reference).Debit(magnitude); nil != err {
			return nil, err
		}
		if err := set.Get(st.request.Account).Credit(magnitude); nil != err {
			return nil, err
		}
	} else {
		if err := set.Get(st.request.Account).Debit(magnitude); nil != err {
			return nil, err
		}
		if err := set.Get(mainReserve.Reference).Credit(magnitude); nil != err {
			return nil, err
		}
	}

	for _, l := range legs {
		reserve := basketReserveAccount(l.subAcct.Asset)
		if assembling {
			if err := set.Get(l.movement.Destination).Debit(l.quantity); nil != err {
				return nil, err
			}
			if err := set.Get(reserve.Reference).Credit(l.quantity); nil != err {
				return nil, err
			}
		} else {
			if err := set.Get(reserve.Reference).Debit(l.quantity); nil != err {
				return nil, err
			}
			if err := set.Get(l.movement.Destination).Credit(l.quantity); nil != err {
				return nil, err
			}
		}

		receiptNumber := globalData.sequence.Next()
		receipt := &transactionrecord.Transaction{
			Tag:           transactionrecord.BasketReceiptTag,
			Number:        receiptNumber,
			ClosingNumber: l.movement.Number,
			ReferenceTo:   st.request.Number,
			Party:         globalData.key.Party(),
			Account:       l.movement.Destination,
			Notary:        globalData.notaryID,
			Amount:        l.quantity,
		}
		receipt.Sign(globalData.key)

		subInbox, err := ledger.Load(ledger.Inbox, st.party, l.movement.Destination, globalData.notaryID)
		if nil != err {
			return nil, err
		}
		if err := subInbox.Add(receipt); nil != err {
			return nil, err
		}
		subInbox.Save(st.trx)
		if err := subInbox.SaveBoxReceipt(st.trx, receiptNumber); nil != err {
			return nil, err
		}

		subOutbox, err := ledger.Load(ledger.Outbox, st.party, l.movement.Destination, globalData.notaryID)
		if nil == err {
			if event, err := notify.NewEvent(l.subAcct, subInbox, subOutbox, receiptNumber, l.movement.PackPayload(st.request.Number)); nil == err {
				st.events = append(st.events, event)
			}
		}
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	return &reply, nil
}
