// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/asset"
	"github.com/bitmark-inc/notaryd/client"
	"github.com/bitmark-inc/notaryd/cron"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// payment plans and smart contracts share one recurring item core,
// they differ only in kind and in how cron later executes the terms

func handlePaymentPlan(st *state) (*transactionrecord.Item, error) {
	return recurringItem(st, transactionrecord.PaymentPlanItem, cron.PaymentPlan)
}

func handleSmartContract(st *state) (*transactionrecord.Item, error) {
	return recurringItem(st, transactionrecord.SmartContractItem, cron.SmartContract)
}

// activate when the attached item carries no number, cancel the
// named registration otherwise
func recurringItem(st *state, itemType transactionrecord.ItemType, kind cron.Kind) (*transactionrecord.Item, error) {

	item := st.request.FindItem(itemType)
	if nil == item {
		return nil, fault.ErrInvalidItem
	}
	if 0 == item.Number {
		return activateRecurring(st, item, kind)
	}
	return cancelRecurring(st, item, kind)
}

func activateRecurring(st *state, item *transactionrecord.Item, kind cron.Kind) (*transactionrecord.Item, error) {

	cronItem, err := cron.Unpack(item.Attachment)
	if nil != err {
		return nil, err
	}
	if kind != cronItem.Kind {
		return nil, fault.ErrInvalidItem
	}
	if 0 != digest.Compare(cronItem.Notary, globalData.notaryID) {
		return nil, fault.ErrNotaryMismatch
	}
	if _, err := asset.Get(cronItem.Asset); nil != err {
		return nil, err
	}

	// the activation request's number is the originator's opening
	// number and stays issued while the item runs
	originator := cronItem.Originator()
	if nil == originator || !originator.Equal(st.party) {
		return nil, fault.ErrWrongOwner
	}
	if cronItem.OpeningNumber() != st.request.Number {
		return nil, fault.ErrNumberNotAvailable
	}
	if 0 != digest.Compare(cronItem.Parties[0].Account, st.request.Account) {
		return nil, fault.ErrWrongOwner
	}

	for _, stake := range cronItem.Parties {
		if cron.CountForParty(stake.Party) >= cron.MaxItemsPerParty() {
			return nil, fault.ErrCronItemLimit
		}
	}

	// every stake pins its numbers: the opening is consumed and
	// marked, the closings must already be issued
	contexts := make(map[string]*client.Context)
	contexts[st.party.String()] = st.context

	for i, stake := range cronItem.Parties {
		acct, err := account.Load(stake.Account)
		if nil != err {
			return nil, err
		}
		if !acct.Owner.Equal(stake.Party) {
			return nil, fault.ErrWrongOwner
		}
		if 0 != digest.Compare(acct.Asset, cronItem.Asset) {
			return nil, fault.ErrAssetMismatch
		}

		ctx, ok := contexts[stake.Party.String()]
		if !ok {
			ctx, err = client.Load(stake.Party)
			if nil != err {
				return nil, err
			}
			contexts[stake.Party.String()] = ctx
		}

		if 0 != i || !stake.Party.Equal(st.party) {
			if err := ctx.Consume(stake.Opening); nil != err {
				return nil, err
			}
		}
		if err := ctx.MarkOpenCron(stake.Opening); nil != err {
			return nil, err
		}
		for _, closing := range stake.Closing {
			if !ctx.IsIssued(closing) {
				return nil, fault.ErrClosingNumberNotIssued
			}
		}
	}

	set, err := account.CheckoutOne(st.request.Account)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	if err := verifyAccountStatement(st, set.Get(st.request.Account).Account, 0); nil != err {
		return nil, err
	}

	if err := cron.Add(st.trx, cronItem, st.now); nil != err {
		return nil, err
	}

	for key, ctx := range contexts {
		if key == st.party.String() {
			continue // saved by the dispatcher
		}
		ctx.Save(st.trx)
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Number = cronItem.OpeningNumber()
	return &reply, nil
}

func cancelRecurring(st *state, item *transactionrecord.Item, kind cron.Kind) (*transactionrecord.Item, error) {

	// the cancel request's own number does not outlive the request
	st.close(st.request.Number)
	if err := st.context.Release(st.request.Number); nil != err {
		return nil, err
	}

	set, err := account.CheckoutOne(st.request.Account)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	if err := verifyAccountStatement(st, set.Get(st.request.Account).Account, 0); nil != err {
		return nil, err
	}

	registered, err := cron.FindByOpeningNumber(item.Number)
	switch err {
	case nil:
		if kind != registered.Kind {
			return nil, fault.ErrInvalidItem
		}
		if err := removeCronItem(st, item.Number); nil != err {
			return nil, err
		}

	case fault.ErrCronItemNotFound:
		// never activated: the signed terms alone prove standing
		cronItem, err := cron.Unpack(item.Attachment)
		if nil != err {
			return nil, err
		}
		if kind != cronItem.Kind {
			return nil, fault.ErrInvalidItem
		}
		if !cronItem.HasParty(st.party) {
			return nil, fault.ErrNotTheCronItemOwner
		}
		if st.context.IsIssued(item.Number) {
			st.close(item.Number)
			if err := st.context.Release(item.Number); nil != err {
				return nil, err
			}
		}

	default:
		return nil, err
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	return &reply, nil
}

// drop a registered item and clear every stake's open cron mark; the
// final receipts issued by the registry close the numbers themselves
// once the parties accept them
func removeCronItem(st *state, opening uint64) error {
	removed, err := cron.RemoveByOpeningNumber(st.trx, opening, st.party)
	if nil != err {
		return err
	}

	for _, stake := range removed.Parties {
		if stake.Party.Equal(st.party) {
			st.context.ClearOpenCron(stake.Opening)
			continue
		}
		ctx, err := client.Load(stake.Party)
		if nil != err {
			return err
		}
		ctx.ClearOpenCron(stake.Opening)
		ctx.Save(st.trx)
	}
	return nil
}
