// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/instrument"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/mint"
	"github.com/bitmark-inc/notaryd/statement"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// the per asset internal account backing outstanding vouchers
func voucherReserveAccount(asset digest.Digest) *account.Account {
	return account.NewAccount(globalData.key.Party(), asset, globalData.notaryID, "voucher reserve", true)
}

// voucher or cash withdrawal, selected by the attached item
func handleWithdrawal(st *state) (*transactionrecord.Item, error) {
	st.close(st.request.Number)

	if item := st.request.FindItem(transactionrecord.WithdrawVoucherItem); nil != item {
		return withdrawVoucher(st, item)
	}
	if item := st.request.FindItem(transactionrecord.WithdrawCashItem); nil != item {
		return withdrawCash(st, item)
	}
	return nil, fault.ErrInvalidItem
}

// debit the source and issue a voucher drawn on the per asset
// reserve account, the notary is the payor
func withdrawVoucher(st *state, item *transactionrecord.Item) (*transactionrecord.Item, error) {

	amount := item.Amount
	if amount <= 0 {
		return nil, fault.ErrInvalidCount
	}
	source := st.request.Account

	src, err := account.Load(source)
	if nil != err {
		return nil, err
	}
	reserve := voucherReserveAccount(src.Asset)

	set, err := account.CheckoutAll(
		[]digest.Digest{source, reserve.Reference},
		map[digest.Digest]*account.Account{reserve.Reference: reserve},
	)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	if err := verifyAccountStatement(st, set.Get(source).Account, -amount); nil != err {
		return nil, err
	}

	if err := set.Get(source).Debit(amount); nil != err {
		return nil, err
	}
	if err := set.Get(reserve.Reference).Credit(amount); nil != err {
		return nil, err
	}

	voucher := &instrument.Instrument{
		Tag:           instrument.Voucher,
		Amount:        amount,
		Asset:         src.Asset,
		Notary:        globalData.notaryID,
		DrawerAccount: reserve.Reference,
		Payee:         st.party,
		ValidFrom:     st.now.Unix(),
		ValidUntil:    st.now.Add(globalData.voucherValidity).Unix(),
	}
	voucher.Sign(globalData.key)
	packed, err := voucher.Pack()
	if nil != err {
		return nil, err
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Attachment = packed
	return &reply, nil
}

// sign every token in the submitted purse as an all or nothing batch
func withdrawCash(st *state, item *transactionrecord.Item) (*transactionrecord.Item, error) {

	purse, err := mint.UnpackPurse(item.Attachment)
	if nil != err {
		return nil, err
	}
	if 0 == purse.Count() {
		return nil, fault.ErrInvalidCount
	}
	source := st.request.Account

	src, err := account.Load(source)
	if nil != err {
		return nil, err
	}
	if 0 != digest.Compare(purse.Asset, src.Asset) {
		return nil, fault.ErrAssetMismatch
	}
	if 0 != digest.Compare(purse.Notary, globalData.notaryID) {
		return nil, fault.ErrNotaryMismatch
	}

	// first pass: resolve every token's mint, reject expired series,
	// collect the reserve accounts to acquire
	type pendingToken struct {
		token *mint.Token
		mint  mint.Mint
	}
	pending := make([]pendingToken, 0, purse.Count())
	total := int64(0)
	references := []digest.Digest{source}
	create := make(map[digest.Digest]*account.Account)
	seen := make(map[digest.Digest]struct{})

	for token := purse.Pop(); nil != token; token = purse.Pop() {
		m, err := mint.Find(token.Asset, token.Series)
		if nil != err {
			return nil, err
		}
		if m.Expired(st.now) {
			return nil, fault.ErrMintExpired
		}
		reserveRef := m.AccountID()
		if _, ok := seen[reserveRef]; !ok {
			seen[reserveRef] = struct{}{}
			references = append(references, reserveRef)
			if !account.Exists(reserveRef) {
				fresh := account.NewAccount(globalData.key.Party(), src.Asset, globalData.notaryID, "cash reserve", true)
				fresh.Reference = reserveRef
				create[reserveRef] = fresh
			}
		}
		total += token.Denomination
		pending = append(pending, pendingToken{token: token, mint: m})
	}
	if total <= 0 {
		return nil, fault.ErrInvalidCount
	}

	set, err := account.CheckoutAll(references, create)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	if err := verifyAccountStatement(st, set.Get(source).Account, -total); nil != err {
		return nil, err
	}

	// second pass: sign and move value, any failure aborts the batch
	output := mint.NewPurse(purse.Asset, purse.Notary)
	for _, pt := range pending {
		if err := pt.mint.Sign(pt.token); nil != err {
			return nil, err
		}
		if err := set.Get(source).Debit(pt.token.Denomination); nil != err {
			return nil, err
		}
		if err := set.Get(pt.mint.AccountID()).Credit(pt.token.Denomination); nil != err {
			return nil, err
		}
		if err := output.Add(pt.token); nil != err {
			return nil, err
		}
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Attachment = output.Pack()
	return &reply, nil
}

// recompute the requesting account's claim against its statement
func verifyAccountStatement(st *state, acct *account.Account, delta int64) error {
	inbox, err := ledger.Load(ledger.Inbox, st.party, acct.Reference, globalData.notaryID)
	if nil != err {
		return err
	}
	outbox, err := ledger.Load(ledger.Outbox, st.party, acct.Reference, globalData.notaryID)
	if nil != err {
		return err
	}
	claim, err := statement.FromItem(st.request.StatementItem())
	if nil != err {
		return err
	}
	view := statement.View{
		Account: acct,
		Inbox:   inbox,
		Outbox:  outbox,
		Context: st.context,
	}
	return statement.Verify(claim, view, delta, st.closing)
}
