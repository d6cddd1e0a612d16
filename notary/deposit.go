// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/client"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/instrument"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/mint"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// cheque or cash deposit, selected by the attached item
func handleDeposit(st *state) (*transactionrecord.Item, error) {
	st.close(st.request.Number)

	if item := st.request.FindItem(transactionrecord.DepositChequeItem); nil != item {
		return depositCheque(st, item)
	}
	if item := st.request.FindItem(transactionrecord.DepositCashItem); nil != item {
		return depositCash(st, item)
	}
	return nil, fault.ErrInvalidItem
}

// deposited instruments are marked spent by payload digest so a
// second presentation is a double spend, not a number failure
func checkInstrumentSpent(inst *instrument.Instrument) (digest.Digest, error) {
	id := digest.NewDigest(inst.PackPayload())
	if storage.Pool.SpentTokens.Has(id[:]) {
		return id, fault.ErrChequeAlreadyDeposited
	}
	return id, nil
}

func depositCheque(st *state, item *transactionrecord.Item) (*transactionrecord.Item, error) {

	cheque, err := instrument.Unpack(item.Attachment)
	if nil != err {
		return nil, err
	}
	if 0 != digest.Compare(cheque.Notary, globalData.notaryID) {
		return nil, fault.ErrChequeNotDrawnOnThisNotary
	}
	if cheque.IsExpired(st.now) {
		return nil, fault.ErrInstrumentExpired
	}
	if cheque.Amount <= 0 {
		return nil, fault.ErrInvalidCount
	}

	spentID, err := checkInstrumentSpent(cheque)
	if nil != err {
		return nil, err
	}

	if cheque.HasSenderIdentity() {
		return depositDrawnCheque(st, item, cheque, spentID)
	}
	return depositVoucher(st, item, cheque, spentID)
}

// a cheque drawn by another party on its own account
func depositDrawnCheque(st *state, item *transactionrecord.Item, cheque *instrument.Instrument, spentID digest.Digest) (*transactionrecord.Item, error) {

	drawer := cheque.Drawer
	if err := cheque.CheckSignature(drawer); nil != err {
		return nil, err
	}

	// the drawer cancelling its own cheque just retires it
	if drawer.Equal(st.party) {
		if 0 != digest.Compare(cheque.DrawerAccount, st.request.Account) {
			return nil, fault.ErrWrongOwner
		}
		if !st.context.IsIssued(cheque.TransactionNumber) {
			return nil, fault.ErrClosingNumberNotIssued
		}
		set, err := account.CheckoutOne(st.request.Account)
		if nil != err {
			return nil, err
		}
		st.accounts = set

		if _, err := checkInstrumentSpent(cheque); nil != err {
			return nil, err
		}

		st.close(cheque.TransactionNumber)
		if err := verifyAccountStatement(st, set.Get(st.request.Account).Account, 0); nil != err {
			return nil, err
		}
		if err := st.context.Release(cheque.TransactionNumber); nil != err {
			return nil, err
		}
		st.trx.Put(storage.Pool.SpentTokens, spentID[:], item.Attachment)

		reply := *item
		reply.Status = transactionrecord.StatusAcknowledged
		return &reply, nil
	}

	drawerContext, err := client.Load(drawer)
	if nil != err {
		return nil, err
	}
	if !drawerContext.IsIssued(cheque.TransactionNumber) {
		return nil, fault.ErrClosingNumberNotIssued
	}

	destination := st.request.Account
	set, err := account.CheckoutAll([]digest.Digest{destination, cheque.DrawerAccount}, nil)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	// re-check under the drawer account lock
	if _, err := checkInstrumentSpent(cheque); nil != err {
		return nil, err
	}

	dst := set.Get(destination)
	src := set.Get(cheque.DrawerAccount)
	if !src.Account.Owner.Equal(drawer) {
		return nil, fault.ErrWrongOwner
	}
	if 0 != digest.Compare(src.Account.Asset, dst.Account.Asset) {
		return nil, fault.ErrAssetMismatch
	}

	if err := verifyAccountStatement(st, dst.Account, cheque.Amount); nil != err {
		return nil, err
	}

	if err := src.Debit(cheque.Amount); nil != err {
		return nil, err
	}
	if err := dst.Credit(cheque.Amount); nil != err {
		return nil, err
	}
	st.trx.Put(storage.Pool.SpentTokens, spentID[:], item.Attachment)

	// the drawer closes its number by accepting this receipt
	receiptNumber := globalData.sequence.Next()
	receipt := &transactionrecord.Transaction{
		Tag:           transactionrecord.ChequeReceiptTag,
		Number:        receiptNumber,
		ClosingNumber: cheque.TransactionNumber,
		ReferenceTo:   st.request.Number,
		Party:         globalData.key.Party(),
		Account:       cheque.DrawerAccount,
		Notary:        globalData.notaryID,
		Amount:        cheque.Amount,
		Reference:     item.Attachment,
	}
	receipt.Sign(globalData.key)

	drawerInbox, err := ledger.Load(ledger.Inbox, drawer, cheque.DrawerAccount, globalData.notaryID)
	if nil != err {
		return nil, err
	}
	if err := drawerInbox.Add(receipt); nil != err {
		return nil, err
	}
	drawerInbox.Save(st.trx)
	if err := drawerInbox.SaveBoxReceipt(st.trx, receiptNumber); nil != err {
		return nil, err
	}

	drawerOutbox, err := ledger.Load(ledger.Outbox, drawer, cheque.DrawerAccount, globalData.notaryID)
	if nil == err {
		packedItem := item.PackPayload(st.request.Number)
		if event, err := notify.NewEvent(src.Account, drawerInbox, drawerOutbox, receiptNumber, packedItem); nil == err {
			st.events = append(st.events, event)
		}
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Number = receiptNumber
	return &reply, nil
}

// a voucher is drawn on the notary's reserve, no drawer number to
// close
func depositVoucher(st *state, item *transactionrecord.Item, voucher *instrument.Instrument, spentID digest.Digest) (*transactionrecord.Item, error) {

	if err := voucher.CheckSignature(globalData.key.Party()); nil != err {
		return nil, err
	}
	if nil != voucher.Payee && !voucher.Payee.Equal(st.party) {
		return nil, fault.ErrWrongOwner
	}

	destination := st.request.Account
	set, err := account.CheckoutAll([]digest.Digest{destination, voucher.DrawerAccount}, nil)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	// re-check under the reserve account lock
	if _, err := checkInstrumentSpent(voucher); nil != err {
		return nil, err
	}

	dst := set.Get(destination)
	reserve := set.Get(voucher.DrawerAccount)
	if !reserve.Account.Internal {
		return nil, fault.ErrInvalidStructure
	}
	if 0 != digest.Compare(reserve.Account.Asset, dst.Account.Asset) {
		return nil, fault.ErrAssetMismatch
	}

	if err := verifyAccountStatement(st, dst.Account, voucher.Amount); nil != err {
		return nil, err
	}

	if err := reserve.Debit(voucher.Amount); nil != err {
		return nil, err
	}
	if err := dst.Credit(voucher.Amount); nil != err {
		return nil, err
	}
	st.trx.Put(storage.Pool.SpentTokens, spentID[:], item.Attachment)

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	return &reply, nil
}

// verify each token, debit its mint's reserve and credit the
// depositor; the spent record stops any token coming back twice
func depositCash(st *state, item *transactionrecord.Item) (*transactionrecord.Item, error) {

	purse, err := mint.UnpackPurse(item.Attachment)
	if nil != err {
		return nil, err
	}
	if 0 == purse.Count() {
		return nil, fault.ErrInvalidCount
	}
	destination := st.request.Account

	dst, err := account.Load(destination)
	if nil != err {
		return nil, err
	}
	if 0 != digest.Compare(purse.Asset, dst.Asset) {
		return nil, fault.ErrAssetMismatch
	}
	if 0 != digest.Compare(purse.Notary, globalData.notaryID) {
		return nil, fault.ErrNotaryMismatch
	}

	type pendingToken struct {
		token *mint.Token
		mint  mint.Mint
	}
	pending := make([]pendingToken, 0, purse.Count())
	total := int64(0)
	references := []digest.Digest{destination}
	seen := make(map[digest.Digest]struct{})
	seenTokens := make(map[digest.Digest]struct{})

	for token := purse.Pop(); nil != token; token = purse.Pop() {
		m, err := mint.Find(token.Asset, token.Series)
		if nil != err {
			return nil, err
		}
		if err := m.Verify(token, token.Denomination); nil != err {
			return nil, err
		}
		// the same token twice in one purse is already a double spend
		id := token.SpendableID()
		if _, ok := seenTokens[id]; ok {
			return nil, fault.ErrTokenAlreadySpent
		}
		seenTokens[id] = struct{}{}
		if err := mint.CheckSpent(token); nil != err {
			return nil, err
		}
		reserveRef := m.AccountID()
		if _, ok := seen[reserveRef]; !ok {
			seen[reserveRef] = struct{}{}
			references = append(references, reserveRef)
		}
		total += token.Denomination
		pending = append(pending, pendingToken{token: token, mint: m})
	}
	if total <= 0 {
		return nil, fault.ErrInvalidCount
	}

	set, err := account.CheckoutAll(references, nil)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	// the first spent check ran before the reserve locks were held, a
	// concurrent deposit of the same token may have landed in between
	for _, pt := range pending {
		if err := mint.CheckSpent(pt.token); nil != err {
			return nil, err
		}
	}

	if err := verifyAccountStatement(st, set.Get(destination).Account, total); nil != err {
		return nil, err
	}

	for _, pt := range pending {
		if err := set.Get(pt.mint.AccountID()).Debit(pt.token.Denomination); nil != err {
			return nil, err
		}
		if err := set.Get(destination).Credit(pt.token.Denomination); nil != err {
			return nil, err
		}
		mint.RecordSpent(st.trx, pt.token)
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	return &reply, nil
}
