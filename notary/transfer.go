// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/statement"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// move value between two accounts
//
// the source is debited now; the destination is credited only when
// its owner later accepts the pending entry through ProcessInbox
func handleTransfer(st *state) (*transactionrecord.Item, error) {

	item := st.request.FindItem(transactionrecord.TransferItem)
	if nil == item {
		return nil, fault.ErrInvalidItem
	}
	amount := item.Amount
	if amount <= 0 {
		return nil, fault.ErrInvalidCount
	}
	source := st.request.Account
	destination := item.Destination
	if 0 == digest.Compare(source, destination) {
		return nil, fault.ErrSelfTransfer
	}

	set, err := account.CheckoutAll([]digest.Digest{source, destination}, nil)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	src := set.Get(source)
	dst := set.Get(destination)

	if dst.Account.Internal {
		return nil, fault.ErrAccountIsInternal
	}
	if 0 != digest.Compare(src.Account.Asset, dst.Account.Asset) {
		return nil, fault.ErrAssetMismatch
	}

	inbox, err := ledger.Load(ledger.Inbox, st.party, source, globalData.notaryID)
	if nil != err {
		return nil, err
	}
	outbox, err := ledger.Load(ledger.Outbox, st.party, source, globalData.notaryID)
	if nil != err {
		return nil, err
	}

	claim, err := statement.FromItem(st.request.StatementItem())
	if nil != err {
		return nil, err
	}
	view := statement.View{
		Account: src.Account,
		Inbox:   inbox,
		Outbox:  outbox,
		Context: st.context,
	}
	if err := statement.Verify(claim, view, -amount, st.closing); nil != err {
		return nil, err
	}

	// verified: mutate
	if err := src.Debit(amount); nil != err {
		return nil, err
	}

	attachment, err := st.request.Pack(st.party)
	if nil != err {
		return nil, err
	}

	receiptNumber := globalData.sequence.Next()

	pending := &transactionrecord.Transaction{
		Tag:         transactionrecord.PendingTag,
		Number:      receiptNumber,
		ReferenceTo: st.request.Number,
		Party:       globalData.key.Party(),
		Account:     destination,
		Notary:      globalData.notaryID,
		Amount:      amount,
		Reference:   attachment,
	}
	pending.Sign(globalData.key)

	destinationInbox, err := ledger.Load(ledger.Inbox, dst.Account.Owner, destination, globalData.notaryID)
	if nil != err {
		return nil, err
	}
	if err := destinationInbox.Add(pending); nil != err {
		return nil, err
	}
	destinationInbox.Save(st.trx)
	if err := destinationInbox.SaveBoxReceipt(st.trx, receiptNumber); nil != err {
		return nil, err
	}

	// mirror entry so the sender can watch the pending transfer
	mirror := pending.StripAttachment()
	mirror.Account = source
	mirror.Sign(globalData.key)
	if err := outbox.Add(mirror); nil != err {
		return nil, err
	}
	outbox.Save(st.trx)

	packedItem := item.PackPayload(st.request.Number)
	if event, err := notify.NewEvent(src.Account, inbox, outbox, receiptNumber, packedItem); nil == err {
		st.events = append(st.events, event)
	}
	destinationOutbox, err := ledger.Load(ledger.Outbox, dst.Account.Owner, destination, globalData.notaryID)
	if nil == err {
		if event, err := notify.NewEvent(dst.Account, destinationInbox, destinationOutbox, receiptNumber, packedItem); nil == err {
			st.events = append(st.events, event)
		}
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Number = receiptNumber
	return &reply, nil
}
