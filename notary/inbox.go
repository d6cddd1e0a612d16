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
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/statement"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// one box entry scheduled for processing
type disposition struct {
	item  *transactionrecord.Item
	entry *transactionrecord.Transaction

	// pending transfers only
	accept        bool
	senderParty   *party.Party
	senderAccount digest.Digest
}

// accept or reject entries of the party's inbox as one atomic batch
//
// everything is verified against the current state before anything
// moves, so a batch either lands whole or not at all
func handleProcessInbox(st *state) (*transactionrecord.Item, error) {
	st.close(st.request.Number)

	inbox, err := ledger.Load(ledger.Inbox, st.party, st.request.Account, globalData.notaryID)
	if nil != err {
		return nil, err
	}
	outbox, err := ledger.Load(ledger.Outbox, st.party, st.request.Account, globalData.notaryID)
	if nil != err {
		return nil, err
	}

	// first pass: resolve every item, classify, total the credits
	// and collect the numbers that will close
	dispositions := make([]*disposition, 0, len(st.request.Items))
	delta := int64(0)
	references := []digest.Digest{st.request.Account}
	seen := make(map[digest.Digest]struct{})
	seen[st.request.Account] = struct{}{}
	acceptedReceipts := make(map[uint64]struct{})
	finalRefs := make(map[uint64]struct{}) // origins of accepted final receipts

	var primary *transactionrecord.Item

	for _, item := range st.request.Items {
		d := &disposition{item: item}

		switch item.Type {

		case transactionrecord.BalanceStatementItem, transactionrecord.TransactionStatementItem:
			continue

		case transactionrecord.AcceptPendingItem, transactionrecord.RejectPendingItem:
			entry := inbox.Get(item.Number)
			if nil == entry {
				return nil, fault.ErrBoxEntryNotFound
			}
			if transactionrecord.PendingTag != entry.Tag {
				return nil, fault.ErrInvalidItem
			}
			d.entry = entry
			d.accept = transactionrecord.AcceptPendingItem == item.Type

			// the stored box receipt carries the sender's original
			// signed request
			receipt, err := inbox.LoadBoxReceipt(item.Number)
			if nil != err {
				return nil, err
			}
			original, err := transactionrecord.Packed(receipt.Reference).Unpack()
			if nil != err {
				return nil, err
			}
			d.senderParty = original.Party
			d.senderAccount = original.Account

			if d.accept {
				delta += entry.Amount
			} else if _, ok := seen[d.senderAccount]; !ok {
				seen[d.senderAccount] = struct{}{}
				references = append(references, d.senderAccount)
			}

		case transactionrecord.AcceptReceiptItem:
			entry := inbox.Get(item.Number)
			if nil == entry {
				return nil, fault.ErrBoxEntryNotFound
			}
			if !entry.Tag.IsReceipt() {
				return nil, fault.ErrInvalidItem
			}
			d.entry = entry
			acceptedReceipts[item.Number] = struct{}{}
			if transactionrecord.FinalReceiptTag == entry.Tag {
				finalRefs[entry.ReferenceTo] = struct{}{}
			}
			if 0 != entry.ClosingNumber && st.context.IsIssued(entry.ClosingNumber) {
				st.close(entry.ClosingNumber)
			}

		case transactionrecord.AcceptNoticeItem:
			entry := inbox.Get(item.Number)
			if nil == entry {
				return nil, fault.ErrBoxEntryNotFound
			}
			switch entry.Tag {
			case transactionrecord.MessageTag,
				transactionrecord.NoticeTag,
				transactionrecord.ReplyNoticeTag,
				transactionrecord.SuccessNoticeTag,
				transactionrecord.InstrumentNoticeTag:
			default:
				return nil, fault.ErrInvalidItem
			}
			d.entry = entry

		default:
			return nil, fault.ErrInvalidItem
		}

		if nil == primary {
			primary = item
		}
		dispositions = append(dispositions, d)
	}
	if 0 == len(dispositions) {
		return nil, fault.ErrInvalidItem
	}

	// a final receipt closes its whole item: every receipt still in
	// the box with the same origin must leave in this batch
	for referenceTo := range finalRefs {
		split := false
		inbox.Each(func(entry *transactionrecord.Transaction) bool {
			if referenceTo != entry.ReferenceTo || !entry.Tag.IsReceipt() {
				return true
			}
			if _, ok := acceptedReceipts[entry.Number]; !ok {
				split = true
				return false
			}
			return true
		})
		if split {
			return nil, fault.ErrFinalReceiptGroupSplit
		}
	}

	set, err := account.CheckoutAll(references, nil)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	claim, err := statement.FromItem(st.request.StatementItem())
	if nil != err {
		return nil, err
	}
	view := statement.View{
		Account: set.Get(st.request.Account).Account,
		Inbox:   inbox,
		Outbox:  outbox,
		Context: st.context,
	}
	if err := statement.Verify(claim, view, delta, st.closing); nil != err {
		return nil, err
	}

	// verified: apply the whole batch
	for _, d := range dispositions {
		switch d.item.Type {

		case transactionrecord.AcceptPendingItem, transactionrecord.RejectPendingItem:
			if err := settlePending(st, set, d, inbox); nil != err {
				return nil, err
			}

		case transactionrecord.AcceptReceiptItem:
			if 0 != d.entry.ClosingNumber && st.context.IsIssued(d.entry.ClosingNumber) {
				if err := st.context.Release(d.entry.ClosingNumber); nil != err {
					return nil, err
				}
				st.context.ClearOpenCron(d.entry.ClosingNumber)
			}
			if err := inbox.Remove(d.item.Number); nil != err {
				return nil, err
			}
			inbox.DeleteBoxReceipt(st.trx, d.item.Number)

		case transactionrecord.AcceptNoticeItem:
			if err := inbox.Remove(d.item.Number); nil != err {
				return nil, err
			}
			inbox.DeleteBoxReceipt(st.trx, d.item.Number)
		}
	}
	inbox.Save(st.trx)

	if event, err := notify.NewEvent(set.Get(st.request.Account).Account, inbox, outbox, st.request.Number, nil); nil == err {
		st.events = append(st.events, event)
	}

	reply := *primary
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Amount = delta
	return &reply, nil
}

// finish one pending transfer: credit the acceptor or refund the
// sender, drop the sender's outbox mirror and hand the sender a
// receipt that closes its transfer number
func settlePending(st *state, set *account.Set, d *disposition, inbox *ledger.Ledger) error {

	if d.accept {
		if err := set.Get(st.request.Account).Credit(d.entry.Amount); nil != err {
			return err
		}
	} else {
		sender := set.Get(d.senderAccount)
		if nil == sender {
			return fault.ErrAccountNotCheckedOut
		}
		if err := sender.Credit(d.entry.Amount); nil != err {
			return err
		}
	}

	if err := inbox.Remove(d.item.Number); nil != err {
		return err
	}
	inbox.DeleteBoxReceipt(st.trx, d.item.Number)

	senderOutbox, err := ledger.Load(ledger.Outbox, d.senderParty, d.senderAccount, globalData.notaryID)
	if nil != err {
		return err
	}
	if err := senderOutbox.Remove(d.item.Number); nil != err {
		return err
	}
	senderOutbox.Save(st.trx)

	receiptNumber := globalData.sequence.Next()
	receipt := &transactionrecord.Transaction{
		Tag:           transactionrecord.TransferReceiptTag,
		Number:        receiptNumber,
		ClosingNumber: d.entry.ReferenceTo,
		ReferenceTo:   d.entry.ReferenceTo,
		Party:         globalData.key.Party(),
		Account:       d.senderAccount,
		Notary:        globalData.notaryID,
		Amount:        d.entry.Amount,
	}
	if !d.accept {
		// a rejected transfer still closes the sender's number, the
		// refund is already back on its account
		receipt.Amount = -d.entry.Amount
	}
	receipt.Sign(globalData.key)

	senderInbox, err := ledger.Load(ledger.Inbox, d.senderParty, d.senderAccount, globalData.notaryID)
	if nil != err {
		return err
	}
	if err := senderInbox.Add(receipt); nil != err {
		return err
	}
	senderInbox.Save(st.trx)
	if err := senderInbox.SaveBoxReceipt(st.trx, receiptNumber); nil != err {
		return err
	}

	if senderAccount := set.Get(d.senderAccount); nil != senderAccount {
		if event, err := notify.NewEvent(senderAccount.Account, senderInbox, senderOutbox, receiptNumber, nil); nil == err {
			st.events = append(st.events, event)
		}
	}
	return nil
}
