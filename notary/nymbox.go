// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"sort"

	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/statement"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// accept nymbox entries: notices and freshly issued blank numbers
//
// a zero request number is the bootstrap case: a party with no
// numbers yet collects its first blanks, so no number is consumed
func handleProcessNymbox(st *state) (*transactionrecord.Item, error) {

	bootstrap := 0 == st.request.Number
	if !bootstrap {
		st.close(st.request.Number)
	}

	nymbox, err := ledger.Load(ledger.Nymbox, st.party, digest.Digest{}, globalData.notaryID)
	if nil != err {
		return nil, err
	}

	// first pass: every named entry must exist and be acceptable
	type pick struct {
		item  *transactionrecord.Item
		entry *transactionrecord.Transaction
	}
	picks := make([]pick, 0, len(st.request.Items))
	blanks := make([]uint64, 0, len(st.request.Items))

	for _, item := range st.request.Items {
		switch item.Type {
		case transactionrecord.BalanceStatementItem, transactionrecord.TransactionStatementItem:
			continue
		case transactionrecord.AcceptNoticeItem:
		default:
			return nil, fault.ErrInvalidItem
		}

		entry := nymbox.Get(item.Number)
		if nil == entry {
			return nil, fault.ErrBoxEntryNotFound
		}
		switch entry.Tag {
		case transactionrecord.BlankTag:
			blanks = append(blanks, entry.Number)
		case transactionrecord.MessageTag,
			transactionrecord.NoticeTag,
			transactionrecord.ReplyNoticeTag,
			transactionrecord.SuccessNoticeTag,
			transactionrecord.InstrumentNoticeTag:
		default:
			return nil, fault.ErrInvalidItem
		}
		picks = append(picks, pick{item: item, entry: entry})
	}
	if 0 == len(picks) {
		return nil, fault.ErrInvalidItem
	}

	if err := verifyNymboxStatement(st, nymbox, blanks); nil != err {
		return nil, err
	}

	// verified: issue the blanks and clear the box
	for _, number := range blanks {
		if err := st.context.AddIssued(number); nil != err {
			return nil, err
		}
	}
	for _, p := range picks {
		if err := nymbox.Remove(p.item.Number); nil != err {
			return nil, err
		}
		nymbox.DeleteBoxReceipt(st.trx, p.item.Number)
	}
	nymbox.Save(st.trx)

	reply := *picks[0].item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Amount = int64(len(picks))
	return &reply, nil
}

// a nymbox statement names no account: zero account reference, zero
// balance, zero outbox hash; the issued set is the post-operation
// set including the blanks being collected
func verifyNymboxStatement(st *state, nymbox *ledger.Ledger, blanks []uint64) error {

	claim, err := statement.FromItem(st.request.StatementItem())
	if nil != err {
		return err
	}
	if err := claim.CheckSignature(); nil != err {
		return err
	}
	if !claim.Party.Equal(st.party) {
		return fault.ErrWrongOwner
	}
	zero := digest.Digest{}
	if 0 != digest.Compare(claim.Account, zero) {
		return fault.ErrStatementMismatch
	}
	if 0 != claim.Balance {
		return fault.ErrStatementMismatch
	}
	if 0 != digest.Compare(claim.OutboxHash, zero) {
		return fault.ErrStatementMismatch
	}
	if 0 != digest.Compare(claim.InboxHash, nymbox.Hash()) {
		return fault.ErrStatementMismatch
	}

	expected := statement.ExpectedIssued(st.context, st.closing)
	expected = append(expected, blanks...)
	sort.Slice(expected, func(i int, j int) bool { return expected[i] < expected[j] })

	if len(expected) != len(claim.Issued) {
		return fault.ErrStatementMismatch
	}
	for i, number := range expected {
		if claim.Issued[i] != number {
			return fault.ErrStatementMismatch
		}
	}
	return nil
}

// IssueNumbers - drop a batch of blank transaction numbers into a
// party's nymbox
//
// the numbers only become usable once the party collects them
// through ProcessNymbox
func IssueNumbers(p *party.Party, count int) ([]uint64, error) {
	globalData.RLock()
	initialised := globalData.initialised
	globalData.RUnlock()
	if !initialised {
		return nil, fault.ErrNotInitialised
	}
	if count <= 0 {
		return nil, fault.ErrInvalidCount
	}

	nymbox, err := ledger.Load(ledger.Nymbox, p, digest.Digest{}, globalData.notaryID)
	if nil != err {
		return nil, err
	}

	trx := storage.NewTransaction()
	numbers := make([]uint64, 0, count)
	for i := 0; i < count; i += 1 {
		number := globalData.sequence.Next()
		blank := &transactionrecord.Transaction{
			Tag:    transactionrecord.BlankTag,
			Number: number,
			Party:  globalData.key.Party(),
			Notary: globalData.notaryID,
		}
		blank.Sign(globalData.key)
		if err := nymbox.Add(blank); nil != err {
			trx.Abort()
			return nil, err
		}
		if err := nymbox.SaveBoxReceipt(trx, number); nil != err {
			trx.Abort()
			return nil, err
		}
		numbers = append(numbers, number)
	}
	nymbox.Save(trx)
	if err := trx.Commit(); nil != err {
		return nil, err
	}
	return numbers, nil
}
