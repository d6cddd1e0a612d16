// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"math"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/asset"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/instrument"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// the per asset internal account holding dividend value until the
// vouchers are deposited
func dividendReserveAccount(payoutAsset digest.Digest) *account.Account {
	return account.NewAccount(globalData.key.Party(), payoutAsset, globalData.notaryID, "dividend reserve", true)
}

// fan a dividend out over the current share register
//
// the whole payout is debited to the issuer at once; each holder
// receives a voucher drawn on the dividend reserve, so late or lost
// holders never block the issuer's funds
func handlePayDividend(st *state) (*transactionrecord.Item, error) {
	st.close(st.request.Number)

	item := st.request.FindItem(transactionrecord.PayDividendItem)
	if nil == item {
		return nil, fault.ErrInvalidItem
	}
	perShare := item.Amount
	if perShare <= 0 {
		return nil, fault.ErrInvalidCount
	}

	shareAsset, err := asset.Get(item.Destination)
	if nil != err {
		return nil, err
	}
	if nil == shareAsset.Issuer || !shareAsset.Issuer.Equal(st.party) {
		return nil, fault.ErrNotAssetIssuer
	}

	type holding struct {
		account  digest.Digest
		quantity uint64
		payout   int64
	}
	holdings := make([]holding, 0, 16)
	asset.EachShareholder(shareAsset.ID, func(holder digest.Digest, quantity uint64) bool {
		holdings = append(holdings, holding{account: holder, quantity: quantity})
		return true
	})
	if 0 == len(holdings) {
		return nil, fault.ErrInvalidCount
	}

	// both the per holder payout and the running total must stay
	// inside int64 or the issuer debit would not cover the vouchers
	total := int64(0)
	for i, h := range holdings {
		if uint64(math.MaxInt64)/uint64(perShare) < h.quantity {
			return nil, fault.ErrAmountOverflow
		}
		payout := perShare * int64(h.quantity)
		if math.MaxInt64-total < payout {
			return nil, fault.ErrAmountOverflow
		}
		holdings[i].payout = payout
		total += payout
	}

	source := st.request.Account
	src, err := account.Load(source)
	if nil != err {
		return nil, err
	}
	reserve := dividendReserveAccount(src.Asset)

	set, err := account.CheckoutAll(
		[]digest.Digest{source, reserve.Reference},
		map[digest.Digest]*account.Account{reserve.Reference: reserve},
	)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	if err := verifyAccountStatement(st, set.Get(source).Account, -total); nil != err {
		return nil, err
	}

	if err := set.Get(source).Debit(total); nil != err {
		return nil, err
	}
	if err := set.Get(reserve.Reference).Credit(total); nil != err {
		return nil, err
	}

	// the issuer's own holding comes straight back as the reply
	// voucher instead of a round trip through its inbox
	refund := int64(0)

	for _, h := range holdings {
		payout := h.payout

		holderAccount, err := account.Load(h.account)
		if nil != err {
			return nil, err
		}
		if holderAccount.Owner.Equal(st.party) {
			refund += payout
			continue
		}

		voucher := newDividendVoucher(src.Asset, reserve.Reference, holderAccount.Owner, payout, st)
		packedVoucher, err := voucher.Pack()
		if nil != err {
			return nil, err
		}

		receiptNumber := globalData.sequence.Next()
		notice := &transactionrecord.Transaction{
			Tag:         transactionrecord.InstrumentNoticeTag,
			Number:      receiptNumber,
			ReferenceTo: st.request.Number,
			Party:       globalData.key.Party(),
			Account:     h.account,
			Notary:      globalData.notaryID,
			Amount:      payout,
			Reference:   packedVoucher,
		}
		notice.Sign(globalData.key)

		holderInbox, err := ledger.Load(ledger.Inbox, holderAccount.Owner, h.account, globalData.notaryID)
		if nil != err {
			return nil, err
		}
		if err := holderInbox.Add(notice); nil != err {
			return nil, err
		}
		holderInbox.Save(st.trx)
		if err := holderInbox.SaveBoxReceipt(st.trx, receiptNumber); nil != err {
			return nil, err
		}

		holderOutbox, err := ledger.Load(ledger.Outbox, holderAccount.Owner, h.account, globalData.notaryID)
		if nil == err {
			if event, err := notify.NewEvent(holderAccount, holderInbox, holderOutbox, receiptNumber, packedVoucher); nil == err {
				st.events = append(st.events, event)
			}
		}
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	reply.Amount = total

	if refund > 0 {
		voucher := newDividendVoucher(src.Asset, reserve.Reference, st.party, refund, st)
		packed, err := voucher.Pack()
		if nil != err {
			return nil, err
		}
		reply.Attachment = packed
	}
	return &reply, nil
}

func newDividendVoucher(payoutAsset digest.Digest, reserveRef digest.Digest, payee *party.Party, amount int64, st *state) *instrument.Instrument {
	voucher := &instrument.Instrument{
		Tag:           instrument.Voucher,
		Amount:        amount,
		Asset:         payoutAsset,
		Notary:        globalData.notaryID,
		DrawerAccount: reserveRef,
		Payee:         payee,
		ValidFrom:     st.now.Unix(),
		ValidUntil:    st.now.Add(globalData.voucherValidity).Unix(),
	}
	voucher.Sign(globalData.key)
	return voucher
}
