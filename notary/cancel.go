// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/cron"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// remove an active recurring item of any kind by its opening number
func handleCancelCronItem(st *state) (*transactionrecord.Item, error) {
	st.close(st.request.Number)

	item := st.request.FindItem(transactionrecord.CancelCronItemItem)
	if nil == item {
		return nil, fault.ErrInvalidItem
	}
	if 0 == item.Number {
		return nil, fault.ErrInvalidItem
	}

	set, err := account.CheckoutOne(st.request.Account)
	if nil != err {
		return nil, err
	}
	st.accounts = set

	if err := verifyAccountStatement(st, set.Get(st.request.Account).Account, 0); nil != err {
		return nil, err
	}

	if _, err := cron.FindByOpeningNumber(item.Number); nil != err {
		return nil, err
	}
	if err := removeCronItem(st, item.Number); nil != err {
		return nil, err
	}

	reply := *item
	reply.Status = transactionrecord.StatusAcknowledged
	return &reply, nil
}
