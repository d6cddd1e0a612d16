// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notify

import (
	"encoding/json"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/ledger"
)

// NewEvent - assemble the push event for one affected account
//
// packedItem is the packed triggering item and itemNumber its id
func NewEvent(acct *account.Account, inbox *ledger.Ledger, outbox *ledger.Ledger, itemNumber uint64, packedItem []byte) (*Event, error) {
	record, err := json.Marshal(acct)
	if nil != err {
		return nil, err
	}
	return &Event{
		Party:      acct.Owner.String(),
		Account:    acct.Reference,
		ItemID:     itemNumber,
		Record:     record,
		Inbox:      inbox.Pack(),
		InboxHash:  inbox.Hash(),
		Outbox:     outbox.Pack(),
		OutboxHash: outbox.Hash(),
		Item:       packedItem,
	}, nil
}
