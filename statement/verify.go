// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package statement

import (
	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/client"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
)

// View - the notary's independently loaded view of one party's state
//
// the boxes are the current stored boxes: box contents after the
// operation depend on server chosen receipt numbers the party cannot
// predict, so the claim covers the boxes as last seen while balance
// and issued set are post-operation values
type View struct {
	Account *account.Account
	Inbox   *ledger.Ledger
	Outbox  *ledger.Ledger
	Context *client.Context
}

// Verify - compare the party's claim against the recomputed snapshot
//
// delta is the balance change the operation would apply and closing
// is the set of issued numbers it would permanently close; never
// mutates any of its inputs, a nil error means the claim holds
func Verify(statement *Statement, view View, delta int64, closing []uint64) error {
	if nil == statement {
		return fault.ErrStatementMissing
	}
	if nil == view.Account || nil == view.Inbox || nil == view.Outbox || nil == view.Context {
		return fault.ErrInvalidStructure
	}
	if err := statement.CheckSignature(); nil != err {
		return err
	}

	if !statement.Party.Equal(view.Context.Party) {
		return fault.ErrWrongOwner
	}
	if 0 != digest.Compare(statement.Account, view.Account.Reference) {
		return fault.ErrStatementMismatch
	}

	if statement.Balance != view.Account.Balance+delta {
		return fault.ErrStatementMismatch
	}

	expected := ExpectedIssued(view.Context, closing)
	if len(expected) != len(statement.Issued) {
		return fault.ErrStatementMismatch
	}
	for i, n := range expected {
		if n != statement.Issued[i] {
			return fault.ErrStatementMismatch
		}
	}

	if 0 != digest.Compare(statement.InboxHash, view.Inbox.Hash()) {
		return fault.ErrStatementMismatch
	}
	if 0 != digest.Compare(statement.OutboxHash, view.Outbox.Hash()) {
		return fault.ErrStatementMismatch
	}

	return nil
}

// ExpectedIssued - the issued number set after closing some numbers
//
// returned ascending, the context itself is left untouched
func ExpectedIssued(context *client.Context, closing []uint64) []uint64 {
	closed := make(map[uint64]struct{}, len(closing))
	for _, n := range closing {
		closed[n] = struct{}{}
	}
	issued := context.IssuedNumbers()
	expected := make([]uint64, 0, len(issued))
	for _, n := range issued {
		if _, ok := closed[n]; ok {
			continue
		}
		expected = append(expected, n)
	}
	return expected
}
