// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package notary

import (
	"sync"
	"time"

	"github.com/bitmark-inc/notaryd/account"
	"github.com/bitmark-inc/notaryd/audit"
	"github.com/bitmark-inc/notaryd/client"
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/fault"
	"github.com/bitmark-inc/notaryd/ledger"
	"github.com/bitmark-inc/notaryd/mode"
	"github.com/bitmark-inc/notaryd/notify"
	"github.com/bitmark-inc/notaryd/party"
	"github.com/bitmark-inc/notaryd/storage"
	"github.com/bitmark-inc/notaryd/transactionrecord"
)

// per notarization working state handed to the handler
//
// the handler stages every mutation onto trx and the account set;
// nothing is observable until the dispatcher commits
type state struct {
	request  *transactionrecord.Transaction
	party    *party.Party
	context  *client.Context // working clone, main number already consumed
	trx      *storage.Transaction
	accounts *account.Set         // set by the handler, nil when no account moves
	closing  []uint64             // numbers this operation permanently closes
	events   []*notify.Event      // pushed only after a successful commit
	now      time.Time
}

// close - note a number that leaves the issued set on success
func (st *state) close(number uint64) {
	st.closing = append(st.closing, number)
}

// per party dispatch serialization
//
// the client context is loaded, mutated and staged across the whole
// notarization; two interleaved requests from one party would
// otherwise overwrite each other's number consumption
var dispatchData struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}

func init() {
	dispatchData.locks = make(map[string]*sync.Mutex)
}

func contextLockFor(p *party.Party) *sync.Mutex {
	dispatchData.Lock()
	defer dispatchData.Unlock()
	l, ok := dispatchData.locks[p.String()]
	if !ok {
		l = new(sync.Mutex)
		dispatchData.locks[p.String()] = l
	}
	return l
}

type handlerFunc func(st *state) (*transactionrecord.Item, error)

// handlers and their post-dispatch number bookkeeping
//
// oneShot: the main number is released from issued immediately,
// success or failure; otherwise it stays issued on success until the
// receipt chain closes it later
type route struct {
	handler handlerFunc
	oneShot bool
}

var routes = map[transactionrecord.TagType]route{
	transactionrecord.TransferTag:       {handleTransfer, false},
	transactionrecord.WithdrawalTag:     {handleWithdrawal, true},
	transactionrecord.DepositTag:        {handleDeposit, true},
	transactionrecord.PayDividendTag:    {handlePayDividend, true},
	transactionrecord.PaymentPlanTag:    {handlePaymentPlan, false},
	transactionrecord.SmartContractTag:  {handleSmartContract, false},
	transactionrecord.CancelCronItemTag: {handleCancelCronItem, true},
	transactionrecord.ExchangeBasketTag: {handleExchangeBasket, true},
	transactionrecord.ProcessInboxTag:   {handleProcessInbox, true},
	transactionrecord.ProcessNymboxTag:  {handleProcessNymbox, true},
}

// Dispatch - notarize one request
//
// always returns a signed response, acknowledged or rejected; the
// returned error is reserved for fatal conditions where not even the
// rejection could be recorded
func Dispatch(request *transactionrecord.Transaction) (*transactionrecord.Transaction, error) {
	globalData.RLock()
	initialised := globalData.initialised
	globalData.RUnlock()
	if !initialised {
		return nil, fault.ErrNotInitialised
	}
	if !mode.Is(mode.Normal) {
		return nil, fault.ErrNotAvailableDuringShutdown
	}

	if nil == request || nil == request.Party || !request.Tag.IsRequest() {
		return nil, fault.ErrInvalidStructure
	}
	log := globalData.log
	p := request.Party

	// nymbox processing bootstraps number issuance, a zero number
	// bypasses the availability gate
	isNymbox := transactionrecord.ProcessNymboxTag == request.Tag
	skipNumber := isNymbox && 0 == request.Number

	if !limiterFor(p).Allow() {
		return reject(request, nil, fault.ErrRateLimitExceeded)
	}

	if err := p.CheckSignature(request.PackPayload(), request.Signature); nil != err {
		return reject(request, nil, err)
	}

	// the context stays exclusively held from load to commit
	lock := contextLockFor(p)
	lock.Lock()
	defer lock.Unlock()

	pristine, err := client.Load(p)
	if nil != err {
		return reject(request, nil, err)
	}

	if err := gate(request, pristine, isNymbox, skipNumber); nil != err {
		return reject(request, pristine, err)
	}

	// past the gate: consume the main number on a working copy so a
	// rejection can fall back to the pristine context
	work := pristine.Clone()
	if !skipNumber {
		if err := work.Consume(request.Number); nil != err {
			return reject(request, pristine, err)
		}
	}

	r := routes[request.Tag]
	st := &state{
		request: request,
		party:   p,
		context: work,
		trx:     storage.NewTransaction(),
		now:     time.Now(),
	}

	reply, err := r.handler(st)
	if nil != err {
		if nil != st.accounts {
			st.accounts.Abort()
		}
		st.trx.Abort()

		// a consumed number is fully released on rejection since
		// nothing of the operation persists
		if !skipNumber {
			if e := pristine.Release(request.Number); nil != e {
				log.Criticalf("release %d for %s: %s", request.Number, p, e)
			}
		}
		log.Warnf("rejected %d from %s: %s", request.Number, p, err)
		return reject(request, pristine, err)
	}

	if r.oneShot && !skipNumber {
		if e := work.Release(request.Number); nil != e {
			log.Criticalf("release %d for %s: %s", request.Number, p, e)
		}
	}

	response := respond(request, reply, nil)

	work.Save(st.trx)
	if err := audit.Record(st.trx, p, request.Account, response, true); nil != err {
		if nil != st.accounts {
			st.accounts.Abort()
		}
		st.trx.Abort()
		return nil, err
	}

	// a success notice lands in the party's nymbox; nymbox processing
	// itself is exempt or the box would refill on every clearing
	if !isNymbox {
		if err := placeSuccessNotice(st); nil != err {
			if nil != st.accounts {
				st.accounts.Abort()
			}
			st.trx.Abort()
			return nil, err
		}
	}

	if nil != st.accounts {
		err = st.accounts.Commit(st.trx, globalData.key)
	} else {
		err = st.trx.Commit()
	}
	if nil != err {
		// could not even persist: fatal, surfaced to the operator
		return nil, err
	}

	for _, event := range st.events {
		notify.Send(event)
	}

	log.Infof("notarized %d from %s: %s", request.Number, p, request.Tag)
	return response, nil
}

// stage a success notice into the notarizing party's nymbox
//
// cleared later through ProcessNymbox like any other notice
func placeSuccessNotice(st *state) error {
	nymbox, err := ledger.Load(ledger.Nymbox, st.party, digest.Digest{}, globalData.notaryID)
	if nil != err {
		return err
	}
	notice := &transactionrecord.Transaction{
		Tag:         transactionrecord.SuccessNoticeTag,
		Number:      globalData.sequence.Next(),
		ReferenceTo: st.request.Number,
		Party:       globalData.key.Party(),
		Account:     st.request.Account,
		Notary:      globalData.notaryID,
	}
	notice.Sign(globalData.key)
	if err := nymbox.Add(notice); nil != err {
		return err
	}
	if err := nymbox.SaveBoxReceipt(st.trx, notice.Number); nil != err {
		return err
	}
	nymbox.Save(st.trx)
	return nil
}

// precondition gate, checked before any handler runs
func gate(request *transactionrecord.Transaction, context *client.Context, isNymbox bool, skipNumber bool) error {

	if 0 != digest.Compare(request.Notary, globalData.notaryID) {
		return fault.ErrNotaryMismatch
	}

	if !isNymbox {
		acct, err := account.Load(request.Account)
		if nil != err {
			return err
		}
		if !acct.Owner.Equal(request.Party) {
			return fault.ErrNotTheAccountOwner
		}
		if err := acct.CheckSignature(globalData.key.Party()); nil != err {
			return err
		}
		if 0 != digest.Compare(acct.Notary, globalData.notaryID) {
			return fault.ErrNotaryMismatch
		}
	}

	if !skipNumber && !context.IsAvailable(request.Number) {
		return fault.ErrNumberNotAvailable
	}

	if nil == request.StatementItem() {
		return fault.ErrStatementMissing
	}

	for _, item := range request.Items {
		if err := item.CheckSignature(request.Number, request.Party); nil != err {
			return err
		}
	}
	return nil
}

// first non statement item of the request
func primaryItem(request *transactionrecord.Transaction) *transactionrecord.Item {
	for _, item := range request.Items {
		switch item.Type {
		case transactionrecord.BalanceStatementItem, transactionrecord.TransactionStatementItem:
		default:
			return item
		}
	}
	return nil
}

// build and sign the response transaction
//
// reply nil means echo the primary request item with the given
// rejection reason
func respond(request *transactionrecord.Transaction, reply *transactionrecord.Item, reason error) *transactionrecord.Transaction {

	if nil == reply {
		reply = &transactionrecord.Item{
			Type:   transactionrecord.NullItem,
			Status: transactionrecord.StatusRejected,
		}
		if primary := primaryItem(request); nil != primary {
			echoed := *primary
			reply = &echoed
			reply.Status = transactionrecord.StatusRejected
		}
		if nil != reason {
			reply.Note = reason.Error()
		}
	}

	items := []*transactionrecord.Item{reply}
	if stmt := request.StatementItem(); nil != stmt {
		echoed := *stmt
		echoed.Status = reply.Status
		items = append(items, &echoed)
	}

	response := &transactionrecord.Transaction{
		Tag:         transactionrecord.ResponseTag,
		Number:      request.Number,
		ReferenceTo: request.Number,
		Party:       globalData.key.Party(),
		Account:     request.Account,
		Notary:      globalData.notaryID,
		Items:       items,
	}
	response.Sign(globalData.key)
	return response
}

// sign a rejection and persist its audit record together with the
// released context
func reject(request *transactionrecord.Transaction, context *client.Context, reason error) (*transactionrecord.Transaction, error) {
	response := respond(request, nil, reason)

	trx := storage.NewTransaction()
	if nil != context {
		context.Save(trx)
	}
	if err := audit.Record(trx, request.Party, request.Account, response, false); nil != err {
		trx.Abort()
		return nil, err
	}
	if err := trx.Commit(); nil != err {
		return nil, err
	}
	return response, nil
}
