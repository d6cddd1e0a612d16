// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/bitmark-inc/notaryd/digest"
	"github.com/bitmark-inc/notaryd/party"
)

// TagType - type code for transactions
type TagType uint64

// enumerate the possible transaction record types
// this is encoded as a varint at the start of "Packed"
const (
	// null marks beginning of list - not used as a record type
	NullTag = TagType(iota)

	// client request transactions
	TransferTag       = TagType(iota) // move value between two accounts
	WithdrawalTag     = TagType(iota) // voucher or cash withdrawal
	DepositTag        = TagType(iota) // cheque or cash deposit
	PayDividendTag    = TagType(iota) // fan out a dividend over shareholders
	PaymentPlanTag    = TagType(iota) // activate or cancel a payment plan
	SmartContractTag  = TagType(iota) // activate or cancel a smart contract
	CancelCronItemTag = TagType(iota) // remove an active recurring item
	ExchangeBasketTag = TagType(iota) // exchange basket currency components
	ProcessInboxTag   = TagType(iota) // accept/reject inbox entries
	ProcessNymboxTag  = TagType(iota) // accept/reject nymbox entries

	// server created box entries
	PendingTag          = TagType(iota) // incoming transfer awaiting acceptance
	ChequeReceiptTag    = TagType(iota) // drawer's record of a deposited cheque
	TransferReceiptTag  = TagType(iota) // sender's record of an accepted transfer
	MarketReceiptTag    = TagType(iota) // receipt from a market offer
	PaymentReceiptTag   = TagType(iota) // receipt from a payment plan charge
	FinalReceiptTag     = TagType(iota) // closing receipt of a recurring item
	BasketReceiptTag    = TagType(iota) // sub-account record of a basket exchange
	BlankTag            = TagType(iota) // freshly issued transaction number
	MessageTag          = TagType(iota) // peer to peer message
	NoticeTag           = TagType(iota) // server notice
	ReplyNoticeTag      = TagType(iota) // copy of a server reply
	SuccessNoticeTag    = TagType(iota) // notarization succeeded notice
	InstrumentNoticeTag = TagType(iota) // incoming payment instrument

	// server response to one request
	ResponseTag = TagType(iota)

	// this item must be last
	InvalidTag = TagType(iota)
)

// IsRequest - tags a client may submit for notarization
func (tag TagType) IsRequest() bool {
	return tag >= TransferTag && tag <= ProcessNymboxTag
}

// IsBoxEntry - tags the server places into a box
func (tag TagType) IsBoxEntry() bool {
	return tag >= PendingTag && tag <= InstrumentNoticeTag
}

// IsReceipt - box entries recording the outcome of another number
func (tag TagType) IsReceipt() bool {
	return tag >= ChequeReceiptTag && tag <= BasketReceiptTag
}

// Packed - packed records are just a byte slice
type Packed []byte

// Transaction - one record of a ledger box or one client request
//
// a flat tagged record: which fields are meaningful depends on the
// tag; Reference carries the opaque original signed request or
// instrument that spawned the record
type Transaction struct {
	Tag           TagType         `json:"tag"`
	Number        uint64          `json:"number,string"`        // this record's transaction number
	ClosingNumber uint64          `json:"closingNumber,string"` // optional second number needed to fully close
	ReferenceTo   uint64          `json:"referenceTo,string"`   // number of the request that spawned this record
	Party         *party.Party    `json:"party"`                // owning/signing party
	Account       digest.Digest   `json:"account"`              // account scope, zero for nymbox records
	Notary        digest.Digest   `json:"notary"`               // notary scope
	Amount        int64           `json:"amount,string"`        // value moved, zero when not applicable
	Reference     []byte          `json:"reference"`            // opaque attachment
	ReferenceHash digest.Digest   `json:"referenceHash"`        // digest of the attachment, the signed form
	Items         []*Item         `json:"items"`
	Signature     party.Signature `json:"signature"`
}

// the signature binds the attachment by digest, not by value, so a
// box index may strip the attachment (keeping only the digest) while
// the signature stays verifiable; the full attachment is stored as a
// separate box receipt

// AttachmentHash - digest the signature covers for the attachment
func (t *Transaction) AttachmentHash() digest.Digest {
	if 0 != len(t.Reference) {
		return digest.NewDigest(t.Reference)
	}
	return t.ReferenceHash
}

// StripAttachment - slim copy with the attachment replaced by its digest
func (t *Transaction) StripAttachment() *Transaction {
	stripped := *t
	stripped.ReferenceHash = t.AttachmentHash()
	stripped.Reference = nil
	return &stripped
}

// ItemType - type code for items
type ItemType uint64

// enumerate the possible item types
const (
	NullItem = ItemType(iota)

	// request items
	TransferItem        = ItemType(iota)
	WithdrawVoucherItem = ItemType(iota)
	WithdrawCashItem    = ItemType(iota)
	DepositChequeItem   = ItemType(iota)
	DepositCashItem     = ItemType(iota)
	PayDividendItem     = ItemType(iota)
	PaymentPlanItem     = ItemType(iota)
	SmartContractItem   = ItemType(iota)
	CancelCronItemItem  = ItemType(iota)
	ExchangeBasketItem  = ItemType(iota)
	BasketMovementItem  = ItemType(iota)
	AcceptPendingItem   = ItemType(iota)
	RejectPendingItem   = ItemType(iota)
	AcceptReceiptItem   = ItemType(iota)
	AcceptNoticeItem    = ItemType(iota)

	// statement items, exactly one per request transaction
	BalanceStatementItem     = ItemType(iota)
	TransactionStatementItem = ItemType(iota)

	invalidItem = ItemType(iota)
)

// ItemStatus - request or server verdict
type ItemStatus uint64

// item status values
const (
	StatusRequest      = ItemStatus(iota) // as submitted by the party
	StatusAcknowledged = ItemStatus(iota) // server accepted
	StatusRejected     = ItemStatus(iota) // server rejected, Note says why
)

// Item - a sub-record carrying one request and, on the server side,
// its status response
type Item struct {
	Type        ItemType        `json:"type"`
	Status      ItemStatus      `json:"status"`
	Number      uint64          `json:"number,string"` // referenced box entry or closing number
	Amount      int64           `json:"amount,string"`
	Destination digest.Digest   `json:"destination"` // destination account where applicable
	Note        string          `json:"note"`        // human readable reason on rejection
	Attachment  []byte          `json:"attachment"`  // instrument, purse or packed statement
	Response    []byte          `json:"response"`    // copy of the item this responds to
	Signature   party.Signature `json:"signature"`
}

// FindItem - first item of a given type
func (t *Transaction) FindItem(itemType ItemType) *Item {
	for _, item := range t.Items {
		if itemType == item.Type {
			return item
		}
	}
	return nil
}

// StatementItem - the statement item of a request transaction
func (t *Transaction) StatementItem() *Item {
	if item := t.FindItem(BalanceStatementItem); nil != item {
		return item
	}
	return t.FindItem(TransactionStatementItem)
}
