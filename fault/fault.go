// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

// error base
type GenericError string

// to allow for different classes of errors
type AuthorizationError GenericError
type DoubleSpendError GenericError
type ExistsError GenericError
type InvalidError GenericError
type InvariantError GenericError
type NotFoundError GenericError
type NumberError GenericError
type ProcessError GenericError
type ResourceError GenericError
type StatementError GenericError

// common errors - keep in alphabetic order
var (
	ErrAccountAlreadyCheckedOut   = ProcessError("account already checked out")
	ErrAccountIsInternal          = InvalidError("account is internal")
	ErrAccountNotCheckedOut       = InvariantError("account not checked out")
	ErrAccountNotFound            = NotFoundError("account not found")
	ErrAlreadyInitialised         = ProcessError("already initialised")
	ErrAmountOverflow             = InvalidError("amount arithmetic overflow")
	ErrAssetMismatch              = InvalidError("asset type does not match")
	ErrAssetNotFound              = NotFoundError("asset not found")
	ErrAuditRecordNotFound        = NotFoundError("audit record not found")
	ErrBasketComponentMissing     = InvalidError("basket component movement missing")
	ErrBasketNotABasket           = InvalidError("asset is not a basket currency")
	ErrBoxEntryNotFound           = NotFoundError("box entry not found")
	ErrBoxReceiptNotFound         = NotFoundError("box receipt not found")
	ErrCannotDecodeAccount        = InvalidError("cannot decode account")
	ErrCannotDecodeParty          = InvalidError("cannot decode party")
	ErrChecksumMismatch           = InvalidError("checksum mismatch")
	ErrChequeAlreadyDeposited     = DoubleSpendError("cheque already deposited")
	ErrChequeNotDrawnOnThisNotary = InvalidError("cheque not drawn on this notary")
	ErrClosingNumberNotIssued     = NumberError("closing number not issued")
	ErrCronItemLimit              = ResourceError("too many open cron items")
	ErrCronItemNotFound           = NotFoundError("cron item not found")
	ErrDuplicateTransactionNumber = NumberError("duplicate transaction number")
	ErrFinalReceiptGroupSplit     = InvalidError("final receipt group not fully accepted")
	ErrInstrumentExpired          = ResourceError("instrument validity window expired")
	ErrInsufficientBalance        = ResourceError("insufficient balance")
	ErrInvalidBasketCount         = InvalidError("wrong number of basket movements")
	ErrInvalidCount               = InvalidError("invalid count")
	ErrInvalidDenomination        = InvalidError("invalid token denomination")
	ErrInvalidItem                = InvalidError("item is missing or unparsable")
	ErrInvalidKeyLength           = InvalidError("invalid key length")
	ErrInvalidKeyType             = InvalidError("invalid key type")
	ErrInvalidLoggerChannel       = InvalidError("invalid logger channel")
	ErrInvalidSignature           = AuthorizationError("invalid signature")
	ErrInvalidStructure           = InvalidError("invalid structure")
	ErrKeyLength                  = InvalidError("key length is invalid")
	ErrMintExpired                = ResourceError("mint series has expired")
	ErrMintNotFound               = NotFoundError("mint series not found")
	ErrNotAssetIssuer             = AuthorizationError("party is not the asset issuer")
	ErrNotAvailableDuringShutdown = ProcessError("not available during shutdown")
	ErrNotConnected               = ProcessError("not connected")
	ErrNotInitialised             = ProcessError("not initialised")
	ErrNotPublicKey               = InvalidError("not a public key")
	ErrNotTheAccountOwner         = AuthorizationError("party is not the account owner")
	ErrNotTheCronItemOwner        = AuthorizationError("party may not cancel this cron item")
	ErrNotaryMismatch             = InvalidError("notary identifier does not match")
	ErrNumberNotAvailable         = NumberError("transaction number not available")
	ErrNumberNotIssued            = NumberError("transaction number not issued")
	ErrRateLimitExceeded          = ResourceError("notarization rate limit exceeded")
	ErrSelfTransfer               = InvalidError("transfer to the same account")
	ErrStatementMismatch          = StatementError("statement disagrees with computed state")
	ErrStatementMissing           = StatementError("statement item is missing")
	ErrTokenAlreadySpent          = DoubleSpendError("token already spent")
	ErrTokenVerifyFailed          = ResourceError("token failed mint verification")
	ErrTransactionNotSigned       = InvalidError("transaction is not signed")
	ErrWrongNetworkForPublicKey   = InvalidError("wrong network for public key")
	ErrWrongOwner                 = AuthorizationError("record owner does not match party")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e AuthorizationError) Error() string { return string(e) }
func (e DoubleSpendError) Error() string   { return string(e) }
func (e ExistsError) Error() string        { return string(e) }
func (e InvalidError) Error() string       { return string(e) }
func (e InvariantError) Error() string     { return string(e) }
func (e NotFoundError) Error() string      { return string(e) }
func (e NumberError) Error() string        { return string(e) }
func (e ProcessError) Error() string       { return string(e) }
func (e ResourceError) Error() string      { return string(e) }
func (e StatementError) Error() string     { return string(e) }

// determine the class of an error
func IsErrAuthorization(e error) bool { _, ok := e.(AuthorizationError); return ok }
func IsErrDoubleSpend(e error) bool   { _, ok := e.(DoubleSpendError); return ok }
func IsErrExists(e error) bool        { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool       { _, ok := e.(InvalidError); return ok }
func IsErrInvariant(e error) bool     { _, ok := e.(InvariantError); return ok }
func IsErrNotFound(e error) bool      { _, ok := e.(NotFoundError); return ok }
func IsErrNumber(e error) bool        { _, ok := e.(NumberError); return ok }
func IsErrProcess(e error) bool       { _, ok := e.(ProcessError); return ok }
func IsErrResource(e error) bool      { _, ok := e.(ResourceError); return ok }
func IsErrStatement(e error) bool     { _, ok := e.(StatementError); return ok }
