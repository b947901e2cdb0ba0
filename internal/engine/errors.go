package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/landledger/internal/ledger"
)

// Error is a typed ledger failure. Every rejected operation returns one and
// leaves no observable effect.
type Error struct {
	// Kind groups codes for callers that only care about the category.
	Kind Kind

	// Code identifies the failed check.
	Code Code

	// Message is a human-readable description.
	Message string

	// LandID identifies the affected parcel, if any.
	LandID ledger.LandID

	// OfferID identifies the affected offer, if any.
	OfferID ledger.OfferID
}

// Kind categorizes failures.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindAllowance     Kind = "allowance"
	KindPaused        Kind = "paused"
)

// Code identifies the specific check that failed.
type Code string

const (
	CodeEpoch              Code = "EPOCH"
	CodeInvalidExpiration  Code = "INVALID_EXPIRATION"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInsufficientBid    Code = "INSUFFICIENT_BID"
	CodeInsufficientBal    Code = "INSUFFICIENT_BALANCE"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotWinner          Code = "NOT_WINNER"
	CodeNotOwner           Code = "NOT_OWNER"
	CodeNotApproved        Code = "NOT_APPROVED"
	CodeNotDelegate        Code = "NOT_DELEGATE"
	CodeNotContractOwner   Code = "NOT_CONTRACT_OWNER"
	CodeAuctionEnded       Code = "AUCTION_ENDED"
	CodeAuctionNotEnded    Code = "AUCTION_NOT_ENDED"
	CodeAuctionNotFinished Code = "AUCTION_NOT_FINISHED"
	CodeActiveAuction      Code = "ACTIVE_AUCTION"
	CodeAlreadyRedeemed    Code = "ALREADY_REDEEMED"
	CodeNotRedeemed        Code = "NOT_REDEEMED"
	CodeVestingNotElapsed  Code = "VESTING_NOT_ELAPSED"
	CodeNotOnSale          Code = "NOT_ON_SALE"
	CodeExpired            Code = "EXPIRED"
	CodeInsufficientAllow  Code = "INSUFFICIENT_ALLOWANCE"
	CodePaused             Code = "PAUSED"

	// CodeInternal marks journal entries of operations that failed on
	// infrastructure rather than on a ledger check. Never carried by *Error.
	CodeInternal Code = "INTERNAL"
)

var codeKinds = map[Code]Kind{
	CodeEpoch:              KindValidation,
	CodeInvalidExpiration:  KindValidation,
	CodeNotFound:           KindValidation,
	CodeInsufficientBid:    KindValidation,
	CodeInsufficientBal:    KindValidation,
	CodeInvalidArgument:    KindValidation,
	CodeNotWinner:          KindAuthorization,
	CodeNotOwner:           KindAuthorization,
	CodeNotApproved:        KindAuthorization,
	CodeNotDelegate:        KindAuthorization,
	CodeNotContractOwner:   KindAuthorization,
	CodeAuctionEnded:       KindState,
	CodeAuctionNotEnded:    KindState,
	CodeAuctionNotFinished: KindState,
	CodeActiveAuction:      KindState,
	CodeAlreadyRedeemed:    KindState,
	CodeNotRedeemed:        KindState,
	CodeVestingNotElapsed:  KindState,
	CodeNotOnSale:          KindState,
	CodeExpired:            KindState,
	CodeInsufficientAllow:  KindAllowance,
	CodePaused:             KindPaused,
}

// Sentinels for errors.Is. Matching compares codes only, so
// errors.Is(err, ErrAuctionEnded) holds for any parcel.
var (
	ErrEpoch              = sentinel(CodeEpoch, "This land isn't available at the current epoch")
	ErrInvalidExpiration  = sentinel(CodeInvalidExpiration, "The offer expiration must be in the future")
	ErrNotFound           = sentinel(CodeNotFound, "not found")
	ErrInsufficientBid    = sentinel(CodeInsufficientBid, "Your bid is too low")
	ErrInsufficientBal    = sentinel(CodeInsufficientBal, "Insufficient balance")
	ErrInvalidArgument    = sentinel(CodeInvalidArgument, "invalid argument")
	ErrNotWinner          = sentinel(CodeNotWinner, "You must be the land winner to redeem it")
	ErrNotOwner           = sentinel(CodeNotOwner, "You must be the land owner")
	ErrNotApproved        = sentinel(CodeNotApproved, "You must approve this contract to manage your ERC721 token")
	ErrNotDelegate        = sentinel(CodeNotDelegate, "Caller is not the approved delegate")
	ErrNotContractOwner   = sentinel(CodeNotContractOwner, "Ownable: caller is not the owner")
	ErrAuctionEnded       = sentinel(CodeAuctionEnded, "This land auction has ended")
	ErrAuctionNotEnded    = sentinel(CodeAuctionNotEnded, "You can't redeem this land until its auction is finished")
	ErrAuctionNotFinished = sentinel(CodeAuctionNotFinished, "The land auction must have been completed to put it on sale")
	ErrActiveAuction      = sentinel(CodeActiveAuction, "The land is still in auction")
	ErrAlreadyRedeemed    = sentinel(CodeAlreadyRedeemed, "Already redeemed")
	ErrNotRedeemed        = sentinel(CodeNotRedeemed, "The land must be redeemed before getting its cashback")
	ErrVestingNotElapsed  = sentinel(CodeVestingNotElapsed, "You can't redeem a cashback before 30 days")
	ErrNotOnSale          = sentinel(CodeNotOnSale, "The land must be on sale to buy it")
	ErrExpired            = sentinel(CodeExpired, "The offer has expired")
	ErrInsufficientAllow  = sentinel(CodeInsufficientAllow, "Your allowance is too low")
	ErrPaused             = sentinel(CodePaused, "Pausable: paused")
)

func sentinel(code Code, msg string) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.OfferID != 0:
		return fmt.Sprintf("%s: %s (offer=%s)", e.Code, e.Message, e.OfferID)
	case e.LandID != 0:
		return fmt.Sprintf("%s: %s (land=%s)", e.Code, e.Message, e.LandID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// newError builds an Error whose kind follows from its code.
func newError(code Code, land ledger.LandID, format string, args ...any) *Error {
	return &Error{
		Kind:    codeKinds[code],
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		LandID:  land,
	}
}

// failLand returns the sentinel's message scoped to a parcel.
func failLand(s *Error, land ledger.LandID) *Error {
	return &Error{Kind: s.Kind, Code: s.Code, Message: s.Message, LandID: land}
}

// failOffer returns the sentinel's message scoped to an offer.
func failOffer(s *Error, land ledger.LandID, offer ledger.OfferID) *Error {
	return &Error{Kind: s.Kind, Code: s.Code, Message: s.Message, LandID: land, OfferID: offer}
}

// KindOf returns the kind of a typed failure, or "" for other errors.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a typed failure of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the code of a typed failure, or "" for other errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// outcomeOf is the journal outcome recorded for a failed operation.
func outcomeOf(err error) string {
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	return string(CodeInternal)
}

// collaboratorError translates a token collaborator failure into a typed
// failure when it maps onto a ledger check; anything else is returned
// wrapped as an infrastructure error.
func collaboratorError(op string, land ledger.LandID, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	switch {
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return newError(CodeInsufficientAllow, land, "%v", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return newError(CodeInsufficientBal, land, "%v", err)
	case errors.Is(err, ledger.ErrNotApproved):
		return newError(CodeNotApproved, land, "%v", err)
	case errors.Is(err, ledger.ErrNotTokenOwner):
		return newError(CodeNotOwner, land, "%v", err)
	case errors.Is(err, ledger.ErrNonexistentToken):
		return newError(CodeNotFound, land, "%v", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
