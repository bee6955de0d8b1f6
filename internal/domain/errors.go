package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of domain failures. The API layer owns the one
// mapping from codes to transport statuses; nothing else inspects messages.
type ErrorCode int

const (
	CodeAuctionNotFound ErrorCode = iota + 1
	CodeAuctionNotAvailable
	CodeBidRejected
	CodeInvalidAuctionWindow
	CodeAuctionAlreadyExists
	CodeAuctionAlreadyStarted
	CodeNotAParticipant
	CodeItemNotFound
	CodeInvalidRequest
	CodeCacheFailed
	CodeStoreFailed
	CodeCollaboratorUnavailable
)

// RejectReason qualifies CodeBidRejected. Rejections are semantic, never
// retried.
type RejectReason string

const (
	RejectSellerOwnAuction RejectReason = "seller_cannot_bid_own_auction"
	RejectAuctionNotOpen   RejectReason = "auction_not_open_for_bidding"
	RejectBidTooLow        RejectReason = "bid_too_low"
)

type Error struct {
	Code    ErrorCode
	Message string
	Reason  RejectReason
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the domain code from an error chain.
func CodeOf(err error) (ErrorCode, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return 0, false
}

func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

func ReasonOf(err error) (RejectReason, bool) {
	var de *Error
	if errors.As(err, &de) && de.Code == CodeBidRejected {
		return de.Reason, true
	}
	return "", false
}

func ErrAuctionNotFound() error {
	return &Error{Code: CodeAuctionNotFound, Message: "auction does not exist"}
}

func ErrAuctionNotAvailable() error {
	return &Error{Code: CodeAuctionNotAvailable, Message: "auction is not available"}
}

func ErrBidRejected(reason RejectReason) error {
	return &Error{Code: CodeBidRejected, Message: "bid rejected: " + string(reason), Reason: reason}
}

func ErrInvalidAuctionWindow() error {
	return &Error{Code: CodeInvalidAuctionWindow, Message: "auction start and end dates are incorrect"}
}

func ErrAuctionAlreadyExists() error {
	return &Error{Code: CodeAuctionAlreadyExists, Message: "auction for this item already exists"}
}

func ErrAuctionAlreadyStarted() error {
	return &Error{Code: CodeAuctionAlreadyStarted, Message: "auction has already started"}
}

func ErrNotAParticipant() error {
	return &Error{Code: CodeNotAParticipant, Message: "you are not a participant in this auction"}
}

func ErrItemNotFound() error {
	return &Error{Code: CodeItemNotFound, Message: "item does not exist"}
}

func ErrInvalidRequest(msg string) error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

func ErrCacheFailed(msg string, err error) error {
	return &Error{Code: CodeCacheFailed, Message: msg, Err: err}
}

func ErrStoreFailed(msg string, err error) error {
	return &Error{Code: CodeStoreFailed, Message: msg, Err: err}
}

func ErrCollaboratorUnavailable(err error) error {
	return &Error{Code: CodeCollaboratorUnavailable, Message: "collaborator service error", Err: err}
}

// ErrVersionConflict reports a lost conditional update; callers reload and
// re-validate before retrying.
var ErrVersionConflict = errors.New("auction version conflict")
