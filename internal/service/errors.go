package service

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable identifier callers branch on
type ErrorCode string

const (
	CodeNotFound               ErrorCode = "not_found"
	CodeCampaignNotActive      ErrorCode = "campaign_not_active"
	CodeOfferClosed            ErrorCode = "offer_closed"
	CodeBeforeWindow           ErrorCode = "before_window"
	CodeAfterWindow            ErrorCode = "after_window"
	CodeCapacityExceeded       ErrorCode = "capacity_exceeded"
	CodeInvalidQuantity        ErrorCode = "invalid_quantity"
	CodeInvalidStateForCancel  ErrorCode = "invalid_state_for_cancel"
	CodeInvalidStateForConfirm ErrorCode = "invalid_state_for_confirm"
	CodeInvalidStateForUpdate  ErrorCode = "invalid_state_for_update"
	CodeInvalidLinkage         ErrorCode = "invalid_linkage"
)

// Error is a business-rule rejection. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "not found"}
	ErrCampaignNotActive      = &Error{Code: CodeCampaignNotActive, Message: "campaign is not active"}
	ErrOfferClosed            = &Error{Code: CodeOfferClosed, Message: "offer is closed"}
	ErrBeforeWindow           = &Error{Code: CodeBeforeWindow, Message: "offer order window has not started"}
	ErrAfterWindow            = &Error{Code: CodeAfterWindow, Message: "offer order window has ended"}
	ErrCapacityExceeded       = &Error{Code: CodeCapacityExceeded, Message: "offer capacity exceeded"}
	ErrInvalidQuantity        = &Error{Code: CodeInvalidQuantity, Message: "quantity must be at least 1"}
	ErrInvalidStateForCancel  = &Error{Code: CodeInvalidStateForCancel, Message: "order cannot be cancelled in its current state"}
	ErrInvalidStateForConfirm = &Error{Code: CodeInvalidStateForConfirm, Message: "order cannot be confirmed in its current state"}
	ErrInvalidStateForUpdate  = &Error{Code: CodeInvalidStateForUpdate, Message: "order cannot be changed in its current state"}
	ErrInvalidLinkage         = &Error{Code: CodeInvalidLinkage, Message: "fulfillment order id is required"}
)

// CodeOf extracts the domain code from err, if it carries one
func CodeOf(err error) (ErrorCode, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code, true
	}
	return "", false
}
