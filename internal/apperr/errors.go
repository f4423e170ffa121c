// internal/apperr/errors.go
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable numeric error code shared with API clients.
type Code int

const (
	CodeInternal               Code = 1000
	CodeNotFound               Code = 2000
	CodeInvalidInput           Code = 3000
	CodeEmptyRequest           Code = 3100
	CodeForbidden              Code = 4000
	CodeInvalidOrderStatus     Code = 5000
	CodeReservationExpired     Code = 7000
	CodeInsufficientInventory  Code = 7100
	CodeReleaseExceedsReserved Code = 7200
	CodeAssetNotProvisioned    Code = 7300
	CodeNotOwner               Code = 7400
	CodeAuthorizationExpired   Code = 7500
	CodeCountMismatch          Code = 7600
	CodeAuthorizationConsumed  Code = 7700
	CodePaymentProcessor       Code = 8000
	CodeSettlement             Code = 8100
	CodePersistence            Code = 9000
)

// Error is the application error type. Two errors match under errors.Is
// when their codes are equal.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound               = &Error{Code: CodeNotFound, Message: "record not found"}
	ErrInvalidInput           = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrEmptyRequest           = &Error{Code: CodeEmptyRequest, Message: "no items provided"}
	ErrForbidden              = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidOrderStatus     = &Error{Code: CodeInvalidOrderStatus, Message: "order is not in the correct status"}
	ErrReservationExpired     = &Error{Code: CodeReservationExpired, Message: "ticket reservation has expired"}
	ErrInsufficientInventory  = &Error{Code: CodeInsufficientInventory, Message: "not enough tickets available"}
	ErrReleaseExceedsReserved = &Error{Code: CodeReleaseExceedsReserved, Message: "cannot release more tickets than are reserved"}
	ErrAssetNotProvisioned    = &Error{Code: CodeAssetNotProvisioned, Message: "asset has not been assigned on the blockchain"}
	ErrNotOwner               = &Error{Code: CodeNotOwner, Message: "user does not own all requested tickets"}
	ErrAuthorizationExpired   = &Error{Code: CodeAuthorizationExpired, Message: "transfer authorization has expired"}
	ErrCountMismatch          = &Error{Code: CodeCountMismatch, Message: "transfer authorization ticket count mismatch"}
	ErrAuthorizationConsumed  = &Error{Code: CodeAuthorizationConsumed, Message: "transfer authorization has already been used"}
	ErrPaymentProcessor       = &Error{Code: CodePaymentProcessor, Message: "payment processor error"}
	ErrSettlement             = &Error{Code: CodeSettlement, Message: "ticket settlement failed"}
	ErrPersistence            = &Error{Code: CodePersistence, Message: "persistence error"}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(resource string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " not found"}
}

func Invalid(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

func Persistence(op string, cause error) *Error {
	return &Error{Code: CodePersistence, Message: "failed to " + op, Cause: cause}
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
