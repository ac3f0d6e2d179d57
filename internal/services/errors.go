package services

import (
	"errors"
	"fmt"
)

// Callback errors visible to providers. Anything else is an internal error.
var (
	ErrAuth                 = errors.New("authentication failed")
	ErrParse                = errors.New("parse error")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnsupportedMethod    = errors.New("method not supported")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountBusy          = errors.New("account already has a pending transaction")
	ErrAmountMismatch       = errors.New("invalid amount")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionCancelled = errors.New("transaction cancelled")
	ErrCannotPerform        = errors.New("unable to perform operation")
)

// callbackError attaches a provider-facing note to a taxonomy sentinel
type callbackError struct {
	kind error
	note string
}

func (e *callbackError) Error() string { return e.note }
func (e *callbackError) Unwrap() error { return e.kind }

func newCallbackError(kind error, format string, args ...interface{}) error {
	return &callbackError{kind: kind, note: fmt.Sprintf(format, args...)}
}

// IsCallbackError reports whether err belongs to the provider-visible taxonomy
func IsCallbackError(err error) bool {
	for _, kind := range []error{
		ErrAuth, ErrParse, ErrInvalidRequest, ErrUnsupportedMethod, ErrAccountNotFound, ErrAccountBusy,
		ErrAmountMismatch, ErrTransactionNotFound, ErrTransactionCancelled, ErrCannotPerform,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
