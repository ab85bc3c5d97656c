// Package apperror carries client-facing error kinds shared by the payment
// and promo domains. The HTTP layer maps each kind to a status code.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrNotFound         = errors.New("not_found")
	ErrConflict         = errors.New("conflict")
	ErrGone             = errors.New("gone")
	ErrTooManyRequests  = errors.New("too_many_requests")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrGatewayFailure   = errors.New("gateway_failure")
)

// Error pairs a kind with a message safe to show to the caller.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Message returns the client-facing message of err, or "" when err carries none.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
