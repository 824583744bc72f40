package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers.
type Kind string

// Error kinds. The string values travel on the wire as error codes.
const (
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition"
	KindNotFound     Kind = "not_found"
	KindStorage      Kind = "storage"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
)

// Error is the domain error returned by every operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.Precondition("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Retryable reports whether the caller may resubmit the operation unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindStorage
}

// Validation builds a malformed-input error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Precondition builds a wrong-state error.
func Precondition(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an unknown-id error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a persistence failure.
func Storage(cause error) *Error {
	return &Error{Kind: KindStorage, Message: "storage failure, retry the operation", Cause: cause}
}

// Unauthorized builds a credential error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// RateLimited builds a throttling error.
func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "too many commands, slow down"}
}

// KindOf returns the kind of err, treating unknown errors as storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Ensure converts arbitrary errors into *Error, wrapping foreign ones as storage failures.
func Ensure(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
