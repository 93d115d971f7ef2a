// Package apperr defines the error taxonomy shared by the domain packages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a domain failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindInvalidState
	KindConcurrencyConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidState:
		return "invalid_state"
	case KindConcurrencyConflict:
		return "concurrency_conflict"
	default:
		return "internal_error"
	}
}

// Error is returned when an operation is rejected by domain rules.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation creates an Error for malformed input.
func Validation(message string) *Error { return &Error{Kind: KindValidation, Message: message} }

// Validationf creates a validation Error with a formatted message.
func Validationf(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

// NotFoundf creates an Error for an unknown product or order id.
func NotFoundf(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

// InsufficientStockf creates an Error for a rejected negative adjustment.
func InsufficientStockf(format string, args ...any) *Error {
	return newf(KindInsufficientStock, format, args...)
}

// InvalidStatef creates an Error for an illegal order transition.
func InvalidStatef(format string, args ...any) *Error { return newf(KindInvalidState, format, args...) }

// ConcurrencyConflictf creates an Error for lock contention beyond the configured bound.
func ConcurrencyConflictf(format string, args ...any) *Error {
	return newf(KindConcurrencyConflict, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
