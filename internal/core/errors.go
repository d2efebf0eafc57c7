package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. Every operation failure carries exactly one kind.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindValidation         Kind = "VALIDATION_FAILED"
	KindInvalidDate        Kind = "INVALID_DATE"
	KindConflict           Kind = "CONFLICT"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindInsufficientStock  Kind = "INSUFFICIENT_STOCK"
	KindInvalidChronology  Kind = "INVALID_CHRONOLOGY"
	KindNotConfigured      Kind = "NOT_CONFIGURED"
	KindInvariantViolation Kind = "INVARIANT_VIOLATION"
	KindRetryable          Kind = "RETRYABLE"
	KindInternal           Kind = "INTERNAL"
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrInvalidDate        = &Error{Kind: KindInvalidDate, Message: "invalid date"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrInvalidChronology  = &Error{Kind: KindInvalidChronology, Message: "invalid chronology"}
	ErrNotConfigured      = &Error{Kind: KindNotConfigured, Message: "not configured"}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation, Message: "invariant violation"}
	ErrRetryable          = &Error{Kind: KindRetryable, Message: "retryable conflict"}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error   { return newError(KindNotFound, format, args...) }
func Validationf(format string, args ...any) error { return newError(KindValidation, format, args...) }
func InvalidDatef(format string, args ...any) error {
	return newError(KindInvalidDate, format, args...)
}
func Conflictf(format string, args ...any) error { return newError(KindConflict, format, args...) }
func InsufficientFundsf(format string, args ...any) error {
	return newError(KindInsufficientFunds, format, args...)
}
func InsufficientStockf(format string, args ...any) error {
	return newError(KindInsufficientStock, format, args...)
}
func InvalidChronologyf(format string, args ...any) error {
	return newError(KindInvalidChronology, format, args...)
}
func NotConfiguredf(format string, args ...any) error {
	return newError(KindNotConfigured, format, args...)
}
func InvariantViolationf(format string, args ...any) error {
	return newError(KindInvariantViolation, format, args...)
}

// Retryable wraps an infrastructure error that the caller may retry as a whole operation.
func Retryable(err error) error {
	return &Error{Kind: KindRetryable, Message: "operation conflicted with a concurrent transaction", Err: err}
}

// KindOf returns the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf maps an error to the HTTP status the boundary reports.
func StatusOf(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInvalidDate, KindConflict, KindInsufficientFunds,
		KindInsufficientStock, KindInvalidChronology:
		return http.StatusBadRequest
	case KindRetryable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
