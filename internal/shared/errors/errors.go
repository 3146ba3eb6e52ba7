package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a payment-layer error. The classification decides the
// retry/fallback behaviour at the caller: configuration errors fail fast,
// transient provider errors are eligible for cached fallbacks, validation
// errors are never cached or blindly retried, authenticity failures mean
// the event must be discarded, and business-state errors are valid
// terminal outcomes needing ops follow-up rather than retries.
type Kind string

const (
	KindConfiguration     Kind = "configuration"
	KindTransientProvider Kind = "transient_provider"
	KindValidation        Kind = "validation"
	KindAuthenticity      Kind = "authenticity"
	KindBusinessState     Kind = "business_state"
	KindInternal          Kind = "internal"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap wraps err with a classification. Provider errors pass through this
// boundary so callers never see provider-specific shapes.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the classification of err, or KindInternal when err is
// not a classified error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a classified error to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthenticity:
		return http.StatusUnauthorized
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindTransientProvider:
		return http.StatusBadGateway
	case KindBusinessState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
