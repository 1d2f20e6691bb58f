// Package apperror defines the application's error taxonomy and its mapping
// to HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed set of error categories the HTTP layer knows how to translate.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindSessionExpired    Kind = "session_expired"
	KindRateLimited       Kind = "rate_limited"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUpstream          Kind = "upstream_unavailable"
	KindUnprocessable     Kind = "unprocessable"
	KindPaymentFailed     Kind = "payment_failed"
	KindInternal          Kind = "internal"
)

// statusByKind maps each Kind to the HTTP status code the router should return.
var statusByKind = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindNotFound:          http.StatusNotFound,
	KindConflict:          http.StatusConflict,
	KindUnauthorized:      http.StatusUnauthorized,
	KindForbidden:         http.StatusForbidden,
	KindSessionExpired:    http.StatusGone,
	KindRateLimited:       http.StatusTooManyRequests,
	KindInsufficientFunds: http.StatusTooManyRequests,
	KindUpstream:          http.StatusBadGateway,
	KindUnprocessable:     http.StatusUnprocessableEntity,
	KindPaymentFailed:     http.StatusPaymentRequired,
	KindInternal:          http.StatusInternalServerError,
}

// Error is an application error carrying a stable Kind for HTTP translation.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails returns a copy of e carrying structured, client-renderable
// context (e.g. exact remaining tokens on InsufficientTokens).
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Details: details, Err: e.Err}
}

// StatusCode returns the HTTP status code for err, defaulting to 500 for any
// error that isn't an *Error (or doesn't wrap one).
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		if code, ok := statusByKind[appErr.Kind]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// KindOf extracts the Kind from err, or KindInternal if err isn't an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// DetailsOf extracts the structured Details from err, or nil.
func DetailsOf(err error) map[string]any {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

var (
	ErrArtifactNotFound   = New(KindNotFound, "artifact not found")
	ErrSessionNotFound    = New(KindNotFound, "anonymous session not found")
	ErrVerseNotFound      = New(KindNotFound, "memory verse not found")
	ErrSessionExpired     = New(KindSessionExpired, "anonymous session expired")
	ErrSessionFrozen      = New(KindValidation, "anonymous session already migrated")
	ErrInsufficientTokens = New(KindInsufficientFunds, "insufficient token balance")
	ErrInvalidSignature   = New(KindUnauthorized, "invalid webhook signature")
	ErrLLMUnavailable     = New(KindUpstream, "generation provider unavailable")
	ErrLLMMalformed       = New(KindUpstream, "generation provider returned malformed content")
	ErrLLMRefused         = New(KindUnprocessable, "generation request refused by provider")
	ErrPaymentFailed      = New(KindPaymentFailed, "payment failed")
)
