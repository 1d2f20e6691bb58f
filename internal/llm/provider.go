// Package llm implements the study-guide generation gateway: prompt
// assembly, provider failover, and bounded-retry JSON parsing into
// StudyContent.
package llm

import (
	"context"
	"errors"
	"time"
)

// CallOptions configures a single provider call.
type CallOptions struct {
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// TransientError marks a provider failure eligible for failover to the next
// configured provider (network error, 5xx, or a timeout at or beyond the
// per-attempt budget).
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return "transient failure from provider " + e.Provider + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should trigger provider failover.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// RefusalError marks a provider's content-filter rejection, which is
// terminal: no retry, no failover.
type RefusalError struct {
	Provider string
	Reason   string
}

func (e *RefusalError) Error() string {
	return "provider " + e.Provider + " refused the request: " + e.Reason
}

// IsRefusal reports whether err is a content-filter rejection.
func IsRefusal(err error) bool {
	var r *RefusalError
	return errors.As(err, &r)
}

// Provider is a single LLM backend capable of completing a text prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
}
