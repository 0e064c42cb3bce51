// Package reviewerr defines the typed error taxonomy raised by the review
// pipeline (ReviewEngine, HostingClient, AIReviewer) and consumed by the
// Scheduler's retry policy.
package reviewerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error into one of the closed set of kinds the
// Scheduler and ReviewEngine know how to react to.
type Kind string

const (
	// KindGateFailure: a pre-review gate rejected the review. Recovered
	// locally; the Review ends SKIPPED. Never retried.
	KindGateFailure Kind = "gate_failure"

	// KindSuperseded: not a failure; a newer commit arrived before the
	// paid AI call. The Review ends SUPERSEDED. Never retried.
	KindSuperseded Kind = "superseded"

	// KindHostingTransient: network error or 5xx from the hosting API.
	// Retried by the Scheduler with backoff.
	KindHostingTransient Kind = "hosting_transient"

	// KindHostingPermanent: 4xx (other than 401) from the hosting API.
	// The Review ends FAILED. Never retried.
	KindHostingPermanent Kind = "hosting_permanent"

	// KindAIError: the AI endpoint raised or returned an error envelope.
	// Retried by the Scheduler with backoff.
	KindAIError Kind = "ai_error"

	// KindInternalInvariant: a precondition the pipeline assumes always
	// holds was violated (e.g. installation not found for a scheduled
	// job). The Review ends FAILED. Never retried.
	KindInternalInvariant Kind = "internal_invariant"
)

// retryable reports whether the Scheduler should retry a job that failed
// with this Kind. Only HostingTransient and AIError are retryable; every
// other kind reflects either a terminal local decision (GateFailure,
// Superseded) or a defect that a retry cannot fix (HostingPermanent,
// InternalInvariant).
func (k Kind) retryable() bool {
	switch k {
	case KindHostingTransient, KindAIError:
		return true
	default:
		return false
	}
}

// Error is the pipeline's typed error, carrying enough context for
// ReviewEngine to decide the Review's terminal status and for the
// Scheduler to decide whether to retry.
type Error struct {
	Kind      Kind
	Message   string
	Err       error
	Retryable bool
}

// New creates an Error of the given Kind, deriving Retryable from the Kind's
// default policy.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: kind.retryable()}
}

// Wrap creates an Error of the given Kind wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err, Retryable: kind.retryable()}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is matching on Kind: errors.Is(err, reviewerr.KindSuperseded)
// does not work directly since Kind isn't an error, so callers should use
// KindOf(err) == reviewerr.KindSuperseded instead. Is is provided so two
// *Error values with the same Kind compare equal under errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// returns KindInternalInvariant as the safe, non-retryable default.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalInvariant
}

// IsRetryable reports whether the Scheduler should retry a job that failed
// with err.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
