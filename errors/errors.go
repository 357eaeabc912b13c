package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Error is the structured fetchguard failure.
type Error struct {
	// Kind classifies the failure.
	Kind Kind `json:"kind"`
	// Op names the gate or operation class that produced the failure
	// (breaker name, retry, cache backend, config field).
	Op string `json:"op,omitempty"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Attempts is the number of retries made, set for KindRetriesExhausted.
	Attempts int `json:"attempts,omitempty"`
	// Retryable indicates whether the retry orchestrator may try again.
	Retryable bool `json:"retryable"`
	// Details carries additional context.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " [" + e.Op + "]"
	}
	msg += ": " + e.Message
	if e.Kind == KindRetriesExhausted {
		msg += fmt.Sprintf(" (attempts: %d)", e.Attempts)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind. It lets callers
// compare against sentinel values such as ErrBreakerOpen.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// WithOp sets the gate/operation name and returns the receiver.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrBreakerOpen      = &Error{Kind: KindBreakerOpen}
	ErrRetriesExhausted = &Error{Kind: KindRetriesExhausted}
	ErrNonRetryable     = &Error{Kind: KindNonRetryable}
	ErrCancelled        = &Error{Kind: KindCancelled}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
)

// New creates an Error with retryable detection from its kind.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Retryable: IsRetryableKind(kind),
	}
}

// --- Constructors ---

// Transient wraps a retryable upstream failure.
func Transient(cause error) *Error {
	return &Error{Kind: KindTransient, Message: "transient fetch failure", Retryable: true, Cause: cause}
}

// Transientf creates a retryable upstream failure from a format string.
func Transientf(format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf(format, args...), Retryable: true}
}

// Permanent wraps a non-retryable upstream failure.
func Permanent(cause error) *Error {
	return &Error{Kind: KindPermanent, Message: "permanent fetch failure", Cause: cause}
}

// Permanentf creates a non-retryable upstream failure from a format string.
func Permanentf(format string, args ...any) *Error {
	return &Error{Kind: KindPermanent, Message: fmt.Sprintf(format, args...)}
}

// BreakerOpen reports that the named circuit breaker rejected the call.
func BreakerOpen(name string) *Error {
	return &Error{
		Kind: KindBreakerOpen, Op: name,
		Message: "circuit breaker is open, call not attempted",
	}
}

// RetriesExhausted wraps the last error seen once every retry has failed.
func RetriesExhausted(last error, attempts int) *Error {
	return &Error{
		Kind: KindRetriesExhausted, Op: "retry",
		Message:  "max retries exceeded",
		Attempts: attempts,
		Cause:    last,
	}
}

// NonRetryable wraps an error the retry predicate refused.
func NonRetryable(cause error) *Error {
	return &Error{
		Kind: KindNonRetryable, Op: "retry",
		Message: "non-retryable failure",
		Cause:   cause,
	}
}

// Cancelled wraps a context error observed while suspended.
func Cancelled(cause error) *Error {
	if cause == nil {
		cause = context.Canceled
	}
	return &Error{Kind: KindCancelled, Message: "operation cancelled", Cause: cause}
}

// Configuration reports an invalid construction-time setting.
func Configuration(field, reason string) *Error {
	return &Error{
		Kind: KindConfiguration, Op: field,
		Message: reason,
	}
}

// CacheBackend wraps a cache read/write failure.
func CacheBackend(op string, cause error) *Error {
	return &Error{
		Kind: KindCacheBackend, Op: op,
		Message: "cache backend failure",
		Cause:   cause,
	}
}

// --- Inspection ---

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsBreakerOpen checks if an error is a breaker-open rejection.
func IsBreakerOpen(err error) bool { return KindOf(err) == KindBreakerOpen }

// IsRetriesExhausted checks if an error reports exhausted retries.
func IsRetriesExhausted(err error) bool { return KindOf(err) == KindRetriesExhausted }

// IsNonRetryable checks if an error is a non-retryable failure.
func IsNonRetryable(err error) bool { return KindOf(err) == KindNonRetryable }

// IsCancelled checks if an error is a cancellation.
func IsCancelled(err error) bool { return KindOf(err) == KindCancelled }

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsCacheBackend checks if an error is a cache backend failure.
func IsCacheBackend(err error) bool { return KindOf(err) == KindCacheBackend }

// IsTransient checks if an error is a transient upstream failure.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsPermanent checks if an error is a permanent upstream failure.
func IsPermanent(err error) bool { return KindOf(err) == KindPermanent }

// IsRetryable is the default retry predicate. A classified error decides
// for itself, so a transient network timeout is retried even though it
// matches context.DeadlineExceeded. Unclassified errors are retried unless
// they are context errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := As(err); ok {
		return e.Retryable
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
