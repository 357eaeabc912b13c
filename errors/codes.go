package errors

// Kind classifies a fetchguard failure.
type Kind string

// Upstream failures produced by fetch operations.
const (
	// KindTransient is a retryable failure: timeouts, connection failures,
	// rate-limited-by-remote responses.
	KindTransient Kind = "transient"
	// KindPermanent is a non-retryable failure: malformed request,
	// authorization failure.
	KindPermanent Kind = "permanent"
)

// Failures produced by the resilience gates.
const (
	// KindBreakerOpen means the circuit breaker rejected the call; no attempt was made.
	KindBreakerOpen Kind = "breaker_open"
	// KindRetriesExhausted means every allowed attempt failed.
	KindRetriesExhausted Kind = "retries_exhausted"
	// KindNonRetryable means the operation failed with an error the retry
	// predicate refused to retry.
	KindNonRetryable Kind = "non_retryable"
	// KindCancelled means the caller's context ended while suspended.
	KindCancelled Kind = "cancelled"
)

// Local failures.
const (
	// KindConfiguration is raised eagerly at construction time.
	KindConfiguration Kind = "configuration"
	// KindCacheBackend is a cache read/write failure. It is logged and
	// absorbed, never returned from a fetch.
	KindCacheBackend Kind = "cache_backend"
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = "unknown"
)

var retryableKinds = map[Kind]bool{
	KindTransient: true,
}

// IsRetryableKind returns true if failures of this kind may be retried.
func IsRetryableKind(k Kind) bool {
	return retryableKinds[k]
}
