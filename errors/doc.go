// Package errors provides the failure taxonomy shared by every fetchguard
// component.
//
// Each failure carries a Kind so callers can tell local policy rejection
// (breaker open, cancellation) apart from exhaustion of the target service
// (retries exhausted, non-retryable upstream failure).
//
//	_, err := orch.Fetch(ctx, req, op)
//	switch errors.KindOf(err) {
//	case errors.KindBreakerOpen:
//	    // back off, the upstream is considered down
//	case errors.KindRetriesExhausted:
//	    // every attempt failed
//	}
package errors
