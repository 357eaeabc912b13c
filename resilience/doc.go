// Package resilience provides the gates that pace and protect outbound
// fetches.
//
// This package includes:
//   - RateLimiter: sliding-window admission control, one per resource class
//   - CircuitBreaker: fails fast once an operation class keeps failing
//   - Retry: bounded retries with exponential backoff
//   - Sleep: the cancellable suspension primitive used by the above
//
// RateLimiter.Acquire and the delay between retries are the only calls that
// suspend the caller; breakers never block.
//
//	limiters := resilience.NewLimiterRegistry()
//	limiters.Register(resilience.RateLimiterConfig{Name: "api", MaxRequests: 30, Window: time.Minute})
//	breakers := resilience.NewBreakerRegistry(resilience.DefaultCircuitBreakerConfig(""))
//
//	cb := breakers.Get("search")
//	if !cb.CanExecute() {
//	    return errors.BreakerOpen("search")
//	}
//	if err := limiters.Acquire(ctx, "api"); err != nil {
//	    return err
//	}
//	body, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), fetch)
package resilience
