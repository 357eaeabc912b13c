package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/logger"
)

// RetryAttempt describes one scheduled retry. Number starts at 1 for the
// first retry; the initial try is attempt 0 and is never reported.
type RetryAttempt struct {
	Number int
	Delay  time.Duration
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial try. Zero
	// disables retrying.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// BackoffBase is the multiplier for exponential backoff.
	BackoffBase float64
	// Jitter adds randomness to the delay (0.0 to 1.0).
	Jitter float64
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
	// Overrides swap in their own budget and delays for the failures they
	// match. The first match wins; unmatched failures use the fields above.
	Overrides []RetryOverride
	// OnRetry is called before each retry is slept. A returned error or a
	// panic is logged and the retry proceeds.
	OnRetry func(attempt RetryAttempt, err error) error
	// Logger receives intermediate failures. Defaults to the registered retry logger.
	Logger *logger.Logger
}

// RetryOverride is a retry budget for one class of failure, such as upstream
// rate limiting.
type RetryOverride struct {
	Name       string
	Match      func(error) bool
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// RateLimitOverride retries failures matched by match 3 times, starting at
// 15s and capped at 5m.
func RateLimitOverride(match func(error) bool) RetryOverride {
	return RetryOverride{
		Name:       "rate_limit",
		Match:      match,
		MaxRetries: 3,
		BaseDelay:  15 * time.Second,
		MaxDelay:   5 * time.Minute,
	}
}

// NetworkOverride retries failures matched by match 4 times, starting at
// 2s and capped at 60s.
func NetworkOverride(match func(error) bool) RetryOverride {
	return RetryOverride{
		Name:       "network",
		Match:      match,
		MaxRetries: 4,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		BackoffBase: 2.0,
		RetryIf:     errors.IsRetryable,
	}
}

// normalize fills zero values that have no meaningful zero reading.
func (c RetryConfig) normalize() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = errors.IsRetryable
	}
	if c.Logger == nil {
		c.Logger = logger.Get(logger.ComponentRetry)
	}
	if len(c.Overrides) > 0 {
		overrides := make([]RetryOverride, 0, len(c.Overrides))
		for _, o := range c.Overrides {
			if o.Match == nil {
				continue
			}
			o.MaxRetries = max(o.MaxRetries, 0)
			o.BaseDelay = max(o.BaseDelay, 0)
			if o.MaxDelay <= 0 {
				o.MaxDelay = c.MaxDelay
			}
			overrides = append(overrides, o)
		}
		c.Overrides = overrides
	}
	return c
}

// policyFor returns the config that governs err: the base config with the
// first matching override's budget and delays applied.
func (c RetryConfig) policyFor(err error) (RetryConfig, string) {
	for _, o := range c.Overrides {
		if o.Match(err) {
			c.MaxRetries, c.BaseDelay, c.MaxDelay = o.MaxRetries, o.BaseDelay, o.MaxDelay
			return c, o.Name
		}
	}
	return c, ""
}

// Retry executes fn, retrying retryable failures with exponential backoff.
//
// It returns a NonRetryable error as soon as RetryIf refuses a failure, a
// RetriesExhausted error carrying the last failure once MaxRetries retries
// have failed, and a Cancelled error if ctx ends first.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	cfg = cfg.normalize()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Cancelled(err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, errors.Cancelled(ctxErr)
		}
		if !cfg.RetryIf(err) {
			return zero, errors.NonRetryable(err)
		}
		policy, name := cfg.policyFor(err)
		if attempt >= policy.MaxRetries {
			cfg.Logger.Warn("retries exhausted", map[string]interface{}{
				logger.FieldAttempt: attempt,
				"policy":            name,
				logger.FieldError:   err.Error(),
			})
			return zero, errors.RetriesExhausted(err, attempt)
		}

		next := RetryAttempt{Number: attempt + 1, Delay: policy.Backoff(attempt + 1)}
		cfg.Logger.Debug("attempt failed, retrying", map[string]interface{}{
			logger.FieldAttempt: next.Number,
			logger.FieldDelayMs: next.Delay.Milliseconds(),
			"policy":            name,
			logger.FieldError:   err.Error(),
		})
		cfg.notify(next, err)

		if err := Sleep(ctx, next.Delay); err != nil {
			return zero, errors.Cancelled(err)
		}
	}
}

// notify runs OnRetry, logging and swallowing its failures.
func (c RetryConfig) notify(attempt RetryAttempt, cause error) {
	if c.OnRetry == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("retry callback panicked", map[string]interface{}{
				logger.FieldAttempt: attempt.Number,
				logger.FieldError:   fmt.Sprint(r),
			})
		}
	}()

	if err := c.OnRetry(attempt, cause); err != nil {
		c.Logger.Warn("retry callback failed", map[string]interface{}{
			logger.FieldAttempt: attempt.Number,
			logger.FieldError:   err.Error(),
		})
	}
}

// Backoff returns the delay before retry n (n >= 1):
// min(BaseDelay * BackoffBase^(n-1), MaxDelay), with optional jitter.
func (c RetryConfig) Backoff(n int) time.Duration {
	backoff := float64(c.BaseDelay) * math.Pow(c.BackoffBase, float64(n-1))

	if c.Jitter > 0 {
		jitterRange := backoff * c.Jitter
		backoff += (rand.Float64()*2 - 1) * jitterRange
	}

	if backoff > float64(c.MaxDelay) {
		backoff = float64(c.MaxDelay)
	}
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// Retrier runs operations under a fixed retry policy.
type Retrier struct {
	config RetryConfig
}

// NewRetrier creates a Retrier.
func NewRetrier(cfg RetryConfig) *Retrier {
	return &Retrier{config: cfg.normalize()}
}

// Run executes fn with the retrier's policy.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	_, err := Retry(ctx, r.config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Config returns the normalized policy.
func (r *Retrier) Config() RetryConfig {
	return r.config
}
