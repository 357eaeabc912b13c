package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/fetchguard/errors"
)

// RateLimiterConfig configures a sliding-window rate limiter.
type RateLimiterConfig struct {
	// Name identifies this rate limiter for metrics/logging.
	Name string
	// MaxRequests is the number of admissions allowed within Window.
	MaxRequests int
	// Window is the trailing interval the bound applies to.
	Window time.Duration
	// OnWait is called before the caller is suspended for wait.
	OnWait func(name string, wait time.Duration)
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig(name string) RateLimiterConfig {
	return RateLimiterConfig{
		Name:        name,
		MaxRequests: 30,
		Window:      time.Minute,
	}
}

// RateLimiterStats is a point-in-time view of a limiter.
type RateLimiterStats struct {
	Name              string        `json:"name"`
	MaxRequests       int           `json:"max_requests"`
	Window            time.Duration `json:"window"`
	CurrentUsage      int           `json:"current_usage"`
	AvailableRequests int           `json:"available_requests"`
}

// RateLimiter implements a sliding-window rate limiter.
// It records the admission time of every request and admits a new one only
// while fewer than MaxRequests admissions fall inside the trailing window.
type RateLimiter struct {
	config RateLimiterConfig
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error

	mu     sync.Mutex
	window []time.Time // admission timestamps, oldest first
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.MaxRequests <= 0 {
		config.MaxRequests = 30
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		config: config,
		now:    time.Now,
		sleep:  Sleep,
		window: make([]time.Time, 0, config.MaxRequests),
	}
}

// Acquire blocks until a request is admitted or ctx is cancelled.
// Admission is recorded only on success; a cancelled caller leaves the
// window untouched.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := rl.tryAcquire()
		if ok {
			return nil
		}

		if rl.config.OnWait != nil {
			rl.config.OnWait(rl.config.Name, wait)
		}

		if err := rl.sleep(ctx, wait); err != nil {
			return errors.Cancelled(err).WithOp(rl.config.Name)
		}
	}
}

// tryAcquire evicts expired timestamps and admits the caller if there is
// room, all under one lock. Otherwise it returns how long until the oldest
// admission leaves the window.
func (rl *RateLimiter) tryAcquire() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evict(now)

	if len(rl.window) < rl.config.MaxRequests {
		rl.window = append(rl.window, now)
		return 0, true
	}

	return rl.window[0].Add(rl.config.Window).Sub(now), false
}

// evict drops timestamps at or before now-window. Caller holds mu.
func (rl *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-rl.config.Window)
	i := 0
	for i < len(rl.window) && !rl.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rl.window = append(rl.window[:0], rl.window[i:]...)
	}
}

// CurrentUsage returns the number of admissions inside the trailing window.
func (rl *RateLimiter) CurrentUsage() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.evict(rl.now())
	return len(rl.window)
}

// AvailableRequests returns how many requests would be admitted right now.
func (rl *RateLimiter) AvailableRequests() int {
	return max(0, rl.config.MaxRequests-rl.CurrentUsage())
}

// Reset forgets all recorded admissions.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.window = rl.window[:0]
}

// Stats returns a snapshot of the limiter.
func (rl *RateLimiter) Stats() RateLimiterStats {
	usage := rl.CurrentUsage()
	return RateLimiterStats{
		Name:              rl.config.Name,
		MaxRequests:       rl.config.MaxRequests,
		Window:            rl.config.Window,
		CurrentUsage:      usage,
		AvailableRequests: max(0, rl.config.MaxRequests-usage),
	}
}

// Name returns the limiter name.
func (rl *RateLimiter) Name() string {
	return rl.config.Name
}

// MaxRequests returns the window bound.
func (rl *RateLimiter) MaxRequests() int {
	return rl.config.MaxRequests
}

// Window returns the window length.
func (rl *RateLimiter) Window() time.Duration {
	return rl.config.Window
}
