package resilience

import (
	"context"
	"sort"
	"sync"
)

// LimiterRegistry holds independently configured rate limiters addressed by
// resource class name.
type LimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
}

// NewLimiterRegistry creates an empty registry.
func NewLimiterRegistry() *LimiterRegistry {
	return &LimiterRegistry{limiters: make(map[string]*RateLimiter)}
}

// Register creates a limiter from cfg and stores it under cfg.Name,
// replacing any previous limiter with that name.
func (r *LimiterRegistry) Register(cfg RateLimiterConfig) *RateLimiter {
	rl := NewRateLimiter(cfg)
	r.mu.Lock()
	r.limiters[cfg.Name] = rl
	r.mu.Unlock()
	return rl
}

// Get returns the limiter registered under name.
func (r *LimiterRegistry) Get(name string) (*RateLimiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rl, ok := r.limiters[name]
	return rl, ok
}

// Acquire acquires a slot from the named limiter. Unknown names admit
// immediately.
func (r *LimiterRegistry) Acquire(ctx context.Context, name string) error {
	rl, ok := r.Get(name)
	if !ok {
		return nil
	}
	return rl.Acquire(ctx)
}

// Names returns the registered limiter names in sorted order.
func (r *LimiterRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.limiters))
	for name := range r.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResetAll clears every limiter's window.
func (r *LimiterRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rl := range r.limiters {
		rl.Reset()
	}
}

// Stats returns a snapshot of every limiter keyed by name.
func (r *LimiterRegistry) Stats() map[string]RateLimiterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]RateLimiterStats, len(r.limiters))
	for name, rl := range r.limiters {
		out[name] = rl.Stats()
	}
	return out
}

// BreakerRegistry holds one circuit breaker per operation class, created on
// first use from a shared template.
type BreakerRegistry struct {
	template CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry whose breakers copy template with
// their own name.
func NewBreakerRegistry(template CircuitBreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		template: template,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for class, creating it if needed.
func (r *BreakerRegistry) Get(class string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[class]; ok {
		return cb
	}
	cfg := r.template
	cfg.Name = class
	cb := NewCircuitBreaker(cfg)
	r.breakers[class] = cb
	return cb
}

// AnyOpen reports whether any breaker is currently open.
func (r *BreakerRegistry) AnyOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.breakers {
		if cb.State() == StateOpen {
			return true
		}
	}
	return false
}

// ResetAll closes every breaker.
func (r *BreakerRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// Stats returns a snapshot of every breaker keyed by operation class.
func (r *BreakerRegistry) Stats() map[string]CircuitBreakerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]CircuitBreakerStats, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Stats()
	}
	return out
}
