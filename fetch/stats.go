package fetch

import (
	"context"

	"github.com/kbukum/fetchguard/cache"
	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/proxy"
	"github.com/kbukum/fetchguard/resilience"
)

// ProxyStats summarises the proxy pool.
type ProxyStats struct {
	Enabled   bool                   `json:"enabled"`
	Strategy  proxy.Strategy         `json:"strategy"`
	Healthy   int                    `json:"healthy"`
	Total     int                    `json:"total"`
	Endpoints map[string]proxy.Stats `json:"endpoints"`
}

// Stats is a read-only snapshot of every gate.
type Stats struct {
	Cache      cache.Stats                               `json:"cache"`
	Proxies    ProxyStats                                `json:"proxies"`
	RateLimits map[string]resilience.RateLimiterStats    `json:"rate_limits"`
	Breakers   map[string]resilience.CircuitBreakerStats `json:"breakers"`
}

// AnyBreakerOpen reports whether the snapshot holds an open breaker.
func (s Stats) AnyBreakerOpen() bool {
	for _, b := range s.Breakers {
		if b.State == resilience.StateOpen {
			return true
		}
	}
	return false
}

// Stats returns a snapshot. A failing cache backend is logged and reported
// with whatever it could gather.
func (o *Orchestrator[T]) Stats(ctx context.Context) Stats {
	cs, err := o.cache.Stats(ctx)
	if err != nil {
		o.log.Warn("cache stats unavailable", map[string]interface{}{
			logger.FieldBackend: string(cs.Backend),
			logger.FieldError:   err.Error(),
		})
	}

	return Stats{
		Cache: cs,
		Proxies: ProxyStats{
			Enabled:   o.proxies.Enabled(),
			Strategy:  o.proxies.Strategy(),
			Healthy:   o.proxies.HealthyCount(),
			Total:     o.proxies.TotalCount(),
			Endpoints: o.proxies.Stats(),
		},
		RateLimits: o.limiters.Stats(),
		Breakers:   o.breakers.Stats(),
	}
}
