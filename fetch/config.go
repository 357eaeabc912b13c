package fetch

import (
	"fmt"
	"time"

	"github.com/kbukum/fetchguard/cache"
	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/proxy"
	"github.com/kbukum/fetchguard/resilience"
)

// DefaultLimiter names the limiter used when a request does not pick one.
const DefaultLimiter = "default"

// DefaultClass names the breaker used when a request does not pick a class.
const DefaultClass = "default"

// ProxyConfig configures the proxy pool. An empty pool disables proxying.
type ProxyConfig struct {
	Proxies  []proxy.Identity `mapstructure:"proxies"`
	Strategy proxy.Strategy   `mapstructure:"strategy"`
}

// Config configures an Orchestrator.
type Config struct {
	// RateLimit configures the default limiter.
	RateLimit resilience.RateLimiterConfig `mapstructure:"rate_limit"`
	// NamedLimits are extra limiters addressed by Request.Limiter.
	NamedLimits []resilience.RateLimiterConfig `mapstructure:"named_limits"`
	Proxy       ProxyConfig                    `mapstructure:"proxy"`
	// Breaker is the template for the per-class circuit breakers.
	Breaker resilience.CircuitBreakerConfig `mapstructure:"breaker"`
	Retry   resilience.RetryConfig          `mapstructure:"retry"`
	Cache   cache.Config                    `mapstructure:"cache"`
}

// DefaultConfig returns the stock policy: 30 requests a minute, 5 failures
// open a breaker for 60s, 3 retries from 1s doubling to 60s, and a one hour
// local cache.
func DefaultConfig() Config {
	return Config{
		RateLimit: resilience.DefaultRateLimiterConfig(DefaultLimiter),
		Proxy:     ProxyConfig{Strategy: proxy.StrategyRoundRobin},
		Breaker:   resilience.DefaultCircuitBreakerConfig(DefaultClass),
		Retry:     resilience.DefaultRetryConfig(),
		Cache: cache.Config{
			Enabled: true,
			TTL:     time.Hour,
			Backend: cache.BackendLocal,
		},
	}
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
// Retry.MaxRetries is left alone; zero means no retries.
func (c *Config) ApplyDefaults() {
	if c.RateLimit.Name == "" {
		c.RateLimit.Name = DefaultLimiter
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 30
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Proxy.Strategy == "" {
		c.Proxy.Strategy = proxy.StrategyRoundRobin
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = 60 * time.Second
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 60 * time.Second
	}
	if c.Retry.BackoffBase == 0 {
		c.Retry.BackoffBase = 2.0
	}
	c.Cache.ApplyDefaults()
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validateLimit("rate_limit", c.RateLimit); err != nil {
		return err
	}
	seen := map[string]bool{c.RateLimit.Name: true}
	for i, l := range c.NamedLimits {
		field := fmt.Sprintf("rate_limit.named[%d]", i)
		if l.Name == "" {
			return errors.Configuration(field, "limiter name is required")
		}
		if seen[l.Name] {
			return errors.Configuration(field, "duplicate limiter name "+l.Name)
		}
		seen[l.Name] = true
		if err := validateLimit(field, l); err != nil {
			return err
		}
	}

	if _, err := proxy.ParseStrategy(string(c.Proxy.Strategy)); err != nil {
		return err
	}

	if c.Breaker.FailureThreshold < 1 {
		return errors.Configuration("breaker.failure_threshold", "must be at least 1")
	}
	if c.Breaker.Timeout < 0 {
		return errors.Configuration("breaker.timeout", "must not be negative")
	}

	if c.Retry.MaxRetries < 0 {
		return errors.Configuration("retry.max_retries", "must not be negative")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return errors.Configuration("retry.delay", "delays must not be negative")
	}
	if c.Retry.BackoffBase < 1 {
		return errors.Configuration("retry.backoff_base", "must be at least 1")
	}

	return c.Cache.Validate()
}

func validateLimit(field string, l resilience.RateLimiterConfig) error {
	if l.MaxRequests < 1 {
		return errors.Configuration(field+".max_requests", "must be at least 1")
	}
	if l.Window <= 0 {
		return errors.Configuration(field+".window", "must be positive")
	}
	return nil
}
