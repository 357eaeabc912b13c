package fetch

import (
	"testing"
	"time"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/resilience"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.RateLimit.Name != DefaultLimiter || cfg.RateLimit.MaxRequests != 30 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("unexpected rate limit defaults %+v", cfg.RateLimit)
	}
	if cfg.Breaker.FailureThreshold != 5 || cfg.Breaker.Timeout != time.Minute {
		t.Errorf("unexpected breaker defaults %+v", cfg.Breaker)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("expected MaxRetries to stay zero, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != time.Second || cfg.Retry.BackoffBase != 2 {
		t.Errorf("unexpected retry defaults %+v", cfg.Retry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max requests", func(c *Config) { c.RateLimit.MaxRequests = -1 }},
		{"negative window", func(c *Config) { c.RateLimit.Window = -time.Second }},
		{"unnamed limiter", func(c *Config) {
			c.NamedLimits = []resilience.RateLimiterConfig{{MaxRequests: 1, Window: time.Second}}
		}},
		{"duplicate limiter", func(c *Config) {
			c.NamedLimits = []resilience.RateLimiterConfig{{Name: DefaultLimiter, MaxRequests: 1, Window: time.Second}}
		}},
		{"unknown strategy", func(c *Config) { c.Proxy.Strategy = "fastest" }},
		{"negative threshold", func(c *Config) { c.Breaker.FailureThreshold = -1 }},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }},
		{"shrinking backoff", func(c *Config) { c.Retry.BackoffBase = 0.5 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			cfg.ApplyDefaults()
			if err := cfg.Validate(); !errors.IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}
