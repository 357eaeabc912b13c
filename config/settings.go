package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/fetchguard/cache"
	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/fetch"
	"github.com/kbukum/fetchguard/httpclient"
	"github.com/kbukum/fetchguard/observability"
	"github.com/kbukum/fetchguard/proxy"
	"github.com/kbukum/fetchguard/redis"
	"github.com/kbukum/fetchguard/resilience"
	"github.com/kbukum/fetchguard/statsapi"
)

// Settings is the file and environment facing configuration. Durations are
// given in seconds; Fetch converts them to the typed orchestrator config.
type Settings struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	RateLimit RateLimitSettings `yaml:"rate_limit" mapstructure:"rate_limit"`
	Proxy     ProxySettings     `yaml:"proxy" mapstructure:"proxy"`
	Breaker   BreakerSettings   `yaml:"breaker" mapstructure:"breaker"`
	Retry     RetrySettings     `yaml:"retry" mapstructure:"retry"`
	Cache     CacheSettings     `yaml:"cache" mapstructure:"cache"`
	HTTP      httpclient.Config `yaml:"http" mapstructure:"http"`
	StatsAPI  statsapi.Config   `yaml:"stats_api" mapstructure:"stats_api"`

	Observability ObservabilitySettings `yaml:"observability" mapstructure:"observability"`
}

// LimitSettings bounds admissions per window.
type LimitSettings struct {
	MaxRequests   int     `yaml:"max_requests" mapstructure:"max_requests" validate:"gte=1"`
	WindowSeconds float64 `yaml:"window_seconds" mapstructure:"window_seconds" validate:"gt=0"`
}

// RateLimitSettings holds the default limit and any named ones.
type RateLimitSettings struct {
	LimitSettings `yaml:",inline" mapstructure:",squash"`
	Named         map[string]LimitSettings `yaml:"named" mapstructure:"named" validate:"dive"`
}

// ProxySettings selects the proxy source. Residential credentials win over
// the proxies list, which wins over a single server.
type ProxySettings struct {
	Enabled     bool                    `yaml:"enabled" mapstructure:"enabled"`
	Rotation    string                  `yaml:"rotation" mapstructure:"rotation" validate:"omitempty,oneof=round_robin random smart"`
	Proxies     []string                `yaml:"proxies" mapstructure:"proxies"`
	Server      string                  `yaml:"server" mapstructure:"server"`
	Username    string                  `yaml:"username" mapstructure:"username"`
	Password    string                  `yaml:"password" mapstructure:"password"`
	Residential proxy.ResidentialConfig `yaml:"residential" mapstructure:"residential"`
}

// BreakerSettings is the template for every circuit breaker.
type BreakerSettings struct {
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=1"`
	TimeoutSeconds   float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"gte=0"`
}

// RetrySettings configures backoff.
type RetrySettings struct {
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	BaseDelaySeconds float64 `yaml:"base_delay_seconds" mapstructure:"base_delay_seconds" validate:"gte=0"`
	MaxDelaySeconds  float64 `yaml:"max_delay_seconds" mapstructure:"max_delay_seconds" validate:"gte=0"`
	BackoffBase      float64 `yaml:"backoff_base" mapstructure:"backoff_base" validate:"gte=1"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`

	// RateLimit applies to HTTP 429 responses, Network to timeouts and
	// connection failures.
	RateLimit RetryOverrideSettings `yaml:"rate_limit" mapstructure:"rate_limit"`
	Network   RetryOverrideSettings `yaml:"network" mapstructure:"network"`
}

// RetryOverrideSettings is the budget for one class of HTTP failure.
type RetryOverrideSettings struct {
	Enabled          bool    `yaml:"enabled" mapstructure:"enabled"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	BaseDelaySeconds float64 `yaml:"base_delay_seconds" mapstructure:"base_delay_seconds" validate:"gte=0"`
	MaxDelaySeconds  float64 `yaml:"max_delay_seconds" mapstructure:"max_delay_seconds" validate:"gte=0"`
}

func (o RetryOverrideSettings) override(preset resilience.RetryOverride) (resilience.RetryOverride, bool) {
	if !o.Enabled {
		return resilience.RetryOverride{}, false
	}
	preset.MaxRetries = o.MaxRetries
	preset.BaseDelay = seconds(o.BaseDelaySeconds)
	preset.MaxDelay = seconds(o.MaxDelaySeconds)
	return preset, true
}

// CacheSettings configures the response cache.
type CacheSettings struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	TTLSeconds float64 `yaml:"ttl_seconds" mapstructure:"ttl_seconds" validate:"gte=0"`
	Backend    string  `yaml:"backend" mapstructure:"backend" validate:"oneof=local redis"`
	// Location is the cache directory, or the redis URL for the redis backend.
	Location string       `yaml:"location" mapstructure:"location"`
	RedisURL string       `yaml:"redis_url" mapstructure:"redis_url"`
	Redis    redis.Config `yaml:"redis" mapstructure:"redis"`
}

// ObservabilitySettings configures OTLP/HTTP export of fetch metrics and
// traces.
type ObservabilitySettings struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint        string  `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Insecure        bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate      float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	IntervalSeconds float64 `yaml:"interval_seconds" mapstructure:"interval_seconds" validate:"gte=0"`
}

// Telemetry converts the settings into the exporter setup, identified by
// the service config.
func (s *Settings) Telemetry() observability.TelemetryConfig {
	return observability.TelemetryConfig{
		Enabled:        s.Observability.Enabled,
		ServiceName:    s.Name,
		ServiceVersion: s.Version,
		Environment:    s.Environment,
		SampleRate:     s.Observability.SampleRate,
		Exporter: observability.ExporterConfig{
			Endpoint: s.Observability.Endpoint,
			Insecure: s.Observability.Insecure,
			Interval: seconds(s.Observability.IntervalSeconds),
		},
	}
}

// ApplyDefaults fills in derived defaults. Values read through LoadConfig
// already carry the static ones.
func (s *Settings) ApplyDefaults() {
	s.ServiceConfig.ApplyDefaults()

	if s.Proxy.Rotation == "" {
		s.Proxy.Rotation = string(proxy.StrategyRoundRobin)
		if s.Proxy.Residential.IsConfigured() {
			s.Proxy.Rotation = string(proxy.StrategySmart)
		}
	}
	s.Proxy.Residential.ApplyDefaults()

	if s.Cache.Backend == "" {
		s.Cache.Backend = string(cache.BackendLocal)
	}
	if s.Cache.Location == "" {
		switch cache.Backend(s.Cache.Backend) {
		case cache.BackendLocal:
			s.Cache.Location = ".cache/" + s.Name
		case cache.BackendRedis:
			s.Cache.Location = s.Cache.RedisURL
		}
	}

	if s.StatsAPI.Service == "" {
		s.StatsAPI.Service = s.Name
	}
	if s.StatsAPI.Version == "" {
		s.StatsAPI.Version = s.Version
	}
	s.StatsAPI.ApplyDefaults()
	s.HTTP.ApplyDefaults()
}

// Validate checks struct rules, then the sections with their own checks.
func (s *Settings) Validate() error {
	if err := s.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validateStruct(s); err != nil {
		return err
	}
	if cache.Backend(s.Cache.Backend) == cache.BackendRedis && s.Cache.Enabled && s.Cache.Location == "" {
		return errors.Configuration("cache.location", "redis backend requires a URL")
	}
	if err := s.HTTP.Validate(); err != nil {
		return err
	}
	return s.StatsAPI.Validate()
}

// Pool resolves the proxy pool by source priority: residential credentials,
// then the proxies list, then a single server. The list and the server are
// only used when proxying is enabled.
func (p *ProxySettings) Pool() ([]proxy.Identity, error) {
	if p.Residential.IsConfigured() {
		return p.Residential.Pool()
	}
	if !p.Enabled {
		return nil, nil
	}

	if len(p.Proxies) > 0 {
		pool := make([]proxy.Identity, 0, len(p.Proxies))
		for i, raw := range p.Proxies {
			id, err := proxy.ParseIdentity(raw)
			if err != nil {
				return nil, errors.Configuration(fmt.Sprintf("proxy.proxies[%d]", i), err.Error())
			}
			pool = append(pool, id)
		}
		return pool, nil
	}

	if p.Server != "" {
		id, err := proxy.ParseIdentity(p.Server)
		if err != nil {
			return nil, errors.Configuration("proxy.server", err.Error())
		}
		if p.Username != "" && p.Password != "" {
			id.Username, id.Password = p.Username, p.Password
		}
		return []proxy.Identity{id}, nil
	}
	return nil, nil
}

// Fetch converts the settings into an orchestrator configuration.
func (s *Settings) Fetch() (fetch.Config, error) {
	pool, err := s.Proxy.Pool()
	if err != nil {
		return fetch.Config{}, err
	}

	cfg := fetch.Config{
		RateLimit: limiterConfig(fetch.DefaultLimiter, s.RateLimit.LimitSettings),
		Proxy: fetch.ProxyConfig{
			Proxies:  pool,
			Strategy: proxy.Strategy(s.Proxy.Rotation),
		},
		Breaker: resilience.CircuitBreakerConfig{
			Name:             fetch.DefaultClass,
			FailureThreshold: s.Breaker.FailureThreshold,
			Timeout:          seconds(s.Breaker.TimeoutSeconds),
		},
		Retry: resilience.RetryConfig{
			MaxRetries:  s.Retry.MaxRetries,
			BaseDelay:   seconds(s.Retry.BaseDelaySeconds),
			MaxDelay:    seconds(s.Retry.MaxDelaySeconds),
			BackoffBase: s.Retry.BackoffBase,
			Jitter:      s.Retry.Jitter,
		},
		Cache: cache.Config{
			Enabled:  s.Cache.Enabled,
			TTL:      seconds(s.Cache.TTLSeconds),
			Backend:  cache.Backend(s.Cache.Backend),
			Location: s.Cache.Location,
			Redis:    s.Cache.Redis,
		},
	}

	// max_retries: 0 turns retrying off, overrides included.
	if s.Retry.MaxRetries > 0 {
		if o, ok := s.Retry.RateLimit.override(resilience.RateLimitOverride(httpclient.IsRateLimit)); ok {
			cfg.Retry.Overrides = append(cfg.Retry.Overrides, o)
		}
		if o, ok := s.Retry.Network.override(resilience.NetworkOverride(isNetworkFailure)); ok {
			cfg.Retry.Overrides = append(cfg.Retry.Overrides, o)
		}
	}

	names := make([]string, 0, len(s.RateLimit.Named))
	for name := range s.RateLimit.Named {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cfg.NamedLimits = append(cfg.NamedLimits, limiterConfig(name, s.RateLimit.Named[name]))
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fetch.Config{}, err
	}
	return cfg, nil
}

func limiterConfig(name string, l LimitSettings) resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		Name:        name,
		MaxRequests: l.MaxRequests,
		Window:      seconds(l.WindowSeconds),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func isNetworkFailure(err error) bool {
	return httpclient.IsTimeout(err) || httpclient.IsConnection(err)
}
