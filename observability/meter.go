package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/fetchguard/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// SetGlobal installs the provider as the otel global.
	SetGlobal bool
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
	}
}

// NewMeterProvider builds a meter provider that feeds the given readers.
// Exporting is left to the caller's readers.
func NewMeterProvider(config MeterConfig, readers ...sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(opts...)

	if config.SetGlobal {
		otel.SetMeterProvider(mp)
	}

	logger.Get(logger.ComponentObservability).Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"readers", len(readers),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// OutcomeSuccess labels a fetch that returned a value from upstream.
const OutcomeSuccess = "success"

// FetchMetrics holds the instruments recorded by the fetch orchestrator.
// A nil *FetchMetrics records nothing.
type FetchMetrics struct {
	cacheLookups      metric.Int64Counter
	fetchTotal        metric.Int64Counter
	fetchDuration     metric.Float64Histogram
	retryTotal        metric.Int64Counter
	proxyOutcomes     metric.Int64Counter
	breakerTransition metric.Int64Counter
	rateLimitWait     metric.Float64Histogram
}

// NewFetchMetrics creates metric instruments on the given meter.
func NewFetchMetrics(meter metric.Meter) (*FetchMetrics, error) {
	cacheLookups, err := meter.Int64Counter("fetchguard.cache.lookups",
		metric.WithDescription("Cache lookups by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.cache.lookups counter: %w", err)
	}

	fetchTotal, err := meter.Int64Counter("fetchguard.fetch.total",
		metric.WithDescription("Fetches that reached upstream or a gate, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.fetch.total counter: %w", err)
	}

	fetchDuration, err := meter.Float64Histogram("fetchguard.fetch.duration",
		metric.WithDescription("Duration of fetches in seconds, including waits and retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.fetch.duration histogram: %w", err)
	}

	retryTotal, err := meter.Int64Counter("fetchguard.retry.total",
		metric.WithDescription("Retries scheduled after a failed attempt"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.retry.total counter: %w", err)
	}

	proxyOutcomes, err := meter.Int64Counter("fetchguard.proxy.outcomes",
		metric.WithDescription("Outcomes reported against proxies"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.proxy.outcomes counter: %w", err)
	}

	breakerTransition, err := meter.Int64Counter("fetchguard.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.breaker.transitions counter: %w", err)
	}

	rateLimitWait, err := meter.Float64Histogram("fetchguard.ratelimit.wait",
		metric.WithDescription("Time callers were told to wait for a rate limit slot"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fetchguard.ratelimit.wait histogram: %w", err)
	}

	return &FetchMetrics{
		cacheLookups:      cacheLookups,
		fetchTotal:        fetchTotal,
		fetchDuration:     fetchDuration,
		retryTotal:        retryTotal,
		proxyOutcomes:     proxyOutcomes,
		breakerTransition: breakerTransition,
		rateLimitWait:     rateLimitWait,
	}, nil
}

// RecordCacheLookup records a cache lookup result (CacheHit, CacheMiss or CacheError).
func (m *FetchMetrics) RecordCacheLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

// RecordFetch records a completed fetch. outcome is OutcomeSuccess or an error kind.
func (m *FetchMetrics) RecordFetch(ctx context.Context, class, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClass, class),
		attribute.String(AttrOutcome, outcome),
	))
	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrClass, class),
	))
}

// RecordRetry records one scheduled retry.
func (m *FetchMetrics) RecordRetry(ctx context.Context, class string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrClass, class)))
}

// RecordProxyOutcome records a success or failure reported against a proxy.
func (m *FetchMetrics) RecordProxyOutcome(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = OutcomeSuccess
	}
	m.proxyOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, result)))
}

// RecordBreakerTransition records a breaker moving between states.
func (m *FetchMetrics) RecordBreakerTransition(ctx context.Context, breaker, from, to string) {
	if m == nil {
		return
	}
	m.breakerTransition.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrBreaker, breaker),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRateLimitWait records a suspension announced by a rate limiter.
func (m *FetchMetrics) RecordRateLimitWait(ctx context.Context, limiter string, wait time.Duration) {
	if m == nil {
		return
	}
	m.rateLimitWait.Record(ctx, wait.Seconds(), metric.WithAttributes(
		attribute.String(AttrLimiter, limiter),
	))
}
