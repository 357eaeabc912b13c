package fetch

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/fetchguard/cache"
	"github.com/kbukum/fetchguard/logger"
)

type options struct {
	log    *logger.Logger
	cache  cache.Cache
	meter  metric.Meter
	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*options)

// WithLogger sets the orchestrator's logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithCache uses c instead of building one from Config.Cache. The caller
// keeps ownership; Close does not close it.
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithMeter records fetch metrics on meter.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithTracer traces fetches with tracer instead of the global one.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}
