package observability

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/fetchguard/logger"
)

// TelemetryConfig selects what Setup exports.
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	Exporter       ExporterConfig
}

// Telemetry owns the meter and tracer providers pushing to an OTLP collector.
// The zero value is disabled and every method is safe on it.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// Setup builds OTLP/HTTP providers for cfg. A disabled config returns a
// disabled Telemetry without touching the network.
func Setup(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	reader, err := NewMetricReader(ctx, cfg.Exporter)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(MeterConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
	}, reader)
	if err != nil {
		return nil, err
	}

	exporter, err := NewTraceExporter(ctx, cfg.Exporter)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	tp, err := NewTracerProvider(TracerConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		SampleRate:     cfg.SampleRate,
		SetGlobal:      true,
	}, exporter)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	logger.Get(logger.ComponentObservability).Info("telemetry export enabled", logger.Fields(
		"endpoint", cfg.Exporter.Endpoint,
		"interval", cfg.Exporter.Interval.String(),
	))
	return &Telemetry{meterProvider: mp, tracerProvider: tp}, nil
}

// Enabled reports whether providers were built.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.meterProvider != nil
}

// Meter returns the fetchguard meter, or nil when disabled.
func (t *Telemetry) Meter() metric.Meter {
	if !t.Enabled() {
		return nil
	}
	return t.meterProvider.Meter(TracerName)
}

// Tracer returns the fetchguard tracer, or nil when disabled.
func (t *Telemetry) Tracer() trace.Tracer {
	if !t.Enabled() {
		return nil
	}
	return t.tracerProvider.Tracer(TracerName)
}

// ForceFlush pushes everything recorded so far.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return stderrors.Join(t.meterProvider.ForceFlush(ctx), t.tracerProvider.ForceFlush(ctx))
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return stderrors.Join(t.meterProvider.Shutdown(ctx), t.tracerProvider.Shutdown(ctx))
}
