package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterConfig points the OTLP/HTTP exporters at a collector.
type ExporterConfig struct {
	// Endpoint is the collector host:port, without scheme.
	Endpoint string
	// Insecure disables TLS.
	Insecure bool
	// Interval is how often metrics are pushed. Zero uses the SDK default.
	Interval time.Duration
}

// DefaultExporterConfig targets a local collector.
func DefaultExporterConfig() ExporterConfig {
	return ExporterConfig{
		Endpoint: "localhost:4318",
		Insecure: true,
		Interval: 15 * time.Second,
	}
}

// NewMetricReader creates a periodic reader that pushes to an OTLP/HTTP
// collector. The exporter does not connect until the first push.
func NewMetricReader(ctx context.Context, config ExporterConfig) (sdkmetric.Reader, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}
	return sdkmetric.NewPeriodicReader(exporter, readerOpts...), nil
}

// NewTraceExporter creates an OTLP/HTTP span exporter.
func NewTraceExporter(ctx context.Context, config ExporterConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return exporter, nil
}
