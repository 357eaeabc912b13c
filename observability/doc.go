// Package observability provides OpenTelemetry metrics and tracing for
// fetchguard, plus the health report shape used by the operator API.
//
// Metrics:
//
//	mp, err := observability.NewMeterProvider(observability.DefaultMeterConfig("scraper"), reader)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewFetchMetrics(mp.Meter(observability.TracerName))
//	metrics.RecordCacheLookup(ctx, observability.CacheHit)
//
// Tracing:
//
//	tp, err := observability.NewTracerProvider(observability.DefaultTracerConfig("scraper"), exporter)
//	defer tp.Shutdown(ctx)
//
// Health:
//
//	health := observability.NewServiceHealth("scraper", "1.0.0")
//	health.AddComponent(observability.Health{Name: "breaker:default", Status: observability.HealthStatusUp})
package observability
