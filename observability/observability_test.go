package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMetrics(t *testing.T) (*FetchMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp, err := NewMeterProvider(DefaultMeterConfig("test"), reader)
	if err != nil {
		t.Fatalf("NewMeterProvider: %v", err)
	}
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewFetchMetrics(mp.Meter(TracerName))
	if err != nil {
		t.Fatalf("NewFetchMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

// sumFor returns the counter value for the data point carrying attr=value.
func sumFor(t *testing.T, data metricdata.Aggregation, attr, value string) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(attr)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.SetGlobal {
		t.Error("expected SetGlobal to default to false")
	}
}

func TestFetchMetrics_CacheLookups(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, CacheHit)
	m.RecordCacheLookup(ctx, CacheHit)
	m.RecordCacheLookup(ctx, CacheMiss)

	data := collect(t, reader)
	lookups := data["fetchguard.cache.lookups"]
	if got := sumFor(t, lookups, AttrResult, CacheHit); got != 2 {
		t.Errorf("expected 2 hits, got %d", got)
	}
	if got := sumFor(t, lookups, AttrResult, CacheMiss); got != 1 {
		t.Errorf("expected 1 miss, got %d", got)
	}
}

func TestFetchMetrics_FetchOutcomes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordFetch(ctx, "listing", OutcomeSuccess, 20*time.Millisecond)
	m.RecordFetch(ctx, "listing", "breaker_open", time.Millisecond)
	m.RecordRetry(ctx, "listing")
	m.RecordProxyOutcome(ctx, false)
	m.RecordBreakerTransition(ctx, "listing", "CLOSED", "OPEN")
	m.RecordRateLimitWait(ctx, "default", 2*time.Second)

	data := collect(t, reader)
	if got := sumFor(t, data["fetchguard.fetch.total"], AttrOutcome, "breaker_open"); got != 1 {
		t.Errorf("expected 1 breaker_open fetch, got %d", got)
	}
	if got := sumFor(t, data["fetchguard.retry.total"], AttrClass, "listing"); got != 1 {
		t.Errorf("expected 1 retry, got %d", got)
	}
	if got := sumFor(t, data["fetchguard.proxy.outcomes"], AttrResult, "failure"); got != 1 {
		t.Errorf("expected 1 proxy failure, got %d", got)
	}
	if got := sumFor(t, data["fetchguard.breaker.transitions"], "to", "OPEN"); got != 1 {
		t.Errorf("expected 1 transition to OPEN, got %d", got)
	}

	hist, ok := data["fetchguard.ratelimit.wait"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("expected one wait histogram point, got %#v", data["fetchguard.ratelimit.wait"])
	}
	if hist.DataPoints[0].Sum != 2 {
		t.Errorf("expected 2s recorded wait, got %v", hist.DataPoints[0].Sum)
	}
}

func TestFetchMetrics_Nil(t *testing.T) {
	var m *FetchMetrics
	ctx := context.Background()

	m.RecordCacheLookup(ctx, CacheHit)
	m.RecordFetch(ctx, "c", OutcomeSuccess, time.Second)
	m.RecordRetry(ctx, "c")
	m.RecordProxyOutcome(ctx, true)
	m.RecordBreakerTransition(ctx, "c", "OPEN", "HALF_OPEN")
	m.RecordRateLimitWait(ctx, "l", time.Second)
}

func TestNewFetchMetrics_Noop(t *testing.T) {
	m, err := NewFetchMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	m.RecordCacheLookup(context.Background(), CacheError)
}

func TestNewTracerProvider(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(DefaultTracerConfig("test"), exporter)
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}

	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer(TracerName).Start(context.Background(), SpanFetch)
	span.End()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	// Shutdown resets the in-memory exporter, so read before it runs.
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != SpanFetch {
		t.Fatalf("expected one %s span, got %d", SpanFetch, len(spans))
	}
	var found bool
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "test" {
			found = true
		}
	}
	if !found {
		t.Error("expected service.name on the resource")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		want       string
	}{
		{"always sample", 1.0, "AlwaysOnSampler"},
		{"never sample", 0.0, "AlwaysOffSampler"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sampler(tc.sampleRate).Description(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSetSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	SetSpanError(span, nil)
	SetSpanError(span, errors.New("upstream failed"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status().Code)
	}
	if len(ended[0].Events()) != 1 {
		t.Errorf("expected one recorded error event, got %d", len(ended[0].Events()))
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("svc", "1.0.0")
	if sh.HTTPStatus() != http.StatusOK {
		t.Errorf("expected 200 for a fresh report")
	}

	sh.AddComponent(Health{Name: "cache", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDegraded || sh.HTTPStatus() != http.StatusOK {
		t.Errorf("expected degraded and 200, got %s/%d", sh.Status, sh.HTTPStatus())
	}

	sh.AddComponent(Health{Name: "breaker:listing", Status: HealthStatusDown})
	if sh.Status != HealthStatusDown || sh.HTTPStatus() != http.StatusServiceUnavailable {
		t.Errorf("expected down and 503, got %s/%d", sh.Status, sh.HTTPStatus())
	}

	sh.AddComponent(Health{Name: "proxies", Status: HealthStatusDegraded})
	if sh.Status != HealthStatusDown {
		t.Error("degraded must not override down")
	}
	if len(sh.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(sh.Components))
	}
}

type collectorStub struct {
	mu    sync.Mutex
	paths map[string]int
}

func (c *collectorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.paths[r.URL.Path]++
	c.mu.Unlock()
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
}

func (c *collectorStub) hits(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func TestOTLPExporters_PushToCollector(t *testing.T) {
	stub := &collectorStub{paths: map[string]int{}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	ctx := context.Background()
	cfg := ExporterConfig{Endpoint: strings.TrimPrefix(srv.URL, "http://"), Insecure: true}

	reader, err := NewMetricReader(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMetricReader: %v", err)
	}
	mp, err := NewMeterProvider(DefaultMeterConfig("test"), reader)
	if err != nil {
		t.Fatalf("NewMeterProvider: %v", err)
	}
	m, err := NewFetchMetrics(mp.Meter(TracerName))
	if err != nil {
		t.Fatalf("NewFetchMetrics: %v", err)
	}
	m.RecordRetry(ctx, "default")
	if err := mp.ForceFlush(ctx); err != nil {
		t.Fatalf("meter ForceFlush: %v", err)
	}
	_ = mp.Shutdown(ctx)

	exp, err := NewTraceExporter(ctx, cfg)
	if err != nil {
		t.Fatalf("NewTraceExporter: %v", err)
	}
	tp, err := NewTracerProvider(DefaultTracerConfig("test"), exp)
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	_, span := tp.Tracer(TracerName).Start(ctx, SpanFetch)
	span.End()
	if err := tp.ForceFlush(ctx); err != nil {
		t.Fatalf("tracer ForceFlush: %v", err)
	}
	_ = tp.Shutdown(ctx)

	if stub.hits("/v1/metrics") == 0 {
		t.Error("expected a push to /v1/metrics")
	}
	if stub.hits("/v1/traces") == 0 {
		t.Error("expected a push to /v1/traces")
	}
}

func TestSetup(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		tel, err := Setup(context.Background(), TelemetryConfig{})
		if err != nil {
			t.Fatalf("Setup: %v", err)
		}
		if tel.Enabled() || tel.Meter() != nil || tel.Tracer() != nil {
			t.Error("expected disabled telemetry")
		}
		if err := tel.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		stub := &collectorStub{paths: map[string]int{}}
		srv := httptest.NewServer(stub)
		defer srv.Close()

		ctx := context.Background()
		tel, err := Setup(ctx, TelemetryConfig{
			Enabled:     true,
			ServiceName: "test",
			SampleRate:  1,
			Exporter:    ExporterConfig{Endpoint: strings.TrimPrefix(srv.URL, "http://"), Insecure: true},
		})
		if err != nil {
			t.Fatalf("Setup: %v", err)
		}
		defer tel.Shutdown(ctx)

		m, err := NewFetchMetrics(tel.Meter())
		if err != nil {
			t.Fatalf("NewFetchMetrics: %v", err)
		}
		m.RecordCacheLookup(ctx, CacheMiss)
		_, span := tel.Tracer().Start(ctx, SpanFetch)
		span.End()

		if err := tel.ForceFlush(ctx); err != nil {
			t.Fatalf("ForceFlush: %v", err)
		}
		if metrics, traces := stub.hits("/v1/metrics"), stub.hits("/v1/traces"); metrics == 0 || traces == 0 {
			t.Errorf("expected metric and trace pushes, got metrics=%d traces=%d", metrics, traces)
		}
	})
}
