package fetch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fetchguard"

var (
	cacheEntriesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "entries"),
		"Number of entries in the cache", nil, nil)
	cacheSizeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "cache", "size_bytes"),
		"Total stored size of cache entries", nil, nil)
	proxyRequestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "proxy", "requests_total"),
		"Outcomes reported per proxy", []string{"proxy", "result"}, nil)
	proxySuccessRateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "proxy", "success_rate"),
		"Success rate per proxy (1 when untested)", []string{"proxy"}, nil)
	proxiesHealthyDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "proxies", "healthy"),
		"Proxies above the health threshold", nil, nil)
	proxiesTotalDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "proxies", "total"),
		"Proxies in the pool", nil, nil)
	limiterUsageDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "ratelimit", "usage"),
		"Admissions inside the current window", []string{"limiter"}, nil)
	limiterAvailableDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "ratelimit", "available"),
		"Admissions still available in the current window", []string{"limiter"}, nil)
	breakerStateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "circuit_breaker", "state"),
		"Circuit breaker state (0=closed, 1=open, 2=half-open)", []string{"breaker"}, nil)
	breakerFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "circuit_breaker", "failures"),
		"Failures counted by the breaker", []string{"breaker"}, nil)
)

// StatsSource produces a snapshot for the collector.
type StatsSource interface {
	Stats(ctx context.Context) Stats
}

// Collector exports a StatsSource snapshot on every scrape.
type Collector struct {
	source  StatsSource
	timeout time.Duration
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over source, typically an Orchestrator.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source, timeout: 5 * time.Second}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheEntriesDesc
	ch <- cacheSizeDesc
	ch <- proxyRequestsDesc
	ch <- proxySuccessRateDesc
	ch <- proxiesHealthyDesc
	ch <- proxiesTotalDesc
	ch <- limiterUsageDesc
	ch <- limiterAvailableDesc
	ch <- breakerStateDesc
	ch <- breakerFailuresDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	s := c.source.Stats(ctx)

	ch <- prometheus.MustNewConstMetric(cacheEntriesDesc, prometheus.GaugeValue, float64(s.Cache.Entries))
	ch <- prometheus.MustNewConstMetric(cacheSizeDesc, prometheus.GaugeValue, float64(s.Cache.SizeBytes))

	for endpoint, ps := range s.Proxies.Endpoints {
		ch <- prometheus.MustNewConstMetric(proxyRequestsDesc, prometheus.CounterValue, float64(ps.SuccessCount), endpoint, "success")
		ch <- prometheus.MustNewConstMetric(proxyRequestsDesc, prometheus.CounterValue, float64(ps.FailureCount), endpoint, "failure")
		ch <- prometheus.MustNewConstMetric(proxySuccessRateDesc, prometheus.GaugeValue, ps.SuccessRate, endpoint)
	}
	ch <- prometheus.MustNewConstMetric(proxiesHealthyDesc, prometheus.GaugeValue, float64(s.Proxies.Healthy))
	ch <- prometheus.MustNewConstMetric(proxiesTotalDesc, prometheus.GaugeValue, float64(s.Proxies.Total))

	for name, ls := range s.RateLimits {
		ch <- prometheus.MustNewConstMetric(limiterUsageDesc, prometheus.GaugeValue, float64(ls.CurrentUsage), name)
		ch <- prometheus.MustNewConstMetric(limiterAvailableDesc, prometheus.GaugeValue, float64(ls.AvailableRequests), name)
	}

	for name, bs := range s.Breakers {
		ch <- prometheus.MustNewConstMetric(breakerStateDesc, prometheus.GaugeValue, float64(bs.State), name)
		ch <- prometheus.MustNewConstMetric(breakerFailuresDesc, prometheus.GaugeValue, float64(bs.Failures), name)
	}
}
