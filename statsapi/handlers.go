package statsapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/fetchguard/cache"
	"github.com/kbukum/fetchguard/fetch"
	"github.com/kbukum/fetchguard/observability"
	"github.com/kbukum/fetchguard/proxy"
	"github.com/kbukum/fetchguard/resilience"
)

const (
	pathStats         = "/stats"
	pathHealth        = "/health"
	pathMetrics       = "/metrics"
	pathResetBreakers = "/breakers/reset"
	pathResetProxies  = "/proxies/reset"
	pathCheckProxies  = "/proxies/check"
)

// proxyEvaluatedRequests is how many outcomes an endpoint needs before an
// empty healthy count marks the pool degraded.
const proxyEvaluatedRequests = 5

// Source is the orchestrator surface the server reads and resets.
type Source interface {
	Stats(ctx context.Context) fetch.Stats
	Proxies() *proxy.Manager
	Breakers() *resilience.BreakerRegistry
}

func statsHandler(src Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Stats(c.Request.Context()))
	}
}

func healthHandler(cfg Config, src Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := Health(cfg.Service, cfg.Version, src.Stats(c.Request.Context()))
		c.JSON(sh.HTTPStatus(), sh)
	}
}

func resetBreakersHandler(src Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		src.Breakers().ResetAll()
		c.Status(http.StatusNoContent)
	}
}

func resetProxiesHandler(src Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		src.Proxies().ResetStats()
		c.Status(http.StatusNoContent)
	}
}

// checkProxiesHandler checks every pool entry through the IP echo. Results
// are reported only; they do not feed the rotation statistics.
func checkProxiesHandler(cfg Config, src Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := proxy.CheckPool(c.Request.Context(), src.Proxies().Pool(), proxy.WithCheckURL(cfg.ProxyCheckURL))
		ok := 0
		for _, r := range results {
			if r.OK {
				ok++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"checked":   len(results),
			"connected": ok,
			"results":   results,
		})
	}
}

// Health derives a service health summary from a snapshot. An open breaker
// makes the service down; a half-open breaker or a pool with no healthy
// proxy after evaluation makes it degraded.
func Health(service, version string, s fetch.Stats) *observability.ServiceHealth {
	sh := observability.NewServiceHealth(service, version)

	names := make([]string, 0, len(s.Breakers))
	for name := range s.Breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sh.AddComponent(breakerHealth(s.Breakers[name]))
	}

	sh.AddComponent(cacheHealth(s.Cache))
	sh.AddComponent(proxyHealth(s.Proxies))
	return sh
}

func breakerHealth(b resilience.CircuitBreakerStats) observability.Health {
	h := observability.Health{
		Name:   "breaker:" + b.Name,
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"state":    b.State.String(),
			"failures": strconv.Itoa(b.Failures),
		},
	}
	switch b.State {
	case resilience.StateOpen:
		h.Status = observability.HealthStatusDown
		h.Message = "circuit open"
	case resilience.StateHalfOpen:
		h.Status = observability.HealthStatusDegraded
		h.Message = "circuit probing"
	}
	return h
}

func cacheHealth(cs cache.Stats) observability.Health {
	h := observability.Health{
		Name:   "cache",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"backend": string(cs.Backend),
			"entries": strconv.FormatInt(cs.Entries, 10),
		},
	}
	if !cs.Enabled {
		h.Message = "disabled"
	}
	return h
}

func proxyHealth(ps fetch.ProxyStats) observability.Health {
	h := observability.Health{
		Name:   "proxies",
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"strategy": string(ps.Strategy),
			"healthy":  strconv.Itoa(ps.Healthy),
			"total":    strconv.Itoa(ps.Total),
		},
	}
	if !ps.Enabled {
		h.Message = "direct connections"
		return h
	}
	if ps.Healthy > 0 {
		return h
	}
	for _, st := range ps.Endpoints {
		if st.TotalRequests > proxyEvaluatedRequests {
			h.Status = observability.HealthStatusDegraded
			h.Message = "no healthy proxy"
			break
		}
	}
	return h
}
