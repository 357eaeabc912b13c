package fetch

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/kbukum/fetchguard/cache"
	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/observability"
	"github.com/kbukum/fetchguard/proxy"
	"github.com/kbukum/fetchguard/resilience"
)

// Operation performs one upstream attempt. p is nil when proxying is
// disabled. Failures should be classified with errors.Transient or
// errors.Permanent; unclassified failures are retried.
type Operation[T any] func(ctx context.Context, p *proxy.Identity) (T, error)

// Request identifies a fetch.
type Request struct {
	// Class selects the circuit breaker. Defaults to DefaultClass.
	Class string
	// Limiter selects the rate limiter. Defaults to DefaultLimiter.
	Limiter string
	// Key is the cache key, usually from Key. Empty skips the cache and
	// duplicate suppression.
	Key string
}

func (r Request) normalize() Request {
	if r.Class == "" {
		r.Class = DefaultClass
	}
	if r.Limiter == "" {
		r.Limiter = DefaultLimiter
	}
	return r
}

// Orchestrator runs fetches through the resilience gates. Values of T are
// cached as JSON. Safe for concurrent use.
type Orchestrator[T any] struct {
	cfg       Config
	cache     cache.Cache
	ownsCache bool
	limiters  *resilience.LimiterRegistry
	proxies   *proxy.Manager
	breakers  *resilience.BreakerRegistry
	metrics   *observability.FetchMetrics
	tracer    trace.Tracer
	log       *logger.Logger

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// New validates cfg and builds an orchestrator. Only an invalid
// configuration is an error; an unreachable cache backend disables caching.
func New[T any](ctx context.Context, cfg Config, opts ...Option) (*Orchestrator[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.OrGet(o.log, logger.ComponentFetch)

	var metrics *observability.FetchMetrics
	if o.meter != nil {
		m, err := observability.NewFetchMetrics(o.meter)
		if err != nil {
			return nil, err
		}
		metrics = m
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}

	orch := &Orchestrator[T]{
		cfg:      cfg,
		metrics:  metrics,
		tracer:   tracer,
		log:      log,
		limiters: resilience.NewLimiterRegistry(),
		flights:  make(map[string]*flight),
	}

	for _, lc := range append([]resilience.RateLimiterConfig{cfg.RateLimit}, cfg.NamedLimits...) {
		orch.limiters.Register(orch.observeLimiter(lc))
	}

	pm, err := proxy.NewManager(cfg.Proxy.Proxies, cfg.Proxy.Strategy, proxy.WithLogger(logger.Sub(log, logger.ComponentProxy)))
	if err != nil {
		return nil, err
	}
	orch.proxies = pm

	orch.breakers = resilience.NewBreakerRegistry(orch.observeBreaker(cfg.Breaker))
	orch.breakers.Get(DefaultClass)

	if o.cache != nil {
		orch.cache = o.cache
	} else {
		c, err := cache.New(ctx, cfg.Cache, logger.Sub(log, logger.ComponentCache))
		if err != nil {
			return nil, err
		}
		orch.cache = c
		orch.ownsCache = true
	}

	log.Info("fetch orchestrator ready", map[string]interface{}{
		logger.FieldStrategy: string(pm.Strategy()),
		"proxies":            pm.TotalCount(),
		"limiters":           orch.limiters.Names(),
		"max_retries":        cfg.Retry.MaxRetries,
	})
	return orch, nil
}

func (o *Orchestrator[T]) observeLimiter(lc resilience.RateLimiterConfig) resilience.RateLimiterConfig {
	next := lc.OnWait
	lc.OnWait = func(name string, wait time.Duration) {
		o.log.Debug("rate limit reached, waiting", map[string]interface{}{
			logger.FieldLimiter: name,
			logger.FieldWaitMs:  wait.Milliseconds(),
		})
		o.metrics.RecordRateLimitWait(context.Background(), name, wait)
		if next != nil {
			next(name, wait)
		}
	}
	return lc
}

func (o *Orchestrator[T]) observeBreaker(bc resilience.CircuitBreakerConfig) resilience.CircuitBreakerConfig {
	next := bc.OnStateChange
	bc.OnStateChange = func(name string, from, to resilience.State) {
		o.log.Warn("circuit breaker state changed", map[string]interface{}{
			logger.FieldBreaker: name,
			"from":              from.String(),
			logger.FieldState:   to.String(),
		})
		o.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
		if next != nil {
			next(name, from, to)
		}
	}
	return bc
}

// Fetch returns the cached value for req.Key or runs op through the gates.
//
// Failures are one of BreakerOpen, RetriesExhausted, NonRetryable or
// Cancelled. Cache problems are logged and never returned.
func (o *Orchestrator[T]) Fetch(ctx context.Context, req Request, op Operation[T]) (T, error) {
	req = req.normalize()
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, observability.SpanFetch, trace.WithAttributes(
		attribute.String(observability.AttrClass, req.Class),
		attribute.String(observability.AttrCacheKey, req.Key),
	))
	defer span.End()

	v, err := o.fetch(ctx, req, op)

	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = string(errors.KindOf(err))
		observability.SetSpanError(span, err)
	}
	span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
	o.metrics.RecordFetch(ctx, req.Class, outcome, time.Since(start))
	return v, err
}

func (o *Orchestrator[T]) fetch(ctx context.Context, req Request, op Operation[T]) (T, error) {
	if req.Key == "" {
		return o.execute(ctx, req, op)
	}
	if v, ok := o.lookup(ctx, req.Key); ok {
		return v, nil
	}
	return o.shared(ctx, req, op)
}

// lookup reads the cache. Errors count as a miss.
func (o *Orchestrator[T]) lookup(ctx context.Context, key string) (T, bool) {
	v, ok, err := cache.GetJSON[T](ctx, o.cache, key)
	switch {
	case err != nil:
		o.log.Warn("cache read failed, treating as miss", map[string]interface{}{
			logger.FieldCacheKey: key,
			logger.FieldError:    err.Error(),
		})
		o.metrics.RecordCacheLookup(ctx, observability.CacheError)
	case ok:
		o.log.Debug("cache hit", map[string]interface{}{logger.FieldCacheKey: key})
		o.metrics.RecordCacheLookup(ctx, observability.CacheHit)
	default:
		o.metrics.RecordCacheLookup(ctx, observability.CacheMiss)
	}
	return v, ok && err == nil
}

// execute runs one fetch past the cache: breaker, limiter, proxy, retry,
// outcome reporting and cache write.
func (o *Orchestrator[T]) execute(ctx context.Context, req Request, op Operation[T]) (T, error) {
	var zero T

	breaker := o.breakers.Get(req.Class)
	if !breaker.CanExecute() {
		return zero, errors.BreakerOpen(req.Class)
	}

	if err := o.limiters.Acquire(ctx, req.Limiter); err != nil {
		return zero, err
	}

	var p *proxy.Identity
	if id, ok := o.proxies.GetProxy(); ok {
		p = &id
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(observability.AttrProxy, id.String()))
	}

	attempts := 0
	retry := o.cfg.Retry
	if retry.Logger == nil {
		retry.Logger = logger.Sub(o.log, logger.ComponentRetry)
	}
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(a resilience.RetryAttempt, err error) error {
		attempts = a.Number
		o.metrics.RecordRetry(ctx, req.Class)
		if userOnRetry != nil {
			return userOnRetry(a, err)
		}
		return nil
	}

	v, err := resilience.Retry(ctx, retry, func() (T, error) {
		return op(ctx, p)
	})
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(observability.AttrAttempts, attempts))

	if errors.IsCancelled(err) {
		return zero, err
	}
	if err != nil {
		if p != nil {
			o.proxies.ReportFailure(*p)
			o.metrics.RecordProxyOutcome(ctx, false)
		}
		breaker.RecordFailure()
		o.log.Warn("fetch failed", map[string]interface{}{
			logger.FieldOperation: req.Class,
			logger.FieldKind:      string(errors.KindOf(err)),
			logger.FieldError:     err.Error(),
		})
		return zero, err
	}

	if p != nil {
		o.proxies.ReportSuccess(*p)
		o.metrics.RecordProxyOutcome(ctx, true)
	}
	breaker.RecordSuccess()

	if req.Key != "" {
		if err := cache.SetJSON(ctx, o.cache, req.Key, v); err != nil {
			o.log.Warn("cache write failed, result not cached", map[string]interface{}{
				logger.FieldCacheKey: req.Key,
				logger.FieldError:    err.Error(),
			})
		}
	}
	return v, nil
}

// Key derives a cache key from positional and named parts.
func (o *Orchestrator[T]) Key(parts []any, named map[string]any) string {
	return cache.MakeKey(parts, named)
}

// Invalidate removes key from the cache.
func (o *Orchestrator[T]) Invalidate(ctx context.Context, key string) error {
	return o.cache.Delete(ctx, key)
}

// Proxies returns the proxy manager for pool maintenance.
func (o *Orchestrator[T]) Proxies() *proxy.Manager {
	return o.proxies
}

// Limiters returns the rate limiter registry.
func (o *Orchestrator[T]) Limiters() *resilience.LimiterRegistry {
	return o.limiters
}

// Breakers returns the circuit breaker registry.
func (o *Orchestrator[T]) Breakers() *resilience.BreakerRegistry {
	return o.breakers
}

// Close releases the cache if the orchestrator built it.
func (o *Orchestrator[T]) Close() error {
	if !o.ownsCache {
		return nil
	}
	return o.cache.Close()
}
