package statsapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kbukum/fetchguard/fetch"
	"github.com/kbukum/fetchguard/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithCollectors registers extra collectors next to the fetch collector.
func WithCollectors(cs ...prometheus.Collector) Option {
	return func(s *Server) {
		s.extra = append(s.extra, cs...)
	}
}

// WithRuntimeMetrics adds the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return WithCollectors(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Server is the operator HTTP server backed by Gin.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	registry   *prometheus.Registry
	config     Config
	log        *logger.Logger
	extra      []prometheus.Collector

	listener net.Listener
}

// New creates a server over src with routes and middleware installed.
// Nothing is bound until Start.
func New(cfg Config, src Source, opts ...Option) *Server {
	cfg.ApplyDefaults()

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:   gin.New(),
		registry: prometheus.NewRegistry(),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrGet(s.log, logger.ComponentStatsAPI)

	s.registry.MustRegister(fetch.NewCollector(src))
	s.registry.MustRegister(s.extra...)

	s.engine.Use(recovery(s.log), requestID(), requestLogger(s.log))
	s.engine.GET(pathStats, statsHandler(src))
	s.engine.GET(pathHealth, healthHandler(cfg, src))
	s.engine.GET(pathMetrics, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.engine.POST(pathResetBreakers, resetBreakersHandler(src))
	s.engine.POST(pathResetProxies, resetProxiesHandler(src))
	s.engine.POST(pathCheckProxies, checkProxiesHandler(cfg, src))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler returns the router for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Registry returns the Prometheus registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(_ context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("statsapi failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()

	s.log.Info("Operator server started", map[string]interface{}{
		"addr": listener.Addr().String(),
	})
	return nil
}

// Addr returns the bound address after Start, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("statsapi shutdown: %w", err)
	}
	s.log.Info("Operator server stopped")
	return nil
}
