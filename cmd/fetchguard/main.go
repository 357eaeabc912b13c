// Command fetchguard fetches URLs through the full resilience stack using
// settings from config.yml, .env and the environment. With the operator
// server enabled it keeps serving /stats, /health and /metrics until
// interrupted. With observability enabled, fetch metrics and spans are
// pushed to an OTLP/HTTP collector.
//
//	fetchguard -config ./config.yml https://example.com/a https://example.com/b
//	fetchguard -check-proxies
package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kbukum/fetchguard/config"
	"github.com/kbukum/fetchguard/fetch"
	"github.com/kbukum/fetchguard/httpclient"
	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/observability"
	"github.com/kbukum/fetchguard/proxy"
	"github.com/kbukum/fetchguard/statsapi"
	"github.com/kbukum/fetchguard/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		service    = flag.String("service", "fetchguard", "service name used to locate config files")
		configFile = flag.String("config", "", "explicit config.yml path")
		envFile    = flag.String("env", "", "explicit .env path")
		serve      = flag.Bool("serve", false, "keep the operator server running after fetching")
		check      = flag.Bool("check-proxies", false, "check every pool proxy against the IP echo before fetching")
		showVer    = flag.Bool("version", false, "print the build version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.Get())
		return nil
	}

	opts := []config.LoaderOption{}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	settings, err := config.LoadConfig(*service, opts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if settings.Version == "" {
		settings.Version = version.Get().String()
		settings.StatsAPI.Version = settings.Version
	}

	log := settings.NewLogger()
	logger.SetGlobalLogger(log)
	logger.RegisterComponents(log, settings.Logging.Components)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := observability.Setup(ctx, settings.Telemetry())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}()

	fetchCfg, err := settings.Fetch()
	if err != nil {
		return err
	}
	orch, err := fetch.New[*httpclient.Response](ctx, fetchCfg, fetchOptions(log, tel)...)
	if err != nil {
		return err
	}
	defer orch.Close()

	if *check {
		if bad := checkProxies(ctx, orch.Proxies(), settings.StatsAPI.ProxyCheckURL, os.Stdout); bad > 0 {
			log.Warn("some proxies failed the connectivity check", map[string]interface{}{"failed": bad})
		}
	}

	client, err := httpclient.New(settings.HTTP, httpclient.WithLogger(log))
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	if settings.StatsAPI.Enabled {
		srv := statsapi.New(settings.StatsAPI, orch, statsapi.WithLogger(log), statsapi.WithRuntimeMetrics())
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	failed := 0
	for _, raw := range flag.Args() {
		resp, err := orch.Fetch(ctx, requestFor(orch, raw), client.Operation(httpclient.Request{Path: raw}))
		if err != nil {
			failed++
			log.Error("fetch failed", map[string]interface{}{"url": raw, logger.FieldError: err.Error()})
			continue
		}
		fmt.Printf("%d %s (%d bytes)\n", resp.StatusCode, raw, len(resp.Body))
	}

	if *serve && settings.StatsAPI.Enabled {
		log.Info("serving operator endpoints until interrupted")
		<-ctx.Done()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, flag.NArg())
	}
	return nil
}

// requestFor gives every host its own breaker and caches by URL.
func requestFor(orch *fetch.Orchestrator[*httpclient.Response], raw string) fetch.Request {
	class := fetch.DefaultClass
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		class = u.Host
	}
	return fetch.Request{
		Class: class,
		Key:   orch.Key([]any{raw}, nil),
	}
}

// fetchOptions exports fetch metrics and spans when telemetry is enabled.
func fetchOptions(log *logger.Logger, tel *observability.Telemetry) []fetch.Option {
	opts := []fetch.Option{fetch.WithLogger(log)}
	if tel.Enabled() {
		opts = append(opts, fetch.WithMeter(tel.Meter()), fetch.WithTracer(tel.Tracer()))
	}
	return opts
}

// checkProxies prints one line per pool entry and returns how many failed.
func checkProxies(ctx context.Context, pm *proxy.Manager, echoURL string, out io.Writer) int {
	failed := 0
	for _, r := range proxy.CheckPool(ctx, pm.Pool(), proxy.WithCheckURL(echoURL)) {
		if r.OK {
			fmt.Fprintf(out, "ok   %s ip=%s latency=%s\n", r.Proxy, r.IP, r.Latency.Round(time.Millisecond))
			continue
		}
		failed++
		fmt.Fprintf(out, "fail %s %s\n", r.Proxy, r.Error)
	}
	return failed
}
