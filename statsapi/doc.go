// Package statsapi serves the operator surface of a fetch orchestrator over
// HTTP: a JSON statistics snapshot, a health summary derived from the
// circuit breakers, cache and proxy pool, and a Prometheus scrape endpoint.
//
//	srv := statsapi.New(statsapi.Config{Port: 9090}, orch, statsapi.WithLogger(log))
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
//	defer srv.Stop(context.Background())
package statsapi
