// Package fetch composes the cache, rate limiters, proxy manager, circuit
// breakers and retry policy around a single logical fetch.
//
// A fetch walks the gates in a fixed order:
//
//	cache get → breaker → rate limit → proxy → retry(op) → report outcome → cache set
//
// A cache hit returns before any gate is touched. Cache failures degrade to
// a miss. Only the rate limiter wait and the retry delay block, and both end
// early when the caller's context is cancelled.
//
// Usage:
//
//	o, err := fetch.New[Listing](ctx, cfg)
//	defer o.Close()
//
//	listing, err := o.Fetch(ctx, fetch.Request{
//		Class: "listing",
//		Key:   o.Key([]any{"subreddit", name}, map[string]any{"sort": "hot"}),
//	}, func(ctx context.Context, p *proxy.Identity) (Listing, error) {
//		return scrape(ctx, p, name)
//	})
package fetch
