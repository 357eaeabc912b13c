// Package cache stores fetch results under deterministic keys with a
// time-to-live.
//
// Two interchangeable backends implement Cache:
//
//   - FileCache: one JSON file per key in a local directory, survives restarts
//   - RedisCache: shared entries in Redis under a key prefix
//
// Expired entries read as absent and are deleted on that read; there is no
// background sweep. A TTL of zero never expires. New returns Disabled when
// caching is turned off or the remote backend cannot be reached, so callers
// never have to special-case a missing cache.
//
//	c, err := cache.New(ctx, cache.Config{Enabled: true, TTL: time.Hour, Backend: cache.BackendLocal}, log)
//	key := cache.MakeKey([]any{"https://example.com/r/golang"}, map[string]any{"sort": "new"})
//	if v, ok, _ := c.Get(ctx, key); ok {
//	    return v
//	}
package cache
