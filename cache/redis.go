package cache

import (
	"context"
	"time"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/redis"
)

// RedisCache stores entries in Redis under "<prefix>:cache:<key>". Entries
// carry the same envelope as the file backend and are also given a native
// expiry of ttl.
type RedisCache struct {
	client     *redis.Client
	store      *redis.TypedStore[Entry]
	ttl        time.Duration
	now        func() time.Time
	log        *logger.Logger
	ownsClient bool
}

var _ Cache = (*RedisCache)(nil)

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithOwnedClient makes Close also close the Redis client.
func WithOwnedClient() RedisOption {
	return func(c *RedisCache) {
		c.ownsClient = true
	}
}

// NewRedisCache creates a cache on an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger, opts ...RedisOption) *RedisCache {
	prefix := "cache"
	if p := client.KeyPrefix(); p != "" {
		prefix = p + ":cache"
	}

	c := &RedisCache{
		client: client,
		store:  redis.NewTypedStore[Entry](client, prefix),
		ttl:    ttl,
		now:    time.Now,
		log:    logger.OrGet(log, logger.ComponentCache),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get loads the entry for key, deleting it if it has expired.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, false, errors.CacheBackend("get", err)
	}
	if e == nil {
		return nil, false, nil
	}

	if e.expired(c.now(), c.ttl) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn("failed to evict expired entry", map[string]interface{}{
				logger.FieldCacheKey: key,
				logger.FieldError:    err.Error(),
			})
		}
		return nil, false, nil
	}
	return e.Value, true, nil
}

// Set stores the entry with a native expiry of ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	e := Entry{Key: key, StoredAt: c.now(), Value: value}
	if err := c.store.Save(ctx, key, &e, c.ttl); err != nil {
		return errors.CacheBackend("set", err)
	}
	return nil
}

// Delete removes the entry for key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return errors.CacheBackend("delete", err)
	}
	return nil
}

// Clear deletes every key under the cache prefix and nothing else.
func (c *RedisCache) Clear(ctx context.Context) error {
	n, err := c.store.Clear(ctx)
	if err != nil {
		return errors.CacheBackend("clear", err)
	}
	c.log.Info("cache cleared", map[string]interface{}{
		logger.FieldBackend: string(BackendRedis),
		"entries":           n,
	})
	return nil
}

// Stats counts keys under the prefix and sums their stored lengths.
func (c *RedisCache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Enabled:  true,
		Backend:  BackendRedis,
		TTL:      c.ttl,
		Location: c.store.Pattern(),
	}

	entries, size, err := c.store.Usage(ctx)
	if err != nil {
		return stats, errors.CacheBackend("stats", err)
	}
	stats.Entries, stats.SizeBytes = entries, size
	return stats, nil
}

// Close closes the client if this cache owns it.
func (c *RedisCache) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}
