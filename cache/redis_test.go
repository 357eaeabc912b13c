package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/redis"
)

// newTestRedisCache creates a RedisCache backed by miniredis for testing.
func newTestRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mini.Close() })

	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr(), KeyPrefix: "fg"}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	c := NewRedisCache(client, ttl, logger.Nop(), WithOwnedClient())
	t.Cleanup(func() { c.Close() })
	return c, mini
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c, mini := newTestRedisCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", []byte("hello")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := c.Get(ctx, "k1")
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get: %q ok=%v err=%v", v, ok, err)
	}

	if !mini.Exists("fg:cache:k1") {
		t.Error("expected entry under the cache prefix")
	}
	if ttl := mini.TTL("fg:cache:k1"); ttl != time.Hour {
		t.Errorf("expected native expiry of 1h, got %v", ttl)
	}
}

func TestRedisCache_TTLBoundary(t *testing.T) {
	ttl := 10 * time.Second
	c, mini := newTestRedisCache(t, ttl)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", []byte("v"))

	now = start.Add(ttl - time.Millisecond)
	mini.FastForward(ttl - time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected value just before ttl")
	}

	now = start.Add(ttl + time.Millisecond)
	mini.FastForward(2 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected absence just after ttl")
	}
}

func TestRedisCache_EnvelopeAgeEvicts(t *testing.T) {
	c, mini := newTestRedisCache(t, time.Minute)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c.now = func() time.Time { return now }
	_ = c.Set(ctx, "k", []byte("v"))

	// a clock ahead of the server still sees the entry as expired
	now = start.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected entry older than ttl to read as absent")
	}
	if mini.Exists("fg:cache:k") {
		t.Error("expected expired entry to be deleted on read")
	}
}

func TestRedisCache_ZeroTTL(t *testing.T) {
	c, mini := newTestRedisCache(t, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"))
	if ttl := mini.TTL("fg:cache:k"); ttl != 0 {
		t.Errorf("expected no native expiry, got %v", ttl)
	}
	mini.FastForward(24 * time.Hour)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("expected zero ttl entry to persist")
	}
}

func TestRedisCache_ClearOnlyTouchesPrefix(t *testing.T) {
	c, mini := newTestRedisCache(t, time.Hour)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		_ = c.Set(ctx, fmt.Sprintf("k%d", i), []byte("value"))
	}
	_ = mini.Set("other:key", "keep me")

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 120 {
		t.Errorf("expected 120 entries, got %d", stats.Entries)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("expected positive size, got %d", stats.SizeBytes)
	}
	if stats.Backend != BackendRedis || !stats.Enabled {
		t.Errorf("unexpected stats %+v", stats)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, _ = c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("expected empty cache after clear, got %d", stats.Entries)
	}
	if !mini.Exists("other:key") {
		t.Error("Clear must not delete keys outside the prefix")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestRedisCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"))
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete must be idempotent, got %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}
