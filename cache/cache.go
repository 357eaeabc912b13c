package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/logger"
	"github.com/kbukum/fetchguard/redis"
)

// Cache is a key/value store with expiry. Implementations are safe for
// concurrent use; concurrent writers of one key leave the last write.
type Cache interface {
	// Get returns the value stored under key. Absent and expired entries
	// return ok=false.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, stamped with the current time.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Stats reports entry count and size from metadata only.
	Stats(ctx context.Context) (Stats, error)
	// Close releases backend resources.
	Close() error
}

// Entry is the persisted form of a cached value.
type Entry struct {
	Key      string    `json:"key"`
	StoredAt time.Time `json:"stored_at"`
	Value    []byte    `json:"value"`
}

// expired reports whether the entry is older than ttl at now. A zero ttl
// never expires.
func (e *Entry) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.StoredAt) > ttl
}

// Stats describes a cache backend.
type Stats struct {
	Enabled   bool          `json:"enabled"`
	Backend   Backend       `json:"backend"`
	Entries   int64         `json:"entries"`
	SizeBytes int64         `json:"size_bytes"`
	TTL       time.Duration `json:"ttl"`
	Location  string        `json:"location,omitempty"`
}

// Backend names a cache implementation.
type Backend string

const (
	BackendLocal    Backend = "local"
	BackendRedis    Backend = "redis"
	BackendDisabled Backend = "disabled"
)

// ParseBackend resolves a backend name. "remote" is accepted for redis and
// an empty name selects local.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "local", "file":
		return BackendLocal, nil
	case "redis", "remote":
		return BackendRedis, nil
	default:
		return "", errors.Configuration("cache.backend", "unknown cache backend "+name)
	}
}

// Config configures the cache.
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Backend Backend       `mapstructure:"backend"`
	// Location is the directory for the local backend or the redis URL or
	// address for the remote one.
	Location string `mapstructure:"location"`
	// Redis tunes the remote client. Location fills in its URL when empty.
	Redis redis.Config `mapstructure:"redis"`
	// PingTimeout bounds the startup reachability check of the remote.
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.Backend == BackendLocal && c.Location == "" {
		c.Location = ".cache/fetchguard"
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.TTL < 0 {
		return errors.Configuration("cache.ttl", "ttl must not be negative")
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	return nil
}

// New builds the cache described by cfg. Disabled caching returns Disabled.
// Backend failures at startup are logged and also yield Disabled; only an
// invalid configuration is an error.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Cache, error) {
	log = logger.OrGet(log, logger.ComponentCache)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return Disabled{}, nil
	}

	backend, _ := ParseBackend(string(cfg.Backend))
	switch backend {
	case BackendRedis:
		return newRemote(ctx, cfg, log), nil
	default:
		fc, err := NewFileCache(cfg.Location, cfg.TTL, log)
		if err != nil {
			log.Warn("local cache unavailable, caching disabled", map[string]interface{}{
				logger.FieldBackend: string(BackendLocal),
				logger.FieldError:   err.Error(),
			})
			return Disabled{}, nil
		}
		return fc, nil
	}
}

func newRemote(ctx context.Context, cfg Config, log *logger.Logger) Cache {
	rc := cfg.Redis
	rc.Enabled = true
	if rc.URL == "" && cfg.Location != "" {
		if strings.Contains(cfg.Location, "://") {
			rc.URL = cfg.Location
		} else {
			rc.Addr = cfg.Location
		}
	}

	client, err := redis.New(rc, logger.Sub(log, logger.ComponentRedis))
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
		err = client.Ping(pingCtx)
		cancel()
		if err != nil {
			_ = client.Close()
		}
	}
	if err != nil {
		log.Warn("remote cache unreachable, caching disabled", map[string]interface{}{
			logger.FieldBackend: string(BackendRedis),
			logger.FieldError:   err.Error(),
		})
		return Disabled{}
	}

	return NewRedisCache(client, cfg.TTL, log, WithOwnedClient())
}

// MakeKey derives a fixed-length key from positional and named parts.
// Positional parts keep their order; named parts are sorted by name and
// rendered as name=value. The parts are joined with ":" and hashed with
// SHA-256, giving 64 hex characters.
func MakeKey(parts []any, named map[string]any) string {
	fields := make([]string, 0, len(parts)+len(named))
	for _, p := range parts {
		fields = append(fields, fmt.Sprint(p))
	}

	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, name+"="+fmt.Sprint(named[name]))
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, ":")))
	return hex.EncodeToString(sum[:])
}
