package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/logger"
)

const (
	fileExt = ".json"
	tempExt = ".tmp"

	// staleTempAge is how old a temp file must be before Clear treats it as
	// left behind by an interrupted write.
	staleTempAge = time.Minute
)

// FileCache stores one JSON file per key under a directory.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
	log *logger.Logger
}

var _ Cache = (*FileCache)(nil)

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string, ttl time.Duration, log *logger.Logger) (*FileCache, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}
	return &FileCache{
		dir: abs,
		ttl: ttl,
		now: time.Now,
		log: logger.OrGet(log, logger.ComponentCache),
	}, nil
}

func (c *FileCache) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", errors.CacheBackend("key", fmt.Errorf("invalid cache key %q", key))
	}
	return filepath.Join(c.dir, key+fileExt), nil
}

// Get reads the entry for key, deleting it if it has expired.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := c.path(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.CacheBackend("get", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, errors.CacheBackend("get", fmt.Errorf("decode %s: %w", filepath.Base(path), err))
	}

	if e.expired(c.now(), c.ttl) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Warn("failed to evict expired entry", map[string]interface{}{
				logger.FieldCacheKey: key,
				logger.FieldError:    err.Error(),
			})
		}
		c.log.Debug("cache entry expired", map[string]interface{}{logger.FieldCacheKey: key})
		return nil, false, nil
	}

	return e.Value, true, nil
}

// Set writes the entry atomically through a temporary file and rename.
func (c *FileCache) Set(_ context.Context, key string, value []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Entry{Key: key, StoredAt: c.now(), Value: value})
	if err != nil {
		return errors.CacheBackend("set", err)
	}

	tmp, err := os.CreateTemp(c.dir, key+".*"+tempExt)
	if err != nil {
		return errors.CacheBackend("set", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.CacheBackend("set", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.CacheBackend("set", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.CacheBackend("set", err)
	}
	return nil
}

// Delete removes the entry for key. Returns nil if it does not exist.
func (c *FileCache) Delete(_ context.Context, key string) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.CacheBackend("delete", err)
	}
	return nil
}

// Clear removes every entry file. Temp files are removed only once they are
// older than staleTempAge, so a Set in flight still gets to rename its own.
func (c *FileCache) Clear(_ context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.CacheBackend("clear", err)
	}
	now := c.now()
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(name, fileExt):
		case strings.HasSuffix(name, tempExt):
			info, err := de.Info()
			if err != nil || now.Sub(info.ModTime()) < staleTempAge {
				continue
			}
		default:
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			return errors.CacheBackend("clear", err)
		}
	}
	c.log.Info("cache cleared", map[string]interface{}{logger.FieldBackend: string(BackendLocal)})
	return nil
}

// Stats counts entry files and their sizes without reading them.
func (c *FileCache) Stats(_ context.Context) (Stats, error) {
	stats := Stats{
		Enabled:  true,
		Backend:  BackendLocal,
		TTL:      c.ttl,
		Location: c.dir,
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats, errors.CacheBackend("stats", err)
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return stats, errors.CacheBackend("stats", err)
		}
		stats.Entries++
		stats.SizeBytes += info.Size()
	}
	return stats, nil
}

// Close is a no-op for the file backend.
func (c *FileCache) Close() error {
	return nil
}

// Dir returns the absolute cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}
