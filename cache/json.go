package cache

import (
	"context"
	"encoding/json"

	"github.com/kbukum/fetchguard/errors"
)

// GetJSON reads key and unmarshals it into a T. A value that no longer
// decodes is reported as a cache backend error.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var zero T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, errors.CacheBackend("decode", err)
	}
	return v, true, nil
}

// SetJSON marshals v and stores it under key.
func SetJSON[T any](ctx context.Context, c Cache, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.CacheBackend("encode", err)
	}
	return c.Set(ctx, key, raw)
}
