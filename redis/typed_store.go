package redis

import (
	"context"
	"fmt"
	"time"
)

// TypedStore keeps JSON-encoded values of one type under a key namespace.
// Every key it touches is "<namespace>:<key>", so Clear and Usage never
// reach keys outside the namespace.
type TypedStore[C any] struct {
	client    *Client
	namespace string
}

// NewTypedStore creates a store for keys under namespace.
func NewTypedStore[C any](client *Client, namespace string) *TypedStore[C] {
	return &TypedStore[C]{client: client, namespace: namespace}
}

// FullKey returns the Redis key used for key.
func (s *TypedStore[C]) FullKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// Pattern returns the SCAN prefix matching every key of this store.
func (s *TypedStore[C]) Pattern() string {
	return s.FullKey("")
}

// Load decodes the value under key. A missing key returns (nil, nil).
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	var val C
	err := s.client.GetJSON(ctx, s.FullKey(key), &val)
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("typed store load %q: %w", key, err)
	}
	return &val, nil
}

// Save encodes val under key. A zero ttl keeps the key until deleted.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	if err := s.client.SetJSON(ctx, s.FullKey(key), val, ttl); err != nil {
		return fmt.Errorf("typed store save %q: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (s *TypedStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.FullKey(key)); err != nil {
		return fmt.Errorf("typed store delete %q: %w", key, err)
	}
	return nil
}

// Clear deletes every key in the namespace and returns how many it saw.
func (s *TypedStore[C]) Clear(ctx context.Context) (int64, error) {
	var n int64
	err := s.client.ScanPrefix(ctx, s.Pattern(), func(keys []string) error {
		n += int64(len(keys))
		return s.client.Del(ctx, keys...)
	})
	return n, err
}

// Usage counts the keys in the namespace and sums their encoded lengths.
func (s *TypedStore[C]) Usage(ctx context.Context) (keys, bytes int64, err error) {
	err = s.client.ScanPrefix(ctx, s.Pattern(), func(batch []string) error {
		for _, k := range batch {
			size, err := s.client.StrLen(ctx, k)
			if err != nil {
				return err
			}
			keys++
			bytes += size
		}
		return nil
	})
	return keys, bytes, err
}
