package cache

import "context"

// Disabled is a cache that stores nothing. Every Get misses and every write
// is a silent no-op.
type Disabled struct{}

var _ Cache = Disabled{}

func (Disabled) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Disabled) Set(context.Context, string, []byte) error { return nil }

func (Disabled) Delete(context.Context, string) error { return nil }

func (Disabled) Clear(context.Context) error { return nil }

func (Disabled) Close() error { return nil }

func (Disabled) Stats(context.Context) (Stats, error) {
	return Stats{Backend: BackendDisabled}, nil
}
