// Package redis provides the shared Redis client behind the remote cache
// backend.
//
// It wraps go-redis with fetchguard logging and configuration conventions.
// A redis:// URL, when set, takes precedence over Addr/Password/DB.
//
// # Typed Operations
//
// TypedStore provides generic JSON-serialized get/set operations under a
// key prefix:
//
//	store := redis.NewTypedStore[entry](client, "fetchguard")
//	err := store.Save(ctx, key, &e, time.Hour)
//
// For ad-hoc typed operations, use GetJSON/SetJSON on the Client directly.
//
// # Quick Start
//
//	client, err := redis.New(redis.Config{Enabled: true, URL: "redis://localhost:6379/0"}, log)
package redis
