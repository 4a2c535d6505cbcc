// Package cache stores expensive external results between runs.
//
// The registry dump is the main consumer: evaluating a whole Nix package set
// takes minutes, so its JSON output is kept under a key derived from the
// evaluation arguments. Three backends implement [Cache]:
//
//   - [FileCache]: one file per key below a directory (the CLI default)
//   - [RedisCache]: a shared Redis instance, for CI runners
//   - [NullCache]: never stores anything (--no-cache)
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry is a miss,
	// reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config selects and configures a cache backend.
type Config struct {
	Backend  string // "file" (default), "redis" or "none"
	Dir      string // FileCache directory
	RedisURL string // redis://[user:pass@]host:port/db
	Prefix   string // RedisCache key prefix
}

// Open creates the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendFile:
		c, err := NewFileCache(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendRedis:
		c, err := NewRedisCache(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendNone:
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (available: file, redis, none)", cfg.Backend)
	}
}
