package ports

import (
	"context"
	"time"
)

// Cache is a key-value store with per-key TTL. DeleteByPrefix bulk-drops
// memoized list keys after a write; failures on any method are treated as
// cache misses by callers, never as fatal errors.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Ping() error
	Close() error
}
