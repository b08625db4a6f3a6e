// Package cache defines the byte store behind the classification cache.
package cache

import (
	"context"
	"time"
)

// Interface is implemented by the redis and in-process stores. MGet returns
// only the keys that were found.
type Interface interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, kv map[string][]byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
