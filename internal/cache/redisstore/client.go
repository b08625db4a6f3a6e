// Package redisstore is the shared Redis backend for cached classifications.
// Several service instances may share one database; entries are namespaced by
// registry version through the keys package.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/knownlayers/internal/cache"
	"github.com/mohammed-shakir/knownlayers/internal/cache/keys"
	"github.com/mohammed-shakir/knownlayers/internal/core/observability"
)

type Option func(*redis.Options)

// WithDB selects the logical database holding classification entries.
func WithDB(n int) Option {
	return func(o *redis.Options) { o.DB = n }
}

// WithPoolSize bounds connections per instance. Non-positive keeps the default.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// WithTimeouts overrides the dial and per-command timeouts. The classifier's
// own op timeout usually fires first.
func WithTimeouts(dial, rw time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = rw
		o.WriteTimeout = rw
	}
}

// Client stores serialized per-record classifications keyed by
// keys.RecordKey.
type Client struct {
	rdb *redis.Client
}

var _ cache.Interface = (*Client)(nil)

// New connects to addr and pings it so a misconfigured cache fails startup.
func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// MGet returns the cached entries found for keys. Absent keys are left out
// and counted as classification cache misses.
func (c *Client) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	if len(keys) == 0 {
		observability.ObserveCacheOp("mget", nil, time.Since(start).Seconds())
		return map[string][]byte{}, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	observability.ObserveCacheOp("mget", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}

	out := make(map[string][]byte, len(vals))
	hits := 0
	for i, v := range vals {
		if v == nil {
			continue // missing key
		}
		hits++
		switch t := v.(type) {
		case string:
			out[keys[i]] = []byte(t)
		case []byte:
			out[keys[i]] = t
		default:
			out[keys[i]] = fmt.Append(nil, t)
		}
	}
	observability.AddCacheHits(hits)
	observability.AddCacheMisses(len(keys) - hits)
	return out, nil
}

// Del drops cached classifications, used when a record is re-harvested.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	observability.ObserveCacheOp("del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

// MSet writes every pair in one pipeline. A zero ttl keeps entries until
// they are deleted.
func (c *Client) MSet(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	start := time.Now()
	if len(kv) == 0 {
		observability.ObserveCacheOp("mset", nil, time.Since(start).Seconds())
		return nil
	}

	_, err := c.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range kv {
			if err := p.Set(ctx, k, v, ttl).Err(); err != nil {
				return fmt.Errorf("redis MSET pipeline SET %q: %w", k, err)
			}
		}
		return nil
	})

	observability.ObserveCacheOp("mset", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis MSET %d keys (pipeline): %w", len(kv), err)
	}
	return nil
}

const purgeBatch = 500

// PurgeStale deletes record entries written under any registry version other
// than current and returns how many were removed. Entries of the current
// version and keys outside the record key space are kept.
func (c *Client) PurgeStale(ctx context.Context, current string) (int, error) {
	start := time.Now()
	removed, err := c.purgeStale(ctx, current)
	observability.ObserveCacheOp("purge", err, time.Since(start).Seconds())
	return removed, err
}

func (c *Client) purgeStale(ctx context.Context, current string) (int, error) {
	var (
		cursor  uint64
		removed int
		stale   []string
	)
	flush := func() error {
		if len(stale) == 0 {
			return nil
		}
		n, err := c.rdb.Del(ctx, stale...).Result()
		if err != nil {
			return fmt.Errorf("redis DEL %d stale keys: %w", len(stale), err)
		}
		removed += int(n)
		stale = stale[:0]
		return nil
	}
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, keys.Pattern, purgeBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("redis SCAN %s: %w", keys.Pattern, err)
		}
		for _, k := range batch {
			if keys.Stale(k, current) {
				stale = append(stale, k)
			}
		}
		if len(stale) >= purgeBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	if err := flush(); err != nil {
		return removed, err
	}
	return removed, nil
}
