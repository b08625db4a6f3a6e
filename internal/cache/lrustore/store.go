// Package lrustore is the in-process backend for cached classifications.
package lrustore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/knownlayers/internal/cache"
	"github.com/mohammed-shakir/knownlayers/internal/core/observability"
)

type entry struct {
	val     []byte
	expires time.Time // zero: only the store-wide ttl applies
}

// Store keeps at most size entries. Entries older than maxTTL are purged by
// the LRU itself; shorter per-write ttls are checked on read.
type Store struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

var _ cache.Interface = (*Store)(nil)

// New returns a store. A zero maxTTL disables store-wide expiry.
func New(size int, maxTTL time.Duration) *Store {
	if size <= 0 {
		size = 1
	}
	return &Store{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("mget", err, time.Since(start).Seconds())
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	now := s.now()
	for _, k := range keys {
		e, ok := s.lru.Get(k)
		if !ok {
			continue
		}
		if !e.expires.IsZero() && !now.Before(e.expires) {
			s.lru.Remove(k)
			continue
		}
		out[k] = e.val
	}
	observability.ObserveCacheOp("mget", nil, time.Since(start).Seconds())
	observability.AddCacheHits(len(out))
	observability.AddCacheMisses(len(keys) - len(out))
	return out, nil
}

func (s *Store) MSet(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("mset", err, time.Since(start).Seconds())
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	for k, v := range kv {
		s.lru.Add(k, entry{val: append([]byte(nil), v...), expires: expires})
	}
	observability.ObserveCacheOp("mset", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("del", err, time.Since(start).Seconds())
		return err
	}
	for _, k := range keys {
		s.lru.Remove(k)
	}
	observability.ObserveCacheOp("del", nil, time.Since(start).Seconds())
	return nil
}

func (s *Store) Len() int { return s.lru.Len() }
