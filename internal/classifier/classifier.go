// Package classifier puts a read-through cache in front of the registry.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/knownlayers/internal/cache"
	"github.com/mohammed-shakir/knownlayers/internal/cache/keys"
	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	"github.com/mohammed-shakir/knownlayers/internal/core/observability"
	"github.com/mohammed-shakir/knownlayers/internal/registry"
)

// entry is the cached value for one record. A fingerprint mismatch means
// the record changed since it was cached and counts as a miss.
type entry struct {
	Fingerprint string   `json:"fp"`
	Layers      []string `json:"layers"`
}

type Option func(*Classifier)

// WithCache enables caching of per-record results in store.
func WithCache(store cache.Interface, ttl time.Duration) Option {
	return func(c *Classifier) {
		c.store = store
		c.ttl = ttl
	}
}

// WithOpTimeout bounds each cache round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.opTimeout = d }
}

type Classifier struct {
	reg       *registry.Registry
	logger    *slog.Logger
	store     cache.Interface
	ttl       time.Duration
	opTimeout time.Duration
	now       func() time.Time
}

func New(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{reg: reg, logger: logger, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Classifier) Registry() *registry.Registry { return c.reg }

// Classify matches records against every layer. Cache failures degrade to
// direct evaluation; only a canceled ctx is returned as an error.
func (c *Classifier) Classify(ctx context.Context, source string, records []model.CSWRecord) (registry.Classification, error) {
	start := c.now()
	if err := ctx.Err(); err != nil {
		return registry.Classification{}, err
	}

	var out registry.Classification
	if c.store == nil {
		out = c.reg.Classify(records)
	} else {
		out = c.classifyCached(ctx, records)
	}
	if err := ctx.Err(); err != nil {
		return registry.Classification{}, err
	}

	observability.ObserveClassify(source, out.Mapped(), len(out.Unmapped), out.Counts, time.Since(start).Seconds())
	c.logger.DebugContext(ctx, "classified",
		"source", source,
		"records", len(records),
		"mapped", out.Mapped(),
		"unmapped", len(out.Unmapped),
		"duration", time.Since(start).String())
	return out, nil
}

func (c *Classifier) classifyCached(ctx context.Context, records []model.CSWRecord) registry.Classification {
	version := c.reg.Version()
	ks := make([]string, 0, len(records))
	keyOf := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if _, seen := keyOf[rec.ID]; seen {
			continue
		}
		k := keys.RecordKey(version, rec.ID)
		keyOf[rec.ID] = k
		ks = append(ks, k)
	}

	cached := map[string][]byte{}
	if len(ks) > 0 {
		octx, cancel := c.withTimeout(ctx)
		m, err := c.store.MGet(octx, ks)
		cancel()
		if err != nil {
			c.logger.WarnContext(ctx, "classification cache read failed; evaluating directly",
				"keys", len(ks), "err", err)
		} else {
			cached = m
		}
	}

	fill := make(map[string][]byte)
	match := func(rec model.CSWRecord) []string {
		k, cacheable := keyOf[rec.ID]
		fp := fmt.Sprintf("%016x", keys.Fingerprint(rec))
		if cacheable {
			if b, ok := cached[k]; ok {
				var e entry
				if err := json.Unmarshal(b, &e); err == nil && e.Fingerprint == fp {
					return e.Layers
				}
			}
		}
		ids := c.reg.Match(rec)
		if cacheable {
			if b, err := json.Marshal(entry{Fingerprint: fp, Layers: ids}); err == nil {
				fill[k] = b
			}
		}
		return ids
	}
	out := registry.Collect(records, match)

	if len(fill) > 0 {
		octx, cancel := c.withTimeout(ctx)
		err := c.store.MSet(octx, fill, c.ttl)
		cancel()
		if err != nil {
			c.logger.WarnContext(ctx, "classification cache write failed",
				"keys", len(fill), "err", err)
		}
	}
	return out
}

// Invalidate drops cached results for the given record ids.
func (c *Classifier) Invalidate(ctx context.Context, recordIDs ...string) error {
	if c.store == nil || len(recordIDs) == 0 {
		return nil
	}
	version := c.reg.Version()
	ks := make([]string, 0, len(recordIDs))
	for _, id := range recordIDs {
		ks = append(ks, keys.RecordKey(version, id))
	}
	octx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.store.Del(octx, ks...); err != nil {
		return fmt.Errorf("invalidate %d records: %w", len(ks), err)
	}
	return nil
}

func (c *Classifier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opTimeout)
}
