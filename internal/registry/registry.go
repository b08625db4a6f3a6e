// Package registry holds the fixed set of known layers and classifies
// catalogue records against them.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	"github.com/mohammed-shakir/knownlayers/internal/knownlayer"
)

var ErrDuplicateLayerIdentifier = errors.New("duplicate known layer identifier")

// Registry is immutable after New and safe for any number of concurrent
// Classify calls.
type Registry struct {
	byID    map[string]*knownlayer.KnownLayer
	ordered []*knownlayer.KnownLayer
	rank    map[string]int
	version string
}

// Classification is the result of one Classify call. Nothing in it is shared
// with other calls. Record ids are not merged: when an id repeats in one
// batch the last matching occurrence owns Members[id], an unmatched one is
// also listed in Unmapped, and Counts counts every occurrence.
type Classification struct {
	// record id -> ids of matching layers, in display order; records that
	// match no layer are absent
	Members map[string][]string `json:"members"`
	// ids of records that matched no layer, in input order
	Unmapped []string `json:"unmapped"`
	// layer id -> number of records matched in this call
	Counts map[string]int `json:"counts"`
}

// New builds a registry. Any duplicate id aborts construction.
func New(layers ...*knownlayer.KnownLayer) (*Registry, error) {
	byID := make(map[string]*knownlayer.KnownLayer, len(layers))
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("layer %d is nil", i)
		}
		if _, dup := byID[l.ID()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLayerIdentifier, l.ID())
		}
		byID[l.ID()] = l
	}

	ordered := make([]*knownlayer.KnownLayer, len(layers))
	copy(ordered, layers)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Order() != b.Order() {
			return a.Order() < b.Order()
		}
		if a.Name() != b.Name() {
			return a.Name() < b.Name()
		}
		return a.ID() < b.ID()
	})

	rank := make(map[string]int, len(ordered))
	h := xxhash.New()
	for i, l := range ordered {
		rank[l.ID()] = i
		_, _ = fmt.Fprintf(h, "%s\x00%v\x00", l.ID(), l.Selector())
	}

	return &Registry{
		byID:    byID,
		ordered: ordered,
		rank:    rank,
		version: fmt.Sprintf("%016x", h.Sum64()),
	}, nil
}

func (r *Registry) Get(id string) (*knownlayer.KnownLayer, bool) {
	l, ok := r.byID[id]
	return l, ok
}

func (r *Registry) Len() int { return len(r.ordered) }

// Layers returns every layer ordered by order, then name (empty order first).
func (r *Registry) Layers() []*knownlayer.KnownLayer {
	out := make([]*knownlayer.KnownLayer, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Visible is Layers without hidden layers.
func (r *Registry) Visible() []*knownlayer.KnownLayer {
	out := make([]*knownlayer.KnownLayer, 0, len(r.ordered))
	for _, l := range r.ordered {
		if !l.Hidden() {
			out = append(out, l)
		}
	}
	return out
}

// Version fingerprints the layer ids and selectors; it changes whenever a
// reload could change classification results.
func (r *Registry) Version() string { return r.version }

// Classify evaluates every layer, hidden ones included, against every record.
// A record may belong to any number of layers.
func (r *Registry) Classify(records []model.CSWRecord) Classification {
	return Collect(records, r.Match)
}

// Collect assembles a Classification from per-record matches, visiting
// records in input order. match returns the layer ids of one record.
func Collect(records []model.CSWRecord, match func(model.CSWRecord) []string) Classification {
	out := Classification{
		Members:  make(map[string][]string),
		Unmapped: []string{},
		Counts:   make(map[string]int),
	}
	for _, rec := range records {
		ids := match(rec)
		if len(ids) == 0 {
			out.Unmapped = append(out.Unmapped, rec.ID)
			continue
		}
		out.Members[rec.ID] = ids
		for _, id := range ids {
			out.Counts[id]++
		}
	}
	return out
}

// Mapped is the number of records that matched at least one layer.
func (c Classification) Mapped() int { return len(c.Members) }

// Match returns the ids of the layers rec belongs to, in display order.
func (r *Registry) Match(rec model.CSWRecord) []string {
	var ids []string
	for _, l := range r.ordered {
		if l.Selector().Matches(rec) {
			ids = append(ids, l.ID())
		}
	}
	return ids
}

// SortIDs orders layer ids for display; unknown ids go last.
func (r *Registry) SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		ri, ok := r.rank[ids[i]]
		if !ok {
			ri = len(r.rank)
		}
		rj, ok := r.rank[ids[j]]
		if !ok {
			rj = len(r.rank)
		}
		return ri < rj
	})
}

// RecordFeatureCounts stores counts as feature count telemetry. Each value
// replaces the layer's count, so a count is the size of the last batch that
// matched the layer, not a running total. Layers missing from counts keep
// their previous value.
func (r *Registry) RecordFeatureCounts(counts map[string]int) {
	for id, n := range counts {
		if l, ok := r.byID[id]; ok {
			l.SetFeatureCount(n)
		}
	}
}
