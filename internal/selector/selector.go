// Package selector decides catalogue record membership in a known layer.
//
// Every variant is a pure predicate over the fields of a model.CSWRecord and
// holds no reference to the layer that owns it. Variants are built from a
// configuration Spec through a table keyed by Spec.Type, so adding a kind only
// needs a Register call.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
)

var (
	ErrUnknownSelectorType = errors.New("unknown selector type")
	ErrInvalidSpec         = errors.New("invalid selector spec")
)

// Selector must return the same answer for the same record every time;
// callers cache results.
type Selector interface {
	Matches(rec model.CSWRecord) bool
}

// Spec is the configuration form of a selector. Which fields apply depends on Type.
type Spec struct {
	Type      string      `yaml:"type" json:"type"`
	Values    []string    `yaml:"values,omitempty" json:"values,omitempty"`
	Prefixes  []string    `yaml:"prefixes,omitempty" json:"prefixes,omitempty"`
	Match     string      `yaml:"match,omitempty" json:"match,omitempty"`
	Names     []string    `yaml:"names,omitempty" json:"names,omitempty"`
	BBox      *model.BBox `yaml:"bbox,omitempty" json:"bbox,omitempty"`
	Polygon   [][]float64 `yaml:"polygon,omitempty" json:"polygon,omitempty"`
	Cells     []string    `yaml:"cells,omitempty" json:"cells,omitempty"`
	Res       int         `yaml:"res,omitempty" json:"res,omitempty"`
	Selectors []Spec      `yaml:"selectors,omitempty" json:"selectors,omitempty"`
}

type Factory func(spec Spec) (Selector, error)

var reg = map[string]Factory{}

// Register adds a selector kind. It is meant to be called from init and
// panics on a duplicate kind.
func Register(kind string, f Factory) {
	kind = normalizeKind(kind)
	if _, dup := reg[kind]; dup {
		panic(fmt.Sprintf("selector: kind %q registered twice", kind))
	}
	reg[kind] = f
}

// Build constructs the selector described by spec.
func Build(spec Spec) (Selector, error) {
	f, ok := reg[normalizeKind(spec.Type)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSelectorType, spec.Type)
	}
	return f(spec)
}

// Kinds lists the registered selector kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeKind(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// stringSet folds values with fold and drops blanks.
type stringSet map[string]struct{}

func newStringSet(values []string, fold func(string) string) stringSet {
	s := make(stringSet, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		s[fold(v)] = struct{}{}
	}
	return s
}

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

// sorted keys, for String
func (s stringSet) list() string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func identity(s string) string { return s }
