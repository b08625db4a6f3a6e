package selector

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
)

func init() {
	Register("and", newAnd)
	Register("or", newOr)
	Register("not", newNot)
}

// All matches when every sub-selector matches, stopping at the first miss.
// An empty All matches nothing.
type All []Selector

func (s All) Matches(rec model.CSWRecord) bool {
	if len(s) == 0 {
		return false
	}
	for _, sub := range s {
		if !sub.Matches(rec) {
			return false
		}
	}
	return true
}

func (s All) String() string { return "and(" + join(s) + ")" }

// Any matches when some sub-selector matches, stopping at the first hit.
type Any []Selector

func (s Any) Matches(rec model.CSWRecord) bool {
	for _, sub := range s {
		if sub.Matches(rec) {
			return true
		}
	}
	return false
}

func (s Any) String() string { return "or(" + join(s) + ")" }

type Not struct {
	Sub Selector
}

func (s Not) Matches(rec model.CSWRecord) bool { return !s.Sub.Matches(rec) }

func (s Not) String() string { return fmt.Sprintf("not(%v)", s.Sub) }

func newAnd(spec Spec) (Selector, error) {
	subs, err := buildAll(spec)
	if err != nil {
		return nil, err
	}
	return All(subs), nil
}

func newOr(spec Spec) (Selector, error) {
	subs, err := buildAll(spec)
	if err != nil {
		return nil, err
	}
	return Any(subs), nil
}

func newNot(spec Spec) (Selector, error) {
	if len(spec.Selectors) != 1 {
		return nil, fmt.Errorf("%w: not takes exactly one selector (got %d)", ErrInvalidSpec, len(spec.Selectors))
	}
	sub, err := Build(spec.Selectors[0])
	if err != nil {
		return nil, fmt.Errorf("not: %w", err)
	}
	return Not{Sub: sub}, nil
}

func buildAll(spec Spec) ([]Selector, error) {
	if len(spec.Selectors) == 0 {
		return nil, fmt.Errorf("%w: %s needs selectors", ErrInvalidSpec, normalizeKind(spec.Type))
	}
	out := make([]Selector, 0, len(spec.Selectors))
	for i, sub := range spec.Selectors {
		s, err := Build(sub)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", normalizeKind(spec.Type), i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func join(subs []Selector) string {
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, ",")
}
