package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
)

func init() {
	Register("identifier", newIdentifier)
	Register("keyword", newKeyword)
	Register("service", newService)
	Register("organisation", newOrganisation)
}

// Identifier matches records by registry file identifier, exactly or by prefix.
type Identifier struct {
	ids      stringSet
	prefixes []string
}

func NewIdentifier(ids, prefixes []string) *Identifier {
	ps := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			ps = append(ps, p)
		}
	}
	sort.Strings(ps)
	return &Identifier{ids: newStringSet(ids, identity), prefixes: ps}
}

func newIdentifier(spec Spec) (Selector, error) {
	if len(spec.Values) == 0 && len(spec.Prefixes) == 0 {
		return nil, fmt.Errorf("%w: identifier needs values or prefixes", ErrInvalidSpec)
	}
	return NewIdentifier(spec.Values, spec.Prefixes), nil
}

func (s *Identifier) Matches(rec model.CSWRecord) bool {
	if s.ids.has(rec.ID) {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(rec.ID, p) {
			return true
		}
	}
	return false
}

func (s *Identifier) String() string {
	return fmt.Sprintf("identifier(ids=%s;prefixes=%s)", s.ids.list(), strings.Join(s.prefixes, ","))
}

// Keyword matches records tagged with the configured keywords, ignoring case.
// With All set every keyword must be present, otherwise any one suffices.
type Keyword struct {
	keywords stringSet
	all      bool
}

func NewKeyword(keywords []string, all bool) *Keyword {
	return &Keyword{keywords: newStringSet(keywords, strings.ToLower), all: all}
}

func newKeyword(spec Spec) (Selector, error) {
	k := NewKeyword(spec.Values, false)
	if len(k.keywords) == 0 {
		return nil, fmt.Errorf("%w: keyword needs values", ErrInvalidSpec)
	}
	switch strings.ToLower(strings.TrimSpace(spec.Match)) {
	case "", "any":
	case "all":
		k.all = true
	default:
		return nil, fmt.Errorf("%w: keyword match must be any|all (got %q)", ErrInvalidSpec, spec.Match)
	}
	return k, nil
}

func (s *Keyword) Matches(rec model.CSWRecord) bool {
	if len(s.keywords) == 0 {
		return false
	}
	var seen stringSet
	if s.all {
		seen = make(stringSet, len(s.keywords))
	}
	for _, kw := range rec.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if !s.keywords.has(kw) {
			continue
		}
		if !s.all {
			return true
		}
		seen[kw] = struct{}{}
	}
	return s.all && len(seen) == len(s.keywords)
}

func (s *Keyword) String() string {
	mode := "any"
	if s.all {
		mode = "all"
	}
	return fmt.Sprintf("keyword(%s;%s)", mode, s.keywords.list())
}

// Service matches records exposing an online resource of one of the given
// service types (WMS, WFS, ...). When names are configured the resource name
// (layer or feature type) must also be one of them.
type Service struct {
	types stringSet
	names stringSet
}

func NewService(types, names []string) *Service {
	return &Service{types: newStringSet(types, strings.ToUpper), names: newStringSet(names, identity)}
}

func newService(spec Spec) (Selector, error) {
	s := NewService(spec.Values, spec.Names)
	if len(s.types) == 0 {
		return nil, fmt.Errorf("%w: service needs values", ErrInvalidSpec)
	}
	return s, nil
}

func (s *Service) Matches(rec model.CSWRecord) bool {
	for _, or := range rec.OnlineResources {
		if !s.types.has(strings.ToUpper(strings.TrimSpace(or.Type))) {
			continue
		}
		if len(s.names) == 0 || s.names.has(strings.TrimSpace(or.Name)) {
			return true
		}
	}
	return false
}

func (s *Service) String() string {
	return fmt.Sprintf("service(types=%s;names=%s)", s.types.list(), s.names.list())
}

// Organisation matches on the record's contact organisation, ignoring case.
type Organisation struct {
	names stringSet
}

func NewOrganisation(names []string) *Organisation {
	return &Organisation{names: newStringSet(names, strings.ToLower)}
}

func newOrganisation(spec Spec) (Selector, error) {
	o := NewOrganisation(spec.Values)
	if len(o.names) == 0 {
		return nil, fmt.Errorf("%w: organisation needs values", ErrInvalidSpec)
	}
	return o, nil
}

func (s *Organisation) Matches(rec model.CSWRecord) bool {
	return s.names.has(strings.ToLower(strings.TrimSpace(rec.Organisation)))
}

func (s *Organisation) String() string {
	return fmt.Sprintf("organisation(%s)", s.names.list())
}
