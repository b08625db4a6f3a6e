// Package knownlayer holds the known layer entity: a curated grouping of
// catalogue records plus the rendering and proxy configuration a map client
// needs to draw it.
//
// Layers are assembled with a Builder during configuration load and are
// read-only once built, apart from the feature count telemetry.
package knownlayer

import (
	"maps"
	"slices"
	"sync/atomic"

	"github.com/mohammed-shakir/knownlayers/internal/geometry"
	"github.com/mohammed-shakir/knownlayers/internal/selector"
)

// Point is a pixel offset.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Size is a width/height in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Filter is one UI filter definition. The layer carries it for the client
// and does not interpret it.
type Filter struct {
	Type      string            `json:"type" yaml:"type"`
	Label     string            `json:"label,omitempty" yaml:"label,omitempty"`
	Value     string            `json:"value,omitempty" yaml:"value,omitempty"`
	Options   []string          `json:"options,omitempty" yaml:"options,omitempty"`
	Parameter map[string]string `json:"parameter,omitempty" yaml:"parameter,omitempty"`
}

// Clone returns a deep copy of f.
func (f Filter) Clone() Filter {
	f.Options = slices.Clone(f.Options)
	f.Parameter = maps.Clone(f.Parameter)
	return f
}

type FilterCollection struct {
	Mandatory []Filter `json:"mandatoryFilters,omitempty" yaml:"mandatory,omitempty"`
	Optional  []Filter `json:"optionalFilters,omitempty" yaml:"optional,omitempty"`
}

// Clone returns a deep copy of fc; nil filter lists stay nil.
func (fc FilterCollection) Clone() FilterCollection {
	return FilterCollection{Mandatory: cloneFilters(fc.Mandatory), Optional: cloneFilters(fc.Optional)}
}

func cloneFilters(in []Filter) []Filter {
	if in == nil {
		return nil
	}
	out := make([]Filter, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}

// KnownLayer is safe for concurrent reads. FeatureCount and SetFeatureCount
// are best-effort display telemetry and must not be used for correctness.
type KnownLayer struct {
	attrs
	featureCount atomic.Int64
}

// attrs is everything fixed at build time.
type attrs struct {
	id       string
	selector selector.Selector

	name        string
	description string
	hidden      bool
	group       string
	order       string

	proxyURL               string
	proxyGetFeatureInfoURL string
	proxyCountURL          string
	proxyStyleURL          string
	proxyDownloadURL       string

	iconURL      string
	polygonColor string
	iconAnchor   *Point
	iconSize     *Size
	mapStyles    string
	legendImg    string
	singleTile   bool

	supportsCSVDownloads    bool
	serverType              string
	stackdriverServiceGroup string
	endPoint                string

	polygon geometry.Path
	bbox    geometry.Path
	filters *FilterCollection
}

func (l *KnownLayer) ID() string                  { return l.id }
func (l *KnownLayer) Selector() selector.Selector { return l.selector }
func (l *KnownLayer) Name() string                { return l.name }
func (l *KnownLayer) Description() string         { return l.description }
func (l *KnownLayer) Hidden() bool                { return l.hidden }
func (l *KnownLayer) Group() string               { return l.group }
func (l *KnownLayer) Order() string               { return l.order }

func (l *KnownLayer) ProxyURL() string               { return l.proxyURL }
func (l *KnownLayer) ProxyGetFeatureInfoURL() string { return l.proxyGetFeatureInfoURL }
func (l *KnownLayer) ProxyCountURL() string          { return l.proxyCountURL }
func (l *KnownLayer) ProxyStyleURL() string          { return l.proxyStyleURL }
func (l *KnownLayer) ProxyDownloadURL() string       { return l.proxyDownloadURL }

func (l *KnownLayer) IconURL() string      { return l.iconURL }
func (l *KnownLayer) PolygonColor() string { return l.polygonColor }
func (l *KnownLayer) MapStyles() string    { return l.mapStyles }
func (l *KnownLayer) LegendImg() string    { return l.legendImg }
func (l *KnownLayer) SingleTile() bool     { return l.singleTile }

// IconAnchor reports the anchor offset and whether one was configured.
func (l *KnownLayer) IconAnchor() (Point, bool) {
	if l.iconAnchor == nil {
		return Point{}, false
	}
	return *l.iconAnchor, true
}

func (l *KnownLayer) IconSize() (Size, bool) {
	if l.iconSize == nil {
		return Size{}, false
	}
	return *l.iconSize, true
}

func (l *KnownLayer) SupportsCSVDownloads() bool      { return l.supportsCSVDownloads }
func (l *KnownLayer) ServerType() string              { return l.serverType }
func (l *KnownLayer) StackdriverServiceGroup() string { return l.stackdriverServiceGroup }
func (l *KnownLayer) EndPoint() string                { return l.endPoint }

// Polygon returns a copy of the normalized outline.
func (l *KnownLayer) Polygon() geometry.Path { return l.polygon.Clone() }

// BBox returns a copy of the normalized bounding box ring.
func (l *KnownLayer) BBox() geometry.Path { return l.bbox.Clone() }

func (l *KnownLayer) FilterCollection() (FilterCollection, bool) {
	if l.filters == nil {
		return FilterCollection{}, false
	}
	return l.filters.Clone(), true
}

func (l *KnownLayer) FeatureCount() int { return int(l.featureCount.Load()) }

func (l *KnownLayer) SetFeatureCount(n int) { l.featureCount.Store(int64(n)) }
