package knownlayer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/knownlayers/internal/geometry"
	"github.com/mohammed-shakir/knownlayers/internal/selector"
)

var (
	ErrMissingID       = errors.New("known layer id is required")
	ErrMissingSelector = errors.New("known layer selector is required")
)

// Builder accumulates configuration for one layer. id and selector are fixed
// at creation; everything else may be set in any order before Build.
type Builder struct {
	a attrs
}

func NewBuilder(id string, sel selector.Selector) *Builder {
	return &Builder{a: attrs{id: strings.TrimSpace(id), selector: sel}}
}

func (b *Builder) SetName(v string)        { b.a.name = v }
func (b *Builder) SetDescription(v string) { b.a.description = v }
func (b *Builder) SetHidden(v bool)        { b.a.hidden = v }
func (b *Builder) SetGroup(v string)       { b.a.group = v }

// SetOrder stores the sort key; nil becomes "".
func (b *Builder) SetOrder(v *string) {
	if v == nil {
		b.a.order = ""
		return
	}
	b.a.order = *v
}

func (b *Builder) SetProxyURL(v string)               { b.a.proxyURL = v }
func (b *Builder) SetProxyGetFeatureInfoURL(v string) { b.a.proxyGetFeatureInfoURL = v }
func (b *Builder) SetProxyCountURL(v string)          { b.a.proxyCountURL = v }
func (b *Builder) SetProxyStyleURL(v string)          { b.a.proxyStyleURL = v }
func (b *Builder) SetProxyDownloadURL(v string)       { b.a.proxyDownloadURL = v }

func (b *Builder) SetIconURL(v string)      { b.a.iconURL = v }
func (b *Builder) SetPolygonColor(v string) { b.a.polygonColor = v }
func (b *Builder) SetMapStyles(v string)    { b.a.mapStyles = v }
func (b *Builder) SetLegendImg(v string)    { b.a.legendImg = v }
func (b *Builder) SetSingleTile(v bool)     { b.a.singleTile = v }

func (b *Builder) SetIconAnchor(p Point) { b.a.iconAnchor = &p }
func (b *Builder) SetIconSize(s Size)    { b.a.iconSize = &s }

func (b *Builder) SetSupportsCSVDownloads(v bool)      { b.a.supportsCSVDownloads = v }
func (b *Builder) SetServerType(v string)              { b.a.serverType = v }
func (b *Builder) SetStackdriverServiceGroup(v string) { b.a.stackdriverServiceGroup = v }
func (b *Builder) SetEndPoint(v string)                { b.a.endPoint = v }

func (b *Builder) SetFilterCollection(fc FilterCollection) {
	fc = fc.Clone()
	b.a.filters = &fc
}

// SetPolygon normalizes coords to [x,y] pairs and replaces any earlier
// outline. On error the previous value is kept.
func (b *Builder) SetPolygon(coords [][]float64) error {
	p, err := geometry.Normalize(coords)
	if err != nil {
		return fmt.Errorf("polygon: %w", err)
	}
	b.a.polygon = p
	return nil
}

// SetBBox is SetPolygon for the bounding box ring.
func (b *Builder) SetBBox(coords [][]float64) error {
	p, err := geometry.Normalize(coords)
	if err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	b.a.bbox = p
	return nil
}

// Build returns the finished layer. The builder may keep being used; later
// changes do not affect layers already built.
func (b *Builder) Build() (*KnownLayer, error) {
	if b.a.id == "" {
		return nil, ErrMissingID
	}
	if b.a.selector == nil {
		return nil, fmt.Errorf("layer %q: %w", b.a.id, ErrMissingSelector)
	}
	l := &KnownLayer{attrs: b.a}
	l.polygon = b.a.polygon.Clone()
	l.bbox = b.a.bbox.Clone()
	if b.a.filters != nil {
		fc := b.a.filters.Clone()
		l.filters = &fc
	}
	return l, nil
}
