package h3mapper

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	"github.com/mohammed-shakir/knownlayers/internal/geometry"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

func (m *Mapper) CellsForBBox(bb model.BBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	if bb.X2 <= bb.X1 || bb.Y2 <= bb.Y1 {
		return nil, fmt.Errorf("degenerate bbox %s", bb)
	}
	// Build a rectangular loop (lon,lat in EPSG:4326). v4 wants degrees.
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	return polyfill(outer, res)
}

// CellsForPath covers a closed or open outer ring given as [lon,lat] pairs.
func (m *Mapper) CellsForPath(ring geometry.Path, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	outer := toLoop(ring)
	if len(outer) < 3 {
		return nil, errors.New("ring has < 3 distinct vertices")
	}
	return polyfill(outer, res)
}

func (m *Mapper) CellForPoint(lon, lat float64, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 point: %w", err)
	}
	return c.String(), nil
}

// ParseCell validates an H3 cell id and returns its canonical lower-case form
// and resolution. An optional 0x prefix and upper-case digits are accepted.
func ParseCell(s string) (string, int, error) {
	c := h3.Cell(h3.IndexFromString(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", 0, fmt.Errorf("invalid H3 cell %q", s)
	}
	return c.String(), c.Resolution(), nil
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// drops the duplicated closing vertex if the ring is explicitly closed
func toLoop(ring geometry.Path) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p.Y(), Lng: p.X()})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// unique cells, sorted for determinism
func polyfill(outer h3.GeoLoop, res int) (model.Cells, error) {
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
