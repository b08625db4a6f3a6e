package selector

import (
	"fmt"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	"github.com/mohammed-shakir/knownlayers/internal/geometry"
	"github.com/mohammed-shakir/knownlayers/internal/mapper"
	h3mapper "github.com/mohammed-shakir/knownlayers/internal/mapper/h3"
)

const defaultCellRes = 5

func init() {
	Register("bounds", newBounds)
	Register("cells", newCells)
}

// Bounds matches records whose bounding box intersects a fixed box.
// Records without a bounding box never match.
type Bounds struct {
	box model.BBox
}

func NewBounds(box model.BBox) *Bounds { return &Bounds{box: box} }

func newBounds(spec Spec) (Selector, error) {
	if spec.BBox == nil {
		return nil, fmt.Errorf("%w: bounds needs bbox", ErrInvalidSpec)
	}
	if err := validBox(*spec.BBox); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	return NewBounds(*spec.BBox), nil
}

func (s *Bounds) Matches(rec model.CSWRecord) bool {
	return rec.BBox != nil && s.box.Intersects(*rec.BBox)
}

func (s *Bounds) String() string { return fmt.Sprintf("bounds(%s)", s.box) }

// Cells matches records whose bounding box centre lies in a precomputed H3
// coverage. Coverage is fixed at build time so Matches only indexes the set.
type Cells struct {
	m     mapper.Interface
	res   int
	cells stringSet
}

// NewCells covers either the given cells or, when cells is empty, the ring.
// Given cells must be valid H3 ids at res; they are stored in canonical form.
func NewCells(m mapper.Interface, res int, cells []string, ring geometry.Path) (*Cells, error) {
	if m == nil {
		m = h3mapper.New()
	}
	if len(cells) > 0 {
		canon, err := canonicalCells(cells, res)
		if err != nil {
			return nil, err
		}
		cells = canon
	} else {
		if len(ring) == 0 {
			return nil, fmt.Errorf("%w: cells needs cells or polygon", ErrInvalidSpec)
		}
		var err error
		cells, err = m.CellsForPath(ring, res)
		if err != nil {
			return nil, fmt.Errorf("%w: cover polygon: %w", ErrInvalidSpec, err)
		}
	}
	return &Cells{m: m, res: res, cells: newStringSet(cells, identity)}, nil
}

func newCells(spec Spec) (Selector, error) {
	res := spec.Res
	if res == 0 {
		res = defaultCellRes
		// explicit cells carry their own resolution
		if len(spec.Cells) > 0 {
			if _, r, err := h3mapper.ParseCell(spec.Cells[0]); err == nil {
				res = r
			}
		}
	}
	var ring geometry.Path
	if len(spec.Polygon) > 0 {
		var err error
		ring, err = geometry.Normalize(spec.Polygon)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSpec, err)
		}
	}
	if len(spec.Polygon) == 0 && len(spec.Cells) == 0 && spec.BBox != nil {
		cells, err := h3mapper.New().CellsForBBox(*spec.BBox, res)
		if err != nil {
			return nil, fmt.Errorf("%w: cover bbox: %w", ErrInvalidSpec, err)
		}
		return NewCells(nil, res, cells, nil)
	}
	return NewCells(nil, res, spec.Cells, ring)
}

func (s *Cells) Matches(rec model.CSWRecord) bool {
	if rec.BBox == nil || len(s.cells) == 0 {
		return false
	}
	lon, lat := rec.BBox.Center()
	c, err := s.m.CellForPoint(lon, lat, s.res)
	if err != nil {
		return false
	}
	return s.cells.has(c)
}

func (s *Cells) String() string { return fmt.Sprintf("cells(res=%d;%s)", s.res, s.cells.list()) }

func canonicalCells(cells []string, res int) ([]string, error) {
	out := make([]string, 0, len(cells))
	for i, raw := range cells {
		c, r, err := h3mapper.ParseCell(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: cells[%d]: %w", ErrInvalidSpec, i, err)
		}
		if r != res {
			return nil, fmt.Errorf("%w: cells[%d] %s has resolution %d, want %d", ErrInvalidSpec, i, c, r, res)
		}
		out = append(out, c)
	}
	return out, nil
}

func validBox(b model.BBox) error {
	if !(b.X1 >= -180 && b.X1 <= 180 && b.X2 >= -180 && b.X2 <= 180) {
		return fmt.Errorf("longitude must be in [-180,180]")
	}
	if !(b.Y1 >= -90 && b.Y1 <= 90 && b.Y2 >= -90 && b.Y2 <= 90) {
		return fmt.Errorf("latitude must be in [-90,90]")
	}
	if b.X2 < b.X1 || b.Y2 < b.Y1 {
		return fmt.Errorf("coordinates must satisfy x2>=x1 and y2>=y1")
	}
	return nil
}
