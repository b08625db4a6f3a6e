// Package mapper converts between geometric coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/knownlayers/internal/core/model"
	"github.com/mohammed-shakir/knownlayers/internal/geometry"
)

type Interface interface {
	CellsForBBox(bb model.BBox, res int) (model.Cells, error)
	CellsForPath(ring geometry.Path, res int) (model.Cells, error)
	CellForPoint(lon, lat float64, res int) (string, error)
}
