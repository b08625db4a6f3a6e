// Package geometry normalizes loosely typed coordinate arrays into strict
// [lon,lat] pairs for known layer outlines and bounding boxes.
package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mohammed-shakir/knownlayers/internal/core/model"
)

var ErrInvalidGeometryInput = errors.New("invalid geometry input")

// Pair is one [x,y] position; serialized as a two element JSON array.
type Pair [2]float64

func (p Pair) X() float64 { return p[0] }
func (p Pair) Y() float64 { return p[1] }

// Path is an ordered sequence of pairs.
type Path []Pair

// Normalize keeps the first two components of every entry, in order.
// Extra components (elevation, measure) are dropped.
func Normalize(coords [][]float64) (Path, error) {
	out := make(Path, 0, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: entry %d has %d components (need >= 2)", ErrInvalidGeometryInput, i, len(c))
		}
		out = append(out, Pair{c[0], c[1]})
	}
	return out, nil
}

// NormalizeAny accepts the shape produced by decoding JSON into any:
// a slice of slices of numbers.
func NormalizeAny(coords []any) (Path, error) {
	out := make(Path, 0, len(coords))
	for i, raw := range coords {
		entry, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is %T, not an array", ErrInvalidGeometryInput, i, raw)
		}
		if len(entry) < 2 {
			return nil, fmt.Errorf("%w: entry %d has %d components (need >= 2)", ErrInvalidGeometryInput, i, len(entry))
		}
		x, err := toFloat(entry[0])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d x: %w", ErrInvalidGeometryInput, i, err)
		}
		y, err := toFloat(entry[1])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d y: %w", ErrInvalidGeometryInput, i, err)
		}
		out = append(out, Pair{x, y})
	}
	return out, nil
}

// NormalizeJSON decodes a JSON array of coordinate arrays and normalizes it.
func NormalizeJSON(raw []byte) (Path, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v []any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: parse json: %w", ErrInvalidGeometryInput, err)
	}
	return NormalizeAny(v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("parse number %q: %w", n.String(), err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported component type %T", v)
	}
}

// Envelope returns the bounding box of the path in EPSG:4326.
func (p Path) Envelope() (model.BBox, bool) {
	if len(p) == 0 {
		return model.BBox{}, false
	}
	bb := model.BBox{
		X1: math.Inf(1), Y1: math.Inf(1),
		X2: math.Inf(-1), Y2: math.Inf(-1),
		SRID: "EPSG:4326",
	}
	for _, pt := range p {
		bb.X1 = math.Min(bb.X1, pt[0])
		bb.Y1 = math.Min(bb.Y1, pt[1])
		bb.X2 = math.Max(bb.X2, pt[0])
		bb.Y2 = math.Max(bb.Y2, pt[1])
	}
	return bb, true
}

// Clone returns a copy that shares no backing array with p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}
