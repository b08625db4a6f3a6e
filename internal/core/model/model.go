// Package model defines core domain types shared across the service.
package model

import "fmt"

type BBox struct {
	X1   float64 `json:"x1" yaml:"x1"`
	Y1   float64 `json:"y1" yaml:"y1"`
	X2   float64 `json:"x2" yaml:"x2"`
	Y2   float64 `json:"y2" yaml:"y2"`
	SRID string  `json:"srid,omitempty" yaml:"srid,omitempty"`
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

// Intersects reports whether the two boxes share any point, edges included.
func (b BBox) Intersects(o BBox) bool {
	return b.X1 <= o.X2 && o.X1 <= b.X2 && b.Y1 <= o.Y2 && o.Y1 <= b.Y2
}

func (b BBox) Center() (lon, lat float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// OnlineResource is a service endpoint advertised by a catalogue record.
type OnlineResource struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// CSWRecord is the slice of a harvested catalogue record that selectors read.
// Records are owned by the harvester and never mutated here.
type CSWRecord struct {
	ID              string           `json:"id"`
	Title           string           `json:"title,omitempty"`
	Organisation    string           `json:"organisation,omitempty"`
	Keywords        []string         `json:"keywords,omitempty"`
	OnlineResources []OnlineResource `json:"onlineResources,omitempty"`
	BBox            *BBox            `json:"bbox,omitempty"`
	Revision        uint64           `json:"revision,omitempty"`
}

type Cells []string
