package knownlayer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/knownlayers/internal/geometry"
)

// View is the JSON shape handed to the map client.
type View struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	Description             string            `json:"description"`
	Hidden                  bool              `json:"hidden"`
	Group                   string            `json:"group,omitempty"`
	Order                   string            `json:"order"`
	ProxyURL                string            `json:"proxyUrl,omitempty"`
	ProxyGetFeatureInfoURL  string            `json:"proxyGetFeatureInfoUrl,omitempty"`
	ProxyCountURL           string            `json:"proxyCountUrl,omitempty"`
	ProxyStyleURL           string            `json:"proxyStyleUrl,omitempty"`
	ProxyDownloadURL        string            `json:"proxyDownloadUrl,omitempty"`
	IconURL                 string            `json:"iconUrl,omitempty"`
	PolygonColor            string            `json:"polygonColor,omitempty"`
	IconAnchor              *Point            `json:"iconAnchor,omitempty"`
	IconSize                *Size             `json:"iconSize,omitempty"`
	MapStyles               string            `json:"mapStyles,omitempty"`
	LegendImg               string            `json:"legendImg,omitempty"`
	SingleTile              bool              `json:"singleTile"`
	FeatureCount            int               `json:"feature_count"`
	SupportsCSVDownloads    bool              `json:"supportsCsvDownloads"`
	ServerType              string            `json:"serverType,omitempty"`
	StackdriverServiceGroup string            `json:"stackdriverServiceGroup,omitempty"`
	EndPoint                string            `json:"endPoint,omitempty"`
	Polygon                 geometry.Path     `json:"polygon,omitempty"`
	BBox                    geometry.Path     `json:"bbox,omitempty"`
	FilterCollection        *FilterCollection `json:"filterCollection,omitempty"`
}

func (l *KnownLayer) View() View {
	v := View{
		ID:                      l.id,
		Name:                    l.name,
		Description:             l.description,
		Hidden:                  l.hidden,
		Group:                   l.group,
		Order:                   l.order,
		ProxyURL:                l.proxyURL,
		ProxyGetFeatureInfoURL:  l.proxyGetFeatureInfoURL,
		ProxyCountURL:           l.proxyCountURL,
		ProxyStyleURL:           l.proxyStyleURL,
		ProxyDownloadURL:        l.proxyDownloadURL,
		IconURL:                 l.iconURL,
		PolygonColor:            l.polygonColor,
		MapStyles:               l.mapStyles,
		LegendImg:               l.legendImg,
		SingleTile:              l.singleTile,
		FeatureCount:            l.FeatureCount(),
		SupportsCSVDownloads:    l.supportsCSVDownloads,
		ServerType:              l.serverType,
		StackdriverServiceGroup: l.stackdriverServiceGroup,
		EndPoint:                l.endPoint,
		Polygon:                 l.Polygon(),
		BBox:                    l.BBox(),
	}
	if p, ok := l.IconAnchor(); ok {
		v.IconAnchor = &p
	}
	if s, ok := l.IconSize(); ok {
		v.IconSize = &s
	}
	if fc, ok := l.FilterCollection(); ok {
		v.FilterCollection = &fc
	}
	return v
}

func (l *KnownLayer) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(l.View())
	if err != nil {
		return nil, fmt.Errorf("marshal known layer %q: %w", l.id, err)
	}
	return b, nil
}

func (l *KnownLayer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "KnownLayer [name=%s, id=%s, hidden=%t, group=%s, order=%s", l.name, l.id, l.hidden, l.group, l.order)
	fmt.Fprintf(&b, ", selector=%v, feature_count=%d, singleTile=%t", l.selector, l.FeatureCount(), l.singleTile)
	if l.serverType != "" {
		fmt.Fprintf(&b, ", serverType=%s", l.serverType)
	}
	b.WriteString("]")
	return b.String()
}
