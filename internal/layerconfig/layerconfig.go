// Package layerconfig loads known layer definitions from YAML and builds the
// registry from them.
package layerconfig

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/knownlayers/internal/knownlayer"
	"github.com/mohammed-shakir/knownlayers/internal/registry"
	"github.com/mohammed-shakir/knownlayers/internal/selector"
)

// generated ids are UUIDv5 in this namespace over "<index>:<name>"
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:knownlayers:layer"))

type File struct {
	Layers []Layer `yaml:"layers"`
}

type Layer struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Hidden      bool    `yaml:"hidden"`
	Group       string  `yaml:"group"`
	Order       *string `yaml:"order"`

	ProxyURL               string `yaml:"proxyUrl"`
	ProxyGetFeatureInfoURL string `yaml:"proxyGetFeatureInfoUrl"`
	ProxyCountURL          string `yaml:"proxyCountUrl"`
	ProxyStyleURL          string `yaml:"proxyStyleUrl"`
	ProxyDownloadURL       string `yaml:"proxyDownloadUrl"`

	IconURL      string            `yaml:"iconUrl"`
	PolygonColor string            `yaml:"polygonColor"`
	IconAnchor   *knownlayer.Point `yaml:"iconAnchor"`
	IconSize     *knownlayer.Size  `yaml:"iconSize"`
	MapStyles    string            `yaml:"mapStyles"`
	LegendImg    string            `yaml:"legendImg"`
	SingleTile   bool              `yaml:"singleTile"`

	SupportsCSVDownloads    bool   `yaml:"supportsCsvDownloads"`
	ServerType              string `yaml:"serverType"`
	StackdriverServiceGroup string `yaml:"stackdriverServiceGroup"`
	EndPoint                string `yaml:"endPoint"`

	Polygon          [][]float64                  `yaml:"polygon"`
	BBox             [][]float64                  `yaml:"bbox"`
	FilterCollection *knownlayer.FilterCollection `yaml:"filterCollection"`

	Selector *selector.Spec `yaml:"selector"`
}

// Parse decodes a layer file. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decode layers yaml: %w", err)
	}
	return f, nil
}

// Build turns every definition into a layer, in file order.
func (f File) Build() ([]*knownlayer.KnownLayer, error) {
	out := make([]*knownlayer.KnownLayer, 0, len(f.Layers))
	for i, def := range f.Layers {
		l, err := def.build(i)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, def.label(), err)
		}
		out = append(out, l)
	}
	return out, nil
}

// Registry builds the layers and the registry over them.
func (f File) Registry() (*registry.Registry, error) {
	layers, err := f.Build()
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(layers...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}

// Load reads path and builds the registry.
func Load(path string) (*registry.Registry, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layers file: %w", err)
	}
	defer func() { _ = fh.Close() }()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Registry()
}

// GeneratedID is the id given to the layer at index when none is configured.
func GeneratedID(index int, name string) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d:%s", index, name))).String()
}

func (def Layer) label() string {
	if def.ID != "" {
		return def.ID
	}
	if def.Name != "" {
		return def.Name
	}
	return "unnamed"
}

func (def Layer) build(index int) (*knownlayer.KnownLayer, error) {
	if def.Selector == nil {
		return nil, knownlayer.ErrMissingSelector
	}
	sel, err := selector.Build(*def.Selector)
	if err != nil {
		return nil, fmt.Errorf("selector: %w", err)
	}

	id := strings.TrimSpace(def.ID)
	if id == "" {
		id = GeneratedID(index, def.Name)
	}

	b := knownlayer.NewBuilder(id, sel)
	b.SetName(def.Name)
	b.SetDescription(def.Description)
	b.SetHidden(def.Hidden)
	b.SetGroup(def.Group)
	b.SetOrder(def.Order)

	b.SetProxyURL(def.ProxyURL)
	b.SetProxyGetFeatureInfoURL(def.ProxyGetFeatureInfoURL)
	b.SetProxyCountURL(def.ProxyCountURL)
	b.SetProxyStyleURL(def.ProxyStyleURL)
	b.SetProxyDownloadURL(def.ProxyDownloadURL)

	b.SetIconURL(def.IconURL)
	b.SetPolygonColor(def.PolygonColor)
	if def.IconAnchor != nil {
		b.SetIconAnchor(*def.IconAnchor)
	}
	if def.IconSize != nil {
		b.SetIconSize(*def.IconSize)
	}
	b.SetMapStyles(def.MapStyles)
	b.SetLegendImg(def.LegendImg)
	b.SetSingleTile(def.SingleTile)

	b.SetSupportsCSVDownloads(def.SupportsCSVDownloads)
	b.SetServerType(def.ServerType)
	b.SetStackdriverServiceGroup(def.StackdriverServiceGroup)
	b.SetEndPoint(def.EndPoint)

	if def.Polygon != nil {
		if err := b.SetPolygon(def.Polygon); err != nil {
			return nil, err
		}
	}
	if def.BBox != nil {
		if err := b.SetBBox(def.BBox); err != nil {
			return nil, err
		}
	}
	if def.FilterCollection != nil {
		b.SetFilterCollection(*def.FilterCollection)
	}
	return b.Build()
}
