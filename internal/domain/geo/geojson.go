// Package geo loads county boundaries and joins metric values onto them.
package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/s2"
)

// Census boundary property keys.
const (
	PropName  = "NAME"
	PropState = "STATE"
	PropGeoID = "GEO_ID"
)

// FeatureCollection is a decoded GeoJSON boundary file.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one county polygon with its census properties.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   Geometry       `json:"geometry"`
}

// Geometry keeps raw coordinates so features re-encode unchanged.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`

	rings [][][]float64
}

// LoadFile reads a boundary file from disk.
func LoadFile(path string) (*FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open boundaries: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a GeoJSON FeatureCollection.
func Decode(r io.Reader) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type %q", ErrInvalidGeometry, fc.Type)
	}
	for i := range fc.Features {
		if err := fc.Features[i].Geometry.parse(); err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, fc.Features[i].Name(), err)
		}
	}
	return &fc, nil
}

func (g *Geometry) parse() error {
	switch g.Type {
	case "Polygon":
		var poly [][][]float64
		if err := json.Unmarshal(g.Coordinates, &poly); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		g.rings = poly
	case "MultiPolygon":
		var multi [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		for _, poly := range multi {
			g.rings = append(g.rings, poly...)
		}
	default:
		return fmt.Errorf("%w: unsupported geometry %q", ErrInvalidGeometry, g.Type)
	}
	for _, ring := range g.rings {
		for _, pos := range ring {
			if len(pos) < 2 {
				return fmt.Errorf("%w: short position", ErrInvalidGeometry)
			}
		}
	}
	return nil
}

// Name is the county name used for joining.
func (f Feature) Name() string { return f.prop(PropName) }

// State is the two digit state FIPS code.
func (f Feature) State() string { return f.prop(PropState) }

// GeoID is the census geography identifier.
func (f Feature) GeoID() string { return f.prop(PropGeoID) }

func (f Feature) prop(key string) string {
	s, _ := f.Properties[key].(string)
	return s
}

// Bounds is the latitude/longitude rectangle covering every ring.
func (f Feature) Bounds() s2.Rect {
	rect := s2.EmptyRect()
	for _, ring := range f.Geometry.rings {
		for _, pos := range ring {
			rect = rect.AddPoint(s2.LatLngFromDegrees(pos[1], pos[0]))
		}
	}
	return rect
}

// Bounds covers every feature in the collection.
func (fc *FeatureCollection) Bounds() s2.Rect {
	rect := s2.EmptyRect()
	for _, f := range fc.Features {
		rect = rect.Union(f.Bounds())
	}
	return rect
}

// Names returns every distinct feature name.
func (fc *FeatureCollection) Names() map[string]struct{} {
	out := make(map[string]struct{}, len(fc.Features))
	for _, f := range fc.Features {
		out[f.Name()] = struct{}{}
	}
	return out
}
