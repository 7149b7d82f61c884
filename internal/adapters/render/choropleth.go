// Package render turns joined county values into map and chart artifacts.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"strconv"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/binning"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// AutoClasses is the class count of equal-width classed maps.
const AutoClasses = 6

// LeafletHead holds the tags a page needs before embedding a map fragment.
const LeafletHead template.HTML = `<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>`

// MapOptions controls the view and styling of a choropleth.
type MapOptions struct {
	CenterLat   float64
	CenterLng   float64
	Zoom        int
	FillOpacity float64
	LineOpacity float64
	Height      string
}

// DefaultMapOptions frames the contiguous United States.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		CenterLat:   48,
		CenterLng:   -102,
		Zoom:        4,
		FillOpacity: 0.5,
		LineOpacity: 0.1,
		Height:      "600px",
	}
}

// LegendItem is one class of the legend.
type LegendItem struct {
	Color string
	Lo    string
	Hi    string
}

// Artifact is an embeddable map fragment and the classing behind it.
type Artifact struct {
	Metric  model.Metric
	Legend  string
	HTML    template.HTML
	Edges   binning.Edges
	Colors  []string
	Matched int
}

type outFeature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geo.Geometry   `json:"geometry"`
}

type outCollection struct {
	Type     string       `json:"type"`
	Features []outFeature `json:"features"`
}

type fragmentData struct {
	ElementID   string
	Metric      string
	Legend      string
	Items       []LegendItem
	GeoJSON     template.JS
	Opts        MapOptions
	FillOpacity float64
}

var fragmentTmpl = template.Must(template.New("choropleth").Parse(`<div class="covid-map" data-metric="{{.Metric}}">
<div id="{{.ElementID}}" class="covid-map-canvas" style="height: {{.Opts.Height}}; width: 100%;"></div>
<div class="map-legend">
<span class="map-legend-caption">{{.Legend}}</span>
<ul>{{range .Items}}
<li><i style="background: {{.Color}}"></i><span class="lo">{{.Lo}}</span> &ndash; <span class="hi">{{.Hi}}</span></li>{{end}}
</ul>
</div>
<script>
(function () {
  var map = L.map({{.ElementID}}).setView([{{.Opts.CenterLat}}, {{.Opts.CenterLng}}], {{.Opts.Zoom}});
  L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
    attribution: "&copy; OpenStreetMap contributors"
  }).addTo(map);
  L.geoJSON({{.GeoJSON}}, {
    style: function (feature) {
      var fill = feature.properties.fill;
      return {
        fillColor: fill || "#000000",
        fillOpacity: fill ? {{.FillOpacity}} : 0,
        color: "#000000",
        weight: 1,
        opacity: {{.Opts.LineOpacity}}
      };
    },
    onEachFeature: function (feature, layer) {
      var p = feature.properties;
      layer.bindTooltip(p.NAME + (p.value === undefined ? "" : ": " + p.value));
    }
  }).addTo(map);
})();
</script>
</div>`))

// Choropleth renders j classed by edges, which must describe at least one
// class. Neither j nor edges is modified.
func Choropleth(j geo.Joined, edges binning.Edges, opts MapOptions) (Artifact, error) {
	if edges.Classes() == 0 {
		return Artifact{}, ErrNoEdges
	}
	edges = append(binning.Edges(nil), edges...)
	colors := Palette(edges.Classes())

	fc := outCollection{Type: "FeatureCollection", Features: make([]outFeature, len(j.Collection.Features))}
	for i, f := range j.Collection.Features {
		props := make(map[string]any, len(f.Properties)+2)
		for k, v := range f.Properties {
			props[k] = v
		}
		if j.Matched[i] {
			props["value"] = j.Values[i]
			if c := edges.Classify(j.Values[i]); c >= 0 {
				props["fill"] = colors[c]
			}
		}
		fc.Features[i] = outFeature{Type: f.Type, Properties: props, Geometry: f.Geometry}
	}
	raw, err := json.Marshal(fc)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode features: %w", err)
	}

	items := make([]LegendItem, len(colors))
	for i := range colors {
		items[i] = LegendItem{Color: colors[i], Lo: formatEdge(edges[i]), Hi: formatEdge(edges[i+1])}
	}

	var buf bytes.Buffer
	err = fragmentTmpl.Execute(&buf, fragmentData{
		ElementID:   "map-" + string(j.Metric),
		Metric:      string(j.Metric),
		Legend:      j.Metric.Legend(),
		Items:       items,
		GeoJSON:     template.JS(raw), //nolint:gosec // marshalled by encoding/json
		Opts:        opts,
		FillOpacity: opts.FillOpacity,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("execute template: %w", err)
	}

	return Artifact{
		Metric:  j.Metric,
		Legend:  j.Metric.Legend(),
		HTML:    template.HTML(buf.String()), //nolint:gosec // produced by html/template
		Edges:   edges,
		Colors:  colors,
		Matched: j.MatchedCount(),
	}, nil
}

func formatEdge(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
