// Package feedgen produces a synthetic county case feed and matching
// boundary file so the service can run without the public data sources.
package feedgen

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/jszwec/csvutil"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/geo"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// Grid layout of the square county polygons.
const (
	gridColumns = 20
	cellDegrees = 0.5
	originLat   = 30.0
	originLng   = -110.0
)

// Population and growth ranges.
const (
	minPopulation   = 5_000
	populationScale = 250_000
	baseCasesScale  = 4_000
	dailyGrowthMax  = 0.03
)

type state struct{ name, fips string }

var states = []state{
	{"Arizona", "04"}, {"California", "06"}, {"Colorado", "08"}, {"Florida", "12"},
	{"Georgia", "13"}, {"Illinois", "17"}, {"New York", "36"}, {"Ohio", "39"},
	{"Texas", "48"}, {"Washington", "53"},
}

// County is one generated county.
type County struct {
	Name       string
	State      string
	StateFIPS  string
	GeoID      string
	Population float64
	row, col   int
}

// Row mirrors one line of the feed CSV. A nil cell is written empty.
type Row struct {
	Date            string   `csv:"date"`
	GeoID           string   `csv:"geoid"`
	County          string   `csv:"county"`
	State           string   `csv:"state"`
	Cases           *float64 `csv:"cases"`
	CasesAvg        *float64 `csv:"cases_avg"`
	CasesAvgPer100k *float64 `csv:"cases_avg_per_100k"`
}

// Dataset is a generated feed plus its boundaries.
type Dataset struct {
	Counties   []County
	Rows       []Row
	Boundaries *geo.FeatureCollection
}

// Generate builds a deterministic data set for cfg. The same config always
// yields the same rows.
func Generate(cfg Config) (*Dataset, error) {
	cfg = cfg.withDefaults()
	if cfg.MissingRate < 0 || cfg.MissingRate >= 1 {
		return nil, ErrMissingRate
	}
	r := rand.New(rand.NewSource(cfg.Seed))

	counties := make([]County, cfg.Counties)
	for i := range counties {
		st := states[i%len(states)]
		counties[i] = County{
			Name:       fmt.Sprintf("Synthetic %03d", i+1),
			State:      st.name,
			StateFIPS:  st.fips,
			GeoID:      fmt.Sprintf("0500000US%s%03d", st.fips, i+1),
			Population: math.Floor(minPopulation + r.ExpFloat64()*populationScale),
			row:        i / gridColumns,
			col:        i % gridColumns,
		}
	}

	ds := &Dataset{Counties: counties, Rows: make([]Row, 0, cfg.Counties*cfg.Days)}
	for _, c := range counties {
		cases := math.Floor(1 + r.ExpFloat64()*baseCasesScale*c.Population/populationScale)
		growth := r.Float64() * dailyGrowthMax
		for d := cfg.Days - 1; d >= 0; d-- {
			day := cfg.End.AddDate(0, 0, -d)
			added := math.Ceil(cases * growth)
			cases += added
			per100k := math.Max(0.01, math.Round(added/c.Population*100_000*100)/100)

			row := Row{
				Date:            day.Format(model.DateLayout),
				GeoID:           c.GeoID,
				County:          c.Name,
				State:           c.State,
				Cases:           ptr(cases),
				CasesAvg:        ptr(added),
				CasesAvgPer100k: ptr(per100k),
			}
			if d == 0 && r.Float64() < cfg.MissingRate {
				row.Cases = nil
			}
			ds.Rows = append(ds.Rows, row)
		}
	}

	fc, err := boundaries(counties)
	if err != nil {
		return nil, err
	}
	ds.Boundaries = fc
	return ds, nil
}

// CSV encodes the rows with a header line.
func (ds *Dataset) CSV() ([]byte, error) {
	b, err := csvutil.Marshal(ds.Rows)
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return b, nil
}

// GeoJSON encodes the boundary file.
func (ds *Dataset) GeoJSON() ([]byte, error) {
	b, err := json.Marshal(ds.Boundaries)
	if err != nil {
		return nil, fmt.Errorf("encode boundaries: %w", err)
	}
	return b, nil
}

func boundaries(counties []County) (*geo.FeatureCollection, error) {
	fc := &geo.FeatureCollection{Type: "FeatureCollection", Features: make([]geo.Feature, 0, len(counties))}
	for _, c := range counties {
		lat := originLat + float64(c.row)*cellDegrees
		lng := originLng + float64(c.col)*cellDegrees
		ring := [][][]float64{{
			{lng, lat},
			{lng + cellDegrees, lat},
			{lng + cellDegrees, lat + cellDegrees},
			{lng, lat + cellDegrees},
			{lng, lat},
		}}
		coords, err := json.Marshal(ring)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, geo.Feature{
			Type: "Feature",
			Properties: map[string]any{
				geo.PropName:  c.Name,
				geo.PropState: c.StateFIPS,
				geo.PropGeoID: c.GeoID,
			},
			Geometry: geo.Geometry{Type: "Polygon", Coordinates: coords},
		})
	}
	return fc, nil
}

func ptr(v float64) *float64 { return &v }

// Center returns the middle of the county's square as (lat, lng).
func (c County) Center() (float64, float64) {
	return originLat + (float64(c.row)+0.5)*cellDegrees, originLng + (float64(c.col)+0.5)*cellDegrees
}
