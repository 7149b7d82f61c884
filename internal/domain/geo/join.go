package geo

import "github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"

// Joined pairs each feature with the metric value of its county, if any.
// Values and Matched are indexed like Collection.Features.
type Joined struct {
	Metric     model.Metric
	Collection *FeatureCollection
	Values     []float64
	Matched    []bool
	// Misses counts rows whose county named no feature.
	Misses int
}

// Join attaches metric values to features by exact county name. When several
// rows share a name the last one wins, and every feature with that name gets
// its value. Neither fc nor rows is modified.
func Join(fc *FeatureCollection, rows []model.DerivedRecord, metric model.Metric) Joined {
	byName := make(map[string]float64, len(rows))
	for _, r := range rows {
		byName[r.County] = metric.Value(r)
	}

	j := Joined{
		Metric:     metric,
		Collection: fc,
		Values:     make([]float64, len(fc.Features)),
		Matched:    make([]bool, len(fc.Features)),
	}
	for i, f := range fc.Features {
		if v, ok := byName[f.Name()]; ok {
			j.Values[i] = v
			j.Matched[i] = true
		}
	}

	names := fc.Names()
	for _, r := range rows {
		if _, ok := names[r.County]; !ok {
			j.Misses++
		}
	}
	return j
}

// MatchedCount is the number of features that received a value.
func (j Joined) MatchedCount() int {
	n := 0
	for _, ok := range j.Matched {
		if ok {
			n++
		}
	}
	return n
}
