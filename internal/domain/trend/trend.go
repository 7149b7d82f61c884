// Package trend aggregates the national daily case series.
package trend

import (
	"sort"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
)

// Point is one day of the series.
type Point struct {
	Date  time.Time
	Cases float64
}

// Series is ordered by ascending date with one point per distinct date.
type Series []Point

// Aggregate sums raw cases per date over every record. A missing case
// count contributes zero.
func Aggregate(records []model.CaseRecord) Series {
	sums := make(map[time.Time]float64)
	for _, r := range records {
		d := r.Date.UTC().Truncate(24 * time.Hour)
		sums[d] += r.CaseCount()
	}

	out := make(Series, 0, len(sums))
	for d, c := range sums {
		out = append(out, Point{Date: d, Cases: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Points converts the series to its wire form.
func (s Series) Points() []types.TrendPoint {
	out := make([]types.TrendPoint, len(s))
	for i, p := range s {
		out[i] = types.TrendPoint{Date: p.Date.Format(model.DateLayout), Cases: p.Cases}
	}
	return out
}

// Span returns the first and last dates. ok is false for an empty series.
func (s Series) Span() (first, last time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s[0].Date, s[len(s)-1].Date, true
}
