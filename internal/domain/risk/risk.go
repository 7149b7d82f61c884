// Package risk derives the potential-risk metric from current-day rows.
package risk

import (
	"math"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// Drop reasons reported in Result.Dropped.
const (
	DropMissingCases       = "missing_cases"
	DropNegativeCases      = "negative_cases"
	DropInvalidDenominator = "invalid_denominator"
	DropNonFiniteRisk      = "non_finite_risk"
)

const (
	per100k   = 100000
	percent   = 100
	precision = 1e4 // four decimal places
)

// Result is the derived set plus a count of excluded rows per reason.
type Result struct {
	Rows    []model.DerivedRecord
	Dropped map[string]int
}

// DroppedTotal sums all exclusions.
func (r Result) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// PotentialRisk computes round((cases/per100k)/100000*100, 4).
// ok is false when the result would be null, NaN or infinite, or when the
// denominator is not a positive finite number.
func PotentialRisk(cases, avgPer100k float64) (float64, bool) {
	if !finite(cases) || cases < 0 {
		return 0, false
	}
	if !finite(avgPer100k) || avgPer100k <= 0 {
		return 0, false
	}
	v := round4(cases / avgPer100k / per100k * percent)
	if !finite(v) || v < 0 {
		return 0, false
	}
	return v, true
}

// Derive keeps the valid rows of records, in input order, and attaches
// their potential risk. Invalid rows are counted, never returned.
func Derive(records []model.CaseRecord) Result {
	res := Result{
		Rows:    make([]model.DerivedRecord, 0, len(records)),
		Dropped: make(map[string]int),
	}
	for _, r := range records {
		switch {
		case r.Cases == nil || !finite(*r.Cases):
			res.Dropped[DropMissingCases]++
			continue
		case *r.Cases < 0:
			res.Dropped[DropNegativeCases]++
			continue
		case r.CasesAvgPer100k == nil || !finite(*r.CasesAvgPer100k) || *r.CasesAvgPer100k <= 0:
			res.Dropped[DropInvalidDenominator]++
			continue
		}

		pr, ok := PotentialRisk(*r.Cases, *r.CasesAvgPer100k)
		if !ok {
			res.Dropped[DropNonFiniteRisk]++
			continue
		}
		res.Rows = append(res.Rows, model.DerivedRecord{
			County:          r.County,
			State:           r.State,
			GeoID:           r.GeoID,
			Date:            r.Date,
			Cases:           *r.Cases,
			CasesAvgPer100k: *r.CasesAvgPer100k,
			PotentialRisk:   pr,
		})
	}
	return res
}

// round4 rounds half to even at four decimals, matching numpy's round.
func round4(v float64) float64 {
	return math.RoundToEven(v*precision) / precision
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
