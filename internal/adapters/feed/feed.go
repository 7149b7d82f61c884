// Package feed fetches the county case CSV and selects yesterday's rows.
package feed

import (
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
)

// Feed is one fetch of the published dataset.
type Feed struct {
	// Date is the calendar day the current-day rows belong to.
	Date time.Time
	// FetchedAt is the loader clock's time when the body was read.
	FetchedAt time.Time

	all    []model.CaseRecord
	latest []model.CaseRecord
}

// All returns every record of the feed in file order.
func (f Feed) All() []model.CaseRecord { return f.all }

// Latest returns only the records dated Date, in file order.
func (f Feed) Latest() []model.CaseRecord { return f.latest }

// row mirrors the CSV columns. Empty numeric cells decode to nil.
type row struct {
	Date            string   `csv:"date"`
	GeoID           string   `csv:"geoid"`
	County          string   `csv:"county"`
	State           string   `csv:"state"`
	Cases           *float64 `csv:"cases"`
	CasesAvg        *float64 `csv:"cases_avg"`
	CasesAvgPer100k *float64 `csv:"cases_avg_per_100k"`
	DeathsAvg       *float64 `csv:"deaths_avg"`
}

// requiredColumns must appear in the header.
var requiredColumns = []string{"date", "county", "state", "cases", "cases_avg_per_100k"}
