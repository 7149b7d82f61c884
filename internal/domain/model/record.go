// Package model contains the records passed between pipeline stages.
package model

import (
	"fmt"
	"time"
)

// DateLayout is the feed's calendar date format.
const DateLayout = "2006-01-02"

// CaseRecord is one county on one day as published by the feed.
// Nullable numeric columns are pointers; nil means the cell was empty.
type CaseRecord struct {
	Date            time.Time
	County          string
	State           string
	GeoID           string
	Cases           *float64
	CasesAvgPer100k *float64
	CasesAvg        *float64
	DeathsAvg       *float64
}

// CaseCount returns the raw case count, treating a missing cell as zero.
func (r CaseRecord) CaseCount() float64 {
	if r.Cases == nil {
		return 0
	}
	return *r.Cases
}

// DerivedRecord is a valid current-day row with its potential risk.
type DerivedRecord struct {
	County          string
	State           string
	GeoID           string
	Date            time.Time
	Cases           float64
	CasesAvgPer100k float64
	PotentialRisk   float64
}

// Metric names one of the three mapped columns.
type Metric string

// The mapped metrics.
const (
	MetricCases         Metric = "cases"
	MetricAvgPer100k    Metric = "cases_avg_per_100k"
	MetricPotentialRisk Metric = "potential_risk"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{MetricCases, MetricAvgPer100k, MetricPotentialRisk}

// ParseMetric accepts a metric name or one of its short route aliases.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case string(MetricCases), "total":
		return MetricCases, nil
	case string(MetricAvgPer100k), "100k":
		return MetricAvgPer100k, nil
	case string(MetricPotentialRisk), "potential", "risk":
		return MetricPotentialRisk, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Value extracts the metric column from a derived record.
func (m Metric) Value(r DerivedRecord) float64 {
	switch m {
	case MetricAvgPer100k:
		return r.CasesAvgPer100k
	case MetricPotentialRisk:
		return r.PotentialRisk
	default:
		return r.Cases
	}
}

// Legend is the caption shown under the metric's map.
func (m Metric) Legend() string {
	switch m {
	case MetricAvgPer100k:
		return "Average Infected Per 100k"
	case MetricPotentialRisk:
		return "Potential Risk of Becoming Infected"
	default:
		return "Total Covid Cases"
	}
}

// Title is the page heading for the metric.
func (m Metric) Title() string {
	switch m {
	case MetricAvgPer100k:
		return "Cases Per 100k"
	case MetricPotentialRisk:
		return "Potential Risk"
	default:
		return "Total Cases"
	}
}

// RankBinned reports whether the metric's map uses rank-based edges.
// The per-100k map is classed automatically.
func (m Metric) RankBinned() bool {
	return m != MetricAvgPer100k
}
