// Package types holds read shapes shared by the app and HTTP layers.
package types

// Entry is one row of a county leaderboard.
type Entry struct {
	Rank   int     `json:"rank"`
	County string  `json:"county"`
	State  string  `json:"state"`
	Value  float64 `json:"value"`
}

// Leaderboard is the top of one metric, highest first.
type Leaderboard struct {
	Metric  string  `json:"metric"`
	Entries []Entry `json:"entries"`
}

// TrendPoint is the summed case count of one day.
type TrendPoint struct {
	Date  string  `json:"date"`
	Cases float64 `json:"cases"`
}
