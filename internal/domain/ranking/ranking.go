// Package ranking extracts per-metric county leaderboards.
package ranking

import (
	"sort"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/model"
	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/domain/types"
)

// DefaultSize is the number of counties shown per leaderboard.
const DefaultSize = 15

// TopN returns the n rows with the largest metric value, highest first.
// Equal values keep their input order. rows is not modified.
func TopN(rows []model.DerivedRecord, metric model.Metric, n int) types.Leaderboard {
	lb := types.Leaderboard{Metric: string(metric), Entries: []types.Entry{}}
	if n <= 0 || len(rows) == 0 {
		return lb
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return metric.Value(rows[idx[a]]) > metric.Value(rows[idx[b]])
	})

	if n > len(idx) {
		n = len(idx)
	}
	lb.Entries = make([]types.Entry, n)
	for i := 0; i < n; i++ {
		r := rows[idx[i]]
		lb.Entries[i] = types.Entry{
			Rank:   i + 1,
			County: r.County,
			State:  r.State,
			Value:  metric.Value(r),
		}
	}
	return lb
}

// All builds one leaderboard per metric.
func All(rows []model.DerivedRecord, n int) map[model.Metric]types.Leaderboard {
	out := make(map[model.Metric]types.Leaderboard, len(model.Metrics))
	for _, m := range model.Metrics {
		out[m] = TopN(rows, m, n)
	}
	return out
}
