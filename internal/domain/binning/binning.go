// Package binning computes rank-based choropleth class edges.
//
// Edges are order statistics read from the top of a column: the minimum,
// the 448th, 223rd, 120th, 57th, 29th and 7th largest values, and the
// maximum. The spacing puts most classes at the high end of heavy-tailed
// distributions. Edges belong to the snapshot that produced them.
package binning

import (
	"math"
	"sort"
)

// RankOffsets are the "Nth largest" positions between min and max.
var RankOffsets = []int{448, 223, 120, 57, 29, 7}

// EdgeCount is the number of edges RankEdges returns.
const EdgeCount = 8

// Edges is an ordered, non-decreasing set of class thresholds.
type Edges []float64

// Classes is the number of intervals the edges describe.
func (e Edges) Classes() int {
	if len(e) < 2 {
		return 0
	}
	return len(e) - 1
}

// Min returns the lowest edge.
func (e Edges) Min() float64 { return e[0] }

// Max returns the highest edge.
func (e Edges) Max() float64 { return e[len(e)-1] }

// Classify returns the class index of v in [0, Classes()), or -1 when v is
// outside [Min, Max] or not finite. Intervals are closed on the right, with
// the first one also closed on the left, so a value equal to an interior
// edge falls in the lower class. Duplicate edges leave empty classes.
func (e Edges) Classify(v float64) int {
	if e.Classes() == 0 || math.IsNaN(v) || v < e.Min() || v > e.Max() {
		return -1
	}
	for i := 1; i < len(e); i++ {
		if v <= e[i] {
			return i - 1
		}
	}
	return e.Classes() - 1
}

// RankEdges computes the eight edges of values. The input is not modified.
// A rank larger than the column clamps to the minimum value.
func RankEdges(values []float64) (Edges, error) {
	if len(values) == 0 {
		return nil, ErrEmptyColumn
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	for _, v := range sorted {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNonFinite
		}
	}
	sort.Float64s(sorted)

	edges := make(Edges, 0, EdgeCount)
	edges = append(edges, sorted[0])
	for _, n := range RankOffsets {
		edges = append(edges, NthLargest(sorted, n))
	}
	edges = append(edges, sorted[len(sorted)-1])
	return edges, nil
}

// NthLargest returns the n-th largest (1-based) value of an ascending slice.
// n past the end clamps to the smallest value and n below 1 clamps to the
// largest. sorted must be non-empty.
func NthLargest(sorted []float64, n int) float64 {
	idx := len(sorted) - n
	switch {
	case idx < 0:
		idx = 0
	case idx > len(sorted)-1:
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// EqualWidth splits [min, max] of values into k equal intervals. It backs the
// automatically classed map. A constant column yields k+1 equal edges.
func EqualWidth(values []float64, k int) (Edges, error) {
	if len(values) == 0 {
		return nil, ErrEmptyColumn
	}
	if k < 1 {
		k = 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNonFinite
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	edges := make(Edges, k+1)
	step := (hi - lo) / float64(k)
	for i := range edges {
		edges[i] = lo + step*float64(i)
	}
	edges[k] = hi
	return edges, nil
}
