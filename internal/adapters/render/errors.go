package render

import "errors"

var (
	// ErrEmptySeries is returned when there is no trend to draw.
	ErrEmptySeries = errors.New("trend series is empty")
	// ErrNoEdges is returned when a map is rendered without class edges.
	ErrNoEdges = errors.New("map needs at least two class edges")
)
