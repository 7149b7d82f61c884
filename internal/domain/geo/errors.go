package geo

import "errors"

var (
	// ErrInvalidGeometry is returned for boundary files that are not a
	// FeatureCollection of Polygon and MultiPolygon features.
	ErrInvalidGeometry = errors.New("invalid boundary geometry")
	// ErrNoCounty is returned when a point lies in no county's bounds.
	ErrNoCounty = errors.New("no county at location")
)
