package binning

import "errors"

var (
	// ErrEmptyColumn is returned when there is nothing to bin.
	ErrEmptyColumn = errors.New("cannot bin an empty column")
	// ErrNonFinite is returned when a column holds NaN or infinity.
	ErrNonFinite = errors.New("column contains non-finite values")
)
