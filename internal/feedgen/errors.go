package feedgen

import "errors"

// ErrMissingRate is returned when MissingRate is outside [0, 1).
var ErrMissingRate = errors.New("missing rate must be in [0, 1)")
