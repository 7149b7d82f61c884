package feed

import "errors"

// ErrDataUnavailable covers every way the current-day data can be missing:
// transport failure, a non-2xx status, an unparseable body, or no rows for
// yesterday. It is never retried.
var ErrDataUnavailable = errors.New("case data unavailable")
