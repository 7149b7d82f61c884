package model

import "errors"

// ErrUnknownMetric is returned for a metric name outside Metrics.
var ErrUnknownMetric = errors.New("unknown metric")
