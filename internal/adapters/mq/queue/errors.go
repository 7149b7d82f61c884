package queue

import "errors"

// Sentinel kinds for outbox errors.
var (
	ErrQueueFull   = errors.New("outbox is full")
	ErrQueueClosed = errors.New("outbox is closed")
)
