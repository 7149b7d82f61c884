package repository

import "errors"

// Sentinel kinds for subscriber store errors.
var (
	ErrNotFound       = errors.New("subscriber not found")
	ErrDuplicateEmail = errors.New("email already subscribed")
)
