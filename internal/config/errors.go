package config

import "errors"

// Sentinel errors; callers match them with errors.Is.
var (
	// ErrInvalidConfig marks a value that failed Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a failure reading a config source.
	ErrLoadConfig = errors.New("load config failed")
)
