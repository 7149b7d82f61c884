package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNoBoundaries = errors.New("boundary collection is required")
	ErrNoSnapshot   = errors.New("no snapshot loaded")
	ErrNotStarted   = errors.New("service not started")
	// ErrBackpressure means the outbox refused a message; retry later.
	ErrBackpressure = errors.New("outbox is full, try again later")
	// ErrValidation groups every rejected form input.
	ErrValidation = errors.New("invalid input")
)

// Form feedback shown to subscribers.
const (
	MsgMissingFields = "All form fields required"
	MsgInvalidEmail  = "Please enter a valid email address."
	MsgUnknownState  = "Please enter full name of state (California) and double check spelling."
	MsgUnknownCounty = "Please enter full name of county (Orange), omit the word 'county', and double check spelling. Orange County should be input as 'Orange'"
	MsgEmailInUse    = "Email already in use please enter a new email address"
)

// ValidationError is a rejected input with a message fit for the user.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
