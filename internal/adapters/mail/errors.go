package mail

import "errors"

var (
	// ErrNoRecipient is returned for a message without a To address.
	ErrNoRecipient = errors.New("message has no recipient")
	// ErrCircuitOpen is returned while the SMTP breaker rejects sends.
	ErrCircuitOpen = errors.New("smtp circuit breaker open")
)
