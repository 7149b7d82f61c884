// Package mail builds and delivers subscriber emails.
package mail

import "github.com/google/uuid"

// Kind labels a message for metrics and logs.
type Kind string

// Message kinds.
const (
	KindConfirmation Kind = "confirmation"
	KindUpdate       Kind = "update"
	KindDigest       Kind = "digest"
)

// Message is one email waiting in the outbox.
type Message struct {
	ID      string
	To      string
	Subject string
	Body    string
	HTML    bool
	Kind    Kind
}

// NewMessage creates a message with a fresh ID.
func NewMessage(kind Kind, to, subject, body string, html bool) Message {
	return Message{
		ID:      uuid.NewString(),
		To:      to,
		Subject: subject,
		Body:    body,
		HTML:    html,
		Kind:    kind,
	}
}
