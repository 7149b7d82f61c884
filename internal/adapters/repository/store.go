// Package repository persists email subscribers.
package repository

import (
	"context"
	"time"
)

// Subscriber is one registered recipient of county updates.
type Subscriber struct {
	ID        int64     `json:"-"`
	PublicID  string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	County    string    `json:"county"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides read/write access to subscribers. Emails are unique.
type Store interface {
	// Create inserts s and returns it with ID, PublicID and CreatedAt set.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, s Subscriber) (Subscriber, error)

	// GetByEmail returns ErrNotFound for an unknown email.
	GetByEmail(ctx context.Context, email string) (Subscriber, error)

	// DeleteByEmail returns ErrNotFound for an unknown email.
	DeleteByEmail(ctx context.Context, email string) error

	// List returns every subscriber, oldest first.
	List(ctx context.Context) ([]Subscriber, error)

	// Count returns the number of subscribers.
	Count(ctx context.Context) int

	Close() error
}
