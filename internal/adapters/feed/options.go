package feed

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// Option configures a Loader.
type Option func(*Loader)

// WithClient replaces the HTTP client. Its timeout is kept as given.
func WithClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithTimeout bounds a single fetch including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithClock sets the clock that decides what "yesterday" is.
func WithClock(c clockwork.Clock) Option {
	return func(l *Loader) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the loader's logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.log = lg
		}
	}
}
