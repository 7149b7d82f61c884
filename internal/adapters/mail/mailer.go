package mail

import (
	"context"
	"strings"

	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
)

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	log logger.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(lg logger.Logger) *LogMailer {
	if lg == nil {
		lg = logger.Nop()
	}
	return &LogMailer{log: lg}
}

func (l *LogMailer) Send(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	l.log.Info(ctx, "mail delivery disabled, message logged",
		logger.String("id", m.ID),
		logger.String("to", m.To),
		logger.String("kind", string(m.Kind)),
		logger.String("subject", m.Subject),
		logger.Int("bytes", len(m.Body)),
	)
	return nil
}
