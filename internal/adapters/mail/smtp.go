package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an SMTP relay. smtp.SendMail upgrades with
// STARTTLS when the server offers it. A circuit breaker stops hammering a
// relay that keeps failing.
type SMTPMailer struct {
	cfg     SMTPConfig
	auth    smtp.Auth
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	send    sendFunc
}

// SMTPOption configures an SMTPMailer.
type SMTPOption func(*SMTPMailer)

// WithSMTPClock sets the clock used for the Date header.
func WithSMTPClock(c clockwork.Clock) SMTPOption {
	return func(m *SMTPMailer) {
		if c != nil {
			m.clock = c
		}
	}
}

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig, opts ...SMTPOption) *SMTPMailer {
	m := &SMTPMailer{
		cfg:   cfg,
		clock: clockwork.NewRealClock(),
		send:  smtp.SendMail,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "smtp",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := m.compose(msg)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	_, err := m.circuit.Execute(func() (interface{}, error) {
		return nil, m.send(addr, m.auth, m.cfg.From, []string{msg.To}, raw)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return fmt.Errorf("smtp send %s: %w", msg.ID, err)
	}
	return nil
}

// State reports the breaker state for stats.
func (m *SMTPMailer) State() string {
	return m.circuit.State().String()
}

func (m *SMTPMailer) compose(msg Message) []byte {
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.clock.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@covidmap>\r\n", msg.ID)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}
