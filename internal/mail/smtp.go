package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/birchwood/canopy/internal/telemetry"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// SMTPConfig holds configuration for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // Optional, enables PLAIN auth together with Password
	Password string
	From     string

	// MaxTries is the number of delivery attempts before giving up.
	// Default: 3
	MaxTries uint
}

// Validate checks that the SMTP configuration is usable.
func (c *SMTPConfig) Validate() error {
	if c.Host == "" {
		return errors.New("SMTP host is required")
	}
	if c.Port == 0 {
		return errors.New("SMTP port is required")
	}
	if c.From == "" {
		return errors.New("SMTP from address is required")
	}
	return nil
}

// SMTPMailer sends mail through an SMTP relay, retrying transient
// failures with exponential backoff.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates an SMTP-backed mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SMTP config: %w", err)
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}, nil
}

// Send delivers the message, retrying up to MaxTries times.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	from := msg.From
	if from == "" {
		from = m.cfg.From
	}

	body := m.encode(from, msg)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	started := time.Now()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, m.send(addr, auth, from, []string{msg.To}, body)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(m.cfg.MaxTries),
	)
	telemetry.RecordDuration(ctx, telemetry.GetMetrics().EmailSendDuration, time.Since(started).Seconds())
	if err != nil {
		telemetry.AddCounter(ctx, telemetry.GetMetrics().EmailErrorsTotal)
		log.Error().
			Err(err).
			Str("to", msg.To).
			Str("subject", msg.Subject).
			Dur("duration", time.Since(started)).
			Msg("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	telemetry.AddCounter(ctx, telemetry.GetMetrics().EmailsSentTotal)
	log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Dur("duration", time.Since(started)).
		Msg("Email sent")

	return nil
}

// encode builds a MIME message. Messages with both HTML and text bodies are
// sent as multipart/alternative.
func (m *SMTPMailer) encode(from string, msg Message) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTML != "" && msg.Text != "":
		const boundary = "canopy-alt"
		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case msg.HTML != "":
		fmt.Fprintf(&b, "Content-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", msg.HTML)
	default:
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", msg.Text)
	}

	return []byte(b.String())
}
