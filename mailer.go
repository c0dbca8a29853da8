package auth

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"
)

// Mailer delivers transactional email. Implementations should treat delivery
// failures as retryable and return a descriptive error.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function into a Mailer.
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send satisfies the Mailer interface.
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	if f == nil {
		return errors.New("mailer not configured", errors.CategoryInternal)
	}
	return f(ctx, to, subject, body)
}

// SMTPConfig holds connection settings for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns the host:port dial address.
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	config SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a Mailer backed by net/smtp.
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		config: config,
		send:   smtp.SendMail,
	}
}

// Send delivers a single plain-text message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "mail send cancelled")
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	msg := buildMessage(m.config.From, to, subject, body)

	if err := m.send(m.config.Addr(), auth, m.config.From, []string{to}, msg); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp delivery failed").
			WithMetadata(map[string]any{"to": to})
	}

	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// NewLogMailer returns a Mailer that only logs messages. Meant for local
// development where no SMTP relay is available.
func NewLogMailer(logger Logger) Mailer {
	if logger == nil {
		logger = defLogger{}
	}
	return MailerFunc(func(ctx context.Context, to, subject, body string) error {
		logger.Info("mail (log only)", "to", to, "subject", subject, "body", body)
		return nil
	})
}
