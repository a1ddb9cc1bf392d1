package smtp

import (
	"fmt"

	"github.com/go-healthcare-api/internal/config"
	"gopkg.in/gomail.v2"
)

// Mailer sends HTML emails.
type Mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type mailer struct {
	from string
	send func(msg *gomail.Message) error
}

// NewMailer dials the configured SMTP server for every message. Auth is skipped when
// SMTP_USERNAME is empty, which suits local catch-all servers.
func NewMailer(cfg *config.Config) Mailer {
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &mailer{from: cfg.SMTPFrom, send: dialer.DialAndSend}
}

// newMailerWithSender routes messages to s instead of a network dialer.
func newMailerWithSender(from string, s gomail.Sender) *mailer {
	return &mailer{from: from, send: func(msg *gomail.Message) error { return gomail.Send(s, msg) }}
}

func (m *mailer) SendEmail(to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("no recipient specified")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if err := m.send(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
