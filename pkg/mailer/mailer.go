// Package mailer sends coupon emails over SMTP.
package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when SMTP settings are missing.
var ErrNotConfigured = errors.New("smtp not configured")

// Config holds SMTP settings.
type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
}

// Mailer sends HTML emails with an optional inline PNG attachment.
type Mailer struct {
	cfg    Config
	dialer *gomail.Dialer
	logger *zap.Logger
}

// New creates a Mailer. A mailer with an empty SMTP host is valid but
// refuses to send (workers record the failure instead of crashing).
func New(cfg Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailer{cfg: cfg, logger: logger}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

// Enabled reports whether SMTP delivery is configured.
func (m *Mailer) Enabled() bool { return m.dialer != nil }

// Send delivers an HTML email to the recipients. When inlinePNG is
// non-empty it is embedded with Content-ID "coupon-qr" so the body can
// reference it as <img src="cid:coupon-qr">.
func (m *Mailer) Send(to []string, subject, htmlBody string, inlinePNG []byte) error {
	if m.dialer == nil {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return errors.New("no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.FromAddress, m.cfg.FromName)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if len(inlinePNG) > 0 {
		msg.Embed("coupon-qr.png",
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(inlinePNG))
				return err
			}),
			gomail.SetHeader(map[string][]string{
				"Content-ID": {"<coupon-qr>"},
			}),
		)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Debug("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
