package notifications

import (
	"context"
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport sends plain-text mail through gomail.
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	return &SMTPTransport{dialer: d, from: cfg.From}
}

func (t *SMTPTransport) newMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return m
}

// Send dials per message. gomail has no context support, so cancellation
// only stops the wait, not the SMTP exchange.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(t.newMessage(msg))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verify opens and closes one SMTP session.
func (t *SMTPTransport) Verify() error {
	s, err := t.dialer.Dial()
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return s.Close()
}
