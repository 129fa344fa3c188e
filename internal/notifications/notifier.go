// Package notifications composes the account emails and hands them to a
// mail transport.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/absencehub/internal/observability"
)

const (
	KindResetPassword = "reset_password"
	KindVerifyEmail   = "verify_email"
)

type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

// Transport delivers one message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier builds the reset-password and verification emails.
type Notifier struct {
	transport Transport
	appURL    string
	prom      *observability.Prom
	metrics   *observability.MailMetrics
}

func NewNotifier(transport Transport, appURL string, prom *observability.Prom, metrics *observability.MailMetrics) *Notifier {
	return &Notifier{
		transport: transport,
		appURL:    strings.TrimRight(appURL, "/"),
		prom:      prom,
		metrics:   metrics,
	}
}

func (n *Notifier) SendResetPasswordEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", n.appURL, token)
	return n.send(ctx, Message{
		Kind:    KindResetPassword,
		To:      to,
		Subject: "Reset password",
		Body: "Dear user,\n" +
			"To reset your password, click on this link: " + link + "\n" +
			"If you did not request any password resets, then ignore this email.",
	})
}

func (n *Notifier) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", n.appURL, token)
	return n.send(ctx, Message{
		Kind:    KindVerifyEmail,
		To:      to,
		Subject: "Email Verification",
		Body: "Dear user,\n" +
			"To verify your email, click on this link: " + link + "\n" +
			"If you did not create an account, then ignore this email.",
	})
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	start := time.Now()
	err := n.transport.Send(ctx, msg)
	elapsed := time.Since(start)

	result := "sent"
	switch {
	case errors.Is(err, ErrCircuitOpen):
		result = "rejected"
	case err != nil:
		result = "failed"
	}

	if n.metrics != nil {
		switch result {
		case "sent":
			n.metrics.IncSent()
		case "rejected":
			n.metrics.IncRejected()
		default:
			n.metrics.IncFailed()
		}
		if result != "rejected" {
			n.metrics.ObserveDuration(elapsed)
		}
	}
	if n.prom != nil {
		n.prom.ObserveEmail(msg.Kind, result, elapsed)
	}

	if err != nil {
		slog.ErrorContext(ctx, "email send failed", "kind", msg.Kind, "result", result, "err", err)
		return fmt.Errorf("send %s email: %w", msg.Kind, err)
	}
	return nil
}
