package notifications

import (
	"context"
	"log/slog"
)

// LogTransport writes messages to the log instead of sending them. Used
// when no SMTP host is configured.
type LogTransport struct{}

func NewLogTransport() *LogTransport { return &LogTransport{} }

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "email.outbound",
		"kind", msg.Kind,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
