package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Sender delivers operator alerts (gateway recovery exhausted, etc.).
type Sender interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogSender logs alerts instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Notify(_ context.Context, subject, body string) error {
	s.logger.Warn("operator alert (local dev)", "subject", subject, "body", body)
	return nil
}

// ResendSender emails alerts via the Resend API — used in staging/production.
type ResendSender struct {
	client *resend.Client
	from   string
	to     string
}

func (s *ResendSender) Notify(ctx context.Context, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{s.to},
		Subject: subject,
		Text:    body,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from, to string, logger *slog.Logger) Sender {
	if env == "local" || apiKey == "" {
		return &LogSender{logger: logger.With("component", "alert")}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}
