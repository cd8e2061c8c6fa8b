package mail

import (
	"context"

	"go.uber.org/zap"
)

// noopMailer is used when no mailer is configured. It logs the mail instead
// of delivering it, which keeps local development working without SMTP.
type noopMailer struct {
	logger *zap.Logger
}

func NewNoopMailer(logger *zap.Logger) Mailer {
	return &noopMailer{logger: logger}
}

func (m *noopMailer) Send(ctx context.Context, mail Mail) error {
	m.logger.Info("mail not sent (no mailer configured)",
		zap.String("to", mail.To),
		zap.String("subject", mail.Subject),
		zap.String("body", mail.Body))
	return nil
}
