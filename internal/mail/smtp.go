package mail

import (
	"context"
	"fmt"

	"github.com/deepref-sh/deepref/internal/env"
	gomail "github.com/wneessen/go-mail"
)

type smtpMailer struct {
	client      *gomail.Client
	fromAddress string
}

func NewSMTPMailer(config env.MailerConfig) (Mailer, error) {
	smtp := config.SmtpConfig
	opts := []gomail.Option{
		gomail.WithPort(smtp.Port),
	}
	if smtp.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(smtp.Username),
			gomail.WithPassword(smtp.Password),
		)
	}
	if smtp.ImplicitTLS {
		opts = append(opts, gomail.WithSSLPort(false))
	}
	client, err := gomail.NewClient(smtp.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return &smtpMailer{client: client, fromAddress: config.FromAddress}, nil
}

func (m *smtpMailer) Send(ctx context.Context, mail Mail) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.fromAddress); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(mail.To); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(mail.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, mail.Body)
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
