package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTP struct {
	client *mail.Client
	from   string
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{client: c, from: cfg.From}, nil
}

func build(from string, m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("%w: recipient address: %v", apperr.ErrValidation, err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

func (s *SMTP) Send(ctx context.Context, m Message) error {
	msg, err := build(s.from, m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: send mail: %v", apperr.ErrUpstream, err)
	}
	return nil
}

// Log writes messages to the request logger instead of sending them.
// It is used when no SMTP host is configured.
type Log struct{}

func (Log) Send(ctx context.Context, m Message) error {
	logging.FromContext(ctx).Info("mail_not_sent", "to", m.To, "subject", m.Subject, "reason", "smtp not configured")
	return nil
}
