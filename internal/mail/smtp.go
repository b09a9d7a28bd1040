// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// TLS policies accepted by SMTPConfig.TLS.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is one of TLSMandatory, TLSOpportunistic or TLSNone.
	TLS string
	// FrontendURL is the base of the reset link.
	FrontendURL string
}

// sender is the part of *gomail.Client used for delivery.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// SMTPMailer sends reset emails through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	client sender
	logger *slog.Logger
}

// NewSMTPMailer creates an SMTPMailer. Connections are opened per message.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_INVALID_CONFIG").Errorf("sender address is required")
	}
	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []gomail.Option{gomail.WithTLSPolicy(policy)}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("MAIL_INVALID_CONFIG").With("host", cfg.Host).Wrap(err)
	}
	return newSMTPMailer(cfg, client, logger), nil
}

func newSMTPMailer(cfg SMTPConfig, client sender, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{cfg: cfg, client: client, logger: logger}
}

func tlsPolicy(name string) (gomail.TLSPolicy, error) {
	switch name {
	case "", TLSMandatory:
		return gomail.TLSMandatory, nil
	case TLSOpportunistic:
		return gomail.TLSOpportunistic, nil
	case TLSNone:
		return gomail.NoTLS, nil
	default:
		return gomail.NoTLS, oops.Code("MAIL_INVALID_CONFIG").With("tls", name).Errorf("unknown tls policy")
	}
}

// SendPasswordResetEmail renders and sends the reset message.
// Delivery failures are returned as MAIL_SEND_FAILED and never retried.
func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	msg, err := m.buildResetMessage(to, token)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("host", m.cfg.Host).
			Wrap(err)
	}

	m.logger.DebugContext(ctx, "password reset email delivered", "host", m.cfg.Host)
	return nil
}

func (m *SMTPMailer) buildResetMessage(to, token string) (*gomail.Msg, error) {
	text, html, err := renderReset(ResetURL(m.cfg.FrontendURL, token))
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, oops.Code("MAIL_INVALID_ADDRESS").With("field", "from").Wrap(err)
	}
	if err := msg.To(to); err != nil {
		return nil, oops.Code("MAIL_INVALID_ADDRESS").With("field", "to").Wrap(err)
	}
	msg.Subject(ResetSubject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)
	return msg, nil
}
