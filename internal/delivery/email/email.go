// Package email delivers notifications to guardian email addresses through
// a chain of providers (SMTP, SES or Resend).
package email

import (
	"context"
	"fmt"

	"github.com/afikmenashe/campus-alert/internal/delivery/email/provider"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

// Config selects and configures the email providers.
type Config struct {
	From         string
	Provider     string // primary provider: smtp, ses or resend
	SMTP         provider.SMTPConfig
	AWSRegion    string
	ResendAPIKey string
}

// Sender implements email delivery.
type Sender struct {
	from      string
	providers *provider.Chain
}

// NewSender builds the provider chain with cfg.Provider first and the other
// providers after it in the order smtp, ses, resend. SES is only set up when
// it is the primary or a region is given.
func NewSender(ctx context.Context, cfg Config) (*Sender, error) {
	primary := cfg.Provider
	if primary == "" {
		primary = "smtp"
	}

	available := map[string]func() provider.Provider{
		"smtp":   func() provider.Provider { return provider.NewSMTPProvider(cfg.SMTP) },
		"resend": func() provider.Provider { return provider.NewResendProvider(cfg.ResendAPIKey) },
		"ses":    func() provider.Provider { return provider.NewSESProvider(ctx, cfg.AWSRegion) },
	}
	if _, ok := available[primary]; !ok {
		return nil, fmt.Errorf("invalid email provider %q: must be one of smtp, ses, resend", primary)
	}

	chain := []provider.Provider{available[primary]()}
	for _, name := range []string{"smtp", "ses", "resend"} {
		if name == primary || (name == "ses" && cfg.AWSRegion == "") {
			continue
		}
		chain = append(chain, available[name]())
	}

	return NewSenderWithChain(cfg.From, provider.NewChain(chain...)), nil
}

// NewSenderWithChain creates a sender over an existing provider chain.
func NewSenderWithChain(from string, chain *provider.Chain) *Sender {
	return &Sender{from: from, providers: chain}
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "email"
}

// Send emails the payload to every address in p.Address.
func (s *Sender) Send(ctx context.Context, p notification.Payload) error {
	msg, err := provider.NewMessage(s.from, p)
	if err != nil {
		return err
	}
	return s.providers.Send(ctx, msg)
}
