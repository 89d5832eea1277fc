// Package provider sends guardian emails through SMTP, AWS SES or Resend.
// Providers are tried in a fixed order; a recipient rejected by one provider
// is not offered to the next.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

// ErrRecipientRejected is wrapped by provider errors that blame the address
// or the message itself rather than the provider.
var ErrRecipientRejected = errors.New("recipient rejected")

// Message is one guardian email for an emergency.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	EmergencyID string
	RecipientID string
	Kind        notification.Kind
}

// NewMessage builds the email for p. p.Address may hold several
// comma-separated addresses; a blank or malformed address is a permanent error.
func NewMessage(from string, p notification.Payload) (*Message, error) {
	var to []string
	for _, part := range strings.Split(p.Address, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if !strings.Contains(addr, "@") {
			return nil, retry.Permanent(fmt.Errorf("%w: invalid email address format %q (missing @ symbol)", ErrRecipientRejected, addr))
		}
		to = append(to, addr)
	}
	if len(to) == 0 {
		return nil, retry.Permanent(fmt.Errorf("%w: email address is empty", ErrRecipientRejected))
	}

	kind := p.Kind
	if kind == "" {
		kind = notification.KindAlert
	}
	return &Message{
		From:        from,
		To:          to,
		Subject:     p.Subject,
		Body:        p.Body,
		EmergencyID: p.EmergencyID,
		RecipientID: p.RecipientID,
		Kind:        kind,
	}, nil
}

// Headers identifies the emergency and recipient in the sent mail.
func (m *Message) Headers() map[string]string {
	h := map[string]string{"X-Notification-Kind": string(m.Kind)}
	if m.EmergencyID != "" {
		h["X-Emergency-ID"] = m.EmergencyID
	}
	if m.RecipientID != "" {
		h["X-Recipient-ID"] = m.RecipientID
	}
	return h
}

// Tags is the provider-side metadata for delivery reports. Values are reduced
// to the characters SES and Resend accept.
func (m *Message) Tags() map[string]string {
	t := map[string]string{"kind": tagValue(string(m.Kind))}
	if m.EmergencyID != "" {
		t["emergency_id"] = tagValue(m.EmergencyID)
	}
	if m.RecipientID != "" {
		t["recipient_id"] = tagValue(m.RecipientID)
	}
	return t
}

func tagValue(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, s)
}

// Provider is one email backend.
type Provider interface {
	Name() string
	// Configured reports whether the provider has the credentials it needs.
	Configured() bool
	Send(ctx context.Context, m *Message) error
}

// Chain tries its configured providers in order until one accepts the message.
type Chain struct {
	providers []Provider
}

// NewChain creates a chain. Unconfigured providers are kept but skipped.
func NewChain(providers ...Provider) *Chain {
	for _, p := range providers {
		slog.Info("Registered email provider", "name", p.Name(), "configured", p.Configured())
	}
	return &Chain{providers: providers}
}

// Active returns the names of the configured providers in the order they are tried.
func (c *Chain) Active() []string {
	var names []string
	for _, p := range c.providers {
		if p.Configured() {
			names = append(names, p.Name())
		}
	}
	return names
}

// Send delivers m through the first provider that accepts it. The error is
// retryable when at least one provider failed transiently.
func (c *Chain) Send(ctx context.Context, m *Message) error {
	var (
		tried     []string
		errs      []error
		transient error
	)
	for _, p := range c.providers {
		if !p.Configured() {
			continue
		}
		err := p.Send(ctx, m)
		if err == nil {
			slog.Debug("Email sent",
				"provider", p.Name(),
				"emergency_id", m.EmergencyID,
				"recipient_id", m.RecipientID,
			)
			return nil
		}
		if errors.Is(err, ErrRecipientRejected) {
			return retry.Permanent(fmt.Errorf("%s: %w", p.Name(), err))
		}

		tried = append(tried, p.Name())
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if transient == nil && retry.IsRetryable(err) {
			transient = err
		}
		slog.Warn("Email provider failed, trying next",
			"provider", p.Name(),
			"emergency_id", m.EmergencyID,
			"recipient_id", m.RecipientID,
			"error", err,
		)
	}

	if len(tried) == 0 {
		return retry.Permanent(errors.New("no configured email provider available"))
	}
	if transient != nil {
		return retry.Transient(fmt.Errorf("email delivery failed via %s: %w", strings.Join(tried, ", "), transient))
	}
	return retry.Permanent(fmt.Errorf("email delivery failed via %s: %w", strings.Join(tried, ", "), errors.Join(errs...)))
}
