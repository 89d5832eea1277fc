// Package sms delivers notifications as text messages through Twilio.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

// MaxBodyLength keeps messages within ten concatenated SMS segments.
const MaxBodyLength = 1530

// Config holds Twilio credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string
}

// messageCreator is the slice of the Twilio API this sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Sender implements SMS delivery.
type Sender struct {
	api  messageCreator
	from string
}

// NewSender creates a Twilio-backed SMS sender.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("twilio from number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Sender{api: client.Api, from: cfg.From}, nil
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "sms"
}

// Send texts the subject and body to p.Address.
func (s *Sender) Send(ctx context.Context, p notification.Payload) error {
	to := strings.TrimSpace(p.Address)
	if to == "" {
		return retry.Permanent(fmt.Errorf("recipient is required"))
	}
	if !strings.HasPrefix(to, "+") {
		return retry.Permanent(fmt.Errorf("invalid phone number %q (must be E.164, e.g. +15551234567)", to))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(Body(p))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("SMS sent via Twilio", "sid", sid, "emergency_id", p.EmergencyID, "recipient_id", p.RecipientID)
	return nil
}

// Body is the text message content: subject line then body, truncated to
// MaxBodyLength runes.
func Body(p notification.Payload) string {
	text := p.Subject + "\n\n" + p.Body
	runes := []rune(text)
	if len(runes) <= MaxBodyLength {
		return text
	}
	return string(runes[:MaxBodyLength-3]) + "..."
}
