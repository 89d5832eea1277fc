package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/resend/resend-go/v2"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
)

// ResendProvider sends through the Resend API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider creates a provider; an empty apiKey leaves it unconfigured.
func NewResendProvider(apiKey string) *ResendProvider {
	if apiKey == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

// NewResendProviderWithClient wraps an existing client.
func NewResendProviderWithClient(client *resend.Client) *ResendProvider {
	return &ResendProvider{client: client}
}

func (p *ResendProvider) Name() string { return "resend" }

func (p *ResendProvider) Configured() bool { return p.client != nil }

func (p *ResendProvider) Send(ctx context.Context, m *Message) error {
	if p.client == nil {
		return retry.Permanent(errors.New("Resend client not initialized"))
	}

	_, err := p.client.Emails.SendWithContext(ctx, resendRequest(m))
	if err != nil {
		return classifyResendError(err)
	}
	return nil
}

func resendRequest(m *Message) *resend.SendEmailRequest {
	tags := m.Tags()
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	req := &resend.SendEmailRequest{
		From:    m.From,
		To:      m.To,
		Subject: m.Subject,
		Text:    m.Body,
		Headers: m.Headers(),
	}
	for _, name := range names {
		req.Tags = append(req.Tags, resend.Tag{Name: name, Value: tags[name]})
	}
	return req
}

// classifyResendError maps the API's error text, the only detail the client
// exposes, onto rejected, unavailable and transient failures.
func classifyResendError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests"), strings.Contains(msg, "rate limit"):
		return retry.Transient(fmt.Errorf("Resend throttled: %w", err))
	case strings.Contains(msg, "domain"), strings.Contains(msg, "api key"):
		return retry.Permanent(fmt.Errorf("Resend sending unavailable: %w", err))
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "validation"):
		return retry.Permanent(fmt.Errorf("%w: %w", ErrRecipientRejected, err))
	}
	return fmt.Errorf("Resend send failed: %w", err)
}
