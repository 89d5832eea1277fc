package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
)

// SESAPI is the part of the SES client the provider calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESProvider sends through AWS SES v2 and tags every message with the
// emergency and recipient ids so bounces can be traced back.
type SESProvider struct {
	api    SESAPI
	region string
}

// NewSESProvider loads credentials from the default AWS chain. A config
// failure leaves the provider unconfigured.
func NewSESProvider(ctx context.Context, region string) *SESProvider {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider will be unavailable", "error", err)
		return &SESProvider{region: region}
	}
	return NewSESProviderWithAPI(sesv2.NewFromConfig(cfg), region)
}

// NewSESProviderWithAPI wraps an existing client.
func NewSESProviderWithAPI(api SESAPI, region string) *SESProvider {
	return &SESProvider{api: api, region: region}
}

func (p *SESProvider) Name() string { return "ses" }

func (p *SESProvider) Configured() bool { return p.api != nil }

func (p *SESProvider) Send(ctx context.Context, m *Message) error {
	if p.api == nil {
		return retry.Permanent(errors.New("SES client not initialized"))
	}

	out, err := p.api.SendEmail(ctx, sesInput(m))
	if err != nil {
		return classifySESError(err)
	}

	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	slog.Debug("Email accepted by SES",
		"message_id", messageID,
		"region", p.region,
		"emergency_id", m.EmergencyID,
	)
	return nil
}

func sesInput(m *Message) *sesv2.SendEmailInput {
	tags := m.Tags()
	tagNames := make([]string, 0, len(tags))
	for name := range tags {
		tagNames = append(tagNames, name)
	}
	sort.Strings(tagNames)

	emailTags := make([]types.MessageTag, 0, len(tags))
	for _, name := range tagNames {
		emailTags = append(emailTags, types.MessageTag{Name: str(name), Value: str(tags[name])})
	}

	headers := m.Headers()
	headerNames := make([]string, 0, len(headers))
	for name := range headers {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)

	msgHeaders := make([]types.MessageHeader, 0, len(headers))
	for _, name := range headerNames {
		msgHeaders = append(msgHeaders, types.MessageHeader{Name: str(name), Value: str(headers[name])})
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: str(m.From),
		Destination:      &types.Destination{ToAddresses: m.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: str(m.Subject)},
				Body:    &types.Body{Text: &types.Content{Data: str(m.Body)}},
				Headers: msgHeaders,
			},
		},
		EmailTags: emailTags,
	}
}

// classifySESError separates rejected messages, account problems that another
// provider may not share, and throttling.
func classifySESError(err error) error {
	var (
		rejected    *types.MessageRejected
		badRequest  *types.BadRequestException
		notVerified *types.MailFromDomainNotVerifiedException
		suspended   *types.AccountSuspendedException
		paused      *types.SendingPausedException
		throttled   *types.TooManyRequestsException
		limited     *types.LimitExceededException
	)
	switch {
	case errors.As(err, &rejected), errors.As(err, &badRequest):
		return retry.Permanent(fmt.Errorf("%w: %w", ErrRecipientRejected, err))
	case errors.As(err, &notVerified), errors.As(err, &suspended), errors.As(err, &paused):
		return retry.Permanent(fmt.Errorf("SES sending unavailable: %w", err))
	case errors.As(err, &throttled), errors.As(err, &limited):
		return retry.Transient(fmt.Errorf("SES throttled: %w", err))
	}
	return fmt.Errorf("SES send failed: %w", err)
}

func str(s string) *string { return &s }
