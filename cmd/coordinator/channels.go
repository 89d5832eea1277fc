package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/afikmenashe/campus-alert/internal/config"
	"github.com/afikmenashe/campus-alert/internal/delivery/console"
	"github.com/afikmenashe/campus-alert/internal/delivery/email"
	"github.com/afikmenashe/campus-alert/internal/delivery/email/provider"
	"github.com/afikmenashe/campus-alert/internal/delivery/queue"
	"github.com/afikmenashe/campus-alert/internal/delivery/sms"
	"github.com/afikmenashe/campus-alert/internal/delivery/strategy"
	"github.com/afikmenashe/campus-alert/internal/delivery/webhook"
	"github.com/afikmenashe/campus-alert/pkg/shared"
)

// buildRegistry registers every delivery channel that has enough configuration
// to work. Console and webhook are always available. The returned closers must
// be closed on shutdown.
func buildRegistry(ctx context.Context, cfg *config.Config) (*strategy.Registry, []io.Closer) {
	registry := strategy.NewRegistry()
	var closers []io.Closer

	registry.Register(console.NewSender())
	registry.Register(webhook.NewSender(cfg.WebhookURL))

	if emailConfigured() {
		emailSender, err := email.NewSender(ctx, emailConfigFromEnv())
		if err != nil {
			slog.Warn("Email channel disabled", "error", err)
		} else {
			registry.Register(emailSender)
		}
	}

	if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		smsSender, err := sms.NewSender(sms.Config{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			From:       os.Getenv("TWILIO_FROM_NUMBER"),
		})
		if err != nil {
			slog.Warn("SMS channel disabled", "error", err)
		} else {
			registry.Register(smsSender)
		}
	}

	if cfg.KafkaBrokers != "" {
		queueSender, err := queue.NewSender(cfg.KafkaBrokers, cfg.NotificationsTopic)
		if err != nil {
			slog.Warn("Kafka delivery channel disabled", "error", err)
		} else {
			registry.Register(queueSender)
			closers = append(closers, queueSender)
		}
	}

	slog.Info("Delivery channels registered", "channels", registry.List())
	return registry, closers
}

func emailConfigured() bool {
	return os.Getenv("SMTP_HOST") != "" || os.Getenv("EMAIL_PROVIDER") != "" || os.Getenv("RESEND_API_KEY") != ""
}

func emailConfigFromEnv() email.Config {
	return email.Config{
		From:     shared.GetEnvOrDefault("EMAIL_FROM", "alerts@campus-alert.local"),
		Provider: shared.GetEnvOrDefault("EMAIL_PROVIDER", "smtp"),
		SMTP: provider.SMTPConfig{
			Host:     shared.GetEnvOrDefault("SMTP_HOST", "localhost"),
			Port:     shared.GetEnvOrDefault("SMTP_PORT", "1025"),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		AWSRegion:    os.Getenv("AWS_REGION"),
		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
	}
}
