// Package config provides configuration parsing and validation for the coordinator.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/afikmenashe/campus-alert/internal/delivery"
	"github.com/afikmenashe/campus-alert/internal/dispatcher"
	"github.com/afikmenashe/campus-alert/pkg/shared"
)

// Config holds all configuration parameters for the coordinator service.
type Config struct {
	HTTPPort           string
	RosterPath         string
	DeliveryChannel    string
	DispatchWorkers    int
	DeliveryTimeout    time.Duration
	DeliveryRetries    int
	KafkaBrokers       string
	EmergencyTopic     string
	NotificationsTopic string
	PostgresDSN        string
	RedisAddr          string
	WebhookURL         string
}

// RegisterFlags binds every setting to fs. Defaults come from the environment
// so a .env file or container env can configure the service without flags.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.HTTPPort, "http-port", shared.GetEnvOrDefault("HTTP_PORT", "8080"), "HTTP server port")
	fs.StringVar(&c.RosterPath, "roster-path", shared.GetEnvOrDefault("ROSTER_PATH", "data/students.csv"), "Path to the student roster CSV")
	fs.StringVar(&c.DeliveryChannel, "delivery-channel", shared.GetEnvOrDefault("DELIVERY_CHANNEL", delivery.ModeConsole), "Delivery channel: "+strings.Join(delivery.Modes, "|"))
	fs.IntVar(&c.DispatchWorkers, "dispatch-workers", shared.GetEnvInt("DISPATCH_WORKERS", dispatcher.DefaultWorkers), "Maximum concurrent deliveries per dispatch")
	fs.DurationVar(&c.DeliveryTimeout, "delivery-timeout", shared.GetEnvDuration("DELIVERY_TIMEOUT", dispatcher.DefaultTimeout), "Timeout for a single delivery")
	fs.IntVar(&c.DeliveryRetries, "delivery-retries", shared.GetEnvInt("DELIVERY_RETRIES", 0), "Retries for transient delivery failures (0 sends each alert once)")
	fs.StringVar(&c.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", ""), "Kafka broker addresses (comma-separated); empty disables event publishing")
	fs.StringVar(&c.EmergencyTopic, "emergency-topic", shared.GetEnvOrDefault("EMERGENCY_TOPIC", "emergency.changed"), "Kafka topic for emergency lifecycle events")
	fs.StringVar(&c.NotificationsTopic, "notifications-topic", shared.GetEnvOrDefault("NOTIFICATIONS_TOPIC", "emergency.notifications"), "Kafka topic for the kafka delivery channel")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", shared.GetEnvOrDefault("POSTGRES_DSN", ""), "PostgreSQL connection string; empty disables the archive")
	fs.StringVar(&c.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", ""), "Redis address for metrics reporting; empty disables reporting")
	fs.StringVar(&c.WebhookURL, "webhook-url", shared.GetEnvOrDefault("WEBHOOK_URL", ""), "Default URL for the webhook delivery channel")
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if !delivery.ValidMode(c.DeliveryChannel) {
		return fmt.Errorf("delivery-channel must be one of: %s", strings.Join(delivery.Modes, ", "))
	}
	if c.DispatchWorkers <= 0 {
		return fmt.Errorf("dispatch-workers must be positive")
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery-timeout must be positive")
	}
	if c.DeliveryRetries < 0 {
		return fmt.Errorf("delivery-retries cannot be negative")
	}
	if c.KafkaBrokers != "" {
		if c.EmergencyTopic == "" {
			return fmt.Errorf("emergency-topic cannot be empty")
		}
		if c.NotificationsTopic == "" {
			return fmt.Errorf("notifications-topic cannot be empty")
		}
	}
	if c.DeliveryChannel == delivery.ModeKafka && c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers is required for the kafka delivery channel")
	}
	if c.DeliveryChannel == delivery.ModeWebhook && c.WebhookURL == "" {
		return fmt.Errorf("webhook-url is required for the webhook delivery channel")
	}
	return nil
}

// PublishEvents reports whether lifecycle events should go to Kafka.
func (c *Config) PublishEvents() bool {
	return c.KafkaBrokers != ""
}
