// Package delivery routes notification payloads to the channel that can
// transmit them. It uses the strategy pattern: each channel registers a
// sender under its type, and the Router picks one per payload.
package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
	"github.com/afikmenashe/campus-alert/internal/delivery/strategy"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

// Channel names accepted by the delivery-channel setting.
const (
	ModeAuto    = "auto"
	ModeConsole = "console"
	ModeEmail   = "email"
	ModeSMS     = "sms"
	ModeWebhook = "webhook"
	ModeKafka   = "kafka"
)

// Modes lists every valid delivery-channel setting.
var Modes = []string{ModeConsole, ModeEmail, ModeSMS, ModeWebhook, ModeKafka, ModeAuto}

// Router implements the dispatcher's Channel by delegating to a registered sender.
type Router struct {
	registry *strategy.Registry
	mode     string
	retryCfg retry.Config
}

// NewRouter creates a router. In ModeAuto the sender is chosen per payload
// from the address format; otherwise every payload goes to the named sender.
func NewRouter(registry *strategy.Registry, mode string, retryCfg retry.Config) (*Router, error) {
	if mode != ModeAuto {
		if _, ok := registry.Get(mode); !ok {
			return nil, fmt.Errorf("delivery channel %q is not available (registered: %s)", mode, strings.Join(registry.List(), ", "))
		}
	}
	return &Router{registry: registry, mode: mode, retryCfg: retryCfg}, nil
}

// Deliver sends p through the selected sender, retrying transient failures.
func (r *Router) Deliver(ctx context.Context, p notification.Payload) error {
	channelType := r.mode
	if channelType == ModeAuto {
		channelType = Route(p.Address)
	}

	sender, ok := r.registry.Get(channelType)
	if !ok {
		return fmt.Errorf("no %s sender configured for address %q", channelType, p.Address)
	}

	operation := fmt.Sprintf("send_%s_%s_%s", channelType, p.EmergencyID, p.RecipientID)
	return retry.WithRetry(ctx, r.retryCfg, operation, func() error {
		return sender.Send(ctx, p)
	})
}

// Route picks a channel for a guardian address: email addresses go to email,
// E.164 numbers to sms, URLs to webhook and anything else to the console.
func Route(address string) string {
	a := strings.TrimSpace(address)
	switch {
	case strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://"):
		return ModeWebhook
	case strings.Contains(a, "@"):
		return ModeEmail
	case strings.HasPrefix(a, "+"):
		return ModeSMS
	default:
		return ModeConsole
	}
}

// ValidMode reports whether mode is a known delivery-channel setting.
func ValidMode(mode string) bool {
	for _, m := range Modes {
		if m == mode {
			return true
		}
	}
	return false
}
