// Package strategy defines the interface for notification delivery strategies.
package strategy

import (
	"context"
	"sort"

	"github.com/afikmenashe/campus-alert/internal/notification"
)

// Sender is the interface that all delivery strategies must implement.
type Sender interface {
	// Send delivers the payload. p.Address format depends on the sender type:
	//   - email: email address(es) as comma-separated string
	//   - sms: E.164 phone number
	//   - webhook: ignored, the sender posts to its configured URL
	//   - console, kafka: any
	Send(ctx context.Context, p notification.Payload) error

	// Type returns the channel name this sender handles (e.g., "email", "sms").
	Type() string
}

// Registry manages delivery strategies by type.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry creates a new sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]Sender),
	}
}

// Register registers a sender strategy, replacing any sender of the same type.
func (r *Registry) Register(sender Sender) {
	r.senders[sender.Type()] = sender
}

// Get retrieves a sender strategy by type.
func (r *Registry) Get(senderType string) (Sender, bool) {
	sender, ok := r.senders[senderType]
	return sender, ok
}

// List returns all registered sender types in sorted order.
func (r *Registry) List() []string {
	types := make([]string, 0, len(r.senders))
	for t := range r.senders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
