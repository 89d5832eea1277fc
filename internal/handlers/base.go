// Package handlers provides HTTP handlers for the coordinator API.
package handlers

import (
	"context"

	"github.com/afikmenashe/campus-alert/internal/emergency"
	"github.com/afikmenashe/campus-alert/internal/metrics"
	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/targeting"
	pkgmetrics "github.com/afikmenashe/campus-alert/pkg/metrics"
)

// Coordinator is the subset of coordinator.Coordinator the handlers call.
// It allows handlers to be tested without a real dispatcher.
type Coordinator interface {
	Trigger(ctx context.Context, rule targeting.ScopeRule, message string, safe targeting.SafeList) (*emergency.Summary, error)
	StatusUpdate(ctx context.Context, emergencyID, message string) (*emergency.StatusUpdate, error)
	Resolve(ctx context.Context, emergencyID string) (*emergency.Record, error)
	History() []*emergency.Record
	RecentNotifications(limit int) []*notification.Record
	CurrentStatus() emergency.CurrentStatus
	BranchesAvailable() []string
	SectionsAvailable(branch string) []string
	RecipientsFor(branch, section string) []roster.Recipient
}

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	coord     Coordinator
	metrics   metrics.Recorder
	collector *pkgmetrics.Collector
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithCollector exposes the collector's snapshot on the metrics endpoint and
// records request metrics through it.
func WithCollector(c *pkgmetrics.Collector) Option {
	return func(h *Handlers) {
		if c != nil {
			h.collector = c
			h.metrics = metrics.NewCollectorAdapter(c)
		}
	}
}

// NewHandlers creates a new handlers instance. Without WithCollector a no-op
// recorder is used.
func NewHandlers(coord Coordinator, opts ...Option) *Handlers {
	h := &Handlers{
		coord:   coord,
		metrics: metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Metrics returns the recorder used by the router's middleware.
func (h *Handlers) Metrics() metrics.Recorder {
	return h.metrics
}
