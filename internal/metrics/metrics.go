// Package metrics provides metrics recording interfaces for the coordinator.
// It uses the null object pattern to avoid nil checks throughout the codebase.
package metrics

import "time"

// Counter names reported under Snapshot.Counters.
const (
	CounterTriggered     = "emergencies_triggered"
	CounterResolved      = "emergencies_resolved"
	CounterStatusUpdates = "status_updates"
	CounterSent          = "notifications_sent"
	CounterFailed        = "notifications_failed"
	CounterEventsFailed  = "events_publish_failed"
)

// Recorder defines the interface for recording coordinator metrics.
type Recorder interface {
	// RecordReceived increments the count of received API requests.
	RecordReceived()

	// RecordProcessed records a handled API request with its latency.
	RecordProcessed(latency time.Duration)

	// RecordError increments the error counter.
	RecordError()

	RecordTriggered()
	RecordResolved()
	RecordStatusUpdate()

	// RecordSent and RecordFailed count individual delivery outcomes.
	RecordSent()
	RecordFailed()

	// RecordEventFailed counts lifecycle events that could not be published.
	RecordEventFailed()
}

// NoOp is a no-op implementation of Recorder that discards all metrics.
// Use this when metrics collection is not configured.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                 {}
func (n *NoOp) RecordProcessed(_ time.Duration) {}
func (n *NoOp) RecordError()                    {}
func (n *NoOp) RecordTriggered()                {}
func (n *NoOp) RecordResolved()                 {}
func (n *NoOp) RecordStatusUpdate()             {}
func (n *NoOp) RecordSent()                     {}
func (n *NoOp) RecordFailed()                   {}
func (n *NoOp) RecordEventFailed()              {}

var _ Recorder = (*NoOp)(nil)
