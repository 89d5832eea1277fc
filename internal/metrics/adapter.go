package metrics

import (
	"time"

	"github.com/afikmenashe/campus-alert/pkg/metrics"
)

// CollectorAdapter adapts pkg/metrics.Collector to the Recorder interface.
type CollectorAdapter struct {
	collector *metrics.Collector
}

// NewCollectorAdapter wraps a metrics.Collector to implement Recorder.
func NewCollectorAdapter(collector *metrics.Collector) *CollectorAdapter {
	return &CollectorAdapter{collector: collector}
}

func (a *CollectorAdapter) RecordReceived() {
	a.collector.RecordReceived()
}

func (a *CollectorAdapter) RecordProcessed(latency time.Duration) {
	a.collector.RecordProcessed(latency)
}

func (a *CollectorAdapter) RecordError() {
	a.collector.RecordError()
}

func (a *CollectorAdapter) RecordTriggered() {
	a.collector.IncrementCustom(CounterTriggered)
}

func (a *CollectorAdapter) RecordResolved() {
	a.collector.IncrementCustom(CounterResolved)
}

func (a *CollectorAdapter) RecordStatusUpdate() {
	a.collector.IncrementCustom(CounterStatusUpdates)
}

func (a *CollectorAdapter) RecordSent() {
	a.collector.IncrementCustom(CounterSent)
}

func (a *CollectorAdapter) RecordFailed() {
	a.collector.IncrementCustom(CounterFailed)
}

func (a *CollectorAdapter) RecordEventFailed() {
	a.collector.IncrementCustom(CounterEventsFailed)
}

var _ Recorder = (*CollectorAdapter)(nil)
