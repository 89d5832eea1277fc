// Package dispatcher fans a notification out to every targeted recipient
// through a delivery channel and tallies the outcomes.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/afikmenashe/campus-alert/internal/metrics"
	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/roster"
)

const (
	DefaultWorkers = 10
	DefaultTimeout = 10 * time.Second
)

// ErrDeliveryTimeout is recorded when a channel does not answer within the
// per-recipient timeout.
var ErrDeliveryTimeout = errors.New("delivery timed out")

// Channel transmits one payload. A nil error means the message was accepted.
type Channel interface {
	Deliver(ctx context.Context, p notification.Payload) error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(ctx context.Context, p notification.Payload) error

func (f ChannelFunc) Deliver(ctx context.Context, p notification.Payload) error {
	return f(ctx, p)
}

// Result is the outcome of one dispatch. Records are in the order the
// recipients were given, and Sent+Failed always equals len(Records).
type Result struct {
	Sent    int
	Failed  int
	Records []*notification.Record
}

// Dispatcher delivers payloads through a bounded worker pool.
type Dispatcher struct {
	channel Channel
	workers int
	timeout time.Duration
	now     func() time.Time
	metrics metrics.Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers bounds the number of concurrent deliveries.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithTimeout bounds each individual delivery.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithMetrics records per-delivery outcomes.
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// New creates a dispatcher that delivers through ch.
func New(ch Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channel: ch,
		workers: DefaultWorkers,
		timeout: DefaultTimeout,
		now:     time.Now,
		metrics: metrics.NewNoOp(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch formats and delivers the emergency alert to every recipient.
// An empty recipient list returns a zero Result without touching the channel.
func (d *Dispatcher) Dispatch(ctx context.Context, emergencyID, message string, recipients []roster.Recipient) Result {
	at := d.now()
	return d.run(ctx, emergencyID, recipients, func(r roster.Recipient) notification.Payload {
		return notification.Format(message, emergencyID, r, at)
	})
}

// DispatchUpdate delivers a status update to recipients already notified.
func (d *Dispatcher) DispatchUpdate(ctx context.Context, emergencyID, update string, recipients []roster.Recipient) Result {
	at := d.now()
	return d.run(ctx, emergencyID, recipients, func(r roster.Recipient) notification.Payload {
		return notification.FormatUpdate(emergencyID, update, r, at)
	})
}

func (d *Dispatcher) run(ctx context.Context, emergencyID string, recipients []roster.Recipient, build func(roster.Recipient) notification.Payload) Result {
	result := Result{Records: make([]*notification.Record, len(recipients))}
	if len(recipients) == 0 {
		return result
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, r := range recipients {
		i, r := i, r
		g.Go(func() error {
			p := build(r)
			err := d.deliverOne(ctx, p)
			result.Records[i] = notification.NewRecord(p, d.now(), err)
			if err != nil {
				d.metrics.RecordFailed()
				slog.Warn("Delivery failed",
					"emergency_id", emergencyID,
					"recipient_id", r.ID,
					"error", err,
				)
				return nil
			}
			d.metrics.RecordSent()
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range result.Records {
		if rec.Sent() {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	slog.Info("Dispatch complete",
		"emergency_id", emergencyID,
		"targeted", len(recipients),
		"sent", result.Sent,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
	return result
}

// deliverOne runs the channel call in its own goroutine so a channel that
// ignores its context still cannot hold a worker past the timeout.
func (d *Dispatcher) deliverOne(ctx context.Context, p notification.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("delivery channel panicked: %v", rec)
			}
		}()
		done <- d.channel.Deliver(ctx, p)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s: %v", ErrDeliveryTimeout, d.timeout, ctx.Err())
	}
}
