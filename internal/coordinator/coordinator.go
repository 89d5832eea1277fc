// Package coordinator sequences targeting and dispatch for every emergency and
// owns the in-memory history, the flat notification log and the current
// status view.
//
// All mutable state sits behind one RWMutex: trigger, status update and
// resolve take the write lock only to append or flip state, never while a
// dispatch is in flight, and every value handed to callers is a copy.
//
// Each emergency also owns an effects lock. A state change and the events and
// archive writes that follow it happen while that lock is held, so the
// published and archived order of one emergency matches its in-memory order.
// The effects lock is always taken before mu.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/afikmenashe/campus-alert/internal/archive"
	"github.com/afikmenashe/campus-alert/internal/dispatcher"
	"github.com/afikmenashe/campus-alert/internal/emergency"
	"github.com/afikmenashe/campus-alert/internal/events"
	"github.com/afikmenashe/campus-alert/internal/metrics"
	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/producer"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/targeting"
)

// DefaultRecentLimit is used by RecentNotifications when limit is not positive.
const DefaultRecentLimit = 10

var (
	// ErrNotFound is returned when an emergency id matches no record.
	ErrNotFound = errors.New("emergency not found")

	// ErrInvalidScope is returned when a trigger carries an incomplete scope rule.
	ErrInvalidScope = targeting.ErrInvalidScope

	// ErrEmptyMessage is returned by StatusUpdate when the update text is blank.
	ErrEmptyMessage = errors.New("update message cannot be empty")
)

// Roster is the read-only recipient source the coordinator targets against.
type Roster interface {
	targeting.Source
	Branches() []string
	Sections(branch string) []string
}

// Dispatcher fans a message out to a list of recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, emergencyID, message string, recipients []roster.Recipient) dispatcher.Result
	DispatchUpdate(ctx context.Context, emergencyID, update string, recipients []roster.Recipient) dispatcher.Result
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	roster     Roster
	dispatcher Dispatcher
	publisher  producer.Publisher
	archive    archive.Archiver
	metrics    metrics.Recorder
	now        func() time.Time

	mu      sync.RWMutex
	history []*emergency.Record
	byID    map[string]*emergency.Record
	log     []*notification.Record
	issued  map[string]struct{}
	effects map[string]*sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher publishes lifecycle events after every state change.
func WithPublisher(p producer.Publisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithArchive writes every state change to an audit archive.
func WithArchive(a archive.Archiver) Option {
	return func(c *Coordinator) {
		c.archive = a
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a coordinator. A nil roster is treated as an empty one so the
// service can start without a roster file.
func New(r Roster, d Dispatcher, opts ...Option) *Coordinator {
	if r == nil {
		r = roster.Empty()
	}
	c := &Coordinator{
		roster:     r,
		dispatcher: d,
		publisher:  producer.NoOpPublisher{},
		metrics:    metrics.NewNoOp(),
		now:        time.Now,
		byID:       make(map[string]*emergency.Record),
		issued:     make(map[string]struct{}),
		effects:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger declares a new emergency, notifies every targeted recipient and
// records the outcome. An empty message is replaced with
// emergency.DefaultMessage. The trigger runs to completion even if ctx is
// cancelled once dispatch has started.
func (c *Coordinator) Trigger(ctx context.Context, rule targeting.ScopeRule, message string, safe targeting.SafeList) (*emergency.Summary, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = emergency.DefaultMessage
	}

	createdAt := c.now()
	id := c.allocateID(createdAt)

	targets, err := targeting.Resolve(c.roster, rule, safe)
	if err != nil {
		return nil, err
	}

	slog.Info("Triggering emergency",
		"emergency_id", id,
		"scope", rule.String(),
		"targeted", len(targets),
		"safe_listed", len(safe),
	)

	ctx = context.WithoutCancel(ctx)
	res := c.dispatcher.Dispatch(ctx, id, message, targets)

	rec := &emergency.Record{
		ID:                id,
		Scope:             rule,
		Message:           message,
		TargetDescription: rule.Description(),
		CreatedAt:         createdAt,
		Status:            emergency.StatusActive,
		TargetedCount:     len(targets),
		SentCount:         res.Sent,
		FailedCount:       res.Failed,
		Targeted:          targets,
		Notifications:     res.Records,
		Updates:           []*emergency.StatusUpdate{},
	}

	// Not yet visible to anyone else, so locking cannot block.
	effects := &sync.Mutex{}
	effects.Lock()
	defer effects.Unlock()

	c.mu.Lock()
	c.history = append(c.history, rec)
	c.byID[id] = rec
	c.effects[id] = effects
	c.log = append(c.log, res.Records...)
	snapshot := rec.Clone()
	c.mu.Unlock()

	c.metrics.RecordTriggered()
	slog.Info("Emergency triggered",
		"emergency_id", id,
		"targeted", snapshot.TargetedCount,
		"sent", snapshot.SentCount,
		"failed", snapshot.FailedCount,
	)

	c.publish(ctx, &events.EmergencyChanged{
		EmergencyID: id,
		Action:      events.ActionTriggered,
		ScopeType:   string(rule.Kind()),
		Branch:      rule.Branch(),
		Section:     rule.Section(),
		Message:     message,
		Targeted:    snapshot.TargetedCount,
		Sent:        snapshot.SentCount,
		Failed:      snapshot.FailedCount,
		OccurredAt:  createdAt,
	})
	if c.archive != nil {
		if err := c.archive.SaveEmergency(ctx, snapshot); err != nil {
			c.archiveFailed("save emergency", id, err)
		} else if err := c.archive.SaveNotifications(ctx, snapshot.Notifications); err != nil {
			c.archiveFailed("save notifications", id, err)
		}
	}

	return snapshot.Summarize(), nil
}

// StatusUpdate appends an update to an existing emergency and broadcasts it to
// the recipients the emergency originally targeted. The emergency's status is
// left untouched.
func (c *Coordinator) StatusUpdate(ctx context.Context, emergencyID, message string) (*emergency.StatusUpdate, error) {
	emergencyID = strings.TrimSpace(emergencyID)
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.RLock()
	rec, ok := c.byID[emergencyID]
	var (
		targets []roster.Recipient
		scope   targeting.ScopeRule
		effects *sync.Mutex
	)
	if ok {
		targets = append(make([]roster.Recipient, 0, len(rec.Targeted)), rec.Targeted...)
		scope = rec.Scope
		effects = c.effects[emergencyID]
	}
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, emergencyID)
	}

	ctx = context.WithoutCancel(ctx)
	res := c.dispatcher.DispatchUpdate(ctx, emergencyID, message, targets)

	u := &emergency.StatusUpdate{
		ID:          uuid.New().String(),
		EmergencyID: emergencyID,
		Message:     message,
		Timestamp:   c.now(),
		Status:      emergency.UpdateStatus,
		Sent:        res.Sent,
		Failed:      res.Failed,
	}

	effects.Lock()
	defer effects.Unlock()

	c.mu.Lock()
	rec.Updates = append(rec.Updates, u)
	c.log = append(c.log, res.Records...)
	c.mu.Unlock()

	out := *u
	c.metrics.RecordStatusUpdate()
	slog.Info("Status update sent",
		"emergency_id", emergencyID,
		"update_id", u.ID,
		"sent", u.Sent,
		"failed", u.Failed,
	)

	c.publish(ctx, &events.EmergencyChanged{
		EmergencyID: emergencyID,
		Action:      events.ActionUpdated,
		ScopeType:   string(scope.Kind()),
		Branch:      scope.Branch(),
		Section:     scope.Section(),
		Message:     message,
		UpdateID:    u.ID,
		Targeted:    len(targets),
		Sent:        u.Sent,
		Failed:      u.Failed,
		OccurredAt:  u.Timestamp,
	})
	if c.archive != nil {
		if err := c.archive.SaveUpdate(ctx, &out); err != nil {
			c.archiveFailed("save status update", emergencyID, err)
		} else if err := c.archive.SaveNotifications(ctx, emergency.CloneNotifications(res.Records)); err != nil {
			c.archiveFailed("save update notifications", emergencyID, err)
		}
	}

	return &out, nil
}

// Resolve moves an emergency to RESOLVED. An empty id resolves the most recent
// ACTIVE emergency. Resolving an already resolved emergency returns it
// unchanged.
func (c *Coordinator) Resolve(ctx context.Context, emergencyID string) (*emergency.Record, error) {
	emergencyID = strings.TrimSpace(emergencyID)

	c.mu.RLock()
	var rec *emergency.Record
	if emergencyID == "" {
		for i := len(c.history) - 1; i >= 0; i-- {
			if c.history[i].Status == emergency.StatusActive {
				rec = c.history[i]
				break
			}
		}
	} else {
		rec = c.byID[emergencyID]
	}
	var effects *sync.Mutex
	if rec != nil {
		effects = c.effects[rec.ID]
	}
	c.mu.RUnlock()
	if rec == nil {
		if emergencyID == "" {
			return nil, fmt.Errorf("%w: no active emergency", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, emergencyID)
	}

	// Waits for the trigger's own events and archive writes to finish.
	effects.Lock()
	defer effects.Unlock()

	c.mu.Lock()
	changed := rec.Status != emergency.StatusResolved
	if changed {
		at := c.now()
		rec.Status = emergency.StatusResolved
		rec.ResolvedAt = &at
	}
	snapshot := rec.Clone()
	c.mu.Unlock()

	if !changed {
		slog.Debug("Emergency already resolved", "emergency_id", snapshot.ID)
		return snapshot, nil
	}

	c.metrics.RecordResolved()
	slog.Info("Emergency resolved", "emergency_id", snapshot.ID)

	ctx = context.WithoutCancel(ctx)
	c.publish(ctx, &events.EmergencyChanged{
		EmergencyID: snapshot.ID,
		Action:      events.ActionResolved,
		ScopeType:   string(snapshot.Scope.Kind()),
		Branch:      snapshot.Scope.Branch(),
		Section:     snapshot.Scope.Section(),
		Message:     snapshot.Message,
		Targeted:    snapshot.TargetedCount,
		Sent:        snapshot.SentCount,
		Failed:      snapshot.FailedCount,
		OccurredAt:  *snapshot.ResolvedAt,
	})
	if c.archive != nil {
		if err := c.archive.MarkResolved(ctx, snapshot.ID, *snapshot.ResolvedAt); err != nil {
			c.archiveFailed("mark resolved", snapshot.ID, err)
		}
	}

	return snapshot, nil
}

// Get returns a copy of one emergency.
func (c *Coordinator) Get(emergencyID string) (*emergency.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.byID[strings.TrimSpace(emergencyID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, emergencyID)
	}
	return rec.Clone(), nil
}

// History returns copies of every emergency in trigger order.
func (c *Coordinator) History() []*emergency.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*emergency.Record, len(c.history))
	for i, rec := range c.history {
		out[i] = rec.Clone()
	}
	return out
}

// RecentNotifications returns at most limit entries from the end of the
// notification log, oldest first.
func (c *Coordinator) RecentNotifications(limit int) []*notification.Record {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if len(c.log) > limit {
		start = len(c.log) - limit
	}
	return emergency.CloneNotifications(c.log[start:])
}

// CurrentStatus describes the most recent emergency. Active is false when
// nothing has been triggered or the latest emergency is resolved.
func (c *Coordinator) CurrentStatus() emergency.CurrentStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.history) == 0 {
		return emergency.CurrentStatus{}
	}
	latest := c.history[len(c.history)-1]
	if latest.Status != emergency.StatusActive {
		return emergency.CurrentStatus{}
	}
	ts := latest.CreatedAt
	return emergency.CurrentStatus{
		Active:            true,
		EmergencyID:       latest.ID,
		EmergencyMessage:  latest.Message,
		EmergencyType:     string(latest.Scope.Kind()),
		TargetDescription: latest.TargetDescription,
		Timestamp:         &ts,
	}
}

// BranchesAvailable lists the roster's branches.
func (c *Coordinator) BranchesAvailable() []string {
	return c.roster.Branches()
}

// SectionsAvailable lists the sections of branch, or of every branch when
// branch is empty.
func (c *Coordinator) SectionsAvailable(branch string) []string {
	return c.roster.Sections(strings.TrimSpace(branch))
}

// RecipientsFor lists the recipients of a branch, optionally narrowed to one
// section.
func (c *Coordinator) RecipientsFor(branch, section string) []roster.Recipient {
	return c.roster.RecipientsIn(strings.TrimSpace(branch), strings.TrimSpace(section))
}

// allocateID derives the id from at's second and appends _2, _3, ... when the
// same second was already used.
func (c *Coordinator) allocateID(at time.Time) string {
	base := emergency.IDPrefix + at.Format(emergency.IDLayout)

	c.mu.Lock()
	defer c.mu.Unlock()

	id := base
	for n := 2; ; n++ {
		if _, taken := c.issued[id]; !taken {
			break
		}
		id = base + "_" + strconv.Itoa(n)
	}
	c.issued[id] = struct{}{}
	return id
}

func (c *Coordinator) publish(ctx context.Context, changed *events.EmergencyChanged) {
	changed.SchemaVersion = events.SchemaVersion
	if err := c.publisher.Publish(ctx, changed); err != nil {
		c.metrics.RecordEventFailed()
		slog.Error("Failed to publish emergency changed event",
			"emergency_id", changed.EmergencyID,
			"action", changed.Action,
			"error", err,
		)
	}
}

func (c *Coordinator) archiveFailed(op, emergencyID string, err error) {
	c.metrics.RecordError()
	slog.Error("Archive write failed",
		"op", op,
		"emergency_id", emergencyID,
		"error", err,
	)
}
