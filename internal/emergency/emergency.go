// Package emergency defines the emergency records kept by the coordinator
// and the views it hands to callers.
package emergency

import (
	"time"

	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/targeting"
)

// IDLayout is the time layout of emergency identifiers (EMRG_20060102_150405).
const IDLayout = "20060102_150405"

// IDPrefix starts every emergency identifier.
const IDPrefix = "EMRG_"

// DefaultMessage replaces an empty trigger message.
const DefaultMessage = "General emergency alert"

// Status is the lifecycle state of an emergency. ACTIVE -> RESOLVED is the
// only transition.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
)

// UpdateStatus is the status recorded on every status update entry.
const UpdateStatus = "update_sent"

// Record is one triggered emergency.
type Record struct {
	ID                string                 `json:"emergency_id"`
	Scope             targeting.ScopeRule    `json:"scope"`
	Message           string                 `json:"message"`
	TargetDescription string                 `json:"target_description"`
	CreatedAt         time.Time              `json:"created_at"`
	Status            Status                 `json:"status"`
	ResolvedAt        *time.Time             `json:"resolved_at,omitempty"`
	TargetedCount     int                    `json:"targeted_count"`
	SentCount         int                    `json:"sent_count"`
	FailedCount       int                    `json:"failed_count"`
	Targeted          []roster.Recipient     `json:"targeted"`
	Notifications     []*notification.Record `json:"notifications"`
	Updates           []*StatusUpdate        `json:"updates"`
}

// StatusUpdate is a follow-up message appended to an emergency.
type StatusUpdate struct {
	ID          string    `json:"update_id"`
	EmergencyID string    `json:"emergency_id"`
	Message     string    `json:"update_message"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
}

// Summary is returned by a trigger.
type Summary struct {
	EmergencyID       string                 `json:"emergency_id"`
	Status            Status                 `json:"status"`
	Scope             targeting.ScopeRule    `json:"scope"`
	TargetDescription string                 `json:"target_description"`
	Message           string                 `json:"message"`
	Timestamp         time.Time              `json:"timestamp"`
	Targeted          int                    `json:"targeted_count"`
	Sent              int                    `json:"sent_count"`
	Failed            int                    `json:"failed_count"`
	Recipients        []roster.Recipient     `json:"targeted_students"`
	Notifications     []*notification.Record `json:"notifications"`
}

// CurrentStatus is the view of the most recent emergency. Active is false
// when no emergency exists or the latest one is resolved.
type CurrentStatus struct {
	Active            bool       `json:"active"`
	EmergencyID       string     `json:"emergency_id,omitempty"`
	EmergencyMessage  string     `json:"emergency_message,omitempty"`
	EmergencyType     string     `json:"emergency_type,omitempty"`
	TargetDescription string     `json:"target_description,omitempty"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// Summarize builds the trigger response for r.
func (r *Record) Summarize() *Summary {
	c := r.Clone()
	return &Summary{
		EmergencyID:       c.ID,
		Status:            c.Status,
		Scope:             c.Scope,
		TargetDescription: c.TargetDescription,
		Message:           c.Message,
		Timestamp:         c.CreatedAt,
		Targeted:          c.TargetedCount,
		Sent:              c.SentCount,
		Failed:            c.FailedCount,
		Recipients:        c.Targeted,
		Notifications:     c.Notifications,
	}
}

// Clone returns a deep copy safe to hand outside the coordinator's lock.
func (r *Record) Clone() *Record {
	c := *r
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		c.ResolvedAt = &at
	}
	c.Targeted = append(make([]roster.Recipient, 0, len(r.Targeted)), r.Targeted...)
	c.Notifications = CloneNotifications(r.Notifications)
	c.Updates = make([]*StatusUpdate, len(r.Updates))
	for i, u := range r.Updates {
		cu := *u
		c.Updates[i] = &cu
	}
	return &c
}

// CloneNotifications copies every record in rs.
func CloneNotifications(rs []*notification.Record) []*notification.Record {
	out := make([]*notification.Record, len(rs))
	for i, n := range rs {
		cn := *n
		out[i] = &cn
	}
	return out
}
