// Package notification builds the per-recipient messages sent for an emergency
// and the records kept after each delivery attempt.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/afikmenashe/campus-alert/internal/roster"
)

// DisplayTimeLayout is how timestamps are rendered inside message bodies.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// Kind distinguishes the initial alert from follow-up updates.
type Kind string

const (
	KindAlert  Kind = "alert"
	KindUpdate Kind = "update"
)

// Payload is one message ready to hand to a delivery channel.
type Payload struct {
	EmergencyID   string    `json:"emergency_id"`
	RecipientID   string    `json:"recipient_id"`
	RecipientName string    `json:"recipient_name"`
	Address       string    `json:"address"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	Kind          Kind      `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
}

// Subject returns the subject line of the initial alert.
func Subject(emergencyID string) string {
	return "URGENT: Emergency Alert - " + emergencyID
}

// UpdateSubject returns the subject line of a status update.
func UpdateSubject(emergencyID string) string {
	return "UPDATE: Emergency " + emergencyID
}

// Format builds the alert payload for one recipient.
func Format(message, emergencyID string, r roster.Recipient, now time.Time) Payload {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Dear Parent/Guardian of %s,\n\n", r.Name))
	sb.WriteString("URGENT EMERGENCY NOTIFICATION\n\n")
	sb.WriteString(fmt.Sprintf("Emergency ID: %s\n", emergencyID))
	sb.WriteString(fmt.Sprintf("Time: %s\n", now.Format(DisplayTimeLayout)))
	sb.WriteString(fmt.Sprintf("Student: %s (ID: %s)\n", r.Name, r.ID))
	sb.WriteString(fmt.Sprintf("Branch/Section: %s-%s\n\n", r.Branch, r.Section))
	sb.WriteString("EMERGENCY DETAILS:\n")
	sb.WriteString(message)
	sb.WriteString("\n\n")
	sb.WriteString("PLEASE TAKE IMMEDIATE ACTION:\n")
	sb.WriteString("- Ensure your child's safety\n")
	sb.WriteString("- Follow school emergency protocols\n")
	sb.WriteString("- Contact school administration if needed\n\n")
	sb.WriteString("Stay tuned for further updates from the school administration.\n\n")
	sb.WriteString(fmt.Sprintf("Generated at: %s\n", now.Format(time.RFC3339)))

	return Payload{
		EmergencyID:   emergencyID,
		RecipientID:   r.ID,
		RecipientName: r.Name,
		Address:       r.GuardianContact,
		Subject:       Subject(emergencyID),
		Body:          sb.String(),
		Kind:          KindAlert,
		Timestamp:     now,
	}
}

// FormatUpdate builds the follow-up payload for one previously notified recipient.
func FormatUpdate(emergencyID, update string, r roster.Recipient, now time.Time) Payload {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Dear Parent/Guardian of %s,\n\n", r.Name))
	sb.WriteString("EMERGENCY STATUS UPDATE\n\n")
	sb.WriteString(fmt.Sprintf("Emergency ID: %s\n", emergencyID))
	sb.WriteString(fmt.Sprintf("Time: %s\n\n", now.Format(DisplayTimeLayout)))
	sb.WriteString("UPDATE:\n")
	sb.WriteString(update)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Generated at: %s\n", now.Format(time.RFC3339)))

	return Payload{
		EmergencyID:   emergencyID,
		RecipientID:   r.ID,
		RecipientName: r.Name,
		Address:       r.GuardianContact,
		Subject:       UpdateSubject(emergencyID),
		Body:          sb.String(),
		Kind:          KindUpdate,
		Timestamp:     now,
	}
}

// Delivery outcomes.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Record is the outcome of one delivery attempt. The same *Record is shared by
// the emergency that produced it and the flat notification log.
type Record struct {
	ID          string    `json:"id"`
	EmergencyID string    `json:"emergency_id"`
	RecipientID string    `json:"recipient_id"`
	Address     string    `json:"address"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Kind        Kind      `json:"kind"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// NewRecord builds the record for payload p. A nil err means the delivery succeeded.
func NewRecord(p Payload, sentAt time.Time, err error) *Record {
	rec := &Record{
		ID:          uuid.New().String(),
		EmergencyID: p.EmergencyID,
		RecipientID: p.RecipientID,
		Address:     p.Address,
		Subject:     p.Subject,
		Body:        p.Body,
		Kind:        p.Kind,
		Status:      StatusSent,
		SentAt:      sentAt,
	}
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
	return rec
}

// Sent reports whether the delivery succeeded.
func (r *Record) Sent() bool {
	return r.Status == StatusSent
}
