package emergency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/targeting"
)

func sampleRecord() *Record {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	return &Record{
		ID:                "EMRG_20260101_090000",
		Scope:             targeting.All(),
		Message:           "Fire",
		TargetDescription: "All Students",
		CreatedAt:         now,
		Status:            StatusActive,
		ResolvedAt:        &now,
		TargetedCount:     1,
		SentCount:         1,
		Targeted:          []roster.Recipient{{ID: "1", Name: "Asha"}},
		Notifications:     []*notification.Record{{ID: "n1", RecipientID: "1", Status: notification.StatusSent}},
		Updates:           []*StatusUpdate{{ID: "u1", Message: "calm"}},
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := sampleRecord()
	c := r.Clone()

	c.Targeted[0].Name = "changed"
	c.Notifications[0].Status = notification.StatusFailed
	c.Updates[0].Message = "changed"
	*c.ResolvedAt = c.ResolvedAt.Add(time.Hour)

	assert.Equal(t, "Asha", r.Targeted[0].Name)
	assert.Equal(t, notification.StatusSent, r.Notifications[0].Status)
	assert.Equal(t, "calm", r.Updates[0].Message)
	assert.Equal(t, 9, r.ResolvedAt.Hour())
}

func TestRecord_Summarize(t *testing.T) {
	s := sampleRecord().Summarize()

	assert.Equal(t, "EMRG_20260101_090000", s.EmergencyID)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, 1, s.Targeted)
	assert.Equal(t, 1, s.Sent)
	assert.Equal(t, 0, s.Failed)
	assert.Len(t, s.Recipients, 1)
	assert.Len(t, s.Notifications, 1)
}
