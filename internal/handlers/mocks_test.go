package handlers

import (
	"context"

	"github.com/afikmenashe/campus-alert/internal/emergency"
	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/targeting"
)

// mockCoordinator implements Coordinator for testing.
type mockCoordinator struct {
	TriggerFn      func(ctx context.Context, rule targeting.ScopeRule, message string, safe targeting.SafeList) (*emergency.Summary, error)
	StatusUpdateFn func(ctx context.Context, emergencyID, message string) (*emergency.StatusUpdate, error)
	ResolveFn      func(ctx context.Context, emergencyID string) (*emergency.Record, error)

	history       []*emergency.Record
	notifications []*notification.Record
	status        emergency.CurrentStatus
	lastLimit     int
	lastBranch    string
	lastSection   string
}

func (m *mockCoordinator) Trigger(ctx context.Context, rule targeting.ScopeRule, message string, safe targeting.SafeList) (*emergency.Summary, error) {
	if m.TriggerFn != nil {
		return m.TriggerFn(ctx, rule, message, safe)
	}
	return &emergency.Summary{EmergencyID: "EMRG_20260101_090000", Status: emergency.StatusActive, Scope: rule, Message: message}, nil
}

func (m *mockCoordinator) StatusUpdate(ctx context.Context, emergencyID, message string) (*emergency.StatusUpdate, error) {
	if m.StatusUpdateFn != nil {
		return m.StatusUpdateFn(ctx, emergencyID, message)
	}
	return &emergency.StatusUpdate{ID: "u-1", EmergencyID: emergencyID, Message: message, Status: emergency.UpdateStatus}, nil
}

func (m *mockCoordinator) Resolve(ctx context.Context, emergencyID string) (*emergency.Record, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, emergencyID)
	}
	return &emergency.Record{ID: emergencyID, Status: emergency.StatusResolved}, nil
}

func (m *mockCoordinator) History() []*emergency.Record {
	if m.history == nil {
		return []*emergency.Record{}
	}
	return m.history
}

func (m *mockCoordinator) RecentNotifications(limit int) []*notification.Record {
	m.lastLimit = limit
	if m.notifications == nil {
		return []*notification.Record{}
	}
	return m.notifications
}

func (m *mockCoordinator) CurrentStatus() emergency.CurrentStatus {
	return m.status
}

func (m *mockCoordinator) BranchesAvailable() []string {
	return []string{"CSE", "ECE"}
}

func (m *mockCoordinator) SectionsAvailable(branch string) []string {
	m.lastBranch = branch
	return []string{"A", "B"}
}

func (m *mockCoordinator) RecipientsFor(branch, section string) []roster.Recipient {
	m.lastBranch, m.lastSection = branch, section
	return []roster.Recipient{{ID: "1", Name: "Asha", Branch: branch, Section: "A"}}
}

var _ Coordinator = (*mockCoordinator)(nil)
