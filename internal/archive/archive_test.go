// These tests use sqlmock to mock database interactions.
package archive

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/afikmenashe/campus-alert/internal/emergency"
	"github.com/afikmenashe/campus-alert/internal/notification"
	"github.com/afikmenashe/campus-alert/internal/roster"
	"github.com/afikmenashe/campus-alert/internal/targeting"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &DB{conn: conn}, mock
}

func TestNewDB(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{name: "invalid DSN", dsn: "invalid-dsn"},
		{name: "unreachable host", dsn: "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDB(tt.dsn); err == nil {
				t.Error("NewDB() error = nil, want error")
			}
		})
	}
}

func TestDB_Close(t *testing.T) {
	db := &DB{conn: nil}
	if err := db.Close(); err != nil {
		t.Errorf("Close() with nil conn error = %v, want nil", err)
	}
}

func TestDB_EnsureSchema(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS emergencies")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDB_SaveEmergency(t *testing.T) {
	scope, err := targeting.Section("CSE", "A")
	if err != nil {
		t.Fatal(err)
	}
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rec := &emergency.Record{
		ID:                "EMRG_20260101_090000",
		Scope:             scope,
		Message:           "Fire",
		TargetDescription: scope.Description(),
		CreatedAt:         created,
		Status:            emergency.StatusActive,
		TargetedCount:     2,
		SentCount:         1,
		FailedCount:       1,
		Targeted:          []roster.Recipient{{ID: "1"}, {ID: "4"}},
	}

	tests := []struct {
		name    string
		execErr error
		wantErr bool
	}{
		{name: "inserted", wantErr: false},
		{name: "db error", execErr: errors.New("connection lost"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			exp := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO emergencies")).
				WithArgs("EMRG_20260101_090000", "section", "CSE", "A", "Fire", "Section CSE-A",
					"ACTIVE", 2, 1, 1, pq.Array([]string{"1", "4"}), created, nil)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := db.SaveEmergency(context.Background(), rec)
			if (err != nil) != tt.wantErr {
				t.Errorf("SaveEmergency() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestDB_SaveNotifications(t *testing.T) {
	sentAt := time.Date(2026, 1, 1, 9, 0, 1, 0, time.UTC)
	recs := []*notification.Record{
		{ID: "0b7e7c1e-0000-4000-8000-000000000001", EmergencyID: "EMRG_1", RecipientID: "1", Address: "a@example.com",
			Subject: "s", Body: "b", Kind: notification.KindAlert, Status: notification.StatusSent, SentAt: sentAt},
		{ID: "0b7e7c1e-0000-4000-8000-000000000002", EmergencyID: "EMRG_1", RecipientID: "4", Address: "+1555",
			Subject: "s", Body: "b", Kind: notification.KindAlert, Status: notification.StatusFailed, Error: "no sms sender", SentAt: sentAt},
	}

	t.Run("commits all rows", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO emergency_notifications"))
		prep.ExpectExec().
			WithArgs(recs[0].ID, "EMRG_1", "1", "a@example.com", "s", "b", "alert", "sent", nil, sentAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().
			WithArgs(recs[1].ID, "EMRG_1", "4", "+1555", "s", "b", "alert", "failed", "no sms sender", sentAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := db.SaveNotifications(context.Background(), recs); err != nil {
			t.Fatalf("SaveNotifications() error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO emergency_notifications"))
		prep.ExpectExec().WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		if err := db.SaveNotifications(context.Background(), recs); err == nil {
			t.Fatal("SaveNotifications() error = nil, want error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("empty is a no-op", func(t *testing.T) {
		db, mock := newMock(t)
		if err := db.SaveNotifications(context.Background(), nil); err != nil {
			t.Fatalf("SaveNotifications(nil) error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestDB_SaveUpdate(t *testing.T) {
	at := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	u := &emergency.StatusUpdate{
		ID: "0b7e7c1e-0000-4000-8000-0000000000aa", EmergencyID: "EMRG_1", Message: "All clear soon",
		Timestamp: at, Status: emergency.UpdateStatus, Sent: 3, Failed: 0,
	}

	tests := []struct {
		name    string
		execErr error
		wantErr bool
	}{
		{name: "inserted"},
		{name: "duplicate tolerated", execErr: &pq.Error{Code: "23505"}},
		{name: "other error", execErr: errors.New("timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			exp := mock.ExpectExec(regexp.QuoteMeta("INSERT INTO emergency_updates")).
				WithArgs(u.ID, "EMRG_1", "All clear soon", "update_sent", 3, 0, at)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := db.SaveUpdate(context.Background(), u)
			if (err != nil) != tt.wantErr {
				t.Errorf("SaveUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDB_MarkResolved(t *testing.T) {
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("resolved", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE emergencies")).
			WithArgs("EMRG_1", "RESOLVED", at).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := db.MarkResolved(context.Background(), "EMRG_1", at); err != nil {
			t.Fatalf("MarkResolved() error = %v", err)
		}
	})

	t.Run("not archived", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE emergencies")).
			WithArgs("EMRG_missing", "RESOLVED", at).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.MarkResolved(context.Background(), "EMRG_missing", at)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkResolved() error = %v, want ErrNotFound", err)
		}
	})
}
