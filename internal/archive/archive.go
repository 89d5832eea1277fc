// Package archive writes an audit trail of emergencies, notifications and
// status updates to PostgreSQL. It is write-only: the coordinator never reads
// history back from it.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/afikmenashe/campus-alert/internal/emergency"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

// ErrNotFound is returned when MarkResolved matches no row.
var ErrNotFound = errors.New("emergency not archived")

// Archiver is the write surface the coordinator uses.
type Archiver interface {
	SaveEmergency(ctx context.Context, rec *emergency.Record) error
	SaveNotifications(ctx context.Context, recs []*notification.Record) error
	SaveUpdate(ctx context.Context, u *emergency.StatusUpdate) error
	MarkResolved(ctx context.Context, emergencyID string, resolvedAt time.Time) error
}

// Schema creates the archive tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS emergencies (
	emergency_id        TEXT PRIMARY KEY,
	scope_type          TEXT NOT NULL,
	branch              TEXT,
	section             TEXT,
	message             TEXT NOT NULL,
	target_description  TEXT NOT NULL,
	status              TEXT NOT NULL,
	targeted_count      INTEGER NOT NULL,
	sent_count          INTEGER NOT NULL,
	failed_count        INTEGER NOT NULL,
	targeted_ids        TEXT[] NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	resolved_at         TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS emergency_notifications (
	notification_id  UUID PRIMARY KEY,
	emergency_id     TEXT NOT NULL,
	recipient_id     TEXT NOT NULL,
	address          TEXT NOT NULL,
	subject          TEXT NOT NULL,
	body             TEXT NOT NULL,
	kind             TEXT NOT NULL,
	status           TEXT NOT NULL,
	error            TEXT,
	sent_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emergency_notifications_emergency ON emergency_notifications (emergency_id);
CREATE TABLE IF NOT EXISTS emergency_updates (
	update_id      UUID PRIMARY KEY,
	emergency_id   TEXT NOT NULL,
	message        TEXT NOT NULL,
	status         TEXT NOT NULL,
	sent_count     INTEGER NOT NULL,
	failed_count   INTEGER NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

// DB wraps a database connection and provides archive operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")
	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// EnsureSchema creates the archive tables.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// SaveEmergency inserts the emergency row. Saving the same emergency twice is a no-op.
func (db *DB) SaveEmergency(ctx context.Context, rec *emergency.Record) error {
	query := `
		INSERT INTO emergencies (emergency_id, scope_type, branch, section, message, target_description,
			status, targeted_count, sent_count, failed_count, targeted_ids, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (emergency_id) DO NOTHING
	`

	ids := make([]string, len(rec.Targeted))
	for i, r := range rec.Targeted {
		ids[i] = r.ID
	}

	_, err := db.conn.ExecContext(ctx, query,
		rec.ID,
		string(rec.Scope.Kind()),
		nullString(rec.Scope.Branch()),
		nullString(rec.Scope.Section()),
		rec.Message,
		rec.TargetDescription,
		string(rec.Status),
		rec.TargetedCount,
		rec.SentCount,
		rec.FailedCount,
		pq.Array(ids),
		rec.CreatedAt,
		nullTime(rec.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert emergency: %w", err)
	}
	return nil
}

// SaveNotifications inserts every record in one transaction. Records already
// archived are skipped.
func (db *DB) SaveNotifications(ctx context.Context, recs []*notification.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO emergency_notifications (notification_id, emergency_id, recipient_id, address, subject, body, kind, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (notification_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare notification insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			r.EmergencyID,
			r.RecipientID,
			r.Address,
			r.Subject,
			r.Body,
			string(r.Kind),
			r.Status,
			nullString(r.Error),
			r.SentAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert notification %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	return nil
}

// SaveUpdate inserts a status update row.
func (db *DB) SaveUpdate(ctx context.Context, u *emergency.StatusUpdate) error {
	query := `
		INSERT INTO emergency_updates (update_id, emergency_id, message, status, sent_count, failed_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.conn.ExecContext(ctx, query, u.ID, u.EmergencyID, u.Message, u.Status, u.Sent, u.Failed, u.Timestamp)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			slog.Debug("Status update already archived", "update_id", u.ID)
			return nil
		}
		return fmt.Errorf("failed to insert status update: %w", err)
	}
	return nil
}

// MarkResolved records the resolution of an archived emergency.
func (db *DB) MarkResolved(ctx context.Context, emergencyID string, resolvedAt time.Time) error {
	query := `
		UPDATE emergencies
		SET status = $2, resolved_at = $3
		WHERE emergency_id = $1
	`
	res, err := db.conn.ExecContext(ctx, query, emergencyID, string(emergency.StatusResolved), resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to mark emergency resolved: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, emergencyID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

var _ Archiver = (*DB)(nil)
