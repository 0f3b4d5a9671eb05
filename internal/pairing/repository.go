package pairing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-access/internal/client"
)

// Repository defines the interface for pairing session persistence.
//
// Every state transition is a conditional write: the UPDATE carries the
// expected current status (and, for verification, the PIN and expiry) in
// its WHERE clause. Zero rows affected means the transition lost the race
// or never matched — the caller maps that to the appropriate error.
type Repository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	MarkVerified(ctx context.Context, id, pin, deviceName string, deviceType client.DeviceType) (bool, error)
	MarkCompleted(ctx context.Context, id, clientID string, areas []string) (bool, error)
	Delete(ctx context.Context, id string) error
	ExpireStale(ctx context.Context, completionWindow time.Duration) (int64, error)
	DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed pairing repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new pending session. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = "pair-" + uuid.NewString()[:16]
	}
	session.Status = StatusPending

	now := time.Now().UTC()
	session.CreatedAt, _ = time.Parse(time.RFC3339, now.Format(time.RFC3339)) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pairing_sessions (id, pin, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.PIN, string(session.Status),
		now.Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating pairing session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT id, pin, status, device_name, device_type, assigned_areas_json,
		        client_id, created_at, expires_at, verified_at
		 FROM pairing_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns this error unwrapped
		return nil, ErrSessionNotFound
	}
	return s, err
}

// List returns all sessions, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pin, status, device_name, device_type, assigned_areas_json,
		        client_id, created_at, expires_at, verified_at
		 FROM pairing_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing pairing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairing sessions: %w", err)
	}

	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// MarkVerified transitions a session from pending to verified.
//
// The WHERE clause requires the session ID, the exact PIN, pending
// status, and an unexpired session all at once. A mismatch on any of
// them affects zero rows — indistinguishable from the outside, which is
// what keeps PIN verification constant-shape.
func (r *SQLiteRepository) MarkVerified(ctx context.Context, id, pin, deviceName string, deviceType client.DeviceType) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE pairing_sessions
		 SET status = ?, device_name = ?, device_type = ?, verified_at = ?
		 WHERE id = ? AND pin = ? AND status = ? AND expires_at > ?`,
		string(StatusVerified), deviceName, string(deviceType), now,
		id, pin, string(StatusPending), now,
	)
	if err != nil {
		return false, fmt.Errorf("verifying pairing session: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows > 0, nil
}

// MarkCompleted transitions a session from verified to completed,
// recording the issued client ID and the area snapshot.
func (r *SQLiteRepository) MarkCompleted(ctx context.Context, id, clientID string, areas []string) (bool, error) {
	if areas == nil {
		areas = []string{}
	}
	areasJSON, err := json.Marshal(areas)
	if err != nil {
		return false, fmt.Errorf("marshalling area snapshot: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE pairing_sessions
		 SET status = ?, client_id = ?, assigned_areas_json = ?
		 WHERE id = ? AND status = ?`,
		string(StatusCompleted), clientID, string(areasJSON),
		id, string(StatusVerified),
	)
	if err != nil {
		return false, fmt.Errorf("completing pairing session: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows > 0, nil
}

// Delete removes a session by ID (admin cancellation).
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM pairing_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting pairing session: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ExpireStale transitions overdue sessions to expired.
//
// Two conditional updates: pending sessions past their expiry, and
// verified sessions that outlived the completion window (an admin who
// never calls complete should not leave a verified session alive
// forever). Both race safely against live verify/complete calls.
func (r *SQLiteRepository) ExpireStale(ctx context.Context, completionWindow time.Duration) (int64, error) {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	pending, err := r.db.ExecContext(ctx,
		`UPDATE pairing_sessions SET status = ?
		 WHERE status = ? AND expires_at <= ?`,
		string(StatusExpired), string(StatusPending), nowStr)
	if err != nil {
		return 0, fmt.Errorf("expiring pending sessions: %w", err)
	}

	verifiedCutoff := now.Add(-completionWindow).Format(time.RFC3339)
	verified, err := r.db.ExecContext(ctx,
		`UPDATE pairing_sessions SET status = ?
		 WHERE status = ? AND verified_at <= ?`,
		string(StatusExpired), string(StatusVerified), verifiedCutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring verified sessions: %w", err)
	}

	p, _ := pending.RowsAffected()  //nolint:errcheck // always succeeds on SQLite
	v, _ := verified.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return p + v, nil
}

// DeleteTerminal purges completed and expired sessions older than the
// retention window. Terminal sessions are kept for a while for audit.
func (r *SQLiteRepository) DeleteTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pairing_sessions
		 WHERE status IN (?, ?) AND created_at <= ?`,
		string(StatusCompleted), string(StatusExpired), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging terminal sessions: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

// scanSession scans a session from any row-shaped source.
func scanSession(s scanner) (*Session, error) {
	var sess Session
	var status, createdAt, expiresAt string
	var deviceName, deviceType, areasJSON, clientID, verifiedAt sql.NullString

	if err := s.Scan(&sess.ID, &sess.PIN, &status, &deviceName, &deviceType,
		&areasJSON, &clientID, &createdAt, &expiresAt, &verifiedAt); err != nil {
		if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns this error unwrapped
			return nil, err
		}
		return nil, fmt.Errorf("scanning pairing session: %w", err)
	}

	sess.Status = Status(status)
	if deviceName.Valid {
		sess.DeviceName = deviceName.String
	}
	if deviceType.Valid {
		sess.DeviceType = client.DeviceType(deviceType.String)
	}
	if areasJSON.Valid && areasJSON.String != "" {
		var areas []string
		if json.Unmarshal([]byte(areasJSON.String), &areas) == nil {
			sess.AssignedAreas = areas
		}
	}
	if clientID.Valid {
		sess.ClientID = clientID.String
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	sess.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	if verifiedAt.Valid {
		t, _ := time.Parse(time.RFC3339, verifiedAt.String) //nolint:errcheck // format is controlled
		sess.VerifiedAt = &t
	}

	return &sess, nil
}
