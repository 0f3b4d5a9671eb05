package pairing

import (
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-access/internal/client"
)

// testSecret is the signing secret used across pairing tests.
const testSecret = "test-signing-secret-at-least-32-chars!"

// testDB creates a temporary SQLite database with the pairing, client,
// and token schemas applied (completion touches all three).
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "pairing-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE pairing_sessions (
			id TEXT PRIMARY KEY,
			pin TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			device_name TEXT,
			device_type TEXT,
			assigned_areas_json TEXT,
			client_id TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			expires_at TEXT NOT NULL,
			verified_at TEXT
		) STRICT;

		CREATE INDEX idx_pairing_sessions_status ON pairing_sessions(status);
		CREATE INDEX idx_pairing_sessions_expires ON pairing_sessions(expires_at);

		CREATE TABLE clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			device_type TEXT NOT NULL DEFAULT 'other',
			assigned_areas_json TEXT NOT NULL DEFAULT '[]',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			last_seen_at TEXT
		) STRICT;

		CREATE TABLE client_tokens (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			assigned_areas_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			expires_at TEXT NOT NULL,
			last_used_at TEXT,
			is_revoked INTEGER NOT NULL DEFAULT 0,
			revoked_at TEXT,
			revoked_reason TEXT,
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return db
}

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	clientEvents []recordedEvent
	adminEvents  []recordedEvent
}

type recordedEvent struct {
	clientID  string
	eventType string
	payload   map[string]any
}

func (n *recordingNotifier) Notify(clientID, eventType string, payload map[string]any) {
	n.clientEvents = append(n.clientEvents, recordedEvent{clientID, eventType, payload})
}

func (n *recordingNotifier) NotifyAdmins(eventType string, payload map[string]any) {
	n.adminEvents = append(n.adminEvents, recordedEvent{"", eventType, payload})
}

// testManager builds a Manager over a fresh database with short TTLs.
func testManager(t *testing.T, db *sql.DB, notifier Notifier) (*Manager, *client.SQLiteStore, *client.TokenService) {
	t.Helper()

	store := client.NewSQLiteStore(db)
	tokens, err := client.NewTokenService(client.TokenServiceOptions{
		Store:  store,
		Secret: testSecret,
		TTL:    time.Hour,
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	mgr, err := NewManager(ManagerOptions{
		Repo:             NewSQLiteRepository(db),
		Clients:          store,
		Tokens:           tokens,
		Notifier:         notifier,
		SessionTTL:       5 * time.Minute,
		CompletionWindow: 15 * time.Minute,
		Logger:           slog.Default(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	return mgr, store, tokens
}

// forceExpire rewinds a session's expires_at so the next sweep or verify
// treats it as past its deadline.
func forceExpire(t *testing.T, db *sql.DB, sessionID string) {
	t.Helper()

	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	if _, err := db.Exec(
		"UPDATE pairing_sessions SET expires_at = ? WHERE id = ?", past, sessionID); err != nil {
		t.Fatalf("forcing session expiry: %v", err)
	}
}
