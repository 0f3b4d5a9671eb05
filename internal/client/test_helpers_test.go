package client

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the client schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "client-test-*.db")
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

		CREATE UNIQUE INDEX idx_client_tokens_hash ON client_tokens(token_hash);
		CREATE INDEX idx_client_tokens_client ON client_tokens(client_id);
		CREATE INDEX idx_client_tokens_expires ON client_tokens(expires_at);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return db
}

// testSecret is the signing secret used across token tests.
const testSecret = "test-signing-secret-at-least-32-chars!"

// mustCreateClient inserts a client or fails the test.
func mustCreateClient(t *testing.T, store *SQLiteStore, name string, areas []string) *Client {
	t.Helper()

	c := &Client{
		Name:          name,
		DeviceType:    DeviceTypeTablet,
		AssignedAreas: areas,
		IsActive:      true,
	}
	if err := store.CreateClient(context.Background(), c); err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	return c
}
