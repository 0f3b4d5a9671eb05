package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for client and token persistence.
type Store interface {
	// Clients
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	ListActiveByArea(ctx context.Context, areaID string) ([]Client, error)
	UpdateClient(ctx context.Context, id, name string, areas []string) error
	SetClientActive(ctx context.Context, id string, active bool) error
	UpdateClientLastSeen(ctx context.Context, id string) error
	DeleteClient(ctx context.Context, id string) error

	// Tokens
	CreateToken(ctx context.Context, t *ClientToken) error
	GetToken(ctx context.Context, id string) (*ClientToken, error)
	GetTokenByHash(ctx context.Context, tokenHash string) (*ClientToken, error)
	ListTokens(ctx context.Context, filter TokenFilter) ([]ClientToken, error)
	RevokeToken(ctx context.Context, id, reason string) (bool, error)
	UpdateTokenAreas(ctx context.Context, id string, areas []string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
	TokenStats(ctx context.Context) (*TokenStats, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed client store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateClient inserts a new client record. The ID is generated if empty.
func (s *SQLiteStore) CreateClient(ctx context.Context, c *Client) error {
	if c.ID == "" {
		c.ID = "cli-" + uuid.NewString()[:16]
	}

	areasJSON, err := marshalAreas(c.AssignedAreas)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	c.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, device_type, assigned_areas_json, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.DeviceType), areasJSON, boolToInt(c.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	return nil
}

// GetClient retrieves a client by its unique ID.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*Client, error) {
	return scanClientRow(s.db.QueryRowContext(ctx,
		`SELECT id, name, device_type, assigned_areas_json, is_active, created_at, last_seen_at
		 FROM clients WHERE id = ?`, id))
}

// ListClients returns all clients, oldest first.
func (s *SQLiteStore) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, device_type, assigned_areas_json, is_active, created_at, last_seen_at
		 FROM clients ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	return collectClients(rows)
}

// ListActiveByArea returns all active clients whose assigned areas contain
// the given area ID.
//
// Area sets are stored as JSON text, so the filter runs in Go after an
// active-clients scan. That is an O(active-clients) walk per call, which
// is fine for the fleet sizes this service fronts.
func (s *SQLiteStore) ListActiveByArea(ctx context.Context, areaID string) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, device_type, assigned_areas_json, is_active, created_at, last_seen_at
		 FROM clients WHERE is_active = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing active clients: %w", err)
	}
	defer rows.Close()

	all, err := collectClients(rows)
	if err != nil {
		return nil, err
	}

	matched := []Client{}
	for _, c := range all {
		for _, a := range c.AssignedAreas {
			if a == areaID {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched, nil
}

// UpdateClient changes a client's display name and assigned areas.
func (s *SQLiteStore) UpdateClient(ctx context.Context, id, name string, areas []string) error {
	areasJSON, err := marshalAreas(areas)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE clients SET name = ?, assigned_areas_json = ? WHERE id = ?",
		name, areasJSON, id)
	if err != nil {
		return fmt.Errorf("updating client: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClientActive flips a client's suspend flag.
func (s *SQLiteStore) SetClientActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE clients SET is_active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("updating client active flag: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateClientLastSeen updates the client's last_seen_at timestamp to now.
// Called as a side effect of successful credential verification.
func (s *SQLiteStore) UpdateClientLastSeen(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"UPDATE clients SET last_seen_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("updating client last seen: %w", err)
	}
	return nil
}

// DeleteClient removes a client by ID. Its tokens are cascade-deleted.
func (s *SQLiteStore) DeleteClient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting client: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateToken inserts a new token record. The ID must already be set —
// issuance embeds it in the signed credential before the row exists.
func (s *SQLiteStore) CreateToken(ctx context.Context, t *ClientToken) error {
	if t.ID == "" {
		t.ID = "tok-" + uuid.NewString()[:16]
	}

	areasJSON, err := marshalAreas(t.AssignedAreas)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	t.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO client_tokens (id, client_id, token_hash, assigned_areas_json, created_at, expires_at, is_revoked)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		t.ID, t.ClientID, t.TokenHash, areasJSON, now,
		t.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTokenHash
		}
		return fmt.Errorf("creating client token: %w", err)
	}

	return nil
}

// GetToken retrieves a token by its ID.
func (s *SQLiteStore) GetToken(ctx context.Context, id string) (*ClientToken, error) {
	return scanTokenRow(s.db.QueryRowContext(ctx,
		`SELECT id, client_id, token_hash, assigned_areas_json, created_at, expires_at,
		        last_used_at, is_revoked, revoked_at, revoked_reason
		 FROM client_tokens WHERE id = ?`, id))
}

// GetTokenByHash retrieves a token by its SHA-256 hash.
// This is the authentication-path lookup: the gate hashes the presented
// credential and requires a matching row.
func (s *SQLiteStore) GetTokenByHash(ctx context.Context, tokenHash string) (*ClientToken, error) {
	return scanTokenRow(s.db.QueryRowContext(ctx,
		`SELECT id, client_id, token_hash, assigned_areas_json, created_at, expires_at,
		        last_used_at, is_revoked, revoked_at, revoked_reason
		 FROM client_tokens WHERE token_hash = ?`, tokenHash))
}

// ListTokens returns tokens matching the filter, newest first.
func (s *SQLiteStore) ListTokens(ctx context.Context, filter TokenFilter) ([]ClientToken, error) {
	var conditions []string
	var args []any

	if filter.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if !filter.IncludeRevoked {
		conditions = append(conditions, "is_revoked = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, client_id, token_hash, assigned_areas_json, created_at, expires_at,
		        last_used_at, is_revoked, revoked_at, revoked_reason
		 FROM client_tokens %s ORDER BY created_at DESC`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []ClientToken
	for rows.Next() {
		t, scanErr := scanTokenFrom(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}

	if tokens == nil {
		tokens = []ClientToken{}
	}
	return tokens, nil
}

// RevokeToken marks a token as revoked with the given reason.
//
// The update is conditional on is_revoked = 0 so revocation is idempotent
// and never overwrites an earlier revocation's timestamp or reason.
// Returns true on first successful revocation, false if the token was
// already revoked or does not exist.
func (s *SQLiteStore) RevokeToken(ctx context.Context, id, reason string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx,
		`UPDATE client_tokens SET is_revoked = 1, revoked_at = ?, revoked_reason = ?
		 WHERE id = ? AND is_revoked = 0`,
		now, nullString(reason), id)
	if err != nil {
		return false, fmt.Errorf("revoking token: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows > 0, nil
}

// UpdateTokenAreas replaces a token's assigned-area scope.
func (s *SQLiteStore) UpdateTokenAreas(ctx context.Context, id string, areas []string) error {
	areasJSON, err := marshalAreas(areas)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE client_tokens SET assigned_areas_json = ? WHERE id = ?", areasJSON, id)
	if err != nil {
		return fmt.Errorf("updating token areas: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// UpdateTokenLastUsed updates the token's last_used_at timestamp to now.
// Called on every successful verification against the store.
func (s *SQLiteStore) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"UPDATE client_tokens SET last_used_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("updating token last used: %w", err)
	}
	return nil
}

// DeleteExpiredTokens removes tokens whose natural expiry has passed.
// Returns the number of deleted rows. Safe to run concurrently with
// reads — the delete is a simple filtered delete with no dependent state.
func (s *SQLiteStore) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM client_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// TokenStats summarises the token table.
func (s *SQLiteStore) TokenStats(ctx context.Context) (*TokenStats, error) {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)
	recentCutoff := now.Add(-24 * time.Hour).Format(time.RFC3339)

	var stats TokenStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        SUM(CASE WHEN is_revoked = 0 AND expires_at > ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN is_revoked = 1 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN is_revoked = 0 AND expires_at <= ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN last_used_at IS NOT NULL AND last_used_at > ? THEN 1 ELSE 0 END)
		 FROM client_tokens`,
		nowStr, nowStr, recentCutoff,
	).Scan(&stats.Total, &nullInt{&stats.Active}, &nullInt{&stats.Revoked},
		&nullInt{&stats.Expired}, &nullInt{&stats.RecentlyUsed})
	if err != nil {
		return nil, fmt.Errorf("computing token stats: %w", err)
	}

	return &stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

// scanClientRow scans a client from a single row query.
func scanClientRow(row *sql.Row) (*Client, error) {
	c, err := scanClientFrom(row)
	if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns this error unwrapped
		return nil, ErrNotFound
	}
	return c, err
}

// scanClientFrom scans a client from any row-shaped source.
func scanClientFrom(s scanner) (*Client, error) {
	var c Client
	var deviceType, areasJSON, createdAt string
	var lastSeen sql.NullString
	var isActive int

	if err := s.Scan(&c.ID, &c.Name, &deviceType, &areasJSON, &isActive,
		&createdAt, &lastSeen); err != nil {
		if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns this error unwrapped
			return nil, err
		}
		return nil, fmt.Errorf("scanning client: %w", err)
	}

	c.DeviceType = DeviceType(deviceType)
	c.IsActive = isActive != 0
	c.AssignedAreas = unmarshalAreas(areasJSON)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	if lastSeen.Valid {
		t, _ := time.Parse(time.RFC3339, lastSeen.String) //nolint:errcheck // format is controlled
		c.LastSeenAt = &t
	}

	return &c, nil
}

// collectClients drains a client result set.
func collectClients(rows *sql.Rows) ([]Client, error) {
	var clients []Client
	for rows.Next() {
		c, err := scanClientFrom(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating clients: %w", err)
	}

	if clients == nil {
		clients = []Client{}
	}
	return clients, nil
}

// scanTokenRow scans a token from a single row query.
func scanTokenRow(row *sql.Row) (*ClientToken, error) {
	t, err := scanTokenFrom(row)
	if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns this error unwrapped
		return nil, ErrTokenNotFound
	}
	return t, err
}

// scanTokenFrom scans a token from any row-shaped source.
func scanTokenFrom(s scanner) (*ClientToken, error) {
	var t ClientToken
	var areasJSON, createdAt, expiresAt string
	var lastUsed, revokedAt, revokedReason sql.NullString
	var isRevoked int

	if err := s.Scan(&t.ID, &t.ClientID, &t.TokenHash, &areasJSON, &createdAt, &expiresAt,
		&lastUsed, &isRevoked, &revokedAt, &revokedReason); err != nil {
		if err == sql.ErrNoRows { //nolint:errorlint // database/sql returns this error unwrapped
			return nil, err
		}
		return nil, fmt.Errorf("scanning token: %w", err)
	}

	t.AssignedAreas = unmarshalAreas(areasJSON)
	t.IsRevoked = isRevoked != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	if lastUsed.Valid {
		ts, _ := time.Parse(time.RFC3339, lastUsed.String) //nolint:errcheck // format is controlled
		t.LastUsedAt = &ts
	}
	if revokedAt.Valid {
		ts, _ := time.Parse(time.RFC3339, revokedAt.String) //nolint:errcheck // format is controlled
		t.RevokedAt = &ts
	}
	if revokedReason.Valid {
		t.RevokedReason = revokedReason.String
	}

	return &t, nil
}

// marshalAreas encodes an area list as JSON text for storage.
// A nil list is stored as an empty array, never NULL.
func marshalAreas(areas []string) (string, error) {
	if areas == nil {
		areas = []string{}
	}
	b, err := json.Marshal(areas)
	if err != nil {
		return "", fmt.Errorf("marshalling area list: %w", err)
	}
	return string(b), nil
}

// unmarshalAreas decodes a stored JSON area list.
// Malformed stored data yields an empty list rather than a read failure.
func unmarshalAreas(data string) []string {
	var areas []string
	if json.Unmarshal([]byte(data), &areas) != nil || areas == nil {
		return []string{}
	}
	return areas
}

// nullInt scans a nullable aggregate into an int, treating NULL as zero.
// SUM() over an empty table returns NULL.
type nullInt struct {
	dest *int
}

func (n *nullInt) Scan(value any) error {
	if value == nil {
		*n.dest = 0
		return nil
	}
	switch v := value.(type) {
	case int64:
		*n.dest = int(v)
	case float64:
		*n.dest = int(v)
	default:
		return fmt.Errorf("unexpected aggregate type %T", value)
	}
	return nil
}

// nullString returns a NULL-able representation of a string for storage:
// empty strings become NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether an error is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
