package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStore_CreateAndGetClient(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Kitchen Tablet", []string{"area_1", "area_2"})

	if c.ID == "" {
		t.Fatal("CreateClient() should generate an ID")
	}

	got, err := store.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}

	if got.Name != "Kitchen Tablet" {
		t.Errorf("Name = %q, want %q", got.Name, "Kitchen Tablet")
	}
	if got.DeviceType != DeviceTypeTablet {
		t.Errorf("DeviceType = %q, want %q", got.DeviceType, DeviceTypeTablet)
	}
	if len(got.AssignedAreas) != 2 || got.AssignedAreas[0] != "area_1" {
		t.Errorf("AssignedAreas = %v, want [area_1 area_2]", got.AssignedAreas)
	}
	if !got.IsActive {
		t.Error("IsActive should be true")
	}
	if got.LastSeenAt != nil {
		t.Error("LastSeenAt should be nil for a new client")
	}
}

func TestStore_GetClient_NotFound(t *testing.T) {
	store := NewSQLiteStore(testDB(t))

	_, err := store.GetClient(context.Background(), "cli-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetClient() error = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateClient(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Old Name", []string{"area_1"})

	if err := store.UpdateClient(ctx, c.ID, "New Name", []string{"area_2", "area_3"}); err != nil {
		t.Fatalf("UpdateClient() error = %v", err)
	}

	got, err := store.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if got.Name != "New Name" {
		t.Errorf("Name = %q, want %q", got.Name, "New Name")
	}
	if len(got.AssignedAreas) != 2 || got.AssignedAreas[0] != "area_2" {
		t.Errorf("AssignedAreas = %v, want [area_2 area_3]", got.AssignedAreas)
	}

	if err := store.UpdateClient(ctx, "cli-missing", "x", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateClient(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_SetClientActive(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)

	if err := store.SetClientActive(ctx, c.ID, false); err != nil {
		t.Fatalf("SetClientActive() error = %v", err)
	}

	got, _ := store.GetClient(ctx, c.ID)
	if got.IsActive {
		t.Error("client should be inactive after SetClientActive(false)")
	}
}

func TestStore_UpdateClientLastSeen(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)

	if err := store.UpdateClientLastSeen(ctx, c.ID); err != nil {
		t.Fatalf("UpdateClientLastSeen() error = %v", err)
	}

	got, _ := store.GetClient(ctx, c.ID)
	if got.LastSeenAt == nil {
		t.Fatal("LastSeenAt should be set")
	}
	if time.Since(*got.LastSeenAt) > time.Minute {
		t.Errorf("LastSeenAt = %v, want recent", got.LastSeenAt)
	}
}

func TestStore_ListActiveByArea(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	inArea := mustCreateClient(t, store, "In Area", []string{"area_1", "area_2"})
	mustCreateClient(t, store, "Other Area", []string{"area_3"})
	suspended := mustCreateClient(t, store, "Suspended", []string{"area_1"})
	if err := store.SetClientActive(ctx, suspended.ID, false); err != nil {
		t.Fatalf("SetClientActive() error = %v", err)
	}

	got, err := store.ListActiveByArea(ctx, "area_1")
	if err != nil {
		t.Fatalf("ListActiveByArea() error = %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("ListActiveByArea() returned %d clients, want 1", len(got))
	}
	if got[0].ID != inArea.ID {
		t.Errorf("ListActiveByArea()[0].ID = %q, want %q", got[0].ID, inArea.ID)
	}
}

func TestStore_DeleteClient_CascadesTokens(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)
	token := &ClientToken{
		ClientID:  c.ID,
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.CreateToken(ctx, token); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	if err := store.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient() error = %v", err)
	}

	if _, err := store.GetToken(ctx, token.ID); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetToken() after cascade error = %v, want ErrTokenNotFound", err)
	}
}

func TestStore_CreateToken_DuplicateHash(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)
	expires := time.Now().Add(time.Hour)

	first := &ClientToken{ClientID: c.ID, TokenHash: "same-hash", ExpiresAt: expires}
	if err := store.CreateToken(ctx, first); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	second := &ClientToken{ClientID: c.ID, TokenHash: "same-hash", ExpiresAt: expires}
	if err := store.CreateToken(ctx, second); !errors.Is(err, ErrDuplicateTokenHash) {
		t.Errorf("CreateToken(duplicate) error = %v, want ErrDuplicateTokenHash", err)
	}
}

func TestStore_GetTokenByHash(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)
	token := &ClientToken{
		ClientID:      c.ID,
		TokenHash:     "lookup-hash",
		AssignedAreas: []string{"area_1"},
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	if err := store.CreateToken(ctx, token); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	got, err := store.GetTokenByHash(ctx, "lookup-hash")
	if err != nil {
		t.Fatalf("GetTokenByHash() error = %v", err)
	}
	if got.ID != token.ID {
		t.Errorf("ID = %q, want %q", got.ID, token.ID)
	}
	if got.ClientID != c.ID {
		t.Errorf("ClientID = %q, want %q", got.ClientID, c.ID)
	}

	if _, err := store.GetTokenByHash(ctx, "no-such-hash"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("GetTokenByHash(missing) error = %v, want ErrTokenNotFound", err)
	}
}

func TestStore_RevokeToken_Idempotent(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)
	token := &ClientToken{ClientID: c.ID, TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.CreateToken(ctx, token); err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	revoked, err := store.RevokeToken(ctx, token.ID, "device lost")
	if err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if !revoked {
		t.Fatal("first RevokeToken() should return true")
	}

	// Second revocation must be a no-op that preserves the original reason.
	revoked, err = store.RevokeToken(ctx, token.ID, "another reason")
	if err != nil {
		t.Fatalf("RevokeToken() second call error = %v", err)
	}
	if revoked {
		t.Error("second RevokeToken() should return false")
	}

	got, _ := store.GetToken(ctx, token.ID)
	if !got.IsRevoked {
		t.Error("token should be revoked")
	}
	if got.RevokedReason != "device lost" {
		t.Errorf("RevokedReason = %q, want original %q", got.RevokedReason, "device lost")
	}
	if got.RevokedAt == nil {
		t.Error("RevokedAt should be set")
	}

	// Unknown token: false, no error.
	revoked, err = store.RevokeToken(ctx, "tok-missing", "x")
	if err != nil || revoked {
		t.Errorf("RevokeToken(missing) = (%v, %v), want (false, nil)", revoked, err)
	}
}

func TestStore_ListTokens_Filters(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c1 := mustCreateClient(t, store, "One", nil)
	c2 := mustCreateClient(t, store, "Two", nil)
	expires := time.Now().Add(time.Hour)

	t1 := &ClientToken{ClientID: c1.ID, TokenHash: "h1", ExpiresAt: expires}
	t2 := &ClientToken{ClientID: c1.ID, TokenHash: "h2", ExpiresAt: expires}
	t3 := &ClientToken{ClientID: c2.ID, TokenHash: "h3", ExpiresAt: expires}
	for _, tok := range []*ClientToken{t1, t2, t3} {
		if err := store.CreateToken(ctx, tok); err != nil {
			t.Fatalf("CreateToken() error = %v", err)
		}
	}
	if _, err := store.RevokeToken(ctx, t2.ID, "rotated"); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}

	all, err := store.ListTokens(ctx, TokenFilter{IncludeRevoked: true})
	if err != nil {
		t.Fatalf("ListTokens() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListTokens(all) returned %d tokens, want 3", len(all))
	}

	active, err := store.ListTokens(ctx, TokenFilter{})
	if err != nil {
		t.Fatalf("ListTokens() error = %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ListTokens(active) returned %d tokens, want 2", len(active))
	}

	forClient, err := store.ListTokens(ctx, TokenFilter{ClientID: c1.ID, IncludeRevoked: true})
	if err != nil {
		t.Fatalf("ListTokens() error = %v", err)
	}
	if len(forClient) != 2 {
		t.Errorf("ListTokens(client) returned %d tokens, want 2", len(forClient))
	}
}

func TestStore_DeleteExpiredTokens(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	c := mustCreateClient(t, store, "Tablet", nil)

	expired := &ClientToken{ClientID: c.ID, TokenHash: "old", ExpiresAt: time.Now().Add(-time.Hour)}
	live := &ClientToken{ClientID: c.ID, TokenHash: "new", ExpiresAt: time.Now().Add(time.Hour)}
	for _, tok := range []*ClientToken{expired, live} {
		if err := store.CreateToken(ctx, tok); err != nil {
			t.Fatalf("CreateToken() error = %v", err)
		}
	}

	count, err := store.DeleteExpiredTokens(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredTokens() error = %v", err)
	}
	if count != 1 {
		t.Errorf("DeleteExpiredTokens() = %d, want 1", count)
	}

	if _, err := store.GetToken(ctx, live.ID); err != nil {
		t.Errorf("live token should survive sweep, got error %v", err)
	}
}

func TestStore_TokenStats(t *testing.T) {
	store := NewSQLiteStore(testDB(t))
	ctx := context.Background()

	// Stats on an empty table must not fail (SUM over zero rows is NULL).
	stats, err := store.TokenStats(ctx)
	if err != nil {
		t.Fatalf("TokenStats() on empty table error = %v", err)
	}
	if stats.Total != 0 || stats.Active != 0 {
		t.Errorf("TokenStats(empty) = %+v, want zeros", stats)
	}

	c := mustCreateClient(t, store, "Tablet", nil)

	active := &ClientToken{ClientID: c.ID, TokenHash: "a", ExpiresAt: time.Now().Add(time.Hour)}
	expired := &ClientToken{ClientID: c.ID, TokenHash: "b", ExpiresAt: time.Now().Add(-time.Hour)}
	revoked := &ClientToken{ClientID: c.ID, TokenHash: "c", ExpiresAt: time.Now().Add(time.Hour)}
	for _, tok := range []*ClientToken{active, expired, revoked} {
		if err := store.CreateToken(ctx, tok); err != nil {
			t.Fatalf("CreateToken() error = %v", err)
		}
	}
	if _, err := store.RevokeToken(ctx, revoked.ID, "lost"); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if err := store.UpdateTokenLastUsed(ctx, active.ID); err != nil {
		t.Fatalf("UpdateTokenLastUsed() error = %v", err)
	}

	stats, err = store.TokenStats(ctx)
	if err != nil {
		t.Fatalf("TokenStats() error = %v", err)
	}

	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.Revoked != 1 {
		t.Errorf("Revoked = %d, want 1", stats.Revoked)
	}
	if stats.Expired != 1 {
		t.Errorf("Expired = %d, want 1", stats.Expired)
	}
	if stats.RecentlyUsed != 1 {
		t.Errorf("RecentlyUsed = %d, want 1", stats.RecentlyUsed)
	}
}
