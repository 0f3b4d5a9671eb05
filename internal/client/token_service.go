package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// VerifiedCredential is the result of a successful verification against
// both the credential's signature and its store row.
type VerifiedCredential struct {
	ClientID      string
	TokenID       string
	ClientName    string
	AssignedAreas []string
}

// TokenService issues, verifies, and revokes client credentials.
//
// Verification is two-layered: the signed credential proves the bearer
// holds an artifact this service minted, and the store row carries the
// revocable state (revoked flag, live area scope, client suspend flag).
// There is no cache between the two — every check reads the latest
// revocation state.
type TokenService struct {
	store  Store
	secret string
	ttl    time.Duration
	sweep  time.Duration
	logger *slog.Logger
}

// TokenServiceOptions configures a TokenService.
type TokenServiceOptions struct {
	Store         Store
	Secret        string        // process-wide signing secret
	TTL           time.Duration // credential lifetime
	SweepInterval time.Duration // how often to delete expired token rows
	Logger        *slog.Logger
}

// NewTokenService creates a TokenService.
func NewTokenService(opts TokenServiceOptions) (*TokenService, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("credential TTL must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &TokenService{
		store:  opts.Store,
		secret: opts.Secret,
		ttl:    opts.TTL,
		sweep:  opts.SweepInterval,
		logger: opts.Logger,
	}, nil
}

// Issue mints a new credential for a client scoped to the given areas.
//
// The token record ID is generated first so the signed credential can
// embed it as the jti claim, then the row is persisted with the
// credential's hash. The plaintext credential is returned to the caller
// exactly once — it is never stored and never retrievable again.
func (ts *TokenService) Issue(ctx context.Context, clientID string, areas []string) (string, *ClientToken, error) {
	if err := ValidateAreas(areas); err != nil {
		return "", nil, err
	}
	if areas == nil {
		areas = []string{}
	}

	tokenID := "tok-" + uuid.NewString()[:16]
	expiresAt := time.Now().UTC().Add(ts.ttl)

	plaintext, err := GenerateCredential(clientID, tokenID, areas, ts.secret, ts.ttl)
	if err != nil {
		return "", nil, err
	}

	token := &ClientToken{
		ID:            tokenID,
		ClientID:      clientID,
		TokenHash:     HashCredential(plaintext),
		AssignedAreas: areas,
		ExpiresAt:     expiresAt,
	}

	if err := ts.store.CreateToken(ctx, token); err != nil {
		return "", nil, err
	}

	ts.logger.Info("client credential issued",
		"client_id", clientID,
		"token_id", tokenID,
		"areas", len(areas),
		"expires_at", expiresAt.Format(time.RFC3339),
	)

	return plaintext, token, nil
}

// Hash returns the storage/lookup digest of a plaintext credential.
func (ts *TokenService) Hash(plaintext string) string {
	return HashCredential(plaintext)
}

// Verify authenticates a plaintext client credential.
//
// It checks the signature and embedded claims, then requires a matching,
// non-revoked, non-expired token row and an active client. On success it
// updates the token's last_used_at and the client's last_seen_at — an
// observable side effect the "recently used" statistic depends on.
//
// The specific failure cause is logged at debug level; callers must
// surface only an undifferentiated authentication failure.
func (ts *TokenService) Verify(ctx context.Context, plaintext string) (*VerifiedCredential, error) {
	claims, err := VerifyCredential(plaintext, ts.secret)
	if err != nil {
		ts.logger.Debug("credential signature check failed", "error", err)
		return nil, err
	}

	token, err := ts.store.GetTokenByHash(ctx, HashCredential(plaintext))
	if err != nil {
		ts.logger.Debug("credential has no matching token row",
			"client_id", claims.Subject, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	if token.IsRevoked {
		ts.logger.Debug("credential is revoked",
			"client_id", token.ClientID, "token_id", token.ID, "reason", token.RevokedReason)
		return nil, ErrTokenRevoked
	}
	if token.Expired(now) {
		ts.logger.Debug("token row is expired",
			"client_id", token.ClientID, "token_id", token.ID)
		return nil, ErrTokenExpired
	}

	c, err := ts.store.GetClient(ctx, token.ClientID)
	if err != nil {
		ts.logger.Debug("token references missing client",
			"client_id", token.ClientID, "token_id", token.ID, "error", err)
		return nil, err
	}
	if !c.IsActive {
		ts.logger.Debug("client is suspended", "client_id", c.ID)
		return nil, ErrInactive
	}

	// Liveness side effects. Failures here must not fail the
	// authentication — the credential has already been proven.
	if err := ts.store.UpdateTokenLastUsed(ctx, token.ID); err != nil {
		ts.logger.Warn("updating token last used failed", "token_id", token.ID, "error", err)
	}
	if err := ts.store.UpdateClientLastSeen(ctx, c.ID); err != nil {
		ts.logger.Warn("updating client last seen failed", "client_id", c.ID, "error", err)
	}

	return &VerifiedCredential{
		ClientID:      c.ID,
		TokenID:       token.ID,
		ClientName:    c.Name,
		AssignedAreas: token.AssignedAreas,
	}, nil
}

// Revoke permanently invalidates a token.
//
// Idempotent: returns true on first successful revocation, false if the
// token was already revoked or does not exist. A revoked token can never
// be un-revoked.
func (ts *TokenService) Revoke(ctx context.Context, tokenID, reason string) (bool, error) {
	revoked, err := ts.store.RevokeToken(ctx, tokenID, reason)
	if err != nil {
		return false, err
	}
	if revoked {
		ts.logger.Info("client credential revoked", "token_id", tokenID, "reason", reason)
	}
	return revoked, nil
}

// UpdateScope replaces a token's live area scope and syncs the owning
// client's working copy so notification targeting stays aligned.
// The change takes effect on the next authentication check — no reissue.
func (ts *TokenService) UpdateScope(ctx context.Context, tokenID string, areas []string) (*ClientToken, error) {
	if err := ValidateAreas(areas); err != nil {
		return nil, err
	}

	token, err := ts.store.GetToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.IsRevoked {
		return nil, ErrTokenRevoked
	}

	if err := ts.store.UpdateTokenAreas(ctx, tokenID, areas); err != nil {
		return nil, err
	}

	c, err := ts.store.GetClient(ctx, token.ClientID)
	if err == nil {
		if err := ts.store.UpdateClient(ctx, c.ID, c.Name, areas); err != nil {
			ts.logger.Warn("syncing client areas after scope update failed",
				"client_id", c.ID, "error", err)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	token.AssignedAreas = areas
	ts.logger.Info("token scope updated", "token_id", tokenID, "areas", len(areas))
	return token, nil
}

// SweepExpired deletes token rows whose natural expiry has passed.
func (ts *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	return ts.store.DeleteExpiredTokens(ctx)
}

// Run executes the periodic expired-token sweep until the context is
// cancelled. Sweep failures are logged and retried on the next tick.
func (ts *TokenService) Run(ctx context.Context) {
	if ts.sweep <= 0 {
		return
	}

	ticker := time.NewTicker(ts.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := ts.SweepExpired(ctx)
			if err != nil {
				ts.logger.Error("expired token sweep failed", "error", err)
				continue
			}
			if count > 0 {
				ts.logger.Info("expired tokens deleted", "count", count)
			}
		}
	}
}
