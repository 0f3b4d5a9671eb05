package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nerrad567/gray-logic-access/internal/client"
)

// Gate is the single authentication entry point for every protected
// request, regardless of which kind of bearer token it carries.
//
// The unverified role claim routes the token: admin tokens are verified
// statelessly by signature, client credentials go through the token
// service (signature plus database state). Both paths end in a
// Principal or in ErrAuthentication — callers never learn which check
// rejected a token.
type Gate struct {
	secret string
	tokens *client.TokenService
	logger *slog.Logger
}

// NewGate creates an authentication gate.
func NewGate(secret string, tokens *client.TokenService, logger *slog.Logger) (*Gate, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{secret: secret, tokens: tokens, logger: logger}, nil
}

// Authenticate verifies a bearer token and returns its principal.
//
// All failures collapse to ErrAuthentication; the underlying cause is
// logged at debug level only.
func (g *Gate) Authenticate(ctx context.Context, bearer string) (Principal, error) {
	if bearer == "" {
		return nil, ErrAuthentication
	}

	if PeekRole(bearer) == RoleClient {
		return g.authenticateClient(ctx, bearer)
	}
	return g.authenticateAdmin(bearer)
}

func (g *Gate) authenticateAdmin(bearer string) (Principal, error) {
	claims, err := ParseToken(bearer, g.secret)
	if err != nil {
		g.logger.Debug("admin token rejected", "error", err)
		return nil, ErrAuthentication
	}

	return AdminPrincipal{
		UserID:   claims.Subject,
		Username: claims.Username,
	}, nil
}

func (g *Gate) authenticateClient(ctx context.Context, bearer string) (Principal, error) {
	cred, err := g.tokens.Verify(ctx, bearer)
	if err != nil {
		g.logger.Debug("client credential rejected", "error", err)
		return nil, ErrAuthentication
	}

	return ClientPrincipal{
		ClientID:      cred.ClientID,
		TokenID:       cred.TokenID,
		Name:          cred.ClientName,
		AssignedAreas: cred.AssignedAreas,
	}, nil
}
