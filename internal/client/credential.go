package client

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentialIssuer and credentialAudience bind issued credentials to this
// service. A token minted by anything else signing with the same secret
// (the admin session path) fails the audience check.
const (
	credentialIssuer   = "graylogic-access"
	credentialAudience = "graylogic-client"

	// CredentialRole is the role claim carried by every client credential.
	CredentialRole = "client"
)

// CredentialClaims are the JWT claims embedded in a client credential.
//
// The registered ID (jti) is the token record's ID, linking the signed
// artifact to its store row. AssignedAreas is the scope at issuance —
// informational only; live authorisation reads the store row, so a scope
// update takes effect without reissuing.
type CredentialClaims struct {
	jwt.RegisteredClaims
	Role          string   `json:"role"`
	AssignedAreas []string `json:"areas"`
}

// GenerateCredential creates a signed, long-lived client credential.
//
// Parameters:
//   - clientID: The paired client this credential identifies (subject claim)
//   - tokenID: The store row ID for the credential (jti claim)
//   - areas: Assigned-area scope at issuance
//   - secret: Process-wide HMAC signing secret
//   - ttl: Credential lifetime (typically years)
//
// Returns the signed compact JWT, or an error if signing fails.
func GenerateCredential(clientID, tokenID string, areas []string, secret string, ttl time.Duration) (string, error) {
	if areas == nil {
		areas = []string{}
	}

	now := time.Now()
	claims := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    credentialIssuer,
			Audience:  jwt.ClaimStrings{credentialAudience},
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        tokenID,
		},
		Role:          CredentialRole,
		AssignedAreas: areas,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing client credential: %w", err)
	}
	return signed, nil
}

// VerifyCredential checks a credential's signature, expiry, issuer,
// audience, and role claim.
//
// The returned errors distinguish expired, malformed, and wrong-role
// credentials for server-side logging. Callers exposed to the network
// must collapse all of them to a single authentication failure.
func VerifyCredential(raw, secret string) (*CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &CredentialClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(credentialIssuer),
		jwt.WithAudience(credentialAudience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrCredentialExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrCredentialInvalid, err)
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid {
		return nil, ErrCredentialInvalid
	}

	if claims.Role != CredentialRole {
		return nil, fmt.Errorf("%w: %q", ErrWrongRole, claims.Role)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or token id", ErrCredentialInvalid)
	}

	return claims, nil
}

// HashCredential computes the SHA-256 hash of a plaintext credential for
// storage and lookup. The digest is deterministic and one-way — the
// plaintext is never recoverable from it.
func HashCredential(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
