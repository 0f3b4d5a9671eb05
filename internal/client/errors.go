package client

import "errors"

// Domain errors for the client package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, client.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a client ID does not exist.
	ErrNotFound = errors.New("client: not found")

	// ErrTokenNotFound is returned when a token ID or hash does not exist.
	ErrTokenNotFound = errors.New("client: token not found")

	// ErrInactive is returned when authenticating against a suspended client.
	ErrInactive = errors.New("client: inactive")

	// ErrTokenRevoked is returned when authenticating with a revoked token.
	ErrTokenRevoked = errors.New("client: token revoked")

	// ErrTokenExpired is returned when a stored token has passed its expiry.
	ErrTokenExpired = errors.New("client: token expired")

	// ErrDuplicateTokenHash is returned when inserting a token whose hash
	// collides with an existing row. The hash column is UNIQUE.
	ErrDuplicateTokenHash = errors.New("client: duplicate token hash")

	// ErrCredentialInvalid is returned when a credential fails signature,
	// structure, or claim checks.
	ErrCredentialInvalid = errors.New("client: invalid credential")

	// ErrCredentialExpired is returned when a credential's embedded expiry
	// has passed. Kept distinct from ErrCredentialInvalid for logging only —
	// callers must not leak the difference.
	ErrCredentialExpired = errors.New("client: credential expired")

	// ErrWrongRole is returned when a credential carries a role other than
	// "client".
	ErrWrongRole = errors.New("client: wrong credential role")

	// ErrInvalidName is returned when a client name is empty or too long.
	ErrInvalidName = errors.New("client: invalid name")

	// ErrInvalidDeviceType is returned when a device type is not recognised.
	ErrInvalidDeviceType = errors.New("client: invalid device type")

	// ErrInvalidArea is returned when an area list fails validation.
	ErrInvalidArea = errors.New("client: invalid area list")
)
