package pairing

import "errors"

// Domain errors for the pairing package.
var (
	// ErrSessionNotFound is returned when a session ID does not exist.
	ErrSessionNotFound = errors.New("pairing: session not found")

	// ErrInvalidPIN is returned when a submitted PIN is malformed
	// (format only — a well-formed wrong PIN yields ErrVerificationFailed).
	ErrInvalidPIN = errors.New("pairing: invalid PIN format")

	// ErrVerificationFailed is returned for every PIN verification failure:
	// wrong PIN, unknown session, expired session, or a session no longer
	// pending. The causes are deliberately indistinguishable so a caller
	// cannot probe which part failed.
	ErrVerificationFailed = errors.New("pairing: verification failed")

	// ErrNotVerified is returned when completing or re-verifying a session
	// that is not in the state the transition requires.
	ErrNotVerified = errors.New("pairing: session is not verified")

	// ErrInvalidDeviceName is returned when a device name fails validation.
	ErrInvalidDeviceName = errors.New("pairing: invalid device name")
)
