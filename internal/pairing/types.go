package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/client"
)

// Status is a pairing session's lifecycle state.
type Status string

const (
	// StatusPending means the session is waiting for the device to submit
	// its PIN.
	StatusPending Status = "pending"

	// StatusVerified means the device proved possession of the PIN and the
	// session awaits admin completion.
	StatusVerified Status = "verified"

	// StatusCompleted means a client and credential were issued. Terminal.
	StatusCompleted Status = "completed"

	// StatusExpired means the session timed out before completing. Terminal.
	StatusExpired Status = "expired"
)

// Session tracks one pairing attempt from PIN creation to credential
// issuance.
//
// The PIN is shown to the admin once at creation and never serialised
// afterwards — the public status endpoint must not echo it. ClientID is
// set at completion, linking the session to the client it produced.
type Session struct {
	ID            string            `json:"id"`
	PIN           string            `json:"-"` // never serialised after creation
	Status        Status            `json:"status"`
	DeviceName    string            `json:"device_name,omitempty"`
	DeviceType    client.DeviceType `json:"device_type,omitempty"`
	AssignedAreas []string          `json:"assigned_areas,omitempty"` // snapshot set at completion
	ClientID      string            `json:"client_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	VerifiedAt    *time.Time        `json:"verified_at,omitempty"`
}

// Terminal returns true once the session can never change state again.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusExpired
}

// PIN generation bounds: uniform over [100000, 999999].
const (
	pinMin   = 100000
	pinRange = 900000
)

// pinPattern matches a well-formed 6-digit PIN.
var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// GeneratePIN returns a cryptographically random 6-digit PIN, uniformly
// distributed over [100000, 999999]. crypto/rand makes consecutive PINs
// unguessable from each other — math/rand would not.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinRange))
	if err != nil {
		return "", fmt.Errorf("generating PIN: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+pinMin), nil
}

// IsValidPIN checks PIN format only — it says nothing about whether the
// PIN matches a session.
func IsValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}
