package client

import "time"

// DeviceType categorises the physical form factor of a paired client.
type DeviceType string

const (
	// DeviceTypeMobile is a phone-class device.
	DeviceTypeMobile DeviceType = "mobile"

	// DeviceTypeTablet is a wall-mounted or handheld tablet.
	DeviceTypeTablet DeviceType = "tablet"

	// DeviceTypeDesktop is a fixed workstation or kiosk PC.
	DeviceTypeDesktop DeviceType = "desktop"

	// DeviceTypeOther covers anything that does not fit the above.
	DeviceTypeOther DeviceType = "other"
)

// AllDeviceTypes returns every valid device type.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{DeviceTypeMobile, DeviceTypeTablet, DeviceTypeDesktop, DeviceTypeOther}
}

// IsValidDeviceType returns true if the device type is recognised.
func IsValidDeviceType(t DeviceType) bool {
	switch t {
	case DeviceTypeMobile, DeviceTypeTablet, DeviceTypeDesktop, DeviceTypeOther:
		return true
	default:
		return false
	}
}

// Client represents a paired device identity.
//
// AssignedAreas is the admin's working scope for the device: the default
// scope for the next issued credential and the index used when fanning
// out area events. IsActive is a suspend flag — an inactive client fails
// authentication even with a valid, unrevoked credential.
type Client struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	DeviceType    DeviceType `json:"device_type"`
	AssignedAreas []string   `json:"assigned_areas"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
}

// ClientToken is a stored credential record.
//
// The plaintext credential is never persisted — only its SHA-256 hash.
// AssignedAreas is the scope that governs live authorisation for this
// credential; it starts as a copy of the client's scope at issuance and
// can be updated independently.
type ClientToken struct { //nolint:revive // client.ClientToken is clearer than client.Token in calling code
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	TokenHash     string     `json:"-"` // never serialised
	AssignedAreas []string   `json:"assigned_areas"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	IsRevoked     bool       `json:"is_revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
}

// Expired returns true if the token's natural expiry has passed.
func (t *ClientToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenStats summarises the token table for the admin dashboard.
type TokenStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Revoked      int `json:"revoked"`
	Expired      int `json:"expired"`
	RecentlyUsed int `json:"recently_used"` // used within the last 24 hours
}

// TokenFilter controls which tokens a List call returns.
type TokenFilter struct {
	ClientID       string // optional: only tokens for this client
	IncludeRevoked bool   // include revoked tokens in the result
}
