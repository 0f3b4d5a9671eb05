package client

import (
	"fmt"
	"regexp"
)

// Validation constants.
const (
	maxNameLength = 100
	maxAreaIDLen  = 64

	// maxAreas bounds the assigned-area list. Fleets are tens to low
	// hundreds of devices; no credential legitimately spans more areas
	// than a large site has.
	maxAreas = 100
)

// areaIDPattern matches opaque area identifiers as the core issues them:
// lowercase alphanumeric with hyphens and underscores.
var areaIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateName checks a client display name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateDeviceType checks a device type value.
func ValidateDeviceType(t DeviceType) error {
	if !IsValidDeviceType(t) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, t)
	}
	return nil
}

// ValidateAreas checks an assigned-area list. An empty list is valid —
// a client with no areas authenticates but can act on nothing.
func ValidateAreas(areas []string) error {
	if len(areas) > maxAreas {
		return fmt.Errorf("%w: more than %d areas", ErrInvalidArea, maxAreas)
	}
	seen := make(map[string]struct{}, len(areas))
	for _, a := range areas {
		if a == "" || len(a) > maxAreaIDLen || !areaIDPattern.MatchString(a) {
			return fmt.Errorf("%w: %q", ErrInvalidArea, a)
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: duplicate area %q", ErrInvalidArea, a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
