package mqtt

import "fmt"

// Topic prefixes on the shared Gray Logic bus.
//
// The access service rides the same Mosquitto broker as the rest of the
// platform: it consumes retained area config published by the core and
// publishes its own access events under graylogic/access.
const (
	// TopicPrefixArea is the base for area configuration topics
	// (published retained by the core controller).
	TopicPrefixArea = "graylogic/area"

	// TopicPrefixAccess is the base for topics this service publishes.
	TopicPrefixAccess = "graylogic/access"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	configTopic := topics.AreaConfig("kitchen")
//	// Returns: "graylogic/area/kitchen/config"
type Topics struct{}

// =============================================================================
// Area Topics (consumed)
// =============================================================================

// AreaConfig returns the retained config topic for a single area.
//
// Example: graylogic/area/kitchen/config
func (Topics) AreaConfig(areaID string) string {
	return fmt.Sprintf("%s/%s/config", TopicPrefixArea, areaID)
}

// AllAreaConfigs returns a pattern matching every area's config topic.
//
// Pattern: graylogic/area/+/config
func (Topics) AllAreaConfigs() string {
	return fmt.Sprintf("%s/+/config", TopicPrefixArea)
}

// AreaStatus returns the retained status topic for a single area
// (enabled/disabled, published by the core controller).
//
// Example: graylogic/area/kitchen/status
func (Topics) AreaStatus(areaID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixArea, areaID)
}

// AllAreaStatuses returns a pattern matching every area's status topic.
//
// Pattern: graylogic/area/+/status
func (Topics) AllAreaStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixArea)
}

// =============================================================================
// Access Topics (published)
// =============================================================================

// AccessEvent returns the topic for access lifecycle events
// (pairing completed, credential revoked, client suspended).
//
// Example: graylogic/access/event/pairing_completed
func (Topics) AccessEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixAccess, eventType)
}

// AccessClientPresence returns the retained presence topic for a client's
// live connection state.
//
// Example: graylogic/access/client/cli-a1b2c3d4/presence
func (Topics) AccessClientPresence(clientID string) string {
	return fmt.Sprintf("%s/client/%s/presence", TopicPrefixAccess, clientID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic used for the LWT and
// online/offline announcements.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
