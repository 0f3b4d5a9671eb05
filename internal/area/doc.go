// Package area mirrors the core controller's area catalog from the MQTT
// bus.
//
// The core publishes each area's configuration and enabled state as
// retained messages. The mirror subscribes once at startup, replays the
// retained set into an in-memory map, and thereafter turns bus-side
// mutations into realtime events for the clients scoped to the affected
// area. The mirror is read-only: this service never writes area topics.
package area
