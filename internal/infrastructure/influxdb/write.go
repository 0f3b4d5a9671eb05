package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAuthDecision records the outcome of one authentication check.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - role: "admin", "client", or "unknown" for unroutable credentials
//   - allowed: whether the gate accepted the credential
//
// Example:
//
//	client.WriteAuthDecision("client", true)
//	client.WriteAuthDecision("unknown", false)
func (c *Client) WriteAuthDecision(role string, allowed bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"auth_decision",
		map[string]string{
			"role": role,
		},
		map[string]interface{}{
			"allowed": allowed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePairingAttempt records a PIN verification attempt.
//
// Session IDs are deliberately not tagged — they are high cardinality and
// short-lived; the aggregate success rate is what matters here.
//
// Parameters:
//   - outcome: "verified", "rejected", or "rate_limited"
func (c *Client) WritePairingAttempt(outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"pairing_attempt",
		map[string]string{
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteWSConnections records the current realtime connection gauge.
//
// Parameters:
//   - clients: number of registered client connections
//   - admins: number of connections in the admin broadcast set
func (c *Client) WriteWSConnections(clients, admins int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"ws_connections",
		nil,
		map[string]interface{}{
			"clients": clients,
			"admins":  admins,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "access-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
