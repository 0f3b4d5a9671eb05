// Package api provides the HTTP and WebSocket surface of the access
// service.
//
// The REST API is served with chi and split into three tiers:
//
//   - public: login/refresh, pairing verification (rate limited), and
//     session status polling by the device being paired
//   - authenticated: identity and WebSocket ticket issuance, available
//     to both admin and client principals
//   - admin: pairing session management, client and credential
//     administration, the mirrored area catalogue, and the audit trail
//
// Realtime pushes ride a WebSocket at /api/v1/ws. Browsers cannot set
// an Authorization header on an upgrade request, so callers exchange
// their bearer token for a short-lived single-use ticket first and
// present it as a query parameter. Connections register with the
// notification registry, which routes targeted and area-scoped events.
//
// Audit entries are written asynchronously through a buffered channel
// so request latency never waits on the audit table.
package api
