// Package auth provides authentication for Gray Logic Access.
//
// Two kinds of identity pass through one gate:
//   - Admin users: password login (Argon2id, OWASP 2025 parameters),
//     short-lived JWT access tokens, refresh token rotation with
//     family-based theft detection.
//   - Paired clients: long-lived signed credentials verified via the
//     client token service (signature plus live database state).
//
// The Gate routes an incoming bearer token by its unverified role claim
// and returns a Principal: AdminPrincipal (unrestricted) or
// ClientPrincipal (scoped to its assigned areas). Every rejection
// surfaces as the single ErrAuthentication so callers cannot probe
// which check failed.
package auth
