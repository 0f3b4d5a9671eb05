// Package client manages paired client devices and their credentials.
//
// A client is a wall tablet, kiosk, or mobile device that has been paired
// to Gray Logic Access. Each client carries a set of assigned areas and
// holds a long-lived signed credential, stored server-side only as a
// SHA-256 hash. Credentials are revocable at any time; revocation is
// permanent and takes effect on the next authentication check.
//
// The package provides two layers:
//
//   - Store: SQLite persistence for clients and client tokens, including
//     the conditional writes (revocation, expiry sweeps) that must not
//     race with concurrent verification.
//   - TokenService: credential issuance, hashing, verification against
//     both signature and store state, idempotent revocation, and the
//     periodic expired-token sweep.
//
// Authorisation source of truth: the token row's assigned areas govern
// live access decisions. The client row's assigned areas are the admin's
// working copy — the default scope for the next issued credential and
// the targeting index for area-scoped notifications.
package client
