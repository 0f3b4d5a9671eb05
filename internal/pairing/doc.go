// Package pairing drives the PIN-based device pairing lifecycle.
//
// An admin creates a session and reads its 6-digit PIN off the screen.
// The device being paired submits the PIN (unauthenticated), moving the
// session from pending to verified. The admin then completes the session
// with a name and area scope, which materialises a client record, mints
// its credential, and hands the plaintext credential back exactly once.
//
// State machine:
//
//	pending --[PIN matches, before expiry]--> verified
//	pending --[sweep, past expiry]---------> expired
//	verified --[admin completes]-----------> completed
//	verified --[sweep, completion window]--> expired
//
// Completed and expired are terminal; a session is single-use. Every
// transition is a conditional UPDATE against the stored status, so the
// background sweep and live verify/complete calls can interleave freely:
// whichever write wins the compare-and-swap determines the outcome.
package pairing
