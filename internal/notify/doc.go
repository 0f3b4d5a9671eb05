// Package notify fans realtime events out to connected client devices
// and admin sessions.
//
// The Registry maps client IDs to live connection handles. It is
// process-local, in-memory state: it is lost on restart, clients
// re-register on reconnect, and there is no cross-process story. Delivery
// is fire-and-forget — events for clients without a live connection are
// silently dropped, and a slow or mid-close connection never stalls the
// admin action that triggered the event.
//
// The Registry is constructed once at startup and passed by reference to
// the realtime transport layer, which calls Register/Unregister around
// connection lifecycle and nothing else.
package notify
