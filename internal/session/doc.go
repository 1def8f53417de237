// Package session owns the authoritative in-memory representation of the
// current authenticated identity for one browser session.
//
// Manager holds exactly one identity-provider subscription and fans changes
// out to local subscribers. Provider events are applied in emit order with a
// sequence check so a stale resolution never overwrites newer state. The
// resolution state machine is Unresolved -> Resolving -> Resolved, with
// Resolving re-entered while any explicit auth operation is in flight;
// Unresolved is never re-entered once the first provider event arrives.
//
// All operations return a *Failure carrying a FailureKind so the UI can tell
// corrective failures (bad input, wrong credentials) from retryable ones.
package session
