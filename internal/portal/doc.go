// Package portal composes the portal HTTP surface: it binds each browser to
// one server-side session entry via a signed cookie, exposes the auth and
// profile API, and applies guard decisions to the page routes.
//
// Each browser session owns its own session.Manager (over a LocalProvider
// view of the shared account directory), its own guard.Guard (the pending
// redirect target is per user), and a profile.Coordinator bound to that
// Manager. The Registry holds the entries and sweeps idle ones on the cookie
// TTL clock.
package portal
