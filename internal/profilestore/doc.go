// Package profilestore is the application's own database of extended,
// non-identity profile fields, exposed as a small REST service.
//
// Records are keyed by email. The HTTP surface (Server) implements the
// contract the portal's profile.Client consumes; persistence is behind the
// Store interface with a SQLite implementation and an in-memory mock for
// tests.
package profilestore
