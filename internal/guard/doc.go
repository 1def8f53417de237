// Package guard decides, per navigation to a protected destination, whether
// to render it, defer with a loading placeholder, or redirect to sign-in,
// preserving the originally requested path for post-login resume.
package guard
