// Package identity is the portal's identity provider layer.
//
// The Provider interface mirrors the external service of record: account
// creation, password and interactive sign-in, sign-out, profile updates,
// password resets, and an ordered identity-change subscription. LocalProvider
// is the standalone implementation, one instance per browser session, sharing
// a bcrypt-backed Directory of accounts. Interactive sign-in is pluggable via
// ConsentFlow; OAuthConsent implements it with a standard authorization-code
// exchange.
package identity
