// ABOUTME: Profile data types and the tagged store-lookup result
// ABOUTME: Defines the canonical extended field set shared with ProfileStore

package profile

import "errors"

// Store errors. ErrNotFound means the addressed profile does not exist; most
// callers treat that as the seed-defaults case rather than a failure.
var (
	ErrNotFound    = errors.New("profile not found")
	ErrDuplicate   = errors.New("profile already exists")
	ErrUnavailable = errors.New("profile store unavailable")
)

// Profile is the application-owned record of extended, non-identity fields,
// keyed by account email. Name mirrors the identity provider's display name;
// after the first app-side edit the store's copy is authoritative.
type Profile struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	University string `json:"university"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

// Lookup is the tagged result of a profile fetch. Callers branch on Found
// instead of inspecting payload shape.
type Lookup struct {
	Found   bool
	Profile Profile
}

// Seeded builds the profile a brand-new account starts with: display name
// from the identity provider, extended fields empty.
func Seeded(email, displayName string) Profile {
	return Profile{Email: email, Name: displayName}
}
