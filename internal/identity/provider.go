// ABOUTME: Identity provider contract and the Identity value it owns
// ABOUTME: Defines typed failures and the identity-change subscription surface

package identity

import (
	"context"
	"errors"
)

// Provider failure modes. Callers branch on these with errors.Is.
var (
	ErrMalformedCredentials = errors.New("malformed email or password")
	ErrAccountExists        = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrConsentDismissed     = errors.New("consent dismissed")
	ErrUnknownProviderKind  = errors.New("unknown provider kind")
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrNotSignedIn          = errors.New("not signed in")
)

// Identity is the provider's record of an authenticated account.
// Consumers hold read-only cached copies; the provider is the source of truth.
type Identity struct {
	AccountID   string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Change is a single identity-change notification. Seq is monotonically
// increasing per provider instance so consumers can reject stale deliveries.
type Change struct {
	Seq      uint64
	Identity *Identity // nil when signed out
}

// Provider is the identity service of record. All operations are fallible
// and may block on network I/O; implementations must honor ctx cancellation.
type Provider interface {
	// CreateAccount registers a new account. The returned identity has no
	// display name; callers set one via UpdateProfile.
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)

	// SignIn authenticates with email and password and commits the identity.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// CommitExternal commits an identity asserted by a completed consent
	// flow, creating the backing account if needed. Consent itself runs
	// outside the provider (see ConsentFlow) so an abandoned flow commits
	// nothing.
	CommitExternal(ctx context.Context, asserted *Identity) (*Identity, error)

	// SignOut clears the committed identity. On failure the identity is left
	// untouched.
	SignOut(ctx context.Context) error

	// UpdateProfile updates the display name and avatar of the currently
	// signed-in account. Does not emit an identity change.
	UpdateProfile(ctx context.Context, name, avatarURL string) error

	// SendPasswordReset starts a provider-side reset flow for the account.
	SendPasswordReset(ctx context.Context, email string) error

	// OnIdentityChange registers a listener for identity changes. Changes are
	// delivered synchronously in commit order. Returns an unsubscribe func.
	OnIdentityChange(fn func(Change)) (unsubscribe func())

	// Resolve announces the current identity to subscribers. Called once
	// after the initial subscription to complete session resolution.
	Resolve(ctx context.Context) error
}

// ConsentFlow is one interactive sign-in mechanism (an OAuth pop-up analog).
// Authorize blocks until the user completes or dismisses the consent step and
// returns identity facts only; it never commits provider state.
type ConsentFlow interface {
	Authorize(ctx context.Context) (*Identity, error)
}
