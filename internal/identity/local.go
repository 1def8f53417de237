// ABOUTME: Per-session local identity provider over the shared directory
// ABOUTME: Commits sign-in state and fans out ordered identity-change events

package identity

import (
	"context"
	"log/slog"
	"sync"
)

// LocalProvider implements Provider for a single browser session. The account
// database is shared via Directory; the committed "current identity" is per
// provider instance.
type LocalProvider struct {
	dir *Directory

	mu        sync.Mutex
	current   *Identity
	seq       uint64
	listeners map[int]func(Change)
	nextID    int

	logger *slog.Logger
}

// NewLocalProvider creates a provider view over the directory.
func NewLocalProvider(dir *Directory) *LocalProvider {
	return &LocalProvider{
		dir:       dir,
		listeners: make(map[int]func(Change)),
		logger:    slog.Default().With("component", "identity-provider"),
	}
}

// CreateAccount registers a new account and commits it as signed in, matching
// providers that start a session on successful registration.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := p.dir.CreateAccount(email, password)
	if err != nil {
		return nil, err
	}
	p.commit(id)
	return id, nil
}

// SignIn authenticates against the directory and commits the identity.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := p.dir.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	p.commit(id)
	return id, nil
}

// CommitExternal commits an identity asserted by a completed consent flow.
// Consent ran elsewhere; this only records the outcome, so a dismissed or
// abandoned flow leaves the session exactly as it was.
func (p *LocalProvider) CommitExternal(ctx context.Context, asserted *Identity) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := p.dir.EnsureExternal(asserted)
	if err != nil {
		return nil, err
	}
	// Display fields asserted by the external provider win over whatever the
	// directory held, same as a fresh token from the real service would.
	if asserted.DisplayName != "" || asserted.AvatarURL != "" {
		if updated, uerr := p.dir.UpdateProfile(id.AccountID, asserted.DisplayName, asserted.AvatarURL); uerr == nil {
			id = updated
		}
	}

	p.commit(id)
	return id, nil
}

// SignOut clears the committed identity and notifies listeners.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.commit(nil)
	return nil
}

// UpdateProfile updates the signed-in account's display fields. No identity
// change is emitted; callers refresh their own caches.
func (p *LocalProvider) UpdateProfile(ctx context.Context, name, avatarURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil {
		return ErrNotSignedIn
	}

	updated, err := p.dir.UpdateProfile(current.AccountID, name, avatarURL)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = updated
	p.mu.Unlock()
	return nil
}

// SendPasswordReset starts a reset flow. The local provider only records the
// request; delivery belongs to a mail service this package does not own.
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.dir.Lookup(email); err != nil {
		return err
	}
	p.logger.Info("password reset requested", "email", email)
	return nil
}

// OnIdentityChange registers a listener. Listeners are invoked synchronously,
// in registration order, for every commit after registration. Listeners run
// under the provider lock and must not call back into the provider.
func (p *LocalProvider) OnIdentityChange(fn func(Change)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Resolve announces the current identity, completing initial resolution for
// a freshly subscribed consumer.
func (p *LocalProvider) Resolve(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	p.emit(current)
	return nil
}

// commit replaces the current identity and emits the change.
func (p *LocalProvider) commit(id *Identity) {
	p.mu.Lock()
	p.current = id
	p.mu.Unlock()
	p.emit(id)
}

// emit delivers a change to all listeners. Seq assignment and delivery happen
// under one critical section so listeners always observe commits in order.
func (p *LocalProvider) emit(id *Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	change := Change{Seq: p.seq, Identity: id}
	// Stable order: iterate registration IDs ascending.
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			fn(change)
		}
	}
}
