// ABOUTME: ProfileSyncCoordinator merging identity and ProfileStore fields
// ABOUTME: Serializes per-email saves and reports partial failures by side

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Side names which collaborator a partial save failed on.
type Side string

const (
	SideIdentityProvider Side = "identity-provider"
	SideProfileStore     Side = "profile-store"
)

// PartialSaveError reports a save that succeeded on exactly one side. The two
// stores are diverged until the caller retries the save as a whole; the
// divergence is user-visible and bounded, never hidden.
type PartialSaveError struct {
	FailedSide Side
	Err        error
}

func (e *PartialSaveError) Error() string {
	return fmt.Sprintf("profile save failed on %s: %v", e.FailedSide, e.Err)
}

func (e *PartialSaveError) Unwrap() error { return e.Err }

// DisplayUpdater is the identity-provider side of a profile save. The session
// manager satisfies it, keeping its local cache in step with the provider.
type DisplayUpdater interface {
	UpdateDisplayIdentity(ctx context.Context, name, avatarURL string) error
}

// RecordStore is the ProfileStore side of a profile save. Client satisfies it.
type RecordStore interface {
	Create(ctx context.Context, p Profile) error
	Get(ctx context.Context, email string) (Lookup, error)
	Update(ctx context.Context, email string, p Profile) error
}

// Coordinator produces one coherent profile view across the identity provider
// and ProfileStore, and keeps writes to both from interleaving.
type Coordinator struct {
	store   RecordStore
	display DisplayUpdater

	mu     sync.Mutex
	saving map[string]*sync.Mutex // per-email save serialization

	logger *slog.Logger
}

// NewCoordinator wires the two sides of profile synchronization together.
func NewCoordinator(store RecordStore, display DisplayUpdater) *Coordinator {
	return &Coordinator{
		store:   store,
		display: display,
		saving:  make(map[string]*sync.Mutex),
		logger:  slog.Default().With("component", "profile-sync"),
	}
}

// LoadProfile fetches the stored profile for email. A missing record means a
// new account: the result is seeded from the identity's display name with
// empty extended fields, and no error is surfaced.
func (c *Coordinator) LoadProfile(ctx context.Context, email, displayName string) (Profile, error) {
	lookup, err := c.store.Get(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	if !lookup.Found {
		c.logger.Debug("no stored profile, seeding defaults")
		return Seeded(email, displayName), nil
	}
	return lookup.Profile, nil
}

// SaveProfile persists p to both the identity provider (display name) and
// ProfileStore, concurrently. Both must succeed; if exactly one side fails
// the result is a *PartialSaveError naming that side and the whole save can
// be retried as a unit. Saves for the same email are serialized so writes
// from two calls never interleave.
func (c *Coordinator) SaveProfile(ctx context.Context, p Profile, avatarURL string) error {
	lock := c.emailLock(p.Email)
	lock.Lock()
	defer lock.Unlock()

	var (
		wg         sync.WaitGroup
		displayErr error
		storeErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		displayErr = c.display.UpdateDisplayIdentity(ctx, p.Name, avatarURL)
	}()
	go func() {
		defer wg.Done()
		storeErr = c.saveRecord(ctx, p)
	}()
	wg.Wait()

	switch {
	case displayErr == nil && storeErr == nil:
		return nil
	case displayErr != nil && storeErr != nil:
		return fmt.Errorf("profile save failed on both sides: %w", errors.Join(displayErr, storeErr))
	case storeErr != nil:
		c.logger.Warn("partial profile save", "failed_side", SideProfileStore, "error", storeErr)
		return &PartialSaveError{FailedSide: SideProfileStore, Err: storeErr}
	default:
		c.logger.Warn("partial profile save", "failed_side", SideIdentityProvider, "error", displayErr)
		return &PartialSaveError{FailedSide: SideIdentityProvider, Err: displayErr}
	}
}

// CreateRecord writes the initial ProfileStore record for a new registration.
func (c *Coordinator) CreateRecord(ctx context.Context, p Profile) error {
	lock := c.emailLock(p.Email)
	lock.Lock()
	defer lock.Unlock()
	return c.store.Create(ctx, p)
}

// saveRecord updates the stored record, creating it first if the account has
// never had one (interactive sign-ins skip the registration flow).
func (c *Coordinator) saveRecord(ctx context.Context, p Profile) error {
	err := c.store.Update(ctx, p.Email, p)
	if errors.Is(err, ErrNotFound) {
		return c.store.Create(ctx, p)
	}
	return err
}

// emailLock returns the serialization lock for an email. Locks are retained
// for the process lifetime; the map is bounded by the active user set.
func (c *Coordinator) emailLock(email string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.saving[email]
	if !ok {
		lock = &sync.Mutex{}
		c.saving[email] = lock
	}
	return lock
}
