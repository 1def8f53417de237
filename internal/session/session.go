// ABOUTME: SessionManager owning the authoritative current-identity state
// ABOUTME: Applies ordered provider events and fans out to local subscribers

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/academa/academa-portal/internal/identity"
)

// Status is the resolution state of a session.
type Status int

const (
	// StatusUnresolved: no identity-provider event has arrived yet and
	// resolution has not started. Never re-entered once left.
	StatusUnresolved Status = iota

	// StatusResolving: resolution or an explicit auth operation is in
	// flight. Consumers must render neither protected nor anonymous-only
	// content.
	StatusResolving

	// StatusResolved: the provider has answered; Identity is authoritative
	// (nil means anonymous).
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusUnresolved:
		return "unresolved"
	case StatusResolving:
		return "resolving"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Session is the observable snapshot handed to subscribers and readers.
// It is a value copy; only the Manager mutates the underlying state.
type Session struct {
	Identity *identity.Identity
	Status   Status
}

// Authenticated reports whether a signed-in identity is present and resolved.
func (s Session) Authenticated() bool {
	return s.Status == StatusResolved && s.Identity != nil
}

// Manager is the single source of truth for "who is logged in" within one
// browser session. It holds the one provider-level subscription and fans
// changes out to local subscribers. Construct with NewManager and inject it;
// there is deliberately no package-level instance.
type Manager struct {
	provider identity.Provider
	flows    map[string]identity.ConsentFlow

	mu           sync.Mutex
	identity     *identity.Identity
	lastSeq      uint64
	started      bool
	resolvedOnce bool
	pending      int // explicit auth operations in flight
	inflight     string
	subs         map[int]func(Session)
	nextSub      int
	unsub        func()

	logger *slog.Logger
}

// NewManager creates a manager over the given provider. flows maps provider
// kinds to interactive consent flows and may be nil. Call Start to begin
// session resolution.
func NewManager(provider identity.Provider, flows map[string]identity.ConsentFlow) *Manager {
	return &Manager{
		provider: provider,
		flows:    flows,
		subs:     make(map[int]func(Session)),
		logger:   slog.Default().With("component", "session"),
	}
}

// Start registers the single provider-level subscription and asks the
// provider to announce the current identity. Safe to call once; later calls
// are no-ops.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	notify := m.changedLocked()
	m.mu.Unlock()
	notify()

	unsub := m.provider.OnIdentityChange(m.handleChange)

	m.mu.Lock()
	m.unsub = unsub
	m.mu.Unlock()

	if err := m.provider.Resolve(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Close releases the provider subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Current returns a snapshot of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLocked()
}

// Subscribe registers fn to be invoked synchronously on every session change,
// on the goroutine that caused the change. Returns an unsubscribe handle.
// Callbacks must not call back into the Manager's mutating operations.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Register creates a new account. Input problems are rejected before any
// provider call. On success the provider commits the new identity; the
// account has no display name until UpdateDisplayIdentity is called.
func (m *Manager) Register(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < identity.MinPasswordLength {
		return nil, validationFailure("password must be at least %d characters", identity.MinPasswordLength)
	}

	done := m.beginOp()
	id, err := m.provider.CreateAccount(ctx, email, password)
	done()

	if err != nil {
		return nil, classify(err)
	}
	return id, nil
}

// SignIn authenticates with email and password.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, validationFailure("password is required")
	}

	done := m.beginOp()
	id, err := m.provider.SignIn(ctx, email, password)
	done()

	if err != nil {
		return nil, classify(err)
	}
	return id, nil
}

// SignInWithProvider runs the interactive consent flow for kind. Attempts are
// guarded by an in-flight token: issuing a new attempt supersedes the previous
// one, and a superseded resolution is discarded before anything is committed,
// so a cancelled flow can never clobber a completed one.
func (m *Manager) SignInWithProvider(ctx context.Context, kind string) (*identity.Identity, error) {
	flow, ok := m.flows[kind]
	if !ok {
		return nil, classify(fmt.Errorf("%w: %q", identity.ErrUnknownProviderKind, kind))
	}

	m.mu.Lock()
	token := uuid.New().String()
	m.inflight = token
	m.pending++
	notify := m.changedLocked()
	m.mu.Unlock()
	notify()

	asserted, err := flow.Authorize(ctx)

	m.mu.Lock()
	if m.inflight != token {
		m.pending--
		notify = m.changedLocked()
		m.mu.Unlock()
		notify()
		return nil, classify(ErrFlowSuperseded)
	}
	if err != nil {
		m.inflight = ""
		m.pending--
		notify = m.changedLocked()
		m.mu.Unlock()
		notify()
		return nil, classify(err)
	}
	m.mu.Unlock()

	id, commitErr := m.provider.CommitExternal(ctx, asserted)

	m.mu.Lock()
	if m.inflight == token {
		m.inflight = ""
	}
	m.pending--
	notify = m.changedLocked()
	m.mu.Unlock()
	notify()

	if commitErr != nil {
		return nil, classify(commitErr)
	}
	return id, nil
}

// SignOut clears the session. Fail-closed: if the provider call fails, no
// sign-out event is emitted, the cached identity is untouched, and the error
// is surfaced.
func (m *Manager) SignOut(ctx context.Context) error {
	done := m.beginOp()
	err := m.provider.SignOut(ctx)
	done()

	if err != nil {
		return classify(err)
	}
	return nil
}

// ResetPassword starts a provider-side reset email flow. Unknown accounts are
// deliberately reported as success so the endpoint cannot be used to
// enumerate registered emails; the miss is logged instead.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	err := m.provider.SendPasswordReset(ctx, email)
	if errors.Is(err, identity.ErrAccountNotFound) {
		m.logger.Info("password reset for unknown account suppressed")
		return nil
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

// UpdateDisplayIdentity updates the provider record and, on success, patches
// the local cache synchronously so the very next read reflects the change
// without waiting for a provider event.
func (m *Manager) UpdateDisplayIdentity(ctx context.Context, name, avatarURL string) error {
	if err := m.provider.UpdateProfile(ctx, name, avatarURL); err != nil {
		return classify(err)
	}

	m.mu.Lock()
	if m.identity != nil {
		patched := *m.identity
		patched.DisplayName = name
		patched.AvatarURL = avatarURL
		m.identity = &patched
	}
	notify := m.changedLocked()
	m.mu.Unlock()
	notify()
	return nil
}

// handleChange applies one provider event. Events arrive in emit order; a
// stale sequence number is dropped so an older resolution can never overwrite
// state produced by a newer one.
func (m *Manager) handleChange(c identity.Change) {
	m.mu.Lock()
	if c.Seq <= m.lastSeq {
		m.logger.Debug("dropping stale identity change", "seq", c.Seq, "last_seq", m.lastSeq)
		m.mu.Unlock()
		return
	}
	m.lastSeq = c.Seq
	m.identity = c.Identity
	m.resolvedOnce = true
	notify := m.changedLocked()
	m.mu.Unlock()
	notify()
}

// beginOp marks an explicit auth operation in flight and returns its done
// func. Status is Resolving while any operation is pending.
func (m *Manager) beginOp() (done func()) {
	m.mu.Lock()
	m.pending++
	notify := m.changedLocked()
	m.mu.Unlock()
	notify()

	return func() {
		m.mu.Lock()
		m.pending--
		notify := m.changedLocked()
		m.mu.Unlock()
		notify()
	}
}

// sessionLocked builds the current snapshot. Caller holds m.mu.
func (m *Manager) sessionLocked() Session {
	var id *identity.Identity
	if m.identity != nil {
		copied := *m.identity
		id = &copied
	}
	return Session{Identity: id, Status: m.statusLocked()}
}

// statusLocked derives the status. Unresolved is only possible before the
// first provider event; it is never re-entered afterwards.
func (m *Manager) statusLocked() Status {
	switch {
	case m.pending > 0:
		return StatusResolving
	case m.resolvedOnce:
		return StatusResolved
	case m.started:
		return StatusResolving
	default:
		return StatusUnresolved
	}
}

// changedLocked snapshots the session and subscribers, returning a closure
// that delivers the notification after the lock is released.
func (m *Manager) changedLocked() func() {
	snap := m.sessionLocked()
	subs := make([]func(Session), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if fn, ok := m.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return func() {
		for _, fn := range subs {
			fn(snap)
		}
	}
}

func validateEmail(email string) *Failure {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationFailure("email is required")
	}
	if !strings.Contains(email, "@") {
		return validationFailure("email address is malformed")
	}
	return nil
}
