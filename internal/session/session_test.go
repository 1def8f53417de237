// ABOUTME: Tests for the session manager state machine and event handling
// ABOUTME: Covers ordering, fail-closed sign-out, and the interactive race

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academa/academa-portal/internal/identity"
)

// fakeProvider is a scriptable identity provider for driving the manager.
type fakeProvider struct {
	mu             sync.Mutex
	seq            uint64
	listeners      []func(identity.Change)
	subscribeCount int
	current        *identity.Identity

	createErr  error
	signInErr  error
	signOutErr error
	updateErr  error
	resetErr   error

	updatedName   string
	updatedAvatar string
}

func (f *fakeProvider) emit(id *identity.Identity) {
	f.mu.Lock()
	f.seq++
	change := identity.Change{Seq: f.seq, Identity: id}
	listeners := append([]func(identity.Change){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(change)
	}
}

func (f *fakeProvider) CreateAccount(ctx context.Context, email, password string) (*identity.Identity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := &identity.Identity{AccountID: "acct-" + email, Email: email}
	f.current = id
	f.emit(id)
	return id, nil
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	id := &identity.Identity{AccountID: "acct-" + email, Email: email}
	f.current = id
	f.emit(id)
	return id, nil
}

func (f *fakeProvider) CommitExternal(ctx context.Context, asserted *identity.Identity) (*identity.Identity, error) {
	id := &identity.Identity{
		AccountID:   "ext-" + asserted.Email,
		Email:       asserted.Email,
		DisplayName: asserted.DisplayName,
		AvatarURL:   asserted.AvatarURL,
	}
	f.current = id
	f.emit(id)
	return id, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.current = nil
	f.emit(nil)
	return nil
}

func (f *fakeProvider) UpdateProfile(ctx context.Context, name, avatarURL string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updatedName = name
	f.updatedAvatar = avatarURL
	return nil
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	return f.resetErr
}

func (f *fakeProvider) OnIdentityChange(fn func(identity.Change)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCount++
	f.listeners = append(f.listeners, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners = nil
	}
}

func (f *fakeProvider) Resolve(ctx context.Context) error {
	f.emit(f.current)
	return nil
}

// flowFunc adapts a func to identity.ConsentFlow.
type flowFunc func(ctx context.Context) (*identity.Identity, error)

func (f flowFunc) Authorize(ctx context.Context) (*identity.Identity, error) { return f(ctx) }

func startedManager(t *testing.T, p identity.Provider, flows map[string]identity.ConsentFlow) *Manager {
	t.Helper()
	m := NewManager(p, flows)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func TestFreshLoad_StatusTransitions(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p, nil)

	assert.Equal(t, StatusUnresolved, m.Current().Status)

	var statuses []Status
	m.Subscribe(func(s Session) { statuses = append(statuses, s.Status) })

	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	// Start announces Resolving, then the provider's initial event resolves
	// to anonymous.
	require.GreaterOrEqual(t, len(statuses), 2)
	assert.Equal(t, StatusResolving, statuses[0])
	assert.Equal(t, StatusResolved, statuses[len(statuses)-1])

	current := m.Current()
	assert.Equal(t, StatusResolved, current.Status)
	assert.Nil(t, current.Identity)
}

func TestEventOrder_LastEventWins(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	emails := []string{"one@b.com", "two@b.com", "three@b.com"}
	for _, e := range emails {
		p.emit(&identity.Identity{AccountID: "acct-" + e, Email: e})
	}

	current := m.Current()
	require.NotNil(t, current.Identity)
	assert.Equal(t, "three@b.com", current.Identity.Email)
}

func TestStaleEvent_Dropped(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	p.emit(&identity.Identity{AccountID: "acct-new", Email: "new@b.com"})

	// Re-deliver an old change directly: same payload shape, older seq.
	m.handleChange(identity.Change{Seq: 1, Identity: nil})

	current := m.Current()
	require.NotNil(t, current.Identity)
	assert.Equal(t, "new@b.com", current.Identity.Email)
}

func TestSignIn_UpdatesIdentity(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	id, err := m.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)

	current := m.Current()
	assert.Equal(t, StatusResolved, current.Status)
	require.NotNil(t, current.Identity)
	assert.Equal(t, "a@b.com", current.Identity.Email)
}

func TestSignIn_CredentialFailure(t *testing.T) {
	p := &fakeProvider{signInErr: identity.ErrInvalidPassword}
	m := startedManager(t, p, nil)

	_, err := m.SignIn(context.Background(), "a@b.com", "wrong")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureCredential, f.Kind)
	assert.False(t, f.Retryable())

	assert.Nil(t, m.Current().Identity, "failed sign-in leaves session unchanged")
}

func TestRegister_ShortPassword_NoProviderCall(t *testing.T) {
	p := &fakeProvider{createErr: errors.New("provider must not be reached")}
	m := startedManager(t, p, nil)
	before := m.Current()

	_, err := m.Register(context.Background(), "x@y.com", "abc")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureValidation, f.Kind)

	after := m.Current()
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Identity, after.Identity)
}

func TestRegister_AccountExists(t *testing.T) {
	p := &fakeProvider{createErr: identity.ErrAccountExists}
	m := startedManager(t, p, nil)

	_, err := m.Register(context.Background(), "x@y.com", "secret1")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureCredential, f.Kind)
}

func TestSignOut_FailClosed(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	_, err := m.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	p.signOutErr = fmt.Errorf("provider unreachable")
	err = m.SignOut(context.Background())
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureNetworkOrProvider, f.Kind)
	assert.True(t, f.Retryable())

	current := m.Current()
	require.NotNil(t, current.Identity, "failed sign-out must not clear the session")
	assert.Equal(t, "a@b.com", current.Identity.Email)

	// And once the provider recovers, sign-out clears it.
	p.signOutErr = nil
	require.NoError(t, m.SignOut(context.Background()))
	assert.Nil(t, m.Current().Identity)
}

func TestSubscribe_FanOutAndUnsubscribe(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	var a, b int
	unsubA := m.Subscribe(func(Session) { a++ })
	m.Subscribe(func(Session) { b++ })

	_, err := m.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, a, b, "all subscribers see the same changes")
	assert.Positive(t, a)

	unsubA()
	require.NoError(t, m.SignOut(context.Background()))
	assert.Greater(t, b, a, "unsubscribed listener stops receiving")
}

func TestStart_SingleProviderSubscription(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	// Local subscribers fan out from the one provider-level subscription.
	m.Subscribe(func(Session) {})
	m.Subscribe(func(Session) {})
	require.NoError(t, m.Start(context.Background())) // repeated Start is a no-op

	assert.Equal(t, 1, p.subscribeCount)
}

func TestUpdateDisplayIdentity_SynchronousCacheUpdate(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	_, err := m.SignIn(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, m.UpdateDisplayIdentity(context.Background(), "Jane Doe", "https://img.example/j.png"))

	// No provider event was emitted, yet the very next read sees the change.
	current := m.Current()
	require.NotNil(t, current.Identity)
	assert.Equal(t, "Jane Doe", current.Identity.DisplayName)
	assert.Equal(t, "https://img.example/j.png", current.Identity.AvatarURL)
	assert.Equal(t, "Jane Doe", p.updatedName)
}

func TestResetPassword_MasksUnknownAccount(t *testing.T) {
	p := &fakeProvider{resetErr: identity.ErrAccountNotFound}
	m := startedManager(t, p, nil)

	assert.NoError(t, m.ResetPassword(context.Background(), "nobody@b.com"),
		"unknown accounts are reported as success to prevent enumeration")
}

func TestSignInWithProvider_Dismissed(t *testing.T) {
	p := &fakeProvider{}
	flows := map[string]identity.ConsentFlow{
		"google": flowFunc(func(ctx context.Context) (*identity.Identity, error) {
			return nil, identity.ErrConsentDismissed
		}),
	}
	m := startedManager(t, p, flows)

	_, err := m.SignInWithProvider(context.Background(), "google")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureInteractiveCancelled, f.Kind)
	assert.Nil(t, m.Current().Identity)
	assert.Equal(t, StatusResolved, m.Current().Status)
}

func TestSignInWithProvider_UnknownKind(t *testing.T) {
	p := &fakeProvider{}
	m := startedManager(t, p, nil)

	_, err := m.SignInWithProvider(context.Background(), "myspace")
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrUnknownProviderKind)
}

func TestSignInWithProvider_SupersededAttemptDiscarded(t *testing.T) {
	p := &fakeProvider{}

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	calls := 0
	var callMu sync.Mutex

	flows := map[string]identity.ConsentFlow{
		"google": flowFunc(func(ctx context.Context) (*identity.Identity, error) {
			callMu.Lock()
			calls++
			n := calls
			callMu.Unlock()
			if n == 1 {
				close(firstStarted)
				<-releaseFirst
				return &identity.Identity{Email: "stale@b.com", DisplayName: "Stale"}, nil
			}
			return &identity.Identity{Email: "fresh@b.com", DisplayName: "Fresh"}, nil
		}),
	}
	m := startedManager(t, p, flows)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.SignInWithProvider(context.Background(), "google")
		firstDone <- err
	}()
	<-firstStarted

	// The second attempt supersedes the first's in-flight token.
	id, err := m.SignInWithProvider(context.Background(), "google")
	require.NoError(t, err)
	assert.Equal(t, "fresh@b.com", id.Email)

	// Let the stale attempt resolve; its completed consent must be discarded
	// without committing anything.
	close(releaseFirst)
	err = <-firstDone
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureInteractiveCancelled, f.Kind)
	assert.ErrorIs(t, err, ErrFlowSuperseded)

	current := m.Current()
	require.NotNil(t, current.Identity)
	assert.Equal(t, "fresh@b.com", current.Identity.Email)
}

func TestFailureKind_Messages(t *testing.T) {
	kinds := []FailureKind{
		FailureValidation, FailureCredential, FailureInteractiveCancelled,
		FailureNetworkOrProvider, FailurePartialSave,
	}
	for _, k := range kinds {
		assert.NotEmpty(t, k.Message())
		assert.NotEqual(t, "unknown", k.String())
	}
}
