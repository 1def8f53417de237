// ABOUTME: Tests for the local identity provider and account directory
// ABOUTME: Covers registration, sign-in failures, event ordering, and resets

package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lowCost keeps bcrypt cheap in tests.
const lowCost = 4

func newTestProvider(t *testing.T) (*LocalProvider, *Directory) {
	t.Helper()
	dir := NewDirectory(lowCost)
	return NewLocalProvider(dir), dir
}

func TestCreateAccount_CommitsIdentity(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	var changes []Change
	p.OnIdentityChange(func(c Change) { changes = append(changes, c) })

	id, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", id.Email)
	assert.Empty(t, id.DisplayName, "new accounts have no display name")

	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].Identity)
	assert.Equal(t, "a@b.com", changes[0].Identity.Email)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, "A@B.com", "other-secret")
	assert.ErrorIs(t, err, ErrAccountExists, "email matching is case-insensitive")
}

func TestCreateAccount_MalformedCredentials(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, ErrMalformedCredentials)

	_, err = p.CreateAccount(ctx, "x@y.com", "abc")
	assert.ErrorIs(t, err, ErrMalformedCredentials)
}

func TestSignIn_WrongPassword(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@b.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = p.SignIn(ctx, "missing@b.com", "secret1")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSignOut_EmitsNilIdentity(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	var last Change
	p.OnIdentityChange(func(c Change) { last = c })

	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, last.Identity)
}

func TestChanges_OrderedAndMonotonic(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	var seqs []uint64
	p.OnIdentityChange(func(c Change) { seqs = append(seqs, c.Seq) })

	_, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))
	_, err = p.SignIn(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	require.Len(t, seqs, 3)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
}

func TestUpdateProfile_NoEventEmitted(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	count := 0
	p.OnIdentityChange(func(Change) { count++ })

	require.NoError(t, p.UpdateProfile(ctx, "Jane Doe", "https://img.example/j.png"))
	assert.Zero(t, count, "profile updates do not fire identity changes")

	// The committed identity still reflects the update on the next resolve.
	var last Change
	p.OnIdentityChange(func(c Change) { last = c })
	require.NoError(t, p.Resolve(ctx))
	require.NotNil(t, last.Identity)
	assert.Equal(t, "Jane Doe", last.Identity.DisplayName)
}

func TestUpdateProfile_NotSignedIn(t *testing.T) {
	p, _ := newTestProvider(t)
	err := p.UpdateProfile(context.Background(), "Jane", "")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestResolve_AnnouncesCurrentIdentity(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	var changes []Change
	p.OnIdentityChange(func(c Change) { changes = append(changes, c) })

	require.NoError(t, p.Resolve(ctx))
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].Identity, "fresh session resolves to anonymous")
}

func TestSendPasswordReset_UnknownAccount(t *testing.T) {
	p, _ := newTestProvider(t)
	err := p.SendPasswordReset(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	count := 0
	unsub := p.OnIdentityChange(func(Change) { count++ })

	_, err := p.CreateAccount(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	unsub()
	require.NoError(t, p.SignOut(ctx))
	assert.Equal(t, 1, count)
}

func TestEnsureExternal_ReusesPasswordAccount(t *testing.T) {
	dir := NewDirectory(lowCost)

	created, err := dir.CreateAccount("a@b.com", "secret1")
	require.NoError(t, err)

	ext, err := dir.EnsureExternal(&Identity{Email: "A@b.com", DisplayName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, created.AccountID, ext.AccountID, "interactive and password sign-in share one account")
}
