// ABOUTME: Tests for browser-session token issue and verification
// ABOUTME: Covers roundtrip, expiry, tampering, and wrong-secret rejection

package portal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokens_Roundtrip(t *testing.T) {
	tokens := NewSessionTokens([]byte("test-secret"), time.Hour)

	token, err := tokens.Issue("session-123")
	require.NoError(t, err)

	sid, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "session-123", sid)
}

func TestSessionTokens_Expired(t *testing.T) {
	tokens := NewSessionTokens([]byte("test-secret"), -time.Minute)

	token, err := tokens.Issue("session-123")
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionTokens_WrongSecret(t *testing.T) {
	issuer := NewSessionTokens([]byte("secret-a"), time.Hour)
	verifier := NewSessionTokens([]byte("secret-b"), time.Hour)

	token, err := issuer.Issue("session-123")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionTokens_Garbage(t *testing.T) {
	tokens := NewSessionTokens([]byte("test-secret"), time.Hour)

	_, err := tokens.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
