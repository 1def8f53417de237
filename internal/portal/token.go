// ABOUTME: JWT tokens binding a browser to its server-side session entry
// ABOUTME: Uses HS256 signing with configurable secret and TTL

package portal

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// SessionTokens issues and verifies the signed cookie value that ties a
// browser to its server-side session entry.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionTokens creates a token codec with the given secret and lifetime.
func NewSessionTokens(secret []byte, ttl time.Duration) *SessionTokens {
	return &SessionTokens{secret: secret, ttl: ttl}
}

// Issue creates a signed token carrying the browser-session ID in the "sid"
// claim, expiring after the configured TTL.
func (t *SessionTokens) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates the token and extracts the browser-session ID from the
// "sid" claim.
func (t *SessionTokens) Verify(tokenString string) (sessionID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("%w: sid", ErrMissingClaim)
	}

	return sid, nil
}
