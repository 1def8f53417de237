// ABOUTME: Request context plumbing for the per-browser session entry
// ABOUTME: Provides WithBrowserSession/FromContext for handler access

package portal

import (
	"context"
)

// browserSessionKey is the key type for storing a BrowserSession in context.
type browserSessionKey struct{}

// WithBrowserSession returns a new context with the browser session attached.
func WithBrowserSession(ctx context.Context, bs *BrowserSession) context.Context {
	return context.WithValue(ctx, browserSessionKey{}, bs)
}

// FromContext retrieves the browser session from the context, returning nil
// if not present.
func FromContext(ctx context.Context) *BrowserSession {
	val := ctx.Value(browserSessionKey{})
	if val == nil {
		return nil
	}
	bs, ok := val.(*BrowserSession)
	if !ok {
		return nil
	}
	return bs
}

// MustFromContext retrieves the browser session, panicking if not present.
// Handlers behind the session middleware can rely on it.
func MustFromContext(ctx context.Context) *BrowserSession {
	bs := FromContext(ctx)
	if bs == nil {
		panic("portal: BrowserSession not found in context")
	}
	return bs
}
