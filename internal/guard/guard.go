// ABOUTME: Access-control decisions for protected page routes
// ABOUTME: Captures and consumes the post-login redirect target

package guard

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/academa/academa-portal/internal/session"
)

// Kind is the outcome of a guard decision.
type Kind int

const (
	// Serve: render the requested destination.
	Serve Kind = iota

	// Loading: session resolution is in flight; render a neutral placeholder
	// and do not redirect. Avoids a flash-redirect-to-login on reload.
	Loading

	// Redirect: send the browser to Decision.Location.
	Redirect
)

// Decision is one access-control verdict for a navigation.
type Decision struct {
	Kind     Kind
	Location string // set when Kind == Redirect
}

// RedirectTarget is the deferred destination a user is returned to after
// completing sign-in. Captured on denial, consumed exactly once.
type RedirectTarget struct {
	Path string
}

// Guard gates navigation to protected destinations based on session state.
// It only observes the session; it never initiates authentication.
type Guard struct {
	protected   []string // exact paths, or prefixes when ending in "/*"
	signInPath  string
	defaultPath string

	mu     sync.Mutex
	target *RedirectTarget

	logger *slog.Logger
}

// New creates a guard. protected lists the paths requiring an identity; a
// trailing "/*" protects the whole subtree (e.g. "/colleges/*").
func New(protected []string, signInPath, defaultPath string) *Guard {
	return &Guard{
		protected:   protected,
		signInPath:  signInPath,
		defaultPath: defaultPath,
		logger:      slog.Default().With("component", "guard"),
	}
}

// Protected reports whether path requires an authenticated identity.
func (g *Guard) Protected(path string) bool {
	for _, p := range g.protected {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(path, prefix+"/") || path == prefix {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// Decide produces the verdict for a navigation to path under session s.
//
// Arriving authenticated at the sign-in destination consumes a pending
// RedirectTarget; arriving authenticated anywhere else discards it, so a
// target captured before the user navigated away is never applied stale.
func (g *Guard) Decide(s session.Session, path string) Decision {
	if path == g.signInPath {
		if !s.Authenticated() {
			return Decision{Kind: Serve}
		}
		return Decision{Kind: Redirect, Location: g.consumeTarget()}
	}

	if s.Authenticated() {
		g.discardTarget()
		return Decision{Kind: Serve}
	}

	if !g.Protected(path) {
		return Decision{Kind: Serve}
	}

	if s.Status != session.StatusResolved {
		return Decision{Kind: Loading}
	}

	// Resolved and anonymous: remember where the user was headed.
	g.mu.Lock()
	g.target = &RedirectTarget{Path: path}
	g.mu.Unlock()
	g.logger.Debug("protected path denied", "path", path)
	return Decision{Kind: Redirect, Location: g.signInPath}
}

// consumeTarget returns the pending target path (or the default landing
// path) and clears it. Each captured target is consumed at most once.
func (g *Guard) consumeTarget() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.target == nil {
		return g.defaultPath
	}
	path := g.target.Path
	g.target = nil
	return path
}

func (g *Guard) discardTarget() {
	g.mu.Lock()
	g.target = nil
	g.mu.Unlock()
}

// Middleware applies guard decisions to page routes. current extracts the
// session snapshot for the request; the portal binds it to its per-browser
// session lookup.
func (g *Guard) Middleware(current func(*http.Request) session.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch d := g.Decide(current(r), r.URL.Path); d.Kind {
			case Loading:
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(loadingPage))
			case Redirect:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// loadingPage is the neutral placeholder shown while resolution is in flight.
const loadingPage = `<!doctype html>
<html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p>Loading&hellip;</p></body></html>
`
