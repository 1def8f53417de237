// ABOUTME: Registry binding each browser session to one Manager instance
// ABOUTME: Creates per-session provider, guard, and coordinator; sweeps idle entries

package portal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/academa/academa-portal/internal/guard"
	"github.com/academa/academa-portal/internal/identity"
	"github.com/academa/academa-portal/internal/profile"
	"github.com/academa/academa-portal/internal/session"
)

// BrowserSession is everything the portal keeps per browser: the session
// manager (who is logged in), its route guard (pending redirect target), and
// the profile coordinator bound to that manager.
type BrowserSession struct {
	ID       string
	Manager  *session.Manager
	Guard    *guard.Guard
	Profiles *profile.Coordinator

	mu       sync.Mutex
	lastSeen time.Time
}

func (b *BrowserSession) touch(now time.Time) {
	b.mu.Lock()
	b.lastSeen = now
	b.mu.Unlock()
}

func (b *BrowserSession) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastSeen)
}

// RegistryConfig carries the per-session wiring inputs.
type RegistryConfig struct {
	// Flows maps provider kinds to interactive consent flows. May be nil.
	Flows map[string]identity.ConsentFlow

	ProtectedPaths []string
	SignInPath     string
	DefaultPath    string

	// TTL is how long an idle browser session is retained. Matches the
	// cookie token lifetime.
	TTL time.Duration
}

// Registry maps browser-session IDs to their server-side state. Each entry
// gets its own LocalProvider view over the shared account directory, so
// sign-in state is isolated per browser while accounts are shared.
type Registry struct {
	directory *identity.Directory
	store     profile.RecordStore
	cfg       RegistryConfig

	mu       sync.Mutex
	sessions map[string]*BrowserSession

	done   chan struct{}
	logger *slog.Logger
}

// NewRegistry creates a registry over the shared directory and ProfileStore
// client, and starts the idle-entry sweeper.
func NewRegistry(dir *identity.Directory, store profile.RecordStore, cfg RegistryConfig) *Registry {
	r := &Registry{
		directory: dir,
		store:     store,
		cfg:       cfg,
		sessions:  make(map[string]*BrowserSession),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "session-registry"),
	}
	go r.sweepLoop()
	return r
}

// Open creates a new browser session: a fresh provider over the shared
// directory, a started Manager, a guard, and a coordinator bound to the
// Manager. The returned entry is already resolving.
func (r *Registry) Open(ctx context.Context) (*BrowserSession, error) {
	provider := identity.NewLocalProvider(r.directory)
	mgr := session.NewManager(provider, r.cfg.Flows)

	bs := &BrowserSession{
		ID:       uuid.New().String(),
		Manager:  mgr,
		Guard:    guard.New(r.cfg.ProtectedPaths, r.cfg.SignInPath, r.cfg.DefaultPath),
		Profiles: profile.NewCoordinator(r.store, mgr),
		lastSeen: time.Now(),
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[bs.ID] = bs
	r.mu.Unlock()

	r.logger.Debug("browser session opened", "session_id", bs.ID)
	return bs, nil
}

// Lookup returns the entry for id, refreshing its idle timer.
func (r *Registry) Lookup(id string) (*BrowserSession, bool) {
	r.mu.Lock()
	bs, ok := r.sessions[id]
	r.mu.Unlock()

	if ok {
		bs.touch(time.Now())
	}
	return bs, ok
}

// Close stops the sweeper and releases every entry's provider subscription.
func (r *Registry) Close() {
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, bs := range r.sessions {
		bs.Manager.Close()
		delete(r.sessions, id)
	}
}

func (r *Registry) sweepLoop() {
	interval := r.cfg.TTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.sweepExpired(now)
		}
	}
}

// sweepExpired drops entries idle for longer than the TTL. The browser's
// cookie token expires on the same clock, so a live browser re-opens cleanly.
func (r *Registry) sweepExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, bs := range r.sessions {
		if bs.idleSince(now) > r.cfg.TTL {
			bs.Manager.Close()
			delete(r.sessions, id)
			r.logger.Debug("browser session expired", "session_id", id)
		}
	}
}
