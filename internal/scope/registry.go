// Package scope keeps one auth stack per browser session. A scope id plays
// the part of the browser's session storage: markers and the provider
// session live as long as the scope does.
package scope

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/accessgate/internal/access"
	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/directory"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/logging"
	"github.com/congo-pay/accessgate/internal/onboarding"
	"github.com/congo-pay/accessgate/internal/pin"
	"github.com/congo-pay/accessgate/internal/profile"
)

// ErrInvalidID means the scope id is not a UUID.
var ErrInvalidID = errors.New("invalid scope id")

// ErrClosed means the registry is shutting down.
var ErrClosed = errors.New("scope registry closed")

// Deps are the shared backends every scope is wired to.
type Deps struct {
	Provider  *identity.Provider
	Profiles  profile.Repository
	Directory directory.Directory
	Digester  pin.Digester
	Guard     *access.Guard
}

// Config tunes scopes.
type Config struct {
	IdleTTL       time.Duration
	Timeout       time.Duration
	PINPolicy     pin.Policy
	ResetRedirect string
	Onboarding    onboarding.Config
}

// Session is one browser session's auth stack.
type Session struct {
	ID         string
	Manager    *auth.Manager
	Controller *onboarding.Controller

	client   *identity.LocalClient
	lastSeen time.Time
}

func (s *Session) close() {
	s.Manager.Close()
	s.client.Close()
}

// Registry owns the live scopes.
type Registry struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry returns an empty registry.
func NewRegistry(deps Deps, cfg Config, logger *slog.Logger) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if deps.Guard == nil {
		deps.Guard = access.NewGuard(logger)
	}
	return &Registry{
		deps:     deps,
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// NewID mints a scope id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id can name a scope.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the scope named id, creating and bootstrapping it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[id]; ok {
		s.lastSeen = r.now()
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	created, err := r.build(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		created.close()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[id]; ok {
		created.close()
		s.lastSeen = r.now()
		return s, nil
	}
	created.lastSeen = r.now()
	r.sessions[id] = created
	r.logger.Debug("scope.created", slog.String("scope", id))
	return created, nil
}

func (r *Registry) build(ctx context.Context, id string) (*Session, error) {
	client := r.deps.Provider.NewClient()
	m := auth.NewManager(client, r.deps.Profiles, r.deps.Directory, r.deps.Digester, auth.Options{
		Scope:         id,
		Timeout:       r.cfg.Timeout,
		PINPolicy:     r.cfg.PINPolicy,
		ResetRedirect: r.cfg.ResetRedirect,
		Logger:        r.logger,
	})
	if err := m.Bootstrap(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return &Session{
		ID:         id,
		Manager:    m,
		Controller: onboarding.NewController(m, r.deps.Guard, r.cfg.Onboarding, r.logger),
		client:     client,
	}, nil
}

// Len returns the number of live scopes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops scopes idle for longer than IdleTTL and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)
	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		r.logger.Info("scope.swept", slog.Int("evicted", len(stale)))
	}
	return len(stale)
}

// Run sweeps on a ticker until ctx ends.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close tears every scope down. Later Get calls fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
