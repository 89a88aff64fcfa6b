// Package auth owns the process-local authentication session: it mirrors the
// identity provider's session into an observable cell and runs every
// credential, profile and PIN operation the onboarding flow needs.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/accessgate/internal/directory"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/logging"
	"github.com/congo-pay/accessgate/internal/pin"
	"github.com/congo-pay/accessgate/internal/profile"
)

const defaultTimeout = 5 * time.Second

// Options configures a Manager.
type Options struct {
	// Scope keys the session directory entries of this browser session.
	Scope string
	// Timeout bounds each provider and profile store call.
	Timeout   time.Duration
	PINPolicy pin.Policy
	// ResetRedirect is where password recovery links land.
	ResetRedirect string
	Logger        *slog.Logger
	Now           func() time.Time
}

// Manager is the single writer of one browser session's auth state.
type Manager struct {
	client   identity.Client
	profiles profile.Repository
	dir      directory.Directory
	digester pin.Digester
	opts     Options
	logger   *slog.Logger
	cell     *Cell

	mu           sync.Mutex
	bootstrapped bool
	unsubscribe  func()
}

// NewManager wires a manager. Call Bootstrap exactly once before use.
func NewManager(client identity.Client, profiles profile.Repository, dir directory.Directory, digester pin.Digester, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PINPolicy == (pin.Policy{}) {
		opts.PINPolicy = pin.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.OrDiscard(opts.Logger).With(slog.String("scope", opts.Scope))
	return &Manager{
		client:   client,
		profiles: profiles,
		dir:      dir,
		digester: digester,
		opts:     opts,
		logger:   logger,
		cell:     newCell(logger),
	}
}

// Scope returns the browser session key the manager serves.
func (m *Manager) Scope() string { return m.opts.Scope }

// PINPolicy returns the configured PIN lengths.
func (m *Manager) PINPolicy() pin.Policy { return m.opts.PINPolicy }

// Snapshot returns the current session.
func (m *Manager) Snapshot() Session { return m.cell.Snapshot() }

// Phase returns the lifecycle phase.
func (m *Manager) Phase() Phase { return m.cell.Phase() }

// Subscribe registers l for every session write.
func (m *Manager) Subscribe(l Listener) func() { return m.cell.Subscribe(l) }

// Bootstrap purges legacy cached flags, subscribes to provider events and
// probes the provider for an existing session. Provider failures settle the
// session as signed out; only a repeated call returns an error.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return preconditionError("bootstrap", ReasonAlreadyStarted)
	}
	m.bootstrapped = true
	m.mu.Unlock()

	m.cell.set(Session{Loading: true}, ProducerBootstrap)

	purgeCtx, cancel := m.bound(ctx)
	if err := m.dir.PurgeLegacy(purgeCtx, m.opts.Scope); err != nil {
		m.logger.Warn("auth.bootstrap legacy purge failed", slog.Any("error", err))
	}
	cancel()

	unsubscribe := m.client.OnSessionChange(m.handleEvent)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	callCtx, cancel := m.bound(ctx)
	defer cancel()
	current, err := m.client.CurrentSession(callCtx)
	if err != nil {
		m.logger.Warn("auth.bootstrap session probe failed", slog.Any("error", err))
		m.cell.set(Session{}, ProducerBootstrap)
		return nil
	}
	m.cell.set(fromProvider(current), ProducerBootstrap)
	return nil
}

// Close detaches the manager from provider events.
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Manager) handleEvent(event identity.Event, session *identity.ProviderSession) {
	m.logger.Debug("auth.provider event", slog.String("event", string(event)))
	switch event {
	case identity.EventSignedUp:
		// A fresh registration does not sign the scope in until the
		// provider reports SIGNED_IN or the session is probed.
		return
	case identity.EventSignedIn, identity.EventPasswordRecovery:
		if session != nil {
			m.forgetPIN(session.Identity.ID)
		}
	case identity.EventSignedOut:
		if prev := m.cell.Snapshot().Identity; prev != nil {
			m.forgetPIN(prev.ID)
		}
	}
	m.cell.set(fromProvider(session), ProducerProviderEvent)
}

// forgetPIN clears the PIN marker and failure count for id. Directory
// failures are logged; the marker expires on its own.
func (m *Manager) forgetPIN(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	if err := m.dir.ClearPinVerified(ctx, m.opts.Scope, id); err != nil {
		m.logger.Warn("auth.pin marker clear failed", slog.String("identity_id", id), slog.Any("error", err))
	}
	if err := m.dir.ResetPinFailures(ctx, m.opts.Scope, id); err != nil {
		m.logger.Warn("auth.pin failures reset failed", slog.String("identity_id", id), slog.Any("error", err))
	}
}

func (m *Manager) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opts.Timeout)
}

// signedIn returns the current identity or a precondition error.
func (m *Manager) signedIn(op string) (identity.Identity, error) {
	s := m.cell.Snapshot()
	if !s.Authenticated || s.Identity == nil {
		return identity.Identity{}, preconditionError(op, ReasonNotAuthenticated)
	}
	return *s.Identity, nil
}

func fromProvider(session *identity.ProviderSession) Session {
	if session == nil || session.AccessToken == "" {
		return Session{}
	}
	id := session.Identity
	return Session{Identity: &id, Authenticated: true}
}
