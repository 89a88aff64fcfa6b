package auth

import (
	"log/slog"
	"sync"

	"github.com/congo-pay/accessgate/internal/identity"
)

// Session is the process-local view of who is signed in.
type Session struct {
	Identity      *identity.Identity
	Authenticated bool
	Loading       bool
}

func (s Session) clone() Session {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

// Phase is the session manager lifecycle.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseBootstrapping
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Producer names who wrote the session. Writes are last-writer-wins; the
// producer is reported to listeners so races stay visible.
type Producer string

const (
	ProducerBootstrap     Producer = "bootstrap"
	ProducerProviderEvent Producer = "provider_event"
	ProducerSignIn        Producer = "sign_in"
	ProducerSignOut       Producer = "sign_out"
	ProducerRecovery      Producer = "recovery"
	ProducerVerification  Producer = "verification"
)

// Listener observes session writes.
type Listener func(Session, Producer)

// Cell owns the session value. Only the Manager writes it.
type Cell struct {
	logger *slog.Logger

	mu        sync.Mutex
	session   Session
	phase     Phase
	listeners map[int]Listener
	nextID    int
}

func newCell(logger *slog.Logger) *Cell {
	return &Cell{
		logger:    logger,
		session:   Session{Loading: true},
		phase:     PhaseUninitialized,
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current session.
func (c *Cell) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// Phase returns the current lifecycle phase.
func (c *Cell) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Subscribe registers l for every subsequent write.
func (c *Cell) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// set replaces the session wholesale. A value claiming authentication
// without an identity is a defect: it is logged and stored as signed out.
func (c *Cell) set(s Session, producer Producer) {
	if s.Authenticated && s.Identity == nil {
		c.logger.Error("auth.session invariant violated",
			slog.String("invariant", "authenticated implies identity"),
			slog.String("producer", string(producer)))
		s = Session{}
	}
	s = s.clone()

	c.mu.Lock()
	c.session = s
	switch {
	case s.Loading:
		c.phase = PhaseBootstrapping
	case s.Authenticated:
		c.phase = PhaseAuthenticated
	default:
		c.phase = PhaseUnauthenticated
	}
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(s.clone(), producer)
	}
}

// updateIdentity refreshes the cached identity if it is still the signed-in one.
func (c *Cell) updateIdentity(id identity.Identity, producer Producer) {
	c.mu.Lock()
	current := c.session
	c.mu.Unlock()
	if !current.Authenticated || current.Identity == nil || current.Identity.ID != id.ID {
		return
	}
	current.Identity = &id
	c.set(current, producer)
}
