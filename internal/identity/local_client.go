package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/accessgate/internal/notification"
)

// LocalClient is one scope's handle on the Provider. It keeps the scope's
// current session and fans session changes out to listeners. Listeners run
// synchronously on the goroutine that caused the change; an access token
// running out announces SIGNED_OUT from a timer goroutine.
type LocalClient struct {
	p *Provider

	mu        sync.Mutex
	session   *ProviderSession
	expiry    *time.Timer
	listeners map[int]SessionListener
	nextID    int
	closed    bool
}

var _ Client = (*LocalClient)(nil)

// CreateAccount registers a user and mails a confirmation link. Unless the
// provider requires confirmation before sign-in, the new account also gets a
// session announced with SIGNED_UP.
func (c *LocalClient) CreateAccount(ctx context.Context, email, password string, metadata map[string]string) (Identity, error) {
	user, err := c.p.register(ctx, email, password, metadata)
	if err != nil {
		return Identity{}, err
	}
	if c.p.cfg.ConfirmBeforeSignIn {
		return user.Identity, nil
	}
	session, err := c.p.openSession(user.Identity)
	if err != nil {
		return Identity{}, err
	}
	c.set(EventSignedUp, &session)
	return user.Identity, nil
}

// Authenticate signs the scope in with a password.
func (c *LocalClient) Authenticate(ctx context.Context, email, password string) (ProviderSession, error) {
	session, err := c.p.login(ctx, email, password)
	if err != nil {
		return ProviderSession{}, err
	}
	c.set(EventSignedIn, &session)
	return session, nil
}

// SignOut drops the scope's session. Signing out twice is not an error.
func (c *LocalClient) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.set(EventSignedOut, nil)
	return nil
}

// CurrentSession returns a copy of the scope's session, or nil. An expired
// or tampered token is dropped and announced as SIGNED_OUT.
func (c *LocalClient) CurrentSession(ctx context.Context) (*ProviderSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	current := c.session.clone()
	c.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	if _, err := c.p.checkAccess(current.AccessToken); err != nil || !current.Valid(c.p.now()) {
		c.set(EventSignedOut, nil)
		return nil, nil
	}
	return current, nil
}

// OnSessionChange registers listener and returns its unsubscribe function.
func (c *LocalClient) OnSessionChange(listener SessionListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
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

// RequestPasswordReset mails a recovery link pointing at redirectTo. Unknown
// addresses succeed silently so the endpoint cannot be used to probe accounts.
func (c *LocalClient) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	user, err := c.p.repo.FindByEmail(ctx, normalizeEmail(email))
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	c.p.sendLink(ctx, notification.KindPasswordReset, user.Identity, purposeRecovery, redirectTo)
	return nil
}

// ExchangeRecoveryToken turns a mailed recovery token into a session,
// announced as PASSWORD_RECOVERY.
func (c *LocalClient) ExchangeRecoveryToken(ctx context.Context, token string) (ProviderSession, error) {
	session, err := c.p.recover(ctx, token)
	if err != nil {
		return ProviderSession{}, err
	}
	c.set(EventPasswordRecovery, &session)
	return session, nil
}

// SetNewPassword changes the signed-in user's password.
func (c *LocalClient) SetNewPassword(ctx context.Context, newPassword string) error {
	current, err := c.requireSession(ctx)
	if err != nil {
		return err
	}
	if err := checkPassword(newPassword, c.p.cfg.PasswordMinLength); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := c.p.repo.UpdatePassword(ctx, current.Identity.ID, hash); err != nil {
		return err
	}
	c.p.logger.Info("identity.password updated", slog.String("identity_id", current.Identity.ID))
	c.set(EventUserUpdated, current)
	return nil
}

// ResendVerification mails a fresh confirmation link. Already verified
// addresses are a no-op.
func (c *LocalClient) ResendVerification(ctx context.Context, email string) error {
	user, err := c.p.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user.EmailVerified() {
		return nil
	}
	c.p.sendLink(ctx, notification.KindEmailConfirmation, user.Identity, purposeConfirm, c.p.cfg.PublicBaseURL+"/api/v1/auth/confirm")
	return nil
}

// FreshUser reloads the signed-in identity from the user store.
func (c *LocalClient) FreshUser(ctx context.Context) (Identity, error) {
	current, err := c.requireSession(ctx)
	if err != nil {
		return Identity{}, err
	}
	user, err := c.p.repo.FindByID(ctx, current.Identity.ID)
	if err != nil {
		return Identity{}, err
	}
	c.mu.Lock()
	if c.session != nil && c.session.Identity.ID == user.ID {
		c.session.Identity = user.Identity
	}
	c.mu.Unlock()
	return user.Identity, nil
}

// Close detaches the client from provider pushes and drops every listener.
func (c *LocalClient) Close() {
	c.p.release(c)
	c.mu.Lock()
	c.closed = true
	c.stopExpiry()
	c.listeners = make(map[int]SessionListener)
	c.mu.Unlock()
}

func (c *LocalClient) requireSession(ctx context.Context) (*ProviderSession, error) {
	current, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoSession
	}
	return current, nil
}

func (c *LocalClient) userUpdated(user Identity) {
	c.mu.Lock()
	if c.session == nil || c.session.Identity.ID != user.ID {
		c.mu.Unlock()
		return
	}
	c.session.Identity = user
	updated := c.session.clone()
	c.mu.Unlock()
	c.emit(EventUserUpdated, updated)
}

func (c *LocalClient) set(event Event, session *ProviderSession) {
	c.mu.Lock()
	c.session = session.clone()
	c.armExpiry(c.session)
	c.mu.Unlock()
	c.emit(event, session.clone())
}

// armExpiry replaces the expiry timer for session. Callers hold c.mu.
func (c *LocalClient) armExpiry(session *ProviderSession) {
	c.stopExpiry()
	if session == nil || c.closed {
		return
	}
	token := session.AccessToken
	wait := session.ExpiresAt.Sub(c.p.now())
	if wait < 0 {
		wait = 0
	}
	c.expiry = time.AfterFunc(wait, func() { c.expire(token) })
}

func (c *LocalClient) stopExpiry() {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
}

// expire drops the session if it still carries token.
func (c *LocalClient) expire(token string) {
	c.mu.Lock()
	if c.closed || c.session == nil || c.session.AccessToken != token {
		c.mu.Unlock()
		return
	}
	id := c.session.Identity.ID
	c.session = nil
	c.expiry = nil
	c.mu.Unlock()
	c.p.logger.Info("identity.session expired", slog.String("identity_id", id))
	c.emit(EventSignedOut, nil)
}

func (c *LocalClient) emit(event Event, session *ProviderSession) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	listeners := make([]SessionListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()
	for _, l := range listeners {
		l(event, session)
	}
}
