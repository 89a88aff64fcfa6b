package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/accessgate/internal/logging"
	"github.com/congo-pay/accessgate/internal/notification"
)

// ProviderConfig tunes provider policy.
type ProviderConfig struct {
	// ConfirmBeforeSignIn rejects password logins until the email is confirmed.
	ConfirmBeforeSignIn bool
	PasswordMinLength   int
	// PublicBaseURL prefixes the links mailed to users.
	PublicBaseURL string
}

// Provider is the credential backend shared by every browser scope. It
// stores users, hashes passwords, mints tokens and mails links. Scopes talk
// to it through the LocalClient returned by NewClient.
type Provider struct {
	repo     Repository
	tokens   *Tokens
	notifier notification.Notifier
	cfg      ProviderConfig
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[*LocalClient]struct{}
}

// NewProvider wires a provider. A nil notifier drops outgoing mail.
func NewProvider(repo Repository, tokens *Tokens, notifier notification.Notifier, cfg ProviderConfig, logger *slog.Logger) *Provider {
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = 8
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Provider{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
		clients:  make(map[*LocalClient]struct{}),
	}
}

// NewClient returns a client with its own session slot, registered for
// provider-pushed user updates until Close is called.
func (p *Provider) NewClient() *LocalClient {
	c := &LocalClient{p: p, listeners: make(map[int]SessionListener)}
	p.mu.Lock()
	p.clients[c] = struct{}{}
	p.mu.Unlock()
	return c
}

func (p *Provider) release(c *LocalClient) {
	p.mu.Lock()
	delete(p.clients, c)
	p.mu.Unlock()
}

// ConfirmEmail consumes a confirmation token and stamps the address verified.
// Every live client signed in as that identity receives USER_UPDATED.
func (p *Provider) ConfirmEmail(ctx context.Context, token string) (Identity, error) {
	claims, err := p.tokens.parse(token, purposeConfirm)
	if err != nil {
		return Identity{}, err
	}
	if err := p.repo.MarkEmailVerified(ctx, claims.Subject, p.now()); err != nil {
		return Identity{}, err
	}
	user, err := p.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		return Identity{}, err
	}
	p.logger.Info("identity.email confirmed", slog.String("identity_id", user.ID))

	p.mu.Lock()
	clients := make([]*LocalClient, 0, len(p.clients))
	for c := range p.clients {
		clients = append(clients, c)
	}
	p.mu.Unlock()
	for _, c := range clients {
		c.userUpdated(user.Identity)
	}
	return user.Identity, nil
}

func (p *Provider) register(ctx context.Context, email, password string, metadata map[string]string) (User, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return User{}, ErrInvalidEmail
	}
	if err := checkPassword(password, p.cfg.PasswordMinLength); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now().UTC()
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	user := User{
		Identity: Identity{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: strings.TrimSpace(meta["display_name"]),
			Metadata:    meta,
			CreatedAt:   now,
		},
		PasswordHash: hash,
		UpdatedAt:    now,
	}
	if err := p.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	p.sendLink(ctx, notification.KindEmailConfirmation, user.Identity, purposeConfirm, p.cfg.PublicBaseURL+"/api/v1/auth/confirm")
	return user, nil
}

func (p *Provider) login(ctx context.Context, email, password string) (ProviderSession, error) {
	user, err := p.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return ProviderSession{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return ProviderSession{}, ErrInvalidLogin
	}
	if p.cfg.ConfirmBeforeSignIn && !user.EmailVerified() {
		return ProviderSession{}, ErrEmailNotConfirmed
	}
	return p.openSession(user.Identity)
}

func (p *Provider) openSession(user Identity) (ProviderSession, error) {
	token, exp, err := p.tokens.issue(purposeAccess, user)
	if err != nil {
		return ProviderSession{}, err
	}
	return ProviderSession{AccessToken: token, ExpiresAt: exp, Identity: user}, nil
}

// sendLink mails a purpose token. Delivery failure is logged; the triggering
// operation still succeeds and the user can ask for a resend.
func (p *Provider) sendLink(ctx context.Context, kind string, user Identity, purpose, target string) {
	if p.notifier == nil {
		return
	}
	token, _, err := p.tokens.issue(purpose, user)
	if err != nil {
		p.logger.Error("identity.link token failed", slog.String("kind", kind), slog.Any("error", err))
		return
	}
	link := target + "?token=" + url.QueryEscape(token)
	if err := p.notifier.Send(ctx, notification.Message{Kind: kind, Destination: user.Email, Link: link}); err != nil {
		p.logger.Warn("identity.link delivery failed", slog.String("kind", kind), slog.String("identity_id", user.ID), slog.Any("error", err))
	}
}

func (p *Provider) recover(ctx context.Context, token string) (ProviderSession, error) {
	claims, err := p.tokens.parse(token, purposeRecovery)
	if err != nil {
		return ProviderSession{}, err
	}
	user, err := p.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		return ProviderSession{}, err
	}
	return p.openSession(user.Identity)
}

func (p *Provider) checkAccess(token string) (string, error) {
	claims, err := p.tokens.parse(token, purposeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
