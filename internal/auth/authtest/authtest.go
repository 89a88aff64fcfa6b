// Package authtest builds a fully in-memory auth stack for tests.
package authtest

import (
	"context"
	"net/url"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/directory"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/notification"
	"github.com/congo-pay/accessgate/internal/pin"
	"github.com/congo-pay/accessgate/internal/profile"
)

// Password satisfies the provider's password policy.
const Password = "Abcdef1!"

// Fixture is one browser scope wired to a shared provider.
type Fixture struct {
	Provider  *identity.Provider
	Outbox    *notification.Outbox
	Profiles  profile.Repository
	Directory *directory.MemoryDirectory
	Digester  pin.Digester
	Client    *identity.LocalClient
	Manager   *auth.Manager
}

// New returns a bootstrapped fixture with scope "test-scope".
func New(t *testing.T) *Fixture {
	t.Helper()
	return NewWithConfig(t, identity.ProviderConfig{})
}

// NewWithConfig is New with explicit provider policy.
func NewWithConfig(t *testing.T, cfg identity.ProviderConfig) *Fixture {
	t.Helper()
	return build(t, cfg, time.Hour)
}

// NewWithAccessTTL is New with access tokens that expire after ttl.
func NewWithAccessTTL(t *testing.T, ttl time.Duration) *Fixture {
	t.Helper()
	return build(t, identity.ProviderConfig{}, ttl)
}

func build(t *testing.T, cfg identity.ProviderConfig, accessTTL time.Duration) *Fixture {
	t.Helper()
	tokens, err := identity.NewTokens(identity.TokenConfig{Secret: "test-secret", AccessTTL: accessTTL, EmailTTL: time.Hour})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://gate.test"
	}
	outbox := &notification.Outbox{}
	f := &Fixture{
		Provider:  identity.NewProvider(identity.NewMemoryRepository(), tokens, outbox, cfg, nil),
		Outbox:    outbox,
		Profiles:  profile.NewMemoryRepository(),
		Directory: directory.NewMemoryDirectory(time.Hour),
		Digester:  pin.BcryptDigester{Cost: bcrypt.MinCost},
	}
	f.Manager = f.NewManager(t, "test-scope")
	return f
}

// NewManager bootstraps another scope against the fixture's provider and stores.
func (f *Fixture) NewManager(t *testing.T, scope string) *auth.Manager {
	t.Helper()
	client := f.Provider.NewClient()
	if f.Client == nil {
		f.Client = client
	}
	m := auth.NewManager(client, f.Profiles, f.Directory, f.Digester, auth.Options{
		Scope:         scope,
		Timeout:       time.Second,
		ResetRedirect: "http://gate.test/reset",
	})
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
		client.Close()
	})
	return m
}

// Confirm follows the latest confirmation link mailed to email.
func (f *Fixture) Confirm(t *testing.T, email string) {
	t.Helper()
	msg, ok := f.Outbox.Last(notification.KindEmailConfirmation, email)
	if !ok {
		t.Fatalf("no confirmation mail for %s", email)
	}
	if _, err := f.Provider.ConfirmEmail(context.Background(), Token(t, msg.Link)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
}

// SignedIn registers email, optionally confirms it, and signs the fixture's
// manager in.
func (f *Fixture) SignedIn(t *testing.T, email string, verified bool) identity.Identity {
	t.Helper()
	ctx := context.Background()
	if _, err := f.Manager.SignUp(ctx, email, Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if verified {
		f.Confirm(t, email)
	}
	id, err := f.Manager.SignIn(ctx, email, Password)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return id
}

// WithProfile signs in a verified identity and stores a profile, with a PIN
// of the standalone length when pinValue is not empty.
func (f *Fixture) WithProfile(t *testing.T, email, pinValue string) identity.Identity {
	t.Helper()
	id := f.SignedIn(t, email, true)
	ctx := context.Background()
	if _, err := f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Test User"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if pinValue != "" {
		if _, err := f.Manager.CreatePin(ctx, pinValue); err != nil {
			t.Fatalf("create pin: %v", err)
		}
	}
	return id
}

// Token extracts the token query parameter of a mailed link.
func Token(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("token")
}
