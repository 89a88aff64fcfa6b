package scope

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/congo-pay/accessgate/internal/auth/authtest"
)

func newRegistry(t *testing.T) (*Registry, *authtest.Fixture) {
	t.Helper()
	f := authtest.New(t)
	r := NewRegistry(Deps{
		Provider:  f.Provider,
		Profiles:  f.Profiles,
		Directory: f.Directory,
		Digester:  f.Digester,
	}, Config{IdleTTL: time.Minute, Timeout: time.Second}, nil)
	t.Cleanup(r.Close)
	return r, f
}

func TestGetCreatesOncePerID(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	id := NewID()

	first, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first != second || r.Len() != 1 {
		t.Fatal("expected the same scope for the same id")
	}
	if first.Manager.Scope() != id || first.Manager.Snapshot().Loading {
		t.Fatal("scope should be bootstrapped under its id")
	}
	if _, err := r.Get(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
}

func TestScopesAreIsolated(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	a, _ := r.Get(ctx, NewID())
	b, _ := r.Get(ctx, NewID())

	if _, err := a.Manager.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := a.Manager.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !a.Manager.Snapshot().Authenticated || b.Manager.Snapshot().Authenticated {
		t.Fatal("sign-in leaked across scopes")
	}
}

func TestSweepEvictsIdleScopes(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	now := time.Now()
	r.now = func() time.Time { return now }

	idle := NewID()
	if _, err := r.Get(ctx, idle); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(45 * time.Second)
	fresh := NewID()
	if _, err := r.Get(ctx, fresh); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(30 * time.Second)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if r.Len() != 1 {
		t.Fatalf("expected one live scope, got %d", r.Len())
	}
}

func TestCloseRejectsNewScopes(t *testing.T) {
	r, _ := newRegistry(t)
	if _, err := r.Get(context.Background(), NewID()); err != nil {
		t.Fatalf("get: %v", err)
	}
	r.Close()
	if r.Len() != 0 {
		t.Fatal("close should drop scopes")
	}
	if _, err := r.Get(context.Background(), NewID()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
