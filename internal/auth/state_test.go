package auth

import (
	"bytes"
	"strings"
	"testing"

	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/logging"
)

func TestCellRejectsAuthenticatedWithoutIdentity(t *testing.T) {
	var buf bytes.Buffer
	c := newCell(logging.NewWithWriter(&buf, "info", "json"))

	c.set(Session{Authenticated: true}, ProducerProviderEvent)

	if s := c.Snapshot(); s.Authenticated {
		t.Fatalf("invalid session stored: %+v", s)
	}
	if c.Phase() != PhaseUnauthenticated {
		t.Fatalf("unexpected phase %s", c.Phase())
	}
	if !strings.Contains(buf.String(), "invariant") {
		t.Fatalf("expected invariant log, got %q", buf.String())
	}
}

func TestCellSnapshotIsACopy(t *testing.T) {
	c := newCell(logging.Discard())
	c.set(Session{Identity: &identity.Identity{ID: "u1", Email: "a@x.com"}, Authenticated: true}, ProducerSignIn)

	s := c.Snapshot()
	s.Identity.Email = "mutated@x.com"
	if c.Snapshot().Identity.Email != "a@x.com" {
		t.Fatal("snapshot aliases cell state")
	}
}

func TestCellUpdateIdentityIgnoresOtherIdentity(t *testing.T) {
	c := newCell(logging.Discard())
	c.set(Session{Identity: &identity.Identity{ID: "u1"}, Authenticated: true}, ProducerSignIn)

	c.updateIdentity(identity.Identity{ID: "u2", DisplayName: "other"}, ProducerVerification)
	if c.Snapshot().Identity.ID != "u1" {
		t.Fatal("update replaced a different identity")
	}
	c.updateIdentity(identity.Identity{ID: "u1", DisplayName: "Ada"}, ProducerVerification)
	if c.Snapshot().Identity.DisplayName != "Ada" {
		t.Fatal("update did not refresh the signed-in identity")
	}
}
