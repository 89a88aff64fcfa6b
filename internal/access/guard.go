// Package access decides whether a browser session may open a protected
// destination, and which onboarding screen it must visit first otherwise.
package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/logging"
)

// Destination labels the page being opened. Every destination is gated.
type Destination string

// Protected is the default gated destination.
const Protected Destination = "protected"

// Kind is the outcome class of a Decision.
type Kind string

const (
	Allow    Kind = "allow"
	Redirect Kind = "redirect"
	Pending  Kind = "pending"
)

// Target is the remediation screen of a redirect.
type Target string

const (
	TargetSignIn        Target = "sign_in"
	TargetVerifyEmail   Target = "verify_email"
	TargetCreateProfile Target = "create_profile"
	TargetEnterPin      Target = "enter_pin"
)

// Decision is the guard's verdict.
type Decision struct {
	Kind   Kind   `json:"kind"`
	Target Target `json:"target,omitempty"`
}

func (d Decision) String() string {
	if d.Kind == Redirect {
		return fmt.Sprintf("redirect(%s)", d.Target)
	}
	return string(d.Kind)
}

// RedirectTo builds a redirect decision.
func RedirectTo(target Target) Decision {
	return Decision{Kind: Redirect, Target: target}
}

// Checks are the read-only lookups the guard performs. *auth.Manager
// satisfies it.
type Checks interface {
	IsEmailVerified(ctx context.Context) (bool, error)
	CheckUserStatus(ctx context.Context) (auth.UserStatus, error)
	IsPinVerified(ctx context.Context) (bool, error)
}

// Subject is a session source that can also answer the checks.
type Subject interface {
	Checks
	Snapshot() auth.Session
}

// Guard evaluates access decisions. It has no side effects beyond the
// checks it reads.
type Guard struct {
	logger *slog.Logger
}

// NewGuard returns a guard that logs failed checks to logger.
func NewGuard(logger *slog.Logger) *Guard {
	return &Guard{logger: logging.OrDiscard(logger)}
}

// Current decides for the subject's current session.
func (g *Guard) Current(ctx context.Context, subject Subject, dest Destination) Decision {
	return g.Decide(ctx, subject.Snapshot(), subject, dest)
}

// Decide runs the checks in order; the first failing one picks the
// redirect. A check that errors or panics sends the session to sign-in.
func (g *Guard) Decide(ctx context.Context, session auth.Session, checks Checks, dest Destination) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("access.decide panicked", slog.String("destination", string(dest)), slog.Any("panic", r))
			decision = RedirectTo(TargetSignIn)
		}
	}()

	if session.Loading {
		return Decision{Kind: Pending}
	}
	if !session.Authenticated || session.Identity == nil {
		return RedirectTo(TargetSignIn)
	}
	log := g.logger.With(slog.String("destination", string(dest)), slog.String("identity_id", session.Identity.ID))

	verified, err := checks.IsEmailVerified(ctx)
	if err != nil {
		log.Warn("access.email check failed", slog.Any("error", err))
		return RedirectTo(TargetSignIn)
	}
	if !verified {
		return RedirectTo(TargetVerifyEmail)
	}

	status, err := checks.CheckUserStatus(ctx)
	if err != nil {
		log.Warn("access.status check failed", slog.Any("error", err))
		return RedirectTo(TargetSignIn)
	}
	if !status.HasProfile {
		return RedirectTo(TargetCreateProfile)
	}

	// A profile without a PIN is let through.
	if status.HasPIN {
		marked, err := checks.IsPinVerified(ctx)
		if err != nil {
			log.Warn("access.pin marker check failed", slog.Any("error", err))
			return RedirectTo(TargetSignIn)
		}
		if !marked {
			return RedirectTo(TargetEnterPin)
		}
	}
	return Decision{Kind: Allow}
}
