package onboarding

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/congo-pay/accessgate/internal/access"
	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/logging"
	"github.com/congo-pay/accessgate/internal/pin"
)

// Config tunes the controller.
type Config struct {
	MaxPinAttempts int
	PollInterval   time.Duration
}

// DefaultConfig matches the shipped screens.
func DefaultConfig() Config {
	return Config{MaxPinAttempts: 3, PollInterval: 3 * time.Second}
}

// Outcome is the screen to show after a submission. Err is set when the
// submission failed; the screen is then the one it was made from.
type Outcome struct {
	Screen            Screen           `json:"screen,omitempty"`
	Decision          *access.Decision `json:"decision,omitempty"`
	Err               *auth.Error      `json:"-"`
	Message           string           `json:"message,omitempty"`
	AttemptsRemaining int              `json:"attempts_remaining,omitempty"`
}

// Pending reports whether the guard is still settling the session.
func (o Outcome) Pending() bool {
	return o.Decision != nil && o.Decision.Kind == access.Pending
}

// Controller drives one browser session through onboarding.
type Controller struct {
	m      *auth.Manager
	guard  *access.Guard
	cfg    Config
	logger *slog.Logger
}

// NewController wires a controller around m.
func NewController(m *auth.Manager, guard *access.Guard, cfg Config, logger *slog.Logger) *Controller {
	def := DefaultConfig()
	if cfg.MaxPinAttempts <= 0 {
		cfg.MaxPinAttempts = def.MaxPinAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &Controller{
		m:      m,
		guard:  guard,
		cfg:    cfg,
		logger: logging.OrDiscard(logger).With(slog.String("scope", m.Scope())),
	}
}

// Manager returns the session manager the controller drives.
func (c *Controller) Manager() *auth.Manager { return c.m }

// Resolve asks the guard where the session stands for dest.
func (c *Controller) Resolve(ctx context.Context, dest access.Destination) Outcome {
	d := c.guard.Current(ctx, c.m, dest)
	screen, _ := ScreenFor(d)
	return Outcome{Screen: screen, Decision: &d}
}

func (c *Controller) fail(screen Screen, err error) Outcome {
	e := auth.AsError(err)
	return Outcome{Screen: screen, Err: e, Message: Message(e)}
}

func (c *Controller) advance(ctx context.Context, from Screen, event Event) Outcome {
	next, ok := Transition(from, event)
	if !ok {
		c.logger.Warn("onboarding.unexpected transition", slog.String("from", string(from)), slog.String("event", string(event)))
		return c.Resolve(ctx, access.Protected)
	}
	if next == ScreenAllowed {
		// Allowed is only ever granted by the guard.
		return c.Resolve(ctx, access.Protected)
	}
	return Outcome{Screen: next}
}

// SubmitSignIn signs in and re-evaluates the guard.
func (c *Controller) SubmitSignIn(ctx context.Context, email, password string) Outcome {
	if strings.TrimSpace(email) == "" || password == "" {
		return Outcome{
			Screen:  ScreenSignIn,
			Err:     &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonMissingField, Op: "sign_in"},
			Message: msgMissingFields,
		}
	}
	if _, err := c.m.SignIn(ctx, email, password); err != nil {
		return c.fail(ScreenSignIn, err)
	}
	return c.Resolve(ctx, access.Protected)
}

// SubmitSignUp creates an account and signs it in so the verification step
// can poll the provider. A provider that refuses unconfirmed sign-ins sends
// the user back to sign-in with instructions instead.
func (c *Controller) SubmitSignUp(ctx context.Context, email, password, confirm, displayName string) Outcome {
	if strings.TrimSpace(email) == "" || password == "" {
		return Outcome{
			Screen:  ScreenSignIn,
			Err:     &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonMissingField, Op: "sign_up"},
			Message: msgMissingFields,
		}
	}
	if password != confirm {
		e := &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonPasswordMismatch, Op: "sign_up"}
		return Outcome{Screen: ScreenSignIn, Err: e, Message: Message(e)}
	}
	seed := map[string]string{}
	if name := strings.TrimSpace(displayName); name != "" {
		seed["display_name"] = name
	}
	id, err := c.m.SignUp(ctx, email, password, seed)
	if err != nil {
		return c.fail(ScreenSignIn, err)
	}

	if _, err := c.m.SignIn(ctx, email, password); err != nil {
		if !auth.IsReason(err, auth.ReasonEmailNotConfirmed) {
			c.logger.Warn("onboarding.sign_up follow-up sign-in failed", slog.String("identity_id", id.ID), slog.Any("error", err))
		}
		return Outcome{Screen: ScreenSignIn, Message: accountCreatedSignIn(id.Email)}
	}
	out := c.advance(ctx, ScreenSignIn, EventSignedUp)
	out.Message = accountCreated(id.Email)
	return out
}

// ResendVerification mails a new confirmation link to the signed-in address.
func (c *Controller) ResendVerification(ctx context.Context) Outcome {
	s := c.m.Snapshot()
	if s.Identity == nil {
		return Outcome{Screen: ScreenSignIn}
	}
	if err := c.m.ResendVerificationEmail(ctx, s.Identity.Email); err != nil {
		return c.fail(ScreenVerifyEmail, err)
	}
	return Outcome{Screen: ScreenVerifyEmail, Message: msgVerificationSent}
}

// AwaitVerification polls the provider every PollInterval until the email
// is verified, the session is gone, or ctx ends. onTick, when set, is called
// after every unsuccessful poll.
func (c *Controller) AwaitVerification(ctx context.Context, onTick func(attempt int)) (Outcome, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if !c.m.Snapshot().Authenticated {
			return Outcome{Screen: ScreenSignIn}, nil
		}
		verified, err := c.m.IsEmailVerified(ctx)
		if err != nil {
			c.logger.Debug("onboarding.verification poll failed", slog.Int("attempt", attempt), slog.Any("error", err))
		}
		if verified {
			return c.advance(ctx, ScreenVerifyEmail, EventEmailVerified), nil
		}
		if onTick != nil {
			onTick(attempt)
		}
		select {
		case <-ctx.Done():
			return Outcome{Screen: ScreenVerifyEmail}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SubmitProfile stores the profile form. A PIN entered on the form must be
// confirmed; once stored it counts as proven for this session.
func (c *Controller) SubmitProfile(ctx context.Context, fields auth.ProfileFields, pinValue, confirm string) Outcome {
	fields.PIN = pinValue
	if pinValue != "" {
		if err := pin.Confirm(pinValue, confirm); err != nil {
			e := &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonPINMismatch, Op: "create_profile", Err: err}
			return Outcome{Screen: ScreenCreateProfile, Err: e, Message: Message(e)}
		}
	}
	if strings.TrimSpace(fields.FullName) == "" {
		e := &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonMissingField, Op: "create_profile"}
		return Outcome{Screen: ScreenCreateProfile, Err: e, Message: "Full name is required."}
	}

	record, err := c.m.CreateProfile(ctx, fields)
	if err != nil {
		out := c.fail(ScreenCreateProfile, err)
		if auth.IsReason(err, auth.ReasonPINShape) {
			out.Message = pinShape(c.m.PINPolicy().ProfileLength)
		}
		return out
	}
	if record.HasPIN() {
		c.mark(ctx)
	}
	return c.advance(ctx, ScreenCreateProfile, EventProfileCreated)
}

// SubmitAddAccount finishes the linked-account step. Linking itself is not
// stored; the step only decides whether a PIN still has to be created.
func (c *Controller) SubmitAddAccount(ctx context.Context, skip bool) Outcome {
	status, err := c.m.CheckUserStatus(ctx)
	if err != nil {
		return c.fail(ScreenAddAccount, err)
	}
	c.logger.Info("onboarding.add_account", slog.Bool("skipped", skip), slog.Bool("has_pin", status.HasPIN))
	if !status.HasPIN {
		return c.advance(ctx, ScreenAddAccount, EventPinRequired)
	}
	return c.advance(ctx, ScreenAddAccount, EventAccountsDone)
}

// SubmitCreatePin stores a confirmed PIN and marks it proven.
func (c *Controller) SubmitCreatePin(ctx context.Context, value, confirm string) Outcome {
	if err := pin.Confirm(value, confirm); err != nil {
		e := &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonPINMismatch, Op: "create_pin", Err: err}
		return Outcome{Screen: ScreenCreatePin, Err: e, Message: Message(e)}
	}
	if _, err := c.m.CreatePin(ctx, value); err != nil {
		out := c.fail(ScreenCreatePin, err)
		if auth.IsReason(err, auth.ReasonPINShape) {
			out.Message = pinShape(c.m.PINPolicy().StandaloneLength)
		}
		if auth.IsReason(err, auth.ReasonNoProfile) {
			out.Screen = ScreenCreateProfile
		}
		return out
	}
	c.mark(ctx)
	return c.advance(ctx, ScreenCreatePin, EventPinCreated)
}

// SubmitEnterPin checks a PIN. Consecutive mismatches are counted per
// browser session; reaching the limit signs the session out.
func (c *Controller) SubmitEnterPin(ctx context.Context, value string) Outcome {
	ok, err := c.m.VerifyPin(ctx, value)
	if err != nil {
		if auth.IsKind(err, auth.KindNotFound) {
			out := c.fail(ScreenCreatePin, err)
			if auth.IsReason(err, auth.ReasonNoProfile) {
				out.Screen = ScreenCreateProfile
			}
			return out
		}
		if auth.IsReason(err, auth.ReasonNotAuthenticated) {
			return c.fail(ScreenSignIn, err)
		}
		return c.fail(ScreenEnterPin, err)
	}

	if ok {
		if err := c.m.ResetPinFailures(ctx); err != nil {
			c.logger.Warn("onboarding.pin failures reset failed", slog.Any("error", err))
		}
		if err := c.m.MarkPinVerified(ctx); err != nil {
			return c.fail(ScreenEnterPin, err)
		}
		return c.advance(ctx, ScreenEnterPin, EventPinMatched)
	}

	failures, err := c.m.RecordPinFailure(ctx)
	if err != nil {
		return c.fail(ScreenEnterPin, err)
	}
	remaining := c.cfg.MaxPinAttempts - failures
	if remaining > 0 {
		e := &auth.Error{Kind: auth.KindValidation, Reason: auth.ReasonPINMismatch, Op: "verify_pin"}
		return Outcome{
			Screen:            ScreenEnterPin,
			Err:               e,
			Message:           incorrectPIN(remaining),
			AttemptsRemaining: remaining,
		}
	}

	c.logger.Warn("onboarding.pin lockout", slog.Int("failures", failures))
	if err := c.m.SignOut(ctx); err != nil {
		c.logger.Warn("onboarding.lockout sign-out failed", slog.Any("error", err))
	}
	next, _ := Transition(ScreenEnterPin, EventLockedOut)
	return Outcome{Screen: next, Message: msgLockedOut}
}

// SignOut ends the session from any screen.
func (c *Controller) SignOut(ctx context.Context) Outcome {
	next, _ := Transition(ScreenAllowed, EventSignedOut)
	if err := c.m.SignOut(ctx); err != nil {
		return c.fail(next, err)
	}
	return Outcome{Screen: next}
}

func (c *Controller) mark(ctx context.Context) {
	if err := c.m.MarkPinVerified(ctx); err != nil {
		c.logger.Warn("onboarding.pin marker not stored", slog.Any("error", err))
	}
}
