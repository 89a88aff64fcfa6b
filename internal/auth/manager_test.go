package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/auth/authtest"
	"github.com/congo-pay/accessgate/internal/directory"
	"github.com/congo-pay/accessgate/internal/identity"
	"github.com/congo-pay/accessgate/internal/notification"
	"github.com/congo-pay/accessgate/internal/pin"
)

type stubClient struct {
	identity.Client
	sessionErr   error
	signOutErr   error
	blockOnLogin bool
}

func (s *stubClient) CurrentSession(ctx context.Context) (*identity.ProviderSession, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	return s.Client.CurrentSession(ctx)
}

func (s *stubClient) SignOut(ctx context.Context) error {
	if s.signOutErr != nil {
		return s.signOutErr
	}
	return s.Client.SignOut(ctx)
}

func (s *stubClient) Authenticate(ctx context.Context, email, password string) (identity.ProviderSession, error) {
	if s.blockOnLogin {
		<-ctx.Done()
		return identity.ProviderSession{}, ctx.Err()
	}
	return s.Client.Authenticate(ctx, email, password)
}

type brokenDigester struct{ pin.Digester }

func (brokenDigester) Digest(string) (string, error) { return "", errors.New("digest unavailable") }

func newManager(t *testing.T, f *authtest.Fixture, client identity.Client, timeout time.Duration) *auth.Manager {
	t.Helper()
	m := auth.NewManager(client, f.Profiles, f.Directory, f.Digester, auth.Options{Scope: "stub-scope", Timeout: timeout})
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func wantError(t *testing.T, err error, kind auth.Kind, reason auth.Reason) {
	t.Helper()
	var e *auth.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *auth.Error, got %v", err)
	}
	if e.Kind != kind || e.Reason != reason {
		t.Fatalf("expected %s/%s, got %s/%s (%v)", kind, reason, e.Kind, e.Reason, err)
	}
}

func TestBootstrapSettlesOnce(t *testing.T) {
	f := authtest.New(t)
	s := f.Manager.Snapshot()
	if s.Loading || s.Authenticated || s.Identity != nil {
		t.Fatalf("expected settled signed-out session, got %+v", s)
	}
	if f.Manager.Phase() != auth.PhaseUnauthenticated {
		t.Fatalf("unexpected phase %s", f.Manager.Phase())
	}
	wantError(t, f.Manager.Bootstrap(context.Background()), auth.KindPrecondition, auth.ReasonAlreadyStarted)
}

func TestNewManagerStartsUninitialized(t *testing.T) {
	f := authtest.New(t)
	m := auth.NewManager(f.Provider.NewClient(), f.Profiles, f.Directory, f.Digester, auth.Options{Scope: "fresh"})
	if m.Phase() != auth.PhaseUninitialized || !m.Snapshot().Loading {
		t.Fatalf("expected uninitialized loading session, got %s %+v", m.Phase(), m.Snapshot())
	}
}

func TestBootstrapPurgesLegacyFlags(t *testing.T) {
	f := authtest.New(t)
	for _, flag := range directory.LegacyFlags {
		f.Directory.SetLegacyFlag("legacy-scope", flag, "true")
	}
	f.NewManager(t, "legacy-scope")
	for _, flag := range directory.LegacyFlags {
		if _, ok := f.Directory.LegacyFlag("legacy-scope", flag); ok {
			t.Fatalf("flag %s survived bootstrap", flag)
		}
	}
}

func TestBootstrapAdoptsExistingSession(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	client := f.Provider.NewClient()
	t.Cleanup(client.Close)
	if _, err := client.CreateAccount(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := client.Authenticate(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	m := newManager(t, f, client, time.Second)
	s := m.Snapshot()
	if !s.Authenticated || s.Identity == nil || s.Identity.Email != "a@x.com" {
		t.Fatalf("expected adopted session, got %+v", s)
	}
}

func TestBootstrapProviderFailureResolvesSignedOut(t *testing.T) {
	f := authtest.New(t)
	client := &stubClient{Client: f.Provider.NewClient(), sessionErr: errors.New("provider down")}
	m := newManager(t, f, client, time.Second)
	if s := m.Snapshot(); s.Loading || s.Authenticated {
		t.Fatalf("expected signed-out session, got %+v", s)
	}
}

func TestSignUpDoesNotAuthenticate(t *testing.T) {
	f := authtest.New(t)
	id, err := f.Manager.SignUp(context.Background(), "a@x.com", authtest.Password, map[string]string{"display_name": "Ada"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if id.Email != "a@x.com" || id.EmailVerified() {
		t.Fatalf("unexpected identity %+v", id)
	}
	if f.Manager.Snapshot().Authenticated {
		t.Fatal("sign up must not authenticate the session")
	}

	_, err = f.Manager.SignUp(context.Background(), "a@x.com", authtest.Password, nil)
	wantError(t, err, auth.KindCredential, auth.ReasonAccountExists)
	_, err = f.Manager.SignUp(context.Background(), "b@x.com", "short", nil)
	wantError(t, err, auth.KindCredential, auth.ReasonWeakPassword)
}

func TestSignInClassifiesFailures(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	if _, err := f.Manager.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	_, err := f.Manager.SignIn(ctx, "a@x.com", "Wrongpass1")
	wantError(t, err, auth.KindCredential, auth.ReasonInvalidLogin)
	_, err = f.Manager.SignIn(ctx, "nobody@x.com", authtest.Password)
	wantError(t, err, auth.KindCredential, auth.ReasonUnknownUser)
	if f.Manager.Snapshot().Authenticated {
		t.Fatal("failed sign-in changed the session")
	}
}

func TestSignInRequiresConfirmationWhenConfigured(t *testing.T) {
	f := authtest.NewWithConfig(t, identity.ProviderConfig{ConfirmBeforeSignIn: true})
	ctx := context.Background()
	if _, err := f.Manager.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	_, err := f.Manager.SignIn(ctx, "a@x.com", authtest.Password)
	wantError(t, err, auth.KindCredential, auth.ReasonEmailNotConfirmed)

	f.Confirm(t, "a@x.com")
	if _, err := f.Manager.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in after confirm: %v", err)
	}
}

func TestSignInTimeoutIsRetryable(t *testing.T) {
	f := authtest.New(t)
	client := &stubClient{Client: f.Provider.NewClient(), blockOnLogin: true}
	m := newManager(t, f, client, 10*time.Millisecond)

	_, err := m.SignIn(context.Background(), "a@x.com", authtest.Password)
	wantError(t, err, auth.KindCredential, auth.ReasonTimeout)
	if !auth.AsError(err).Retryable {
		t.Fatal("timeout should be retryable")
	}
}

func TestSignOutClearsSessionAndMarker(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	f.WithProfile(t, "a@x.com", "123456")

	if err := f.Manager.MarkPinVerified(ctx); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok, _ := f.Manager.IsPinVerified(ctx); !ok {
		t.Fatal("expected marker after mark")
	}
	if err := f.Manager.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if s := f.Manager.Snapshot(); s.Authenticated || s.Identity != nil {
		t.Fatalf("expected cleared session, got %+v", s)
	}

	if _, err := f.Manager.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if ok, err := f.Manager.IsPinVerified(ctx); err != nil || ok {
		t.Fatalf("marker must not survive sign-out, got %v %v", ok, err)
	}
}

func TestSignInClearsStaleMarker(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	id := f.WithProfile(t, "a@x.com", "123456")
	if err := f.Directory.MarkPinVerified(ctx, f.Manager.Scope(), id.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, err := f.Manager.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if ok, _ := f.Manager.IsPinVerified(ctx); ok {
		t.Fatal("fresh sign-in must require the PIN again")
	}
}

func TestSignOutProviderFailureStillClears(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	client := &stubClient{Client: f.Provider.NewClient(), signOutErr: errors.New("network")}
	m := newManager(t, f, client, time.Second)
	if _, err := m.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := m.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if err := m.SignOut(ctx); !auth.IsKind(err, auth.KindCredential) {
		t.Fatalf("expected credential error, got %v", err)
	}
	if m.Snapshot().Authenticated {
		t.Fatal("local session must be cleared regardless of provider result")
	}
}

func TestIsEmailVerifiedFollowsConfirmation(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	f.SignedIn(t, "a@x.com", false)

	for i := 0; i < 2; i++ {
		ok, err := f.Manager.IsEmailVerified(ctx)
		if err != nil || ok {
			t.Fatalf("expected unverified, got %v %v", ok, err)
		}
	}
	f.Confirm(t, "a@x.com")
	ok, err := f.Manager.IsEmailVerified(ctx)
	if err != nil || !ok {
		t.Fatalf("expected verified after confirm, got %v %v", ok, err)
	}
	if !f.Manager.Snapshot().Identity.EmailVerified() {
		t.Fatal("verified identity should be cached")
	}
}

func TestIsEmailVerifiedWithoutIdentity(t *testing.T) {
	f := authtest.New(t)
	if ok, err := f.Manager.IsEmailVerified(context.Background()); ok || err != nil {
		t.Fatalf("expected false without identity, got %v %v", ok, err)
	}
}

func TestCreateProfilePreconditions(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()

	_, err := f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada"})
	wantError(t, err, auth.KindPrecondition, auth.ReasonNotAuthenticated)

	f.SignedIn(t, "a@x.com", false)
	_, err = f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada"})
	wantError(t, err, auth.KindPrecondition, auth.ReasonEmailNotVerified)

	f.Confirm(t, "a@x.com")
	_, err = f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada", PIN: "12a4"})
	wantError(t, err, auth.KindValidation, auth.ReasonPINShape)
	_, err = f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada", PIN: "123456"})
	wantError(t, err, auth.KindValidation, auth.ReasonPINShape)

	record, err := f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada", PIN: "1234"})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if !record.HasPIN() || record.PINDigest == "1234" || record.PINCreatedAt == nil {
		t.Fatalf("expected digested pin, got %+v", record)
	}

	_, err = f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada"})
	wantError(t, err, auth.KindPrecondition, auth.ReasonProfileExists)
}

func TestCreateProfilePINIsBestEffort(t *testing.T) {
	f := authtest.New(t)
	f.Digester = brokenDigester{}
	m := auth.NewManager(f.Provider.NewClient(), f.Profiles, f.Directory, f.Digester, auth.Options{Scope: "broken"})
	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(m.Close)
	ctx := context.Background()
	if _, err := m.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	f.Confirm(t, "a@x.com")
	if _, err := m.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	record, err := m.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada", PIN: "1234"})
	if err != nil {
		t.Fatalf("profile should be stored without pin: %v", err)
	}
	if record.HasPIN() {
		t.Fatal("pin should not be attached")
	}
	status, err := m.CheckUserStatus(ctx)
	if err != nil || !status.HasProfile || status.HasPIN {
		t.Fatalf("unexpected status %+v %v", status, err)
	}
}

func TestCreatePin(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	f.SignedIn(t, "a@x.com", true)

	_, err := f.Manager.CreatePin(ctx, "123456")
	wantError(t, err, auth.KindPrecondition, auth.ReasonNoProfile)

	if _, err := f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	_, err = f.Manager.CreatePin(ctx, "1234")
	wantError(t, err, auth.KindValidation, auth.ReasonPINShape)

	record, err := f.Manager.CreatePin(ctx, "123456")
	if err != nil {
		t.Fatalf("create pin: %v", err)
	}
	if !record.HasPIN() {
		t.Fatal("expected pin digest")
	}
}

func TestVerifyPin(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	f.SignedIn(t, "a@x.com", true)

	_, err := f.Manager.VerifyPin(ctx, "123456")
	wantError(t, err, auth.KindNotFound, auth.ReasonNoProfile)

	if _, err := f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	_, err = f.Manager.VerifyPin(ctx, "123456")
	wantError(t, err, auth.KindNotFound, auth.ReasonNoPIN)

	if _, err := f.Manager.CreatePin(ctx, "123456"); err != nil {
		t.Fatalf("create pin: %v", err)
	}
	if ok, err := f.Manager.VerifyPin(ctx, "654321"); ok || err != nil {
		t.Fatalf("mismatch should be false without error, got %v %v", ok, err)
	}
	if ok, err := f.Manager.VerifyPin(ctx, "123456"); !ok || err != nil {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
}

func TestCheckUserStatus(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()

	status, err := f.Manager.CheckUserStatus(ctx)
	if err != nil || status != (auth.UserStatus{}) {
		t.Fatalf("expected empty status without identity, got %+v %v", status, err)
	}
	f.SignedIn(t, "a@x.com", true)
	if status, _ = f.Manager.CheckUserStatus(ctx); status != (auth.UserStatus{}) {
		t.Fatalf("expected no profile, got %+v", status)
	}
	if _, err := f.Manager.CreateProfile(ctx, auth.ProfileFields{FullName: "Ada"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if status, _ = f.Manager.CheckUserStatus(ctx); !status.HasProfile || status.HasPIN {
		t.Fatalf("expected profile without pin, got %+v", status)
	}
	if _, err := f.Manager.CreatePin(ctx, "123456"); err != nil {
		t.Fatalf("create pin: %v", err)
	}
	if status, _ = f.Manager.CheckUserStatus(ctx); !status.HasProfile || !status.HasPIN {
		t.Fatalf("expected profile with pin, got %+v", status)
	}
}

func TestPinFailureCounter(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()

	_, err := f.Manager.RecordPinFailure(ctx)
	wantError(t, err, auth.KindPrecondition, auth.ReasonNotAuthenticated)

	f.SignedIn(t, "a@x.com", true)
	for want := 1; want <= 3; want++ {
		n, err := f.Manager.RecordPinFailure(ctx)
		if err != nil || n != want {
			t.Fatalf("expected %d failures, got %d %v", want, n, err)
		}
	}
	if err := f.Manager.ResetPinFailures(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := f.Manager.RecordPinFailure(ctx); n != 1 {
		t.Fatalf("expected counter restart, got %d", n)
	}
}

func TestMarkersAreScopedPerBrowserSession(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	f.WithProfile(t, "a@x.com", "123456")
	if err := f.Manager.MarkPinVerified(ctx); err != nil {
		t.Fatalf("mark: %v", err)
	}

	other := f.NewManager(t, "other-scope")
	if _, err := other.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if ok, _ := other.IsPinVerified(ctx); ok {
		t.Fatal("marker leaked across browser sessions")
	}
	if ok, _ := f.Manager.IsPinVerified(ctx); !ok {
		t.Fatal("original scope lost its marker")
	}
}

func TestPasswordRecovery(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	if _, err := f.Manager.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := f.Manager.ResetPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := f.Manager.ResetPassword(ctx, "nobody@x.com"); err != nil {
		t.Fatalf("unknown address should succeed silently: %v", err)
	}
	msg, ok := f.Outbox.Last(notification.KindPasswordReset, "a@x.com")
	if !ok {
		t.Fatal("expected recovery mail")
	}

	err := f.Manager.UpdatePassword(ctx, "Newpass123")
	wantError(t, err, auth.KindPrecondition, auth.ReasonNotAuthenticated)

	if _, err := f.Manager.RecoverSession(ctx, authtest.Token(t, msg.Link)); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !f.Manager.Snapshot().Authenticated {
		t.Fatal("recovery should authenticate the session")
	}
	if err := f.Manager.UpdatePassword(ctx, "Newpass123"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	if err := f.Manager.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := f.Manager.SignIn(ctx, "a@x.com", "Newpass123"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}

	_, err = f.Manager.RecoverSession(ctx, "garbage")
	wantError(t, err, auth.KindCredential, auth.ReasonInvalidToken)
}

func TestResendVerification(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()
	if _, err := f.Manager.SignUp(ctx, "a@x.com", authtest.Password, nil); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	before := f.Outbox.Count()
	if err := f.Manager.ResendVerificationEmail(ctx, "a@x.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if f.Outbox.Count() != before+1 {
		t.Fatal("expected another confirmation mail")
	}
	err := f.Manager.ResendVerificationEmail(ctx, "nobody@x.com")
	wantError(t, err, auth.KindCredential, auth.ReasonUnknownUser)
}

func TestSubscribersSeeEveryProducer(t *testing.T) {
	f := authtest.New(t)
	ctx := context.Background()

	var mu sync.Mutex
	var producers []auth.Producer
	unsubscribe := f.Manager.Subscribe(func(s auth.Session, p auth.Producer) {
		if s.Authenticated && s.Identity == nil {
			t.Errorf("observed authenticated session without identity from %s", p)
		}
		mu.Lock()
		producers = append(producers, p)
		mu.Unlock()
	})

	f.SignedIn(t, "a@x.com", false)
	if err := f.Manager.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	unsubscribe()
	if _, err := f.Manager.SignIn(ctx, "a@x.com", authtest.Password); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	seen := map[auth.Producer]bool{}
	for _, p := range producers {
		seen[p] = true
	}
	if !seen[auth.ProducerProviderEvent] || !seen[auth.ProducerSignIn] || !seen[auth.ProducerSignOut] {
		t.Fatalf("missing producers in %v", producers)
	}
	if producers[len(producers)-1] != auth.ProducerSignOut {
		t.Fatalf("listener ran after unsubscribe: %v", producers)
	}
}
