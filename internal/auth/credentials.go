package auth

import (
	"context"
	"log/slog"

	"github.com/congo-pay/accessgate/internal/identity"
)

// SignUp registers an account. It does not sign the scope in.
func (m *Manager) SignUp(ctx context.Context, email, password string, seed map[string]string) (identity.Identity, error) {
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	id, err := m.client.CreateAccount(callCtx, email, password, seed)
	if err != nil {
		return identity.Identity{}, credentialError("sign_up", err)
	}
	m.logger.Info("auth.sign_up", slog.String("identity_id", id.ID))
	return id, nil
}

// SignIn authenticates with a password. The PIN marker of the identity is
// cleared before the session is published, so every fresh sign-in must
// prove the PIN again.
func (m *Manager) SignIn(ctx context.Context, email, password string) (identity.Identity, error) {
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	session, err := m.client.Authenticate(callCtx, email, password)
	if err != nil {
		e := credentialError("sign_in", err)
		m.logger.Info("auth.sign_in rejected", slog.String("reason", string(e.Reason)))
		return identity.Identity{}, e
	}
	m.forgetPIN(session.Identity.ID)
	m.cell.set(fromProvider(&session), ProducerSignIn)
	m.logger.Info("auth.sign_in", slog.String("identity_id", session.Identity.ID))
	return session.Identity, nil
}

// SignOut ends the provider session. The local session and PIN marker are
// cleared even when the provider call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	prev := m.cell.Snapshot().Identity

	callCtx, cancel := m.bound(ctx)
	defer cancel()
	err := m.client.SignOut(callCtx)

	if prev != nil {
		m.forgetPIN(prev.ID)
	}
	m.cell.set(Session{}, ProducerSignOut)
	if err != nil {
		m.logger.Warn("auth.sign_out provider failed", slog.Any("error", err))
		return credentialError("sign_out", err)
	}
	return nil
}

// ResetPassword asks the provider to mail a recovery link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.client.RequestPasswordReset(callCtx, email, m.opts.ResetRedirect); err != nil {
		return credentialError("reset_password", err)
	}
	return nil
}

// UpdatePassword changes the signed-in user's password.
func (m *Manager) UpdatePassword(ctx context.Context, newPassword string) error {
	if _, err := m.signedIn("update_password"); err != nil {
		return err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.client.SetNewPassword(callCtx, newPassword); err != nil {
		return credentialError("update_password", err)
	}
	return nil
}

// ResendVerificationEmail mails a fresh confirmation link to email.
func (m *Manager) ResendVerificationEmail(ctx context.Context, email string) error {
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.client.ResendVerification(callCtx, email); err != nil {
		return credentialError("resend_verification", err)
	}
	return nil
}

// RecoverSession signs the scope in with a mailed recovery token so the
// user can set a new password.
func (m *Manager) RecoverSession(ctx context.Context, token string) (identity.Identity, error) {
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	session, err := m.client.ExchangeRecoveryToken(callCtx, token)
	if err != nil {
		return identity.Identity{}, credentialError("recover_session", err)
	}
	m.cell.set(fromProvider(&session), ProducerRecovery)
	return session.Identity, nil
}

// IsEmailVerified reports whether the signed-in address is verified. A
// cached positive answer is trusted; a negative one is always re-checked
// with the provider and never cached.
func (m *Manager) IsEmailVerified(ctx context.Context) (bool, error) {
	s := m.cell.Snapshot()
	if s.Identity == nil {
		return false, nil
	}
	if s.Identity.EmailVerified() {
		return true, nil
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	fresh, err := m.client.FreshUser(callCtx)
	if err != nil {
		return false, credentialError("is_email_verified", err)
	}
	if !fresh.EmailVerified() {
		return false, nil
	}
	m.cell.updateIdentity(fresh, ProducerVerification)
	return true, nil
}
