package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/congo-pay/accessgate/internal/pin"
	"github.com/congo-pay/accessgate/internal/profile"
)

// ProfileFields is the profile form. PIN is optional.
type ProfileFields struct {
	FullName       string
	Phone          string
	DateOfBirth    *time.Time
	Occupation     string
	MonthlyIncome  *float64
	FinancialGoals string
	PIN            string
}

// UserStatus summarises the onboarding records of the signed-in identity.
type UserStatus struct {
	HasProfile bool `json:"has_profile"`
	HasPIN     bool `json:"has_pin"`
}

// CreateProfile stores the profile of a verified identity. When a PIN is
// supplied it is attached best-effort: a failure is logged and the profile
// is returned without one.
func (m *Manager) CreateProfile(ctx context.Context, fields ProfileFields) (profile.Record, error) {
	const op = "create_profile"
	id, err := m.signedIn(op)
	if err != nil {
		return profile.Record{}, err
	}
	verified, err := m.IsEmailVerified(ctx)
	if err != nil {
		return profile.Record{}, err
	}
	if !verified {
		return profile.Record{}, preconditionError(op, ReasonEmailNotVerified)
	}
	if fields.PIN != "" {
		if err := pin.Validate(fields.PIN, m.opts.PINPolicy.ProfileLength); err != nil {
			return profile.Record{}, validationError(op, ReasonPINShape, err)
		}
	}

	now := m.opts.Now().UTC()
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	record, err := m.profiles.Insert(callCtx, profile.Record{
		IdentityID:     id.ID,
		FullName:       fields.FullName,
		Phone:          fields.Phone,
		DateOfBirth:    fields.DateOfBirth,
		Occupation:     fields.Occupation,
		MonthlyIncome:  fields.MonthlyIncome,
		FinancialGoals: fields.FinancialGoals,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if errors.Is(err, profile.ErrExists) {
		return profile.Record{}, preconditionError(op, ReasonProfileExists)
	}
	if err != nil {
		return profile.Record{}, persistenceError(op, err)
	}
	m.logger.Info("auth.profile created", slog.String("identity_id", id.ID))

	if fields.PIN == "" {
		return record, nil
	}
	withPIN, err := m.attachPIN(callCtx, id.ID, fields.PIN)
	if err != nil {
		m.logger.Warn("auth.profile pin not stored", slog.String("identity_id", id.ID), slog.Any("error", err))
		return record, nil
	}
	return withPIN, nil
}

// CreatePin attaches a PIN of the standalone length to an existing profile.
func (m *Manager) CreatePin(ctx context.Context, value string) (profile.Record, error) {
	const op = "create_pin"
	id, err := m.signedIn(op)
	if err != nil {
		return profile.Record{}, err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	if _, err := m.profiles.Get(callCtx, id.ID); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return profile.Record{}, preconditionError(op, ReasonNoProfile)
		}
		return profile.Record{}, persistenceError(op, err)
	}
	if err := pin.Validate(value, m.opts.PINPolicy.StandaloneLength); err != nil {
		return profile.Record{}, validationError(op, ReasonPINShape, err)
	}
	record, err := m.attachPIN(callCtx, id.ID, value)
	if err != nil {
		return profile.Record{}, persistenceError(op, err)
	}
	m.logger.Info("auth.pin created", slog.String("identity_id", id.ID))
	return record, nil
}

func (m *Manager) attachPIN(ctx context.Context, identityID, value string) (profile.Record, error) {
	digest, err := m.digester.Digest(value)
	if err != nil {
		return profile.Record{}, err
	}
	now := m.opts.Now().UTC()
	return m.profiles.Update(ctx, identityID, profile.Patch{PINDigest: &digest, PINCreatedAt: &now})
}

// VerifyPin compares value with the stored digest. A mismatch is reported
// as false, not as an error.
func (m *Manager) VerifyPin(ctx context.Context, value string) (bool, error) {
	const op = "verify_pin"
	id, err := m.signedIn(op)
	if err != nil {
		return false, err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	record, err := m.profiles.Get(callCtx, id.ID)
	if errors.Is(err, profile.ErrNotFound) {
		return false, &Error{Kind: KindNotFound, Reason: ReasonNoProfile, Op: op}
	}
	if err != nil {
		return false, persistenceError(op, err)
	}
	if !record.HasPIN() {
		return false, &Error{Kind: KindNotFound, Reason: ReasonNoPIN, Op: op}
	}
	return m.digester.Matches(record.PINDigest, value), nil
}

// CheckUserStatus reports whether the signed-in identity has a profile and a
// PIN. Without an identity both are false.
func (m *Manager) CheckUserStatus(ctx context.Context) (UserStatus, error) {
	s := m.cell.Snapshot()
	if s.Identity == nil {
		return UserStatus{}, nil
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	record, err := m.profiles.Get(callCtx, s.Identity.ID)
	if errors.Is(err, profile.ErrNotFound) {
		return UserStatus{}, nil
	}
	if err != nil {
		return UserStatus{}, persistenceError("check_user_status", err)
	}
	return UserStatus{HasProfile: true, HasPIN: record.HasPIN()}, nil
}
