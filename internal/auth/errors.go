package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/congo-pay/accessgate/internal/identity"
)

// Kind is the error taxonomy surfaced to the onboarding flow.
type Kind string

const (
	KindCredential   Kind = "credential"
	KindPrecondition Kind = "precondition"
	KindValidation   Kind = "validation"
	KindPersistence  Kind = "persistence"
	KindNotFound     Kind = "not_found"
)

// Reason refines a Kind so screens can pick their copy and next action.
type Reason string

const (
	ReasonInvalidLogin      Reason = "invalid_login"
	ReasonEmailNotConfirmed Reason = "email_not_confirmed"
	ReasonUnknownUser       Reason = "unknown_user"
	ReasonAccountExists     Reason = "account_exists"
	ReasonWeakPassword      Reason = "weak_password"
	ReasonInvalidEmail      Reason = "invalid_email"
	ReasonInvalidToken      Reason = "invalid_token"
	ReasonNoSession         Reason = "no_session"
	ReasonTimeout           Reason = "timeout"
	ReasonProvider          Reason = "provider"

	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonEmailNotVerified Reason = "email_not_verified"
	ReasonNoProfile        Reason = "no_profile"
	ReasonProfileExists    Reason = "profile_exists"
	ReasonAlreadyStarted   Reason = "already_bootstrapped"

	ReasonPINShape         Reason = "pin_shape"
	ReasonPINMismatch      Reason = "pin_mismatch"
	ReasonPasswordMismatch Reason = "password_mismatch"
	ReasonMissingField     Reason = "missing_field"

	ReasonNoPIN Reason = "no_pin"
	ReasonStore Reason = "store"
)

// Error is the only error type returned by Manager methods.
type Error struct {
	Kind      Kind
	Reason    Reason
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err. Any other error is reported as an
// unclassified provider failure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindCredential, Reason: ReasonProvider, Op: "unknown", Err: err}
}

// IsKind reports whether err is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsReason reports whether err is an *Error with reason.
func IsReason(err error, reason Reason) bool {
	var e *Error
	return errors.As(err, &e) && e.Reason == reason
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func credentialError(op string, err error) *Error {
	e := &Error{Kind: KindCredential, Op: op, Err: err}
	switch {
	case isTimeout(err):
		e.Reason, e.Retryable = ReasonTimeout, true
	case errors.Is(err, identity.ErrInvalidLogin):
		e.Reason = ReasonInvalidLogin
	case errors.Is(err, identity.ErrEmailNotConfirmed):
		e.Reason = ReasonEmailNotConfirmed
	case errors.Is(err, identity.ErrUserNotFound):
		e.Reason = ReasonUnknownUser
	case errors.Is(err, identity.ErrUserExists):
		e.Reason = ReasonAccountExists
	case errors.Is(err, identity.ErrWeakPassword):
		e.Reason = ReasonWeakPassword
	case errors.Is(err, identity.ErrInvalidEmail):
		e.Reason = ReasonInvalidEmail
	case errors.Is(err, identity.ErrInvalidToken):
		e.Reason = ReasonInvalidToken
	case errors.Is(err, identity.ErrNoSession):
		e.Reason = ReasonNoSession
	default:
		e.Reason = ReasonProvider
	}
	return e
}

func persistenceError(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Reason: ReasonStore, Op: op, Retryable: true, Err: err}
}

func preconditionError(op string, reason Reason) *Error {
	return &Error{Kind: KindPrecondition, Reason: reason, Op: op}
}

func validationError(op string, reason Reason, err error) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Op: op, Err: err}
}
