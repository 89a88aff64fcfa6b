package identity

import "errors"

var (
	ErrInvalidLogin      = errors.New("invalid login credentials")
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already registered")
	ErrWeakPassword      = errors.New("password does not meet policy")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrNoSession         = errors.New("no active session")
)
