package onboarding

import (
	"fmt"

	"github.com/congo-pay/accessgate/internal/auth"
)

const (
	msgLockedOut         = "Too many failed attempts. For security, you have been signed out."
	msgInvalidLogin      = "Invalid email or password."
	msgEmailNotConfirmed = "Please confirm your email before signing in."
	msgUnknownUser       = "No account found for this email. Sign up to continue."
	msgAccountExists     = "An account with this email already exists. Sign in instead."
	msgWeakPassword      = "Password must be longer and contain at least one letter and one number."
	msgInvalidEmail      = "Please enter a valid email address."
	msgTimeout           = "The request timed out. Please try again."
	msgMissingFields     = "Email and password are required."
	msgPasswordMismatch  = "Passwords do not match."
	msgPINMismatch       = "PINs do not match."
	msgNoPIN             = "No PIN is set for this account. Create one to continue."
	msgVerificationSent  = "Verification email sent. Please check your inbox."
	msgProfileExists     = "Your profile already exists."
	msgNotVerified       = "Please verify your email before continuing."
	msgPINShape          = "PIN must contain only numbers."
	msgGeneric           = "Something went wrong. Please try again."
)

func accountCreated(email string) string {
	return fmt.Sprintf("Account created successfully! Please check your email (%s) for a verification link.", email)
}

func accountCreatedSignIn(email string) string {
	return fmt.Sprintf("Account created successfully! Please check your email (%s) for a verification link. After verifying your email, you can sign in.", email)
}

func incorrectPIN(remaining int) string {
	if remaining == 1 {
		return "Incorrect PIN. 1 attempt remaining."
	}
	return fmt.Sprintf("Incorrect PIN. %d attempts remaining.", remaining)
}

func pinShape(length int) string {
	return fmt.Sprintf("PIN must be exactly %d digits.", length)
}

// Message returns the user-facing copy for err.
func Message(err *auth.Error) string {
	if err == nil {
		return ""
	}
	switch err.Reason {
	case auth.ReasonInvalidLogin:
		return msgInvalidLogin
	case auth.ReasonEmailNotConfirmed:
		return msgEmailNotConfirmed
	case auth.ReasonUnknownUser:
		return msgUnknownUser
	case auth.ReasonAccountExists:
		return msgAccountExists
	case auth.ReasonWeakPassword:
		return msgWeakPassword
	case auth.ReasonInvalidEmail:
		return msgInvalidEmail
	case auth.ReasonTimeout:
		return msgTimeout
	case auth.ReasonPasswordMismatch:
		return msgPasswordMismatch
	case auth.ReasonPINMismatch:
		return msgPINMismatch
	case auth.ReasonNoPIN:
		return msgNoPIN
	case auth.ReasonProfileExists:
		return msgProfileExists
	case auth.ReasonEmailNotVerified:
		return msgNotVerified
	case auth.ReasonPINShape:
		return msgPINShape
	}
	return msgGeneric
}
