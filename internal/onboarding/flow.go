// Package onboarding sequences the remediation screens a user walks through
// before reaching protected pages.
package onboarding

import "github.com/congo-pay/accessgate/internal/access"

// Screen is an onboarding step.
type Screen string

const (
	ScreenSignIn        Screen = "sign_in"
	ScreenVerifyEmail   Screen = "verify_email"
	ScreenCreateProfile Screen = "create_profile"
	ScreenAddAccount    Screen = "add_account"
	ScreenCreatePin     Screen = "create_pin"
	ScreenEnterPin      Screen = "enter_pin"
	ScreenAllowed       Screen = "allowed"
)

// Event is a successful submission or an outside fact that moves the flow.
type Event string

const (
	EventSignedUp       Event = "signed_up"
	EventEmailVerified  Event = "email_verified"
	EventProfileCreated Event = "profile_created"
	EventAccountsDone   Event = "accounts_done"
	EventPinRequired    Event = "pin_required"
	EventPinCreated     Event = "pin_created"
	EventPinMatched     Event = "pin_matched"
	EventLockedOut      Event = "locked_out"
	EventSignedOut      Event = "signed_out"
)

type edge struct {
	from  Screen
	event Event
}

var transitions = map[edge]Screen{
	{ScreenSignIn, EventSignedUp}:              ScreenVerifyEmail,
	{ScreenVerifyEmail, EventEmailVerified}:    ScreenCreateProfile,
	{ScreenCreateProfile, EventProfileCreated}: ScreenAddAccount,
	{ScreenAddAccount, EventAccountsDone}:      ScreenAllowed,
	{ScreenAddAccount, EventPinRequired}:       ScreenCreatePin,
	{ScreenCreatePin, EventPinCreated}:         ScreenAllowed,
	{ScreenEnterPin, EventPinMatched}:          ScreenAllowed,
	{ScreenEnterPin, EventLockedOut}:           ScreenSignIn,
}

// Transition returns the screen that follows from on event. Signing out
// leads to sign-in from anywhere. Unknown pairs report false and keep from.
func Transition(from Screen, event Event) (Screen, bool) {
	if event == EventSignedOut {
		return ScreenSignIn, true
	}
	next, ok := transitions[edge{from, event}]
	if !ok {
		return from, false
	}
	return next, true
}

// ScreenFor maps a guard decision to the screen to show. Pending has no
// screen and reports false.
func ScreenFor(d access.Decision) (Screen, bool) {
	switch d.Kind {
	case access.Allow:
		return ScreenAllowed, true
	case access.Redirect:
		switch d.Target {
		case access.TargetVerifyEmail:
			return ScreenVerifyEmail, true
		case access.TargetCreateProfile:
			return ScreenCreateProfile, true
		case access.TargetEnterPin:
			return ScreenEnterPin, true
		default:
			return ScreenSignIn, true
		}
	default:
		return "", false
	}
}
