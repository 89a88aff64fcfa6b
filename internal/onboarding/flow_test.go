package onboarding

import (
	"testing"

	"github.com/congo-pay/accessgate/internal/access"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from  Screen
		event Event
		want  Screen
		ok    bool
	}{
		{ScreenSignIn, EventSignedUp, ScreenVerifyEmail, true},
		{ScreenVerifyEmail, EventEmailVerified, ScreenCreateProfile, true},
		{ScreenCreateProfile, EventProfileCreated, ScreenAddAccount, true},
		{ScreenAddAccount, EventPinRequired, ScreenCreatePin, true},
		{ScreenAddAccount, EventAccountsDone, ScreenAllowed, true},
		{ScreenCreatePin, EventPinCreated, ScreenAllowed, true},
		{ScreenEnterPin, EventPinMatched, ScreenAllowed, true},
		{ScreenEnterPin, EventLockedOut, ScreenSignIn, true},
		{ScreenCreateProfile, EventSignedOut, ScreenSignIn, true},
		{ScreenSignIn, EventPinMatched, ScreenSignIn, false},
		{ScreenVerifyEmail, EventProfileCreated, ScreenVerifyEmail, false},
	}
	for _, tc := range cases {
		got, ok := Transition(tc.from, tc.event)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s --%s--> got (%s, %v), want (%s, %v)", tc.from, tc.event, got, ok, tc.want, tc.ok)
		}
	}
}

func TestScreenFor(t *testing.T) {
	cases := map[access.Decision]Screen{
		{Kind: access.Allow}:                          ScreenAllowed,
		access.RedirectTo(access.TargetSignIn):        ScreenSignIn,
		access.RedirectTo(access.TargetVerifyEmail):   ScreenVerifyEmail,
		access.RedirectTo(access.TargetCreateProfile): ScreenCreateProfile,
		access.RedirectTo(access.TargetEnterPin):      ScreenEnterPin,
	}
	for d, want := range cases {
		if got, ok := ScreenFor(d); !ok || got != want {
			t.Fatalf("%s: got %s", d, got)
		}
	}
	if _, ok := ScreenFor(access.Decision{Kind: access.Pending}); ok {
		t.Fatal("pending has no screen")
	}
}
