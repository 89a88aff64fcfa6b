package identity

import "time"

// Identity is the principal issued by the credential provider.
type Identity struct {
	ID              string
	Email           string
	EmailVerifiedAt *time.Time
	DisplayName     string
	Metadata        map[string]string
	CreatedAt       time.Time
}

// EmailVerified reports whether the address carries a verification timestamp.
func (i Identity) EmailVerified() bool {
	return i.EmailVerifiedAt != nil && !i.EmailVerifiedAt.IsZero()
}

// User is the provider-side record behind an Identity.
type User struct {
	Identity
	PasswordHash []byte
	UpdatedAt    time.Time
}

// ProviderSession is what the provider hands back after a successful login.
type ProviderSession struct {
	AccessToken string
	ExpiresAt   time.Time
	Identity    Identity
}

// Valid reports whether the session carries a usable token at now.
func (s *ProviderSession) Valid(now time.Time) bool {
	return s != nil && s.AccessToken != "" && now.Before(s.ExpiresAt)
}

func (s *ProviderSession) clone() *ProviderSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.Identity.Metadata != nil {
		c.Identity.Metadata = make(map[string]string, len(s.Identity.Metadata))
		for k, v := range s.Identity.Metadata {
			c.Identity.Metadata[k] = v
		}
	}
	return &c
}

// Event names a provider-pushed session change.
type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventSignedUp         Event = "SIGNED_UP"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// SessionListener receives session change events. The session is nil when
// the event leaves the client signed out.
type SessionListener func(event Event, session *ProviderSession)
