package identity

import "context"

// Client is the surface of the credential provider consumed by the session
// manager. Each browser scope owns one Client; its session slot and listeners
// are not shared with other scopes.
type Client interface {
	CreateAccount(ctx context.Context, email, password string, metadata map[string]string) (Identity, error)
	Authenticate(ctx context.Context, email, password string) (ProviderSession, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*ProviderSession, error)
	OnSessionChange(listener SessionListener) (unsubscribe func())
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	SetNewPassword(ctx context.Context, newPassword string) error
	ResendVerification(ctx context.Context, email string) error
	FreshUser(ctx context.Context) (Identity, error)
	ExchangeRecoveryToken(ctx context.Context, token string) (ProviderSession, error)
}
