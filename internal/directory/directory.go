// Package directory records per-browser-session facts about identities: whether
// the PIN was proven in this session and how many PIN attempts have failed.
// Entries are keyed by (scope, identity) so identities sharing a browser
// session never see each other's markers.
package directory

import (
	"context"
	"errors"
	"time"
)

// LegacyFlags are the auth flags an earlier client build cached per session.
// Bootstrap purges them.
var LegacyFlags = []string{"isAuthenticated", "user"}

var errEmptyKey = errors.New("scope and identity id are required")

// Directory is the session-scoped key-value store behind the PIN gate.
type Directory interface {
	IsPinVerified(ctx context.Context, scope, identityID string) (bool, error)
	MarkPinVerified(ctx context.Context, scope, identityID string) error
	ClearPinVerified(ctx context.Context, scope, identityID string) error
	RecordPinFailure(ctx context.Context, scope, identityID string) (int, error)
	ResetPinFailures(ctx context.Context, scope, identityID string) error
	PurgeLegacy(ctx context.Context, scope string) error
}

const defaultTTL = 12 * time.Hour

func checkKey(scope, identityID string) error {
	if scope == "" || identityID == "" {
		return errEmptyKey
	}
	return nil
}
