package directory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count     int
	expiresAt time.Time
}

// MemoryDirectory is the in-process Directory used in development and tests.
type MemoryDirectory struct {
	mu       sync.Mutex
	ttl      time.Duration
	markers  map[string]time.Time
	failures map[string]entry
	legacy   map[string]map[string]string
	now      func() time.Time
}

// NewMemoryDirectory builds an empty directory. ttl <= 0 uses 12h.
func NewMemoryDirectory(ttl time.Duration) *MemoryDirectory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryDirectory{
		ttl:      ttl,
		markers:  make(map[string]time.Time),
		failures: make(map[string]entry),
		legacy:   make(map[string]map[string]string),
		now:      time.Now,
	}
}

func (d *MemoryDirectory) IsPinVerified(ctx context.Context, scope, identityID string) (bool, error) {
	if err := checkKey(scope, identityID); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := markerKey(scope, identityID)
	exp, ok := d.markers[key]
	if !ok {
		return false, nil
	}
	if !d.now().Before(exp) {
		delete(d.markers, key)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDirectory) MarkPinVerified(ctx context.Context, scope, identityID string) error {
	if err := checkKey(scope, identityID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.markers[markerKey(scope, identityID)] = d.now().Add(d.ttl)
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) ClearPinVerified(ctx context.Context, scope, identityID string) error {
	if err := checkKey(scope, identityID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.markers, markerKey(scope, identityID))
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) RecordPinFailure(ctx context.Context, scope, identityID string) (int, error) {
	if err := checkKey(scope, identityID); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := failureKey(scope, identityID)
	now := d.now()
	e, ok := d.failures[key]
	if !ok || !now.Before(e.expiresAt) {
		e = entry{expiresAt: now.Add(d.ttl)}
	}
	e.count++
	d.failures[key] = e
	return e.count, nil
}

func (d *MemoryDirectory) ResetPinFailures(ctx context.Context, scope, identityID string) error {
	if err := checkKey(scope, identityID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.failures, failureKey(scope, identityID))
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) PurgeLegacy(ctx context.Context, scope string) error {
	if scope == "" {
		return errEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.legacy, scope)
	d.mu.Unlock()
	return nil
}

// SetLegacyFlag stores a legacy flag for scope, as an old client build would have.
func (d *MemoryDirectory) SetLegacyFlag(scope, flag, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.legacy[scope] == nil {
		d.legacy[scope] = make(map[string]string)
	}
	d.legacy[scope][flag] = value
}

// LegacyFlag returns a stored legacy flag.
func (d *MemoryDirectory) LegacyFlag(scope, flag string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.legacy[scope][flag]
	return v, ok
}
