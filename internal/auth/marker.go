package auth

import "context"

// MarkPinVerified records that the signed-in identity proved its PIN in this
// browser session.
func (m *Manager) MarkPinVerified(ctx context.Context) error {
	const op = "mark_pin_verified"
	id, err := m.signedIn(op)
	if err != nil {
		return err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.dir.MarkPinVerified(callCtx, m.opts.Scope, id.ID); err != nil {
		return persistenceError(op, err)
	}
	return nil
}

// IsPinVerified reports the PIN marker of the signed-in identity.
func (m *Manager) IsPinVerified(ctx context.Context) (bool, error) {
	const op = "is_pin_verified"
	id, err := m.signedIn(op)
	if err != nil {
		return false, err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	ok, err := m.dir.IsPinVerified(callCtx, m.opts.Scope, id.ID)
	if err != nil {
		return false, persistenceError(op, err)
	}
	return ok, nil
}

// RecordPinFailure bumps the failed-attempt counter and returns its value.
func (m *Manager) RecordPinFailure(ctx context.Context) (int, error) {
	const op = "record_pin_failure"
	id, err := m.signedIn(op)
	if err != nil {
		return 0, err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	n, err := m.dir.RecordPinFailure(callCtx, m.opts.Scope, id.ID)
	if err != nil {
		return 0, persistenceError(op, err)
	}
	return n, nil
}

// ResetPinFailures zeroes the failed-attempt counter.
func (m *Manager) ResetPinFailures(ctx context.Context) error {
	const op = "reset_pin_failures"
	id, err := m.signedIn(op)
	if err != nil {
		return err
	}
	callCtx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.dir.ResetPinFailures(callCtx, m.opts.Scope, id.ID); err != nil {
		return persistenceError(op, err)
	}
	return nil
}
