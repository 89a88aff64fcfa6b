// Package pin validates and digests the short numeric secondary factor.
package pin

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrShape means the PIN is not exactly the required number of decimal digits.
	ErrShape = errors.New("pin has wrong shape")
	// ErrMismatch means the PIN and its confirmation differ.
	ErrMismatch = errors.New("pins do not match")
)

// Policy holds the PIN length for each onboarding path. The profile form and
// the standalone screen ship different lengths; unify only after product sign-off.
type Policy struct {
	StandaloneLength int
	ProfileLength    int
}

// DefaultPolicy mirrors the shipped screens: 6 digits standalone, 4 in the profile form.
func DefaultPolicy() Policy {
	return Policy{StandaloneLength: 6, ProfileLength: 4}
}

// Validate checks that pin is exactly length ASCII decimal digits.
func Validate(pin string, length int) error {
	if len(pin) != length {
		return fmt.Errorf("%w: must be exactly %d digits", ErrShape, length)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return fmt.Errorf("%w: must contain only numbers", ErrShape)
		}
	}
	return nil
}

// Confirm checks a PIN against its confirmation entry.
func Confirm(pin, confirmation string) error {
	if pin != confirmation {
		return ErrMismatch
	}
	return nil
}

// Digester turns a PIN into a stored digest and checks candidates against it.
type Digester interface {
	Digest(pin string) (string, error)
	Matches(digest, pin string) bool
}

// BcryptDigester stores salted one-way bcrypt digests.
type BcryptDigester struct {
	Cost int
}

// NewBcryptDigester returns a digester at bcrypt.DefaultCost.
func NewBcryptDigester() BcryptDigester {
	return BcryptDigester{Cost: bcrypt.DefaultCost}
}

// Digest hashes pin with a fresh salt.
func (d BcryptDigester) Digest(pin string) (string, error) {
	cost := d.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", fmt.Errorf("digest pin: %w", err)
	}
	return string(hash), nil
}

// Matches compares pin against digest in constant time. Malformed digests never match.
func (d BcryptDigester) Matches(digest, pin string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pin)) == nil
}
