package profile

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means no profile record exists for the identity.
	ErrNotFound = errors.New("profile not found")
	// ErrExists means a profile was already created for the identity.
	ErrExists = errors.New("profile already exists")
)

// Record is the per-identity profile, including the PIN digest.
type Record struct {
	IdentityID     string
	FullName       string
	Phone          string
	DateOfBirth    *time.Time
	Occupation     string
	MonthlyIncome  *float64
	FinancialGoals string
	PINDigest      string
	PINCreatedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPIN reports whether a PIN digest is attached.
func (r Record) HasPIN() bool {
	return r.PINDigest != ""
}

// Patch lists the fields an update may change. Nil fields are left alone.
type Patch struct {
	FullName       *string
	Phone          *string
	DateOfBirth    *time.Time
	Occupation     *string
	MonthlyIncome  *float64
	FinancialGoals *string
	PINDigest      *string
	PINCreatedAt   *time.Time
}

// Apply copies non-nil patch fields onto r.
func (p Patch) Apply(r *Record) {
	if p.FullName != nil {
		r.FullName = *p.FullName
	}
	if p.Phone != nil {
		r.Phone = *p.Phone
	}
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		r.DateOfBirth = &dob
	}
	if p.Occupation != nil {
		r.Occupation = *p.Occupation
	}
	if p.MonthlyIncome != nil {
		income := *p.MonthlyIncome
		r.MonthlyIncome = &income
	}
	if p.FinancialGoals != nil {
		r.FinancialGoals = *p.FinancialGoals
	}
	if p.PINDigest != nil {
		r.PINDigest = *p.PINDigest
	}
	if p.PINCreatedAt != nil {
		at := *p.PINCreatedAt
		r.PINCreatedAt = &at
	}
}
