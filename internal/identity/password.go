package identity

import (
	"net/mail"
	"strings"
	"unicode"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// maxPasswordBytes is the longest input bcrypt hashes.
const maxPasswordBytes = 72

// checkPassword enforces a length window and at least one letter and one digit.
func checkPassword(password string, minLength int) error {
	if len(password) < minLength || len(password) > maxPasswordBytes {
		return ErrWeakPassword
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrWeakPassword
	}
	return nil
}
