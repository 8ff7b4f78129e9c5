package auth

import (
	"fmt"
	"unicode"
)

// bcrypt silently ignores input past 72 bytes.
const maxPasswordBytes = 72

// PasswordPolicy describes the minimum strength accepted for new passwords.
type PasswordPolicy struct {
	MinLength     int
	MaxBytes      int
	RequireLetter bool
	RequireDigit  bool
}

// DefaultPasswordPolicy requires 8 to 72 bytes with at least one letter and one digit.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		MaxBytes:      maxPasswordBytes,
		RequireLetter: true,
		RequireDigit:  true,
	}
}

// Validate returns an error wrapping ErrWeakPassword for the first violated rule.
func (p PasswordPolicy) Validate(password string) error {
	if p.MinLength > 0 && len([]rune(password)) < p.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrWeakPassword, p.MinLength)
	}

	maxBytes := p.MaxBytes
	if maxBytes <= 0 || maxBytes > maxPasswordBytes {
		maxBytes = maxPasswordBytes
	}
	if len(password) > maxBytes {
		return fmt.Errorf("%w: password must be at most %d bytes long", ErrWeakPassword, maxBytes)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if p.RequireLetter && !hasLetter {
		return fmt.Errorf("%w: password must contain a letter", ErrWeakPassword)
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("%w: password must contain a digit", ErrWeakPassword)
	}
	return nil
}
