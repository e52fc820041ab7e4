package password

import (
	"errors"
	"strings"
	"unicode"
)

// Strength failures. Callers surface these to end users, so the messages
// describe the missing requirement rather than the internal check.
var (
	ErrTooShort       = errors.New("password is shorter than the minimum length")
	ErrMissingUpper   = errors.New("password needs at least one uppercase letter")
	ErrMissingLower   = errors.New("password needs at least one lowercase letter")
	ErrMissingDigit   = errors.New("password needs at least one digit")
	ErrMissingSpecial = errors.New("password needs at least one special character")
	ErrCommonPassword = errors.New("password is too common")
)

// commonPasswords is a small denylist of the passwords we see attempted most.
// Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"letmein123":  {},
	"welcome1":    {},
	"iloveyou1":   {},
	"admin123":    {},
	"sunshine1":   {},
	"monkey123":   {},
	"dragon123":   {},
	"football1":   {},
	"baseball1":   {},
	"trustno1":    {},
	"abc123456":   {},
}

// StrengthPolicy validates candidate passwords before hashing. The zero value
// enforces only the composition rules; set MinLength for a length floor.
type StrengthPolicy struct {
	MinLength int
}

// Validate returns nil when the candidate satisfies the policy, or the first
// failed requirement otherwise. Checks run cheapest-first so callers can rely
// on a stable error order.
func (p StrengthPolicy) Validate(candidate string) error {
	if len(candidate) < p.MinLength {
		return ErrTooShort
	}
	if _, ok := commonPasswords[strings.ToLower(candidate)]; ok {
		return ErrCommonPassword
	}

	var upper, lower, digit, special bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	switch {
	case !upper:
		return ErrMissingUpper
	case !lower:
		return ErrMissingLower
	case !digit:
		return ErrMissingDigit
	case !special:
		return ErrMissingSpecial
	}
	return nil
}
