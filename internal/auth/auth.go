// Package auth hashes passwords and checks them against the password policy.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned by Compare when the password does not match.
var ErrMismatch = errors.New("auth: password mismatch")

// Hasher produces and checks password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher is a Hasher backed by bcrypt. A zero Cost uses bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash: %w", err)
	}
	return string(out), nil
}

// Compare returns nil when password matches hash and ErrMismatch when it
// does not. bcrypt compares in constant time.
func (h BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("auth: compare: %w", err)
	}
}

// Policy constrains new passwords.
type Policy struct {
	MinLength     int
	RequireDigit  bool
	RequireLetter bool
}

// DefaultPolicy is used when no policy has been stored.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8}
}

// PolicyError lists every rule a password broke.
type PolicyError struct {
	Problems []string
}

func (e *PolicyError) Error() string {
	return "auth: password " + strings.Join(e.Problems, "; ")
}

// Check returns a *PolicyError when password violates p.
func (p Policy) Check(password string) error {
	var problems []string
	if n := len([]rune(password)); n < p.MinLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	var digit, letter bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
			letter = true
		}
	}
	if p.RequireDigit && !digit {
		problems = append(problems, "must contain a digit")
	}
	if p.RequireLetter && !letter {
		problems = append(problems, "must contain a letter")
	}
	if len(problems) > 0 {
		return &PolicyError{Problems: problems}
	}
	return nil
}
