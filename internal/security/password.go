// Package security wraps the one-way hashing primitives used for user
// passwords, branch kiosk passwords and operator PINs.
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

// Hasher hashes and compares secrets with bcrypt. The zero value uses DefaultCost.
type Hasher struct {
	Cost int
}

func NewHasher(cost int) Hasher {
	return Hasher{Cost: cost}
}

func (h Hasher) cost() int {
	if h.Cost < bcrypt.MinCost || h.Cost > bcrypt.MaxCost {
		return DefaultCost
	}
	return h.Cost
}

// Hash returns the bcrypt encoding of secret.
func (h Hasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches compares secret against an encoded hash in constant time. An empty
// or corrupt hash never matches.
func (h Hasher) Matches(hash, secret string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}

// ErrPasswordTooShort is returned by ValidatePassword.
var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

func ValidatePassword(pw string) error {
	if len(pw) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}
