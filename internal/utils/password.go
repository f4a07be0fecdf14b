package utils

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when hashing an empty operator password.
var ErrEmptyPassword = errors.New("empty password")

// HashPassword returns the bcrypt hash stored in OPERATOR_PASSWORD_HASH.
// A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword checks the operator password against the configured hash.
// An unset hash never matches, which keeps the admin login closed.
func VerifyPassword(hash, plain string) bool {
	hash = strings.TrimSpace(hash)
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
