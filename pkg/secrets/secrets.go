// Package secrets hashes and verifies passwords and mints opaque tokens.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "milkadmin/pkg/domain-errors"
)

// Generate creates a cryptographically secure random token, base64url encoded.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of secret at the default cost.
func Hash(secret string) (string, error) {
	return HashCost(secret, bcrypt.DefaultCost)
}

// HashCost creates a bcrypt hash at the given cost. Fixtures use bcrypt.MinCost.
func HashCost(secret string, cost int) (string, error) {
	if secret == "" {
		return "", dErrors.Invalid("password cannot be empty", map[string][]string{"password": {"password cannot be empty"}})
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.Invalid("password is too long", map[string][]string{"password": {"password is too long"}})
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash secret")
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify secret")
	}
	return nil
}
