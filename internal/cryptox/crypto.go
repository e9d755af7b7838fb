// Package cryptox wraps the password hashing primitives used for stored
// credentials.
package cryptox

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash
// (more than 72 bytes).
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword returns the bcrypt hash of password at the given cost. The
// intermediate byte copy is wiped before returning.
func HashPassword(password string, cost int) (string, error) {
	b := []byte(password)
	defer common.WipeByteArray(b)

	hash, err := bcrypt.GenerateFromPassword(b, cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword reports whether candidate matches the stored bcrypt hash.
// A malformed hash never matches.
func ComparePassword(hash, candidate string) bool {
	b := []byte(candidate)
	defer common.WipeByteArray(b)

	return bcrypt.CompareHashAndPassword([]byte(hash), b) == nil
}

// Cost extracts the cost factor a hash was produced with.
func Cost(hash string) (int, error) {
	return bcrypt.Cost([]byte(hash))
}
