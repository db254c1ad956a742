package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/solumart/cartcheckout/pkg/errors"
)

// HashPassword hashes a plaintext password with bcrypt. Called explicitly at
// the registration boundary rather than hidden inside a persistence hook.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", apperrors.InvalidInput("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return apperrors.Unauthorized("invalid credentials")
	}
	return nil
}
