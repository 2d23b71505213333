// Package auth implements password credentials, HMAC-signed bearer tokens,
// and the login/register/refresh flows built on top of them.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SentinelHash marks accounts provisioned through a federated provider.
// It is not a valid bcrypt hash, so password verification against it can
// never succeed.
const SentinelHash = "!"

// HashPassword derives a salted bcrypt hash from a plaintext password.
// Hashing the same password twice yields different hashes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// hash. A sentinel or otherwise malformed hash never matches.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
