package app

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordCost is the lowest bcrypt cost accepted for stored hashes.
	MinPasswordCost = 10
	// MaxPasswordBytes is the longest input bcrypt will hash.
	MaxPasswordBytes = 72
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", invalid("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}
	if cost < MinPasswordCost {
		cost = MinPasswordCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether password matches hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
