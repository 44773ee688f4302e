package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashAPIKey returns the bcrypt hash to configure as auth.api_key_hash.
func HashAPIKey(key string, cost int) (string, error) {
	if key == "" {
		return "", fmt.Errorf("api key cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// APIKeyVerifier compares presented keys against one bcrypt hash.
type APIKeyVerifier struct {
	hash []byte
}

// NewAPIKeyVerifier creates a verifier for hash.
func NewAPIKeyVerifier(hash string) (*APIKeyVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid api key hash: %w", err)
	}
	return &APIKeyVerifier{hash: []byte(hash)}, nil
}

// Verify returns ErrInvalidAPIKey unless key matches.
func (v *APIKeyVerifier) Verify(key string) error {
	if key == "" {
		return ErrMissingCredentials
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(key)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}
