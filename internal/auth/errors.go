package auth

import "errors"

// Authentication errors
var (
	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future)
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingCredentials indicates neither a bearer token nor an API key was sent
	ErrMissingCredentials = errors.New("authentication credentials are missing")

	// ErrInvalidAPIKey indicates the API key does not match the configured hash
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrWeakSecret indicates the signing secret is shorter than MinSecretLength
	ErrWeakSecret = errors.New("jwt secret must be at least 32 characters")
)
