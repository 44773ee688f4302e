package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func TestNewTokenService_RejectsWeakSecret(t *testing.T) {
	_, err := NewTokenService("short")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)

	token, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestTokenService_ValidateToken_Errors(t *testing.T) {
	svc, err := NewTokenService(testSecret)
	require.NoError(t, err)

	other, err := NewTokenService("a-different-secret-that-is-long-enough")
	require.NoError(t, err)
	foreign, err := other.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	past := time.Now().Add(-3 * time.Hour)
	svc.timeFunc = func() time.Time { return past }
	expired, err := svc.GenerateToken("ops", time.Hour)
	require.NoError(t, err)
	svc.timeFunc = time.Now

	noScope, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "malformed", token: "not.a.jwt", want: ErrInvalidToken},
		{name: "wrong signature", token: foreign, want: ErrInvalidToken},
		{name: "expired", token: expired, want: ErrExpiredToken},
		{name: "missing scope", token: noScope, want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAPIKeyVerifier(t *testing.T) {
	hash, err := HashAPIKey("s3cret-key", bcrypt.MinCost)
	require.NoError(t, err)

	v, err := NewAPIKeyVerifier(hash)
	require.NoError(t, err)

	assert.NoError(t, v.Verify("s3cret-key"))
	assert.ErrorIs(t, v.Verify("wrong"), ErrInvalidAPIKey)
	assert.ErrorIs(t, v.Verify(""), ErrMissingCredentials)
}

func TestNewAPIKeyVerifier_InvalidHash(t *testing.T) {
	_, err := NewAPIKeyVerifier("plaintext")
	assert.Error(t, err)

	_, err = HashAPIKey("", bcrypt.MinCost)
	assert.Error(t, err)
}
