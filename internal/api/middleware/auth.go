package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/auth"
	"github.com/aiadmin/ai-admin/internal/platform/logger"
)

// APIKeyHeader carries the static operator key.
const APIKeyHeader = "X-API-Key"

// APIKeyPrincipal is recorded for requests authenticated by API key.
const APIKeyPrincipal = "api-key"

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

// KeyVerifier checks a static API key.
type KeyVerifier interface {
	Verify(key string) error
}

// AuthMiddleware accepts either a bearer token or an API key. Either checker
// may be nil, in which case that credential type is rejected.
type AuthMiddleware struct {
	tokens TokenValidator
	keys   KeyVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given checkers.
func NewAuthMiddleware(tokens TokenValidator, keys KeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, keys: keys}
}

// Authenticate rejects requests without valid credentials and records the
// principal in the context of the rest.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		principal, err := m.authenticate(r)
		if err != nil {
			log.Debug("request rejected", "error", err)
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrMissingCredentials):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization required")
			default:
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
			}
			return
		}

		ctx := shared.SetPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticate(r *http.Request) (string, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		if m.keys == nil {
			return "", auth.ErrInvalidAPIKey
		}
		if err := m.keys.Verify(key); err != nil {
			return "", err
		}
		return APIKeyPrincipal, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingCredentials
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", auth.ErrInvalidToken
	}
	if m.tokens == nil {
		return "", auth.ErrInvalidToken
	}

	claims, err := m.tokens.ValidateToken(r.Context(), parts[1])
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
