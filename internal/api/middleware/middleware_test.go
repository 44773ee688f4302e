package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/auth"
	"github.com/aiadmin/ai-admin/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

type stubTokens struct {
	claims *auth.Claims
	err    error
}

func (s stubTokens) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if token != "good-token" && s.err == nil {
		return nil, auth.ErrInvalidToken
	}
	return s.claims, s.err
}

type stubKeys struct{}

func (stubKeys) Verify(key string) error {
	if key == "good-key" {
		return nil
	}
	return auth.ErrInvalidAPIKey
}

func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, shared.GetPrincipal(r.Context()))
	})
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name          string
		tokens        TokenValidator
		keys          KeyVerifier
		headers       map[string]string
		wantStatus    int
		wantPrincipal string
	}{
		{
			name:          "valid bearer token",
			tokens:        stubTokens{claims: &auth.Claims{Subject: "ops"}},
			headers:       map[string]string{"Authorization": "Bearer good-token"},
			wantStatus:    http.StatusOK,
			wantPrincipal: "ops",
		},
		{
			name:          "valid api key",
			keys:          stubKeys{},
			headers:       map[string]string{APIKeyHeader: "good-key"},
			wantStatus:    http.StatusOK,
			wantPrincipal: APIKeyPrincipal,
		},
		{
			name:       "missing credentials",
			tokens:     stubTokens{},
			keys:       stubKeys{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong api key",
			keys:       stubKeys{},
			headers:    map[string]string{APIKeyHeader: "bad-key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "api key when only tokens are configured",
			tokens:     stubTokens{},
			headers:    map[string]string{APIKeyHeader: "good-key"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed authorization header",
			tokens:     stubTokens{},
			headers:    map[string]string{"Authorization": "Token abc"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			tokens:     stubTokens{err: auth.ErrExpiredToken},
			headers:    map[string]string{"Authorization": "Bearer stale"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "validator failure",
			tokens:     stubTokens{err: errors.New("boom")},
			headers:    map[string]string{"Authorization": "Bearer good-token"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(tt.tokens, tt.keys).Authenticate(principalEcho())

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantPrincipal, rec.Body.String())
			}
		})
	}
}

func TestTrace(t *testing.T) {
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seenTrace string
	var seenLogger *slog.Logger
	handler := Trace(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = shared.GetTraceID(r.Context())
		seenLogger = logger.FromContextOrDefault(r.Context(), nil)
	}))

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, seenTrace)
		assert.Equal(t, seenTrace, rec.Header().Get(shared.TraceIDHeader))
		assert.NotNil(t, seenLogger)
	})

	t.Run("reuses an incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(shared.TraceIDHeader, "upstream-trace")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-trace", seenTrace)
		assert.Equal(t, "upstream-trace", rec.Header().Get(shared.TraceIDHeader))
	})
}
