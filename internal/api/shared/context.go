package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type of request-scoped values set by middleware.
type ContextKey string

// Context keys
const (
	// TraceIDKey holds the request trace ID
	TraceIDKey ContextKey = "traceID"

	// PrincipalKey holds the authenticated operator, a token subject or "api-key"
	PrincipalKey ContextKey = "principal"
)

// TraceIDHeader echoes the trace ID back to the caller.
const TraceIDHeader = "X-Trace-ID"

// SetTraceID adds traceID to the context, generating one when empty.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// SetPrincipal records who made the request.
func SetPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// GetPrincipal returns the authenticated operator, or "" when auth is off.
func GetPrincipal(ctx context.Context) string {
	principal, _ := ctx.Value(PrincipalKey).(string)
	return principal
}
