package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aiadmin/ai-admin/internal/api/shared"
	"github.com/aiadmin/ai-admin/internal/platform/postgres"
	"github.com/aiadmin/ai-admin/internal/task"
	"github.com/go-playground/validator/v10"
)

// Handler-level errors
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidStatus  = errors.New("invalid task status")
	ErrInvalidRequest = errors.New("invalid request")
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error itself.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, postgres.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrDuplicateTask):
		return http.StatusConflict

	case errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	case errors.Is(err, task.ErrUnknownKind),
		errors.Is(err, task.ErrInvalidConcurrency),
		errors.Is(err, task.ErrNilTask),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, shared.ErrEmptyBody),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, postgres.ErrNotFound):
		return "Archived task not found"
	case errors.Is(err, task.ErrDuplicateTask):
		return "Task already submitted"
	case errors.Is(err, task.ErrQueueClosed):
		return "Task queue is shutting down"
	case errors.Is(err, task.ErrUnknownKind):
		return "Unsupported task type"
	case errors.Is(err, task.ErrInvalidConcurrency):
		return "max_concurrent must not be negative"
	case errors.Is(err, ErrInvalidStatus):
		return "Invalid status filter"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request body"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError describes the first failed field without echoing
// the submitted value.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	fe := errs[0]
	field := toSnakeCase(fe.Field())
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gt", "gte", "min":
		return "too small"
	case "lt", "lte", "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted cause.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
