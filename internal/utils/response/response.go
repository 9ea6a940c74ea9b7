package response

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/storefront-checkout/internal/errors"
	"github.com/go-playground/validator/v10"
)

const retryAfterPrefix = "retry_after="

type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

type ErrorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}

func WriteJson(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return json.NewEncoder(w).Encode(data)
}

func Success(w http.ResponseWriter, statusCode int, data any) {
	if err := WriteJson(w, statusCode, APIResponse{Success: true, Data: data}); err != nil {
		slog.Warn("Failed to write response", slog.String("error", err.Error()))
	}
}

// Error renders err in the error envelope. Anything that is not an AppError
// is reported as an internal error without leaking its text.
func Error(w http.ResponseWriter, err error) {
	appErr, ok := errors.IsAppError(err)
	if !ok {
		appErr = errors.InternalError("An unexpected error occurred")
	}

	body := &ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: errors.IsRetryable(appErr),
	}

	if appErr.Detail != "" {
		body.Details = []string{appErr.Detail}

		if seconds, found := strings.CutPrefix(appErr.Detail, retryAfterPrefix); found {
			w.Header().Set("Retry-After", seconds)
		}
	}

	if err := WriteJson(w, appErr.StatusCode, APIResponse{Success: false, Error: body}); err != nil {
		slog.Warn("Failed to write error response", slog.String("error", err.Error()))
	}
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// ValidationError lists one readable message per failed field.
func ValidationError(w http.ResponseWriter, errs validator.ValidationErrors) {
	details := make([]string, 0, len(errs))

	for _, fe := range errs {
		details = append(details, fieldMessage(fe))
	}

	body := &ErrorResponse{
		Code:    errors.ErrCodeValidation,
		Message: "Validation failed",
		Details: details,
	}

	if err := WriteJson(w, http.StatusBadRequest, APIResponse{Success: false, Error: body}); err != nil {
		slog.Warn("Failed to write validation response", slog.String("error", err.Error()))
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required", field)
	case "email":
		return fmt.Sprintf("Field %s must be a valid email address", field)
	case "min", "gte":
		return fmt.Sprintf("Field %s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("Field %s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("Field %s must be one of: %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("Field %s must be greater than %s", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("Field %s must be a valid UUID", field)
	default:
		return fmt.Sprintf("Field %s is invalid: %s=%s", field, fe.Tag(), fe.Param())
	}
}
