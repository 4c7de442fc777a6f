// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/storeops/storeops/internal/shared"
)

// Status maps a domain error to its HTTP status and problem title.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, shared.ErrInvalidTransition):
		return http.StatusConflict, "Invalid Transition"
	case errors.Is(err, shared.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity, "Invalid Quantity"
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrDuplicateRequest):
		return http.StatusConflict, "Duplicate Request"
	case errors.Is(err, shared.ErrCodeGenerationExhausted), errors.Is(err, shared.ErrLockBusy):
		return http.StatusServiceUnavailable, "Try Again"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807. Internal
// errors carry no detail; the caller is expected to have logged them.
func RespondError(w http.ResponseWriter, err error) {
	status, title := Status(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = ""
	}
	Problem(w, status, title, detail)
}
