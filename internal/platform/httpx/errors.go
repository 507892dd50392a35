// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/roommend/roommend/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrProtectedEntity):
		Problem(w, http.StatusConflict, "Protected", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusServiceUnavailable, "Request Cancelled", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
