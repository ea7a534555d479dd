// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Sentinel errors for generic handler plumbing.
var (
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807. Expected
// auth failures keep their deliberately uniform wording; anything unexpected
// collapses into a detail-free 500.
func RespondError(w http.ResponseWriter, err error) {
	if rl, ok := shared.AsRateLimited(err); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		Problem(w, http.StatusTooManyRequests, "Too Many Attempts", rl.Error())
		return
	}
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrWrongGuard):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrInvalidCredentials.Error())
	case errors.Is(err, shared.ErrAccountDeactivated):
		Problem(w, http.StatusForbidden, "Account Deactivated", shared.ErrAccountDeactivated.Error())
	case errors.Is(err, shared.ErrElevationConflict):
		Problem(w, http.StatusBadRequest, "Elevation Conflict", err.Error())
	case errors.Is(err, shared.ErrEligibilityUnmet):
		Problem(w, http.StatusBadRequest, "Eligibility Unmet", err.Error())
	case errors.Is(err, shared.ErrPermissionAssignmentForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
