package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. The same sentinel covers
	// unknown identifiers, wrong passwords and wrong guards so callers cannot
	// enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDeactivated is returned only after the password matched.
	ErrAccountDeactivated = errors.New("account deactivated")
	// ErrWrongGuard indicates a principal that exists but is not eligible for
	// the requested guard. Internal use only: externally it collapses into
	// ErrInvalidCredentials.
	ErrWrongGuard = errors.New("wrong guard for identity")
	// ErrElevationConflict indicates a live grant of the same role already exists.
	ErrElevationConflict = errors.New("elevation grant already active")
	// ErrEligibilityUnmet indicates an elevation precondition failure.
	ErrEligibilityUnmet = errors.New("elevation eligibility unmet")
	// ErrPermissionAssignmentForbidden indicates a non top-tier actor tried to
	// hand out the top-tier role.
	ErrPermissionAssignmentForbidden = errors.New("role assignment forbidden")
	// ErrStorageUnavailable wraps unexpected persistence failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// RateLimitedError reports a locked-out login key.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimited extracts a RateLimitedError if err carries one.
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
