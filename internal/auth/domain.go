package auth

import (
	"time"

	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
)

// Principal represents an authenticated account together with its role
// grants. The password hash belongs to the credential check; nothing else
// reads it.
type Principal struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	IsAvailable  bool
	Roles        []rbac.RoleGrant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the principal holds a live grant of the named
// role. Expired grants count as absent regardless of whether a sweep has
// removed them yet.
func (p *Principal) HasRole(name string, now time.Time) bool {
	if p == nil {
		return false
	}
	for _, grant := range p.Roles {
		if grant.RoleName == name && !grant.Expired(now) {
			return true
		}
	}
	return false
}

// OutcomeCode is the machine-readable result of a session-authority call.
type OutcomeCode string

const (
	OutcomeOK                 OutcomeCode = "ok"
	OutcomeInvalidCredentials OutcomeCode = "invalid_credentials"
	OutcomeRateLimited        OutcomeCode = "rate_limited"
	OutcomeAccountDeactivated OutcomeCode = "account_deactivated"
	OutcomeFailure            OutcomeCode = "failure"
)

// LoginResult is the structured outcome returned to the controller layer.
// The message for every credential-shaped failure is deliberately uniform;
// only "account deactivated" is distinguished, since that is reported after
// the password already matched.
type LoginResult struct {
	Code       OutcomeCode
	Message    string
	Principal  *Principal
	Remaining  int
	RetryAfter time.Duration
}

const (
	msgInvalidCredentials = "email or password is incorrect"
	msgAccountDeactivated = "this account has been deactivated"
	msgRateLimited        = "too many attempts, try again later"
	msgInternalFailure    = "something went wrong, try again"
)
