package auth

import (
	"fmt"
	"time"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// GuardClass is one of the mutually exclusive identity classes a session may
// be authenticated under. A browser session holds at most one live
// (guard, principal) binding across all classes.
type GuardClass string

const (
	GuardAdmin      GuardClass = "admin"
	GuardStaff      GuardClass = "staff"
	GuardTechnician GuardClass = "technician"
)

// GuardClasses lists the fixed set of guards.
func GuardClasses() []GuardClass {
	return []GuardClass{GuardAdmin, GuardStaff, GuardTechnician}
}

// ParseGuard validates a guard class from URL or form input.
func ParseGuard(raw string) (GuardClass, error) {
	switch g := GuardClass(raw); g {
	case GuardAdmin, GuardStaff, GuardTechnician:
		return g, nil
	default:
		return "", fmt.Errorf("auth: unknown guard %q", raw)
	}
}

// Eligible reports whether the principal satisfies the guard's membership
// predicate. Account-level flags (is_active, is_verified) are checked
// separately by the login sequence; this is purely the class predicate.
func (g GuardClass) Eligible(p *Principal, now time.Time) error {
	switch g {
	case GuardAdmin:
		if p.HasRole(shared.RoleAdmin, now) || p.HasRole(shared.RoleSuperAdmin, now) {
			return nil
		}
	case GuardTechnician:
		if p.HasRole(shared.RoleTechnician, now) && p.IsAvailable {
			return nil
		}
	case GuardStaff:
		if p.HasRole(shared.RoleStaff, now) && p.IsActive {
			return nil
		}
	}
	return shared.ErrWrongGuard
}
