package elevation

import "time"

// Grant is a time-boxed role assignment. A grant moves Absent → Active →
// Expired → Absent; Expired is storage-only and collapses into Absent for
// every authorization decision, whether or not a sweep has run.
type Grant struct {
	PrincipalID    int64
	PrincipalEmail string
	RoleName       string
	GrantedBy      int64
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Expired reports whether the grant is past its expiry at the given instant.
func (g Grant) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}
