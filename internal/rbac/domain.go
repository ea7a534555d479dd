package rbac

import (
	"sort"
	"time"
)

// Role represents a named bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// RoleGrant is a role held by a principal, optionally time-boxed. A grant
// whose expiry has passed is equivalent to no grant at all, even while the
// row still exists in storage.
type RoleGrant struct {
	RoleName  string
	ExpiresAt *time.Time
	GrantedBy int64
	CreatedAt time.Time
}

// Expired reports whether the grant is past its expiry at the given instant.
func (g RoleGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// Override is a per-principal direct permission grant. Only active overrides
// contribute; an inactive one merely preserves previously-checked UI state
// and never subtracts from role-derived permissions.
type Override struct {
	Permission string
	Active     bool
}

// PermissionSet is the resolved effective capability set of a principal.
type PermissionSet map[string]struct{}

// Has reports membership.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted permission names.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
