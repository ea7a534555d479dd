package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Repository defines persistence operations for permission resolution.
type Repository interface {
	// RoleGrants returns every role grant of the principal, expired rows
	// included; expiry is the service's concern so a stale sweep can never
	// widen anyone's permissions.
	RoleGrants(ctx context.Context, principalID int64) ([]RoleGrant, error)
	// RolePermissions looks the bundle up by role name at resolve time, so
	// edits to a role reach every holder immediately.
	RolePermissions(ctx context.Context, roleName string) ([]string, error)
	Overrides(ctx context.Context, principalID int64) ([]Override, error)
	AssignRole(ctx context.Context, principalID int64, roleName string, expiresAt *time.Time, grantedBy int64) error
	RemoveRole(ctx context.Context, principalID int64, roleName string) error
	SetOverride(ctx context.Context, principalID int64, permission string, active bool) error
}

// Service is the single source of truth for "may principal P do X". Every
// authorization decision in the application routes through Has.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve computes the effective permission set: the union of every live
// role's current bundle plus every active direct override. Overrides only
// add; there is no mechanism to revoke a role-granted permission per
// principal.
func (s *Service) Resolve(ctx context.Context, principalID int64) (PermissionSet, error) {
	grants, err := s.repo.RoleGrants(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("rbac: role grants: %w", err)
	}
	now := s.now()
	set := make(PermissionSet)
	for _, grant := range grants {
		if grant.Expired(now) {
			continue
		}
		perms, err := s.repo.RolePermissions(ctx, grant.RoleName)
		if err != nil {
			return nil, fmt.Errorf("rbac: permissions of %s: %w", grant.RoleName, err)
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}
	overrides, err := s.repo.Overrides(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("rbac: overrides: %w", err)
	}
	for _, o := range overrides {
		if !o.Active {
			continue
		}
		set[o.Permission] = struct{}{}
	}
	return set, nil
}

// Has reports whether the principal holds the permission. It delegates to
// Resolve rather than running its own query.
func (s *Service) Has(ctx context.Context, principalID int64, permission string) (bool, error) {
	set, err := s.Resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	return set.Has(permission), nil
}

// HasRole reports whether the principal holds a live grant of the named
// role. Comparison is exact: role names are case- and identity-sensitive.
func (s *Service) HasRole(ctx context.Context, principalID int64, roleName string) (bool, error) {
	grants, err := s.repo.RoleGrants(ctx, principalID)
	if err != nil {
		return false, err
	}
	now := s.now()
	for _, grant := range grants {
		if grant.RoleName == roleName && !grant.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// AssignRole grants roleName to the principal on behalf of actorID. Handing
// out the top tier requires already holding it, no matter what permissions
// the actor otherwise has.
func (s *Service) AssignRole(ctx context.Context, actorID, principalID int64, roleName string, expiresAt *time.Time) error {
	if roleName == shared.RoleSuperAdmin {
		isSuper, err := s.HasRole(ctx, actorID, shared.RoleSuperAdmin)
		if err != nil {
			return err
		}
		if !isSuper {
			if s.logger != nil {
				s.logger.Warn("blocked top-tier role assignment",
					slog.Int64("actor_id", actorID),
					slog.Int64("principal_id", principalID))
			}
			return shared.ErrPermissionAssignmentForbidden
		}
	}
	return s.repo.AssignRole(ctx, principalID, roleName, expiresAt, actorID)
}

// RemoveRole revokes a role from a principal.
func (s *Service) RemoveRole(ctx context.Context, principalID int64, roleName string) error {
	return s.repo.RemoveRole(ctx, principalID, roleName)
}

// SetOverride persists a direct override flag. Writing active=false keeps
// the row for the UI but contributes nothing to resolution.
func (s *Service) SetOverride(ctx context.Context, principalID int64, permission string, active bool) error {
	if permission == "" {
		return fmt.Errorf("rbac: permission name required")
	}
	return s.repo.SetOverride(ctx, principalID, permission, active)
}
