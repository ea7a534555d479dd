package elevation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// ActivityRecorder receives audit events for grants and revokes. Elevation
// is security-sensitive: every grant is recorded with actor, target and
// expiry so it can be audited after the fact.
type ActivityRecorder interface {
	RecordAsync(ctx context.Context, entry shared.ActivityEntry)
}

// Notifier enqueues the grant notification mail. Delivery is an external
// concern; a nil Notifier is valid.
type Notifier interface {
	NotifyGranted(ctx context.Context, grant Grant) error
}

// Service manages time-boxed privilege elevation.
type Service struct {
	repo     Repository
	roles    *rbac.Service
	activity ActivityRecorder
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, roles *rbac.Service, activity ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		roles:    roles,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNotifier attaches the mail enqueuer.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GrantTemporary grants roleName to the target until expiresAt. The actor
// must hold the top tier; the target must already be a technician, and is
// made one first if not; a live grant of the same role is a conflict, not a
// silent no-op.
func (s *Service) GrantTemporary(ctx context.Context, actorID, principalID int64, roleName string, expiresAt time.Time) (Grant, error) {
	isSuper, err := s.roles.HasRole(ctx, actorID, shared.RoleSuperAdmin)
	if err != nil {
		return Grant{}, fmt.Errorf("elevation: actor check: %w", err)
	}
	if !isSuper {
		s.warn("elevation denied", actorID, principalID, roleName)
		return Grant{}, shared.ErrPermissionAssignmentForbidden
	}
	if roleName == shared.RoleSuperAdmin {
		// The top tier is never assignable as an elevation.
		s.warn("elevation to top tier blocked", actorID, principalID, roleName)
		return Grant{}, shared.ErrPermissionAssignmentForbidden
	}

	now := s.now()
	if !expiresAt.After(now) {
		return Grant{}, fmt.Errorf("%w: expiry %s is not in the future", shared.ErrEligibilityUnmet, expiresAt.Format(time.RFC3339))
	}

	isTechnician, err := s.roles.HasRole(ctx, principalID, shared.RoleTechnician)
	if err != nil {
		return Grant{}, fmt.Errorf("elevation: base eligibility: %w", err)
	}
	if !isTechnician {
		// Base role granted first as a side effect, then the elevation on top.
		if err := s.roles.AssignRole(ctx, actorID, principalID, shared.RoleTechnician, nil); err != nil {
			return Grant{}, fmt.Errorf("elevation: grant base role: %w", err)
		}
	}

	// Passive cleanup: an expired prior grant of the same role must not
	// trip the unique constraint below.
	if err := s.repo.DeleteExpiredGrant(ctx, principalID, roleName, now); err != nil {
		return Grant{}, fmt.Errorf("elevation: expired cleanup: %w", err)
	}

	email, err := s.repo.InsertGrant(ctx, principalID, roleName, expiresAt, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrElevationConflict) {
			return Grant{}, shared.ErrElevationConflict
		}
		s.logGrantFailure(actorID, principalID, roleName, err)
		return Grant{}, fmt.Errorf("elevation: insert grant: %w", err)
	}

	grant := Grant{
		PrincipalID:    principalID,
		PrincipalEmail: email,
		RoleName:       roleName,
		GrantedBy:      actorID,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
	}
	s.record(ctx, principalID, "elevation.granted",
		fmt.Sprintf("granted %s until %s", roleName, expiresAt.Format(time.RFC3339)),
		map[string]any{"role": roleName, "actor_id": actorID, "expires_at": expiresAt})

	if s.notifier != nil {
		if err := s.notifier.NotifyGranted(ctx, grant); err != nil && s.logger != nil {
			s.logger.Warn("elevation notify", slog.Any("error", err))
		}
	}
	return grant, nil
}

// IsExpired reports whether the grant is expired as of now.
func (s *Service) IsExpired(grant Grant) bool {
	return grant.Expired(s.now())
}

// Revoke removes a time-boxed grant before its expiry.
func (s *Service) Revoke(ctx context.Context, actorID, principalID int64, roleName string) error {
	isSuper, err := s.roles.HasRole(ctx, actorID, shared.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("elevation: actor check: %w", err)
	}
	if !isSuper {
		return shared.ErrPermissionAssignmentForbidden
	}
	removed, err := s.repo.DeleteGrant(ctx, principalID, roleName)
	if err != nil {
		return fmt.Errorf("elevation: revoke: %w", err)
	}
	if removed == 0 {
		return shared.ErrNotFound
	}
	s.record(ctx, principalID, "elevation.revoked", "revoked "+roleName,
		map[string]any{"role": roleName, "actor_id": actorID})
	return nil
}

// ListActive returns live time-boxed grants.
func (s *Service) ListActive(ctx context.Context) ([]Grant, error) {
	return s.repo.ListActive(ctx, s.now())
}

// SweepExpired deletes expired grants. Safe to run on any schedule or not at
// all: expiry is enforced redundantly at read time, so a delayed sweep only
// costs storage, never correctness.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("elevation: sweep: %w", err)
	}
	if removed > 0 && s.logger != nil {
		s.logger.Info("swept expired elevation grants", slog.Int64("removed", removed))
	}
	return removed, nil
}

func (s *Service) record(ctx context.Context, principalID int64, event, description string, meta map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.RecordAsync(ctx, shared.ActivityEntry{
		PrincipalID: principalID,
		Event:       event,
		Description: description,
		Meta:        meta,
		At:          s.now(),
	})
}

func (s *Service) warn(msg string, actorID, principalID int64, roleName string) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg,
		slog.Int64("actor_id", actorID),
		slog.Int64("principal_id", principalID),
		slog.String("role", roleName))
}

func (s *Service) logGrantFailure(actorID, principalID int64, roleName string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Error("elevation grant failed",
		slog.Int64("actor_id", actorID),
		slog.Int64("principal_id", principalID),
		slog.String("role", roleName),
		slog.Any("error", err))
}
