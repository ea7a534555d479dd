package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Internal audit reasons. The caller-facing message stays uniform for the
// first three; operators get the full story in the activity log.
const (
	EventLogin  = "auth.login"
	EventLogout = "auth.logout"
	EventLocked = "auth.login.locked"
	EventDenied = "auth.login.denied"

	reasonUnknownIdentifier = "unknown_identifier"
	reasonWrongSecret       = "wrong_secret"
	reasonWrongGuard        = "wrong_guard"
	reasonUnverified        = "unverified"
	reasonDeactivated       = "deactivated"
)

// dummyHash burns a bcrypt compare on unknown identifiers so response timing
// does not reveal whether an account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)

// ActivityRecorder receives audit events. Implementations must not block the
// login decision; shared.ActivityLogger writes off-goroutine.
type ActivityRecorder interface {
	RecordAsync(ctx context.Context, entry shared.ActivityEntry)
}

// PermissionChecker answers "may principal P do X". Satisfied by
// *rbac.Service, the single source of truth for that question.
type PermissionChecker interface {
	Has(ctx context.Context, principalID int64, permission string) (bool, error)
}

// MetricsRecorder counts login outcomes. Optional.
type MetricsRecorder interface {
	ObserveLogin(guard, outcome string)
	ObserveLockout(guard string)
}

// LockoutPolicy holds the attempt threshold and the asymmetric per-guard
// recovery windows. The admin window is deliberately the shortest and
// strictest entry point.
type LockoutPolicy struct {
	MaxAttempts int
	AdminWindow time.Duration
	StaffWindow time.Duration
}

// Window returns the lockout window for a guard class.
func (p LockoutPolicy) Window(guard GuardClass) time.Duration {
	if guard == GuardAdmin {
		return p.AdminWindow
	}
	return p.StaffWindow
}

// Service is the session authority: the one entry point the controller layer
// calls for login, logout, identity and authorization questions.
type Service struct {
	repo     Repository
	limiter  *Limiter
	sessions *shared.SessionManager
	perms    PermissionChecker
	activity ActivityRecorder
	metrics  MetricsRecorder
	policy   LockoutPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, limiter *Limiter, sessions *shared.SessionManager, perms PermissionChecker, activity ActivityRecorder, policy LockoutPolicy, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		limiter:  limiter,
		sessions: sessions,
		perms:    perms,
		activity: activity,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches a metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Login runs the full sequence: limiter gate, credential check, guard
// membership, account flags, then binding. Binding a guard logs every other
// guard out of the session and rotates the session identifier.
func (s *Service) Login(ctx context.Context, sess *shared.Session, guard GuardClass, email, password, origin string) (LoginResult, error) {
	// Idempotent re-login: a principal already bound under this same guard
	// short-circuits before the limiter and the credential check.
	if raw, ok := sess.GuardPrincipal(string(guard)); ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			principal, err := s.repo.FindByID(ctx, id)
			if err == nil && principal.IsActive {
				return LoginResult{Code: OutcomeOK, Principal: principal}, nil
			}
			// Stale or deactivated binding: drop it and fall through to a
			// fresh authentication.
			sess.ClearGuard(string(guard))
		}
	}

	key := LimitKey{Guard: guard, Identifier: email, Origin: origin}

	attempt, err := s.limiter.Check(ctx, key)
	if err != nil {
		return s.fail(guard, err)
	}
	if !attempt.Allowed {
		s.observe(guard, OutcomeRateLimited)
		if s.metrics != nil {
			s.metrics.ObserveLockout(string(guard))
		}
		s.record(ctx, 0, EventLocked, fmt.Sprintf("login rejected while locked out (guard=%s origin=%s)", guard, origin), map[string]any{
			"guard": string(guard), "identifier": email, "origin": origin,
			"retry_after_seconds": int(attempt.RetryAfter.Seconds()),
		})
		return LoginResult{Code: OutcomeRateLimited, Message: msgRateLimited, RetryAfter: attempt.RetryAfter}, nil
	}

	principal, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Constant-time rejection: unknown identifiers still pay the
			// hashing cost.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return s.deny(ctx, sess, guard, key, email, origin, 0, reasonUnknownIdentifier)
		}
		return s.fail(guard, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return s.deny(ctx, sess, guard, key, email, origin, principal.ID, reasonWrongSecret)
	}

	if err := guard.Eligible(principal, s.now()); err != nil {
		return s.deny(ctx, sess, guard, key, email, origin, principal.ID, reasonWrongGuard)
	}

	if !principal.IsActive {
		// Past the identity-confirmation boundary: this one reason is safe
		// to report distinctly.
		if _, err := s.limiter.RecordFailure(ctx, key, s.policy.Window(guard)); err != nil {
			return s.fail(guard, err)
		}
		s.observe(guard, OutcomeAccountDeactivated)
		s.record(ctx, principal.ID, EventDenied, "login denied: "+reasonDeactivated, denyMeta(guard, email, origin, reasonDeactivated))
		return LoginResult{Code: OutcomeAccountDeactivated, Message: msgAccountDeactivated}, nil
	}

	if !principal.IsVerified {
		return s.deny(ctx, sess, guard, key, email, origin, principal.ID, reasonUnverified)
	}

	if err := s.limiter.Clear(ctx, key); err != nil {
		return s.fail(guard, err)
	}

	cleared := sess.ClearGuards(string(guard))
	if err := s.sessions.Rotate(ctx, sess); err != nil {
		return s.fail(guard, err)
	}
	sess.BindGuard(string(guard), strconv.FormatInt(principal.ID, 10))

	expiresAt := s.now().Add(s.sessions.TTL())
	if err := s.repo.CreateSession(ctx, sess.ID, principal.ID, guard, expiresAt, origin, ""); err != nil {
		if s.logger != nil {
			s.logger.Warn("register session", slog.Any("error", err))
		}
	}

	s.observe(guard, OutcomeOK)
	s.record(ctx, principal.ID, EventLogin, fmt.Sprintf("logged in under %s guard", guard), map[string]any{
		"guard": string(guard), "origin": origin, "cleared_guards": cleared,
	})
	return LoginResult{Code: OutcomeOK, Principal: principal}, nil
}

// Logout clears the binding of one guard and rotates the session identity.
// Bindings of other guards, should any exist contrary to the single-binding
// invariant, are left untouched.
func (s *Service) Logout(ctx context.Context, sess *shared.Session, guard GuardClass) error {
	raw, ok := sess.GuardPrincipal(string(guard))
	if !ok {
		return nil
	}
	oldID := sess.ID
	sess.ClearGuard(string(guard))
	if err := s.sessions.Rotate(ctx, sess); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
	}
	if err := s.repo.DeleteSession(ctx, oldID); err != nil {
		if s.logger != nil {
			s.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	principalID, _ := strconv.ParseInt(raw, 10, 64)
	s.record(ctx, principalID, EventLogout, fmt.Sprintf("logged out of %s guard", guard), map[string]any{
		"guard": string(guard),
	})
	return nil
}

// Authorize reports whether the principal bound under the guard holds the
// permission. Unbound sessions are never authorized.
func (s *Service) Authorize(ctx context.Context, sess *shared.Session, guard GuardClass, permission string) (bool, error) {
	raw, ok := sess.GuardPrincipal(string(guard))
	if !ok {
		return false, nil
	}
	principalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return s.perms.Has(ctx, principalID, permission)
}

// CurrentIdentity returns the principal bound under the guard, or nil when
// the guard holds no binding.
func (s *Service) CurrentIdentity(ctx context.Context, sess *shared.Session, guard GuardClass) (*Principal, error) {
	raw, ok := sess.GuardPrincipal(string(guard))
	if !ok {
		return nil, nil
	}
	principalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}
	principal, err := s.repo.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return principal, nil
}

// deny records a failed attempt and returns the uniform external answer.
func (s *Service) deny(ctx context.Context, sess *shared.Session, guard GuardClass, key LimitKey, email, origin string, principalID int64, reason string) (LoginResult, error) {
	remaining, err := s.limiter.RecordFailure(ctx, key, s.policy.Window(guard))
	if err != nil {
		return s.fail(guard, err)
	}
	s.observe(guard, OutcomeInvalidCredentials)
	s.record(ctx, principalID, EventDenied, "login denied: "+reason, denyMeta(guard, email, origin, reason))
	return LoginResult{Code: OutcomeInvalidCredentials, Message: msgInvalidCredentials, Remaining: remaining}, nil
}

func (s *Service) fail(guard GuardClass, err error) (LoginResult, error) {
	if s.logger != nil {
		s.logger.Error("session authority", slog.String("guard", string(guard)), slog.Any("error", err))
	}
	s.observe(guard, OutcomeFailure)
	return LoginResult{Code: OutcomeFailure, Message: msgInternalFailure},
		fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
}

func (s *Service) observe(guard GuardClass, outcome OutcomeCode) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(string(guard), string(outcome))
	}
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

func denyMeta(guard GuardClass, email, origin, reason string) map[string]any {
	return map[string]any{
		"guard": string(guard), "identifier": email, "origin": origin, "reason": reason,
	}
}
