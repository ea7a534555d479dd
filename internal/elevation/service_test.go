package elevation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
	_ "github.com/AceBNeato/sdmdweb-sub001/testing"
)

// memRoleRepo is an in-memory rbac.Repository; just enough for role checks
// and the base-role side effect.
type memRoleRepo struct {
	grants map[int64][]rbac.RoleGrant
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{grants: make(map[int64][]rbac.RoleGrant)}
}

func (m *memRoleRepo) RoleGrants(ctx context.Context, principalID int64) ([]rbac.RoleGrant, error) {
	return m.grants[principalID], nil
}

func (m *memRoleRepo) RolePermissions(ctx context.Context, roleName string) ([]string, error) {
	return nil, nil
}

func (m *memRoleRepo) Overrides(ctx context.Context, principalID int64) ([]rbac.Override, error) {
	return nil, nil
}

func (m *memRoleRepo) AssignRole(ctx context.Context, principalID int64, roleName string, expiresAt *time.Time, grantedBy int64) error {
	m.grants[principalID] = append(m.grants[principalID], rbac.RoleGrant{RoleName: roleName, ExpiresAt: expiresAt, GrantedBy: grantedBy})
	return nil
}

func (m *memRoleRepo) RemoveRole(ctx context.Context, principalID int64, roleName string) error {
	kept := m.grants[principalID][:0]
	for _, g := range m.grants[principalID] {
		if g.RoleName != roleName {
			kept = append(kept, g)
		}
	}
	m.grants[principalID] = kept
	return nil
}

func (m *memRoleRepo) SetOverride(ctx context.Context, principalID int64, permission string, active bool) error {
	return nil
}

type grantKey struct {
	principalID int64
	roleName    string
}

// memGrantRepo mimics the unique (principal, role) constraint the real table
// enforces, and hands back the principal's email the way the insert's
// RETURNING clause does.
type memGrantRepo struct {
	mu     sync.Mutex
	grants map[grantKey]Grant
	emails map[int64]string
}

func newMemGrantRepo(emails map[int64]string) *memGrantRepo {
	return &memGrantRepo{grants: make(map[grantKey]Grant), emails: emails}
}

func (m *memGrantRepo) InsertGrant(ctx context.Context, principalID int64, roleName string, expiresAt time.Time, grantedBy int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey{principalID, roleName}
	if _, exists := m.grants[key]; exists {
		return "", shared.ErrElevationConflict
	}
	email := m.emails[principalID]
	m.grants[key] = Grant{PrincipalID: principalID, PrincipalEmail: email, RoleName: roleName, ExpiresAt: expiresAt, GrantedBy: grantedBy}
	return email, nil
}

func (m *memGrantRepo) DeleteExpiredGrant(ctx context.Context, principalID int64, roleName string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey{principalID, roleName}
	if g, ok := m.grants[key]; ok && g.Expired(now) {
		delete(m.grants, key)
	}
	return nil
}

func (m *memGrantRepo) DeleteGrant(ctx context.Context, principalID int64, roleName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := grantKey{principalID, roleName}
	if _, ok := m.grants[key]; !ok {
		return 0, nil
	}
	delete(m.grants, key)
	return 1, nil
}

func (m *memGrantRepo) ListActive(ctx context.Context, now time.Time) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Grant
	for _, g := range m.grants {
		if !g.Expired(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGrantRepo) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, g := range m.grants {
		if g.Expired(now) {
			delete(m.grants, key)
			removed++
		}
	}
	return removed, nil
}

const (
	superID = int64(1)
	adminID = int64(2)
	techID  = int64(3)
)

type elevationFixture struct {
	service *Service
	roles   *memRoleRepo
	grants  *memGrantRepo
	now     time.Time
}

func newFixture(t *testing.T) *elevationFixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	roles := newMemRoleRepo()
	roles.grants[superID] = []rbac.RoleGrant{{RoleName: shared.RoleSuperAdmin}}
	roles.grants[adminID] = []rbac.RoleGrant{{RoleName: shared.RoleAdmin}}
	roles.grants[techID] = []rbac.RoleGrant{{RoleName: shared.RoleTechnician}}

	clock := func() time.Time { return now }
	roleService := rbac.NewService(roles, nil).WithClock(clock)
	grants := newMemGrantRepo(map[int64]string{
		superID: "super@test.local",
		adminID: "admin@test.local",
		techID:  "tech@test.local",
	})
	service := NewService(grants, roleService, nil, nil).WithClock(clock)
	return &elevationFixture{service: service, roles: roles, grants: grants, now: now}
}

// captureNotifier records the grants handed to it.
type captureNotifier struct {
	grants []Grant
}

func (c *captureNotifier) NotifyGranted(ctx context.Context, grant Grant) error {
	c.grants = append(c.grants, grant)
	return nil
}

func TestGrantTemporary(t *testing.T) {
	fx := newFixture(t)
	expiry := fx.now.Add(4 * time.Hour)

	grant, err := fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, expiry)
	require.NoError(t, err)
	assert.Equal(t, techID, grant.PrincipalID)
	assert.Equal(t, "tech@test.local", grant.PrincipalEmail)
	assert.Equal(t, shared.RoleStaff, grant.RoleName)
	assert.Equal(t, superID, grant.GrantedBy)
	assert.Equal(t, expiry, grant.ExpiresAt)

	active, err := fx.service.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestGrantTemporaryNotifiesPrincipal(t *testing.T) {
	fx := newFixture(t)
	notifier := &captureNotifier{}
	fx.service.WithNotifier(notifier)

	_, err := fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, fx.now.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, notifier.grants, 1)
	got := notifier.grants[0]
	// The mail goes to the target, so the grant must carry their address.
	assert.Equal(t, "tech@test.local", got.PrincipalEmail)
	assert.NotEmpty(t, got.PrincipalEmail)
	assert.Equal(t, shared.RoleStaff, got.RoleName)

	// A denied grant never notifies.
	_, err = fx.service.GrantTemporary(context.Background(), adminID, techID, shared.RoleAdmin, fx.now.Add(time.Hour))
	require.ErrorIs(t, err, shared.ErrPermissionAssignmentForbidden)
	assert.Len(t, notifier.grants, 1)
}

func TestGrantTemporaryRequiresSuperAdmin(t *testing.T) {
	fx := newFixture(t)
	expiry := fx.now.Add(time.Hour)

	_, err := fx.service.GrantTemporary(context.Background(), adminID, techID, shared.RoleStaff, expiry)
	require.ErrorIs(t, err, shared.ErrPermissionAssignmentForbidden)

	active, err := fx.service.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGrantTemporaryNeverTopTier(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleSuperAdmin, fx.now.Add(time.Hour))
	require.ErrorIs(t, err, shared.ErrPermissionAssignmentForbidden)
}

func TestGrantTemporaryExpiryMustBeFuture(t *testing.T) {
	fx := newFixture(t)

	for _, expiry := range []time.Time{fx.now, fx.now.Add(-time.Minute)} {
		_, err := fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, expiry)
		require.ErrorIs(t, err, shared.ErrEligibilityUnmet)
	}
}

func TestGrantTemporaryConflict(t *testing.T) {
	fx := newFixture(t)
	expiry := fx.now.Add(time.Hour)

	_, err := fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, expiry)
	require.NoError(t, err)

	// A live grant of the same role is a conflict, never a silent overwrite.
	_, err = fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, fx.now.Add(8*time.Hour))
	require.ErrorIs(t, err, shared.ErrElevationConflict)

	// A different role on the same principal is fine.
	_, err = fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleAdmin, expiry)
	require.NoError(t, err)
}

func TestGrantTemporaryAfterExpirySucceeds(t *testing.T) {
	fx := newFixture(t)
	expiry := fx.now.Add(time.Hour)

	_, err := fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, expiry)
	require.NoError(t, err)

	// The clock passes the expiry without any sweep having run. The expired
	// grant is cleaned up in passing and the re-grant succeeds.
	later := expiry.Add(time.Minute)
	fx.service.WithClock(func() time.Time { return later })

	_, err = fx.service.GrantTemporary(context.Background(), superID, techID, shared.RoleStaff, later.Add(time.Hour))
	require.NoError(t, err)
}

func TestGrantTemporaryAddsBaseRole(t *testing.T) {
	fx := newFixture(t)
	outsider := int64(99)

	_, err := fx.service.GrantTemporary(context.Background(), superID, outsider, shared.RoleStaff, fx.now.Add(time.Hour))
	require.NoError(t, err)

	var roleNames []string
	for _, g := range fx.roles.grants[outsider] {
		roleNames = append(roleNames, g.RoleName)
	}
	assert.Contains(t, roleNames, shared.RoleTechnician, "target gains the base role first")
}

func TestRevoke(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.GrantTemporary(ctx, superID, techID, shared.RoleStaff, fx.now.Add(time.Hour))
	require.NoError(t, err)

	require.ErrorIs(t, fx.service.Revoke(ctx, adminID, techID, shared.RoleStaff), shared.ErrPermissionAssignmentForbidden)
	require.NoError(t, fx.service.Revoke(ctx, superID, techID, shared.RoleStaff))
	require.ErrorIs(t, fx.service.Revoke(ctx, superID, techID, shared.RoleStaff), shared.ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.service.GrantTemporary(ctx, superID, techID, shared.RoleStaff, fx.now.Add(time.Hour))
	require.NoError(t, err)
	_, err = fx.service.GrantTemporary(ctx, superID, techID, shared.RoleAdmin, fx.now.Add(10*time.Hour))
	require.NoError(t, err)

	later := fx.now.Add(2 * time.Hour)
	fx.service.WithClock(func() time.Time { return later })

	removed, err := fx.service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	active, err := fx.service.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, shared.RoleAdmin, active[0].RoleName)

	// Idempotent.
	removed, err = fx.service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestIsExpired(t *testing.T) {
	fx := newFixture(t)
	grant := Grant{ExpiresAt: fx.now.Add(time.Minute)}
	assert.False(t, fx.service.IsExpired(grant))

	grant.ExpiresAt = fx.now
	assert.True(t, fx.service.IsExpired(grant))
}
