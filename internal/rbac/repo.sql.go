package rbac

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// RoleGrants returns every role grant of the principal, expired ones included.
func (r *PGRepository) RoleGrants(ctx context.Context, principalID int64) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.name, pr.expires_at, pr.granted_by, pr.created_at
		FROM principal_roles pr
		JOIN roles ro ON ro.id = pr.role_id
		WHERE pr.principal_id = $1`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var grant RoleGrant
		// granted_by is NULL for seeded or administrative assignments with
		// no recorded actor; zero means unknown.
		var grantedBy *int64
		if err := rows.Scan(&grant.RoleName, &grant.ExpiresAt, &grantedBy, &grant.CreatedAt); err != nil {
			return nil, err
		}
		if grantedBy != nil {
			grant.GrantedBy = *grantedBy
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// RolePermissions returns the current bundle of the named role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleName string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name
		FROM role_permissions rp
		JOIN roles ro ON ro.id = rp.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ro.name = $1`, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// Overrides returns the principal's direct permission overrides.
func (r *PGRepository) Overrides(ctx context.Context, principalID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, po.is_active
		FROM principal_permissions po
		JOIN permissions p ON p.id = po.permission_id
		WHERE po.principal_id = $1`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.Permission, &o.Active); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// AssignRole grants a role idempotently. Re-granting an existing role
// refreshes its expiry rather than erroring; the elevation path, which must
// report conflicts instead, uses its own strict insert.
func (r *PGRepository) AssignRole(ctx context.Context, principalID int64, roleName string, expiresAt *time.Time, grantedBy int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO principal_roles (principal_id, role_id, expires_at, granted_by, created_at)
		SELECT $1, ro.id, $2, $3, NOW() FROM roles ro WHERE ro.name = $4
		ON CONFLICT (principal_id, role_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		principalID, expiresAt, grantedBy, roleName)
	return err
}

// RemoveRole deletes a role grant.
func (r *PGRepository) RemoveRole(ctx context.Context, principalID int64, roleName string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM principal_roles pr
		USING roles ro
		WHERE pr.role_id = ro.id AND pr.principal_id = $1 AND ro.name = $2`,
		principalID, roleName)
	return err
}

// SetOverride upserts a direct override flag.
func (r *PGRepository) SetOverride(ctx context.Context, principalID int64, permission string, active bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO principal_permissions (principal_id, permission_id, is_active, updated_at)
		SELECT $1, p.id, $2, NOW() FROM permissions p WHERE p.name = $3
		ON CONFLICT (principal_id, permission_id) DO UPDATE SET is_active = EXCLUDED.is_active, updated_at = NOW()`,
		principalID, active, permission)
	return err
}

var _ Repository = (*PGRepository)(nil)
