package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id int64) (*Principal, error)
	CreateSession(ctx context.Context, id string, principalID int64, guard GuardClass, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a principal with its role grants.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.findBy(ctx, `WHERE email = $1`, email)
}

// FindByID fetches a principal with its role grants.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return r.findBy(ctx, `WHERE id = $1`, id)
}

func (r *PGRepository) findBy(ctx context.Context, where string, arg any) (*Principal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, is_active, is_verified, is_available, created_at, updated_at
		FROM principals `+where, arg)
	var p Principal
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.IsActive, &p.IsVerified, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ro.name, pr.expires_at, pr.granted_by, pr.created_at
		FROM principal_roles pr
		JOIN roles ro ON ro.id = pr.role_id
		WHERE pr.principal_id = $1`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var grant rbac.RoleGrant
		// granted_by is NULL for seeded or administrative assignments with
		// no recorded actor; zero means unknown.
		var grantedBy *int64
		if err := rows.Scan(&grant.RoleName, &grant.ExpiresAt, &grantedBy, &grant.CreatedAt); err != nil {
			return nil, err
		}
		if grantedBy != nil {
			grant.GrantedBy = *grantedBy
		}
		p.Roles = append(p.Roles, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateSession persists a login session row for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, principalID int64, guard GuardClass, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_sessions (id, principal_id, guard, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`,
		id, principalID, string(guard), now, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session row.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
