package elevation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AceBNeato/sdmdweb-sub001/internal/platform/db"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Repository defines persistence for time-boxed grants. Grants share the
// principal_roles table with ordinary role assignments; an elevation is
// simply a row with a non-null expiry.
type Repository interface {
	// InsertGrant is the strict check-then-insert: the storage layer's
	// unique constraint on (principal, role) decides the race, and a
	// violation surfaces as shared.ErrElevationConflict. On success it
	// returns the target principal's email, which the grant notification
	// needs and which no earlier step on the grant path loads.
	InsertGrant(ctx context.Context, principalID int64, roleName string, expiresAt time.Time, grantedBy int64) (string, error)
	// DeleteExpiredGrant removes an expired prior grant of the same role so
	// the unique constraint only ever compares against live grants.
	DeleteExpiredGrant(ctx context.Context, principalID int64, roleName string, now time.Time) error
	// DeleteGrant removes a time-boxed grant regardless of expiry.
	DeleteGrant(ctx context.Context, principalID int64, roleName string) (int64, error)
	ListActive(ctx context.Context, now time.Time) ([]Grant, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertGrant inserts a strict, conflict-reporting grant row and returns the
// target's email for the notification mail.
func (r *PGRepository) InsertGrant(ctx context.Context, principalID int64, roleName string, expiresAt time.Time, grantedBy int64) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO principal_roles (principal_id, role_id, expires_at, granted_by, created_at)
		SELECT $1, ro.id, $2, $3, NOW() FROM roles ro WHERE ro.name = $4
		RETURNING (SELECT email FROM principals WHERE id = principal_id)`,
		principalID, expiresAt, grantedBy, roleName).Scan(&email)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return "", shared.ErrElevationConflict
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return email, nil
}

// DeleteExpiredGrant passively cleans up an expired grant of the same role.
func (r *PGRepository) DeleteExpiredGrant(ctx context.Context, principalID int64, roleName string, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM principal_roles pr
		USING roles ro
		WHERE pr.role_id = ro.id
		  AND pr.principal_id = $1
		  AND ro.name = $2
		  AND pr.expires_at IS NOT NULL
		  AND pr.expires_at <= $3`,
		principalID, roleName, now)
	return err
}

// DeleteGrant removes a time-boxed grant (explicit revoke).
func (r *PGRepository) DeleteGrant(ctx context.Context, principalID int64, roleName string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM principal_roles pr
		USING roles ro
		WHERE pr.role_id = ro.id
		  AND pr.principal_id = $1
		  AND ro.name = $2
		  AND pr.expires_at IS NOT NULL`,
		principalID, roleName)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListActive returns every live time-boxed grant.
func (r *PGRepository) ListActive(ctx context.Context, now time.Time) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pr.principal_id, p.email, ro.name, pr.granted_by, pr.expires_at, pr.created_at
		FROM principal_roles pr
		JOIN roles ro ON ro.id = pr.role_id
		JOIN principals p ON p.id = pr.principal_id
		WHERE pr.expires_at IS NOT NULL AND pr.expires_at > $1
		ORDER BY pr.expires_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		var grantedBy *int64
		if err := rows.Scan(&g.PrincipalID, &g.PrincipalEmail, &g.RoleName, &grantedBy, &g.ExpiresAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		if grantedBy != nil {
			g.GrantedBy = *grantedBy
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// SweepExpired deletes every expired time-boxed grant. Idempotent,
// best-effort: read-time expiry filters keep authorization correct even if
// this never runs.
func (r *PGRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM principal_roles
		WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
