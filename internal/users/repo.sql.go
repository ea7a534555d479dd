package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAccounts returns all principals with their live role names.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.email, p.name, p.is_active, p.is_verified, p.is_available, p.created_at, p.updated_at,
		       COALESCE(array_agg(ro.name ORDER BY ro.name) FILTER (
		           WHERE ro.name IS NOT NULL AND (pr.expires_at IS NULL OR pr.expires_at > NOW())
		       ), '{}')
		FROM principals p
		LEFT JOIN principal_roles pr ON pr.principal_id = p.id
		LEFT JOIN roles ro ON ro.id = pr.role_id
		GROUP BY p.id
		ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.IsActive, &a.IsVerified, &a.IsAvailable, &a.CreatedAt, &a.UpdatedAt, &a.Roles); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccount fetches one principal.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, is_active, is_verified, is_available, created_at, updated_at
		FROM principals WHERE id = $1`, id).
		Scan(&a.ID, &a.Email, &a.Name, &a.IsActive, &a.IsVerified, &a.IsAvailable, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// SetFlags updates the account-level gates. Deactivation takes effect at the
// next authorization check; live sessions are not chased here.
func (r *Repository) SetFlags(ctx context.Context, id int64, isActive, isVerified, isAvailable bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principals
		SET is_active = $2, is_verified = $3, is_available = $4, updated_at = NOW()
		WHERE id = $1`, id, isActive, isVerified, isAvailable)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
