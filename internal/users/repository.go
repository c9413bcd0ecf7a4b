package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/platform/db"
	"github.com/odyssey-erp/admingrid/internal/shared"
)

// Repository provides PostgreSQL backed persistence for grid actions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SetActive flips is_active for the given users.
func (r *Repository) SetActive(ctx context.Context, ids []int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = ANY($1)`, ids, active)
	if err != nil {
		return fmt.Errorf("users: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: set active: %w", shared.ErrNotFound)
	}
	return nil
}

// Delete removes a user together with its role assignments and saved grid
// preferences.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM user_roles WHERE user_id = $1`,
			`DELETE FROM user_preferences WHERE user_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("users: delete %d: %w", id, err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("users: delete %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("users: delete %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}

// RoleOptions lists role names for the role filter.
func (r *Repository) RoleOptions(ctx context.Context) ([]grid.Option, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, COALESCE(NULLIF(description, ''), name) FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("users: role options: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (grid.Option, error) {
		var opt grid.Option
		err := row.Scan(&opt.Value, &opt.Label)
		return opt, err
	})
}
