package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/platform/db"
	"github.com/odyssey-erp/admingrid/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Delete removes an unassigned role and its permission grants. A role still
// held by a user is reported as not found.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1
AND NOT EXISTS (SELECT 1 FROM user_roles WHERE role_id = $1)`, id)
		if err != nil {
			return fmt.Errorf("roles: delete %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("roles: delete %d: %w", id, shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("roles: delete %d grants: %w", id, err)
		}
		return nil
	})
}

// PermissionOptions lists permission names for the permission filter.
func (r *Repository) PermissionOptions(ctx context.Context) ([]grid.Option, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, COALESCE(NULLIF(description, ''), name) FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("roles: permission options: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (grid.Option, error) {
		var opt grid.Option
		err := row.Scan(&opt.Value, &opt.Label)
		return opt, err
	})
}
