package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/admingrid/internal/grid"
)

const effectivePermissions = `SELECT DISTINCT p.name
FROM user_roles ur
JOIN role_permissions rp ON rp.role_id = ur.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
ORDER BY p.name`

// Service reads role assignments from PostgreSQL.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, effectivePermissions, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions: %w", err)
	}
	perms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rbac: scan permissions: %w", err)
	}
	return perms, nil
}

// PermissionLookup is satisfied by Service.
type PermissionLookup interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Resolver turns a session user into the grid access context.
type Resolver struct {
	Permissions PermissionLookup
	Logger      *slog.Logger
}

// Resolve implements the grid handler's access resolver. Users whose id is
// not numeric are treated as authenticated without capabilities.
func (r Resolver) Resolve(ctx context.Context, userID string) (grid.Access, error) {
	raw := strings.TrimSpace(userID)
	if raw == "" {
		return grid.Guest(), nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return grid.NewAccess(true), nil
	}
	granted, err := r.Permissions.EffectivePermissions(ctx, id)
	if err != nil {
		return nil, err
	}
	return grid.NewAccess(true, normalizePermissions(granted)...), nil
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, seen := unique[p]; seen {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
