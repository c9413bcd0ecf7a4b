// Package users hosts the "users" grid: its definition, SQL source and the
// actions it runs against the users table.
package users

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/admingrid/internal/grid"
	gridhttp "github.com/odyssey-erp/admingrid/internal/grid/http"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/query/pgsql"
	"github.com/odyssey-erp/admingrid/internal/shared"
)

// Entity is the grid key of the users grid. Preferences are stored under it.
const Entity = "users"

// Store is what the grid actions need from persistence.
type Store interface {
	SetActive(ctx context.Context, ids []int64, active bool) error
	Delete(ctx context.Context, id int64) error
	RoleOptions(ctx context.Context) ([]grid.Option, error)
}

const rolesByUser = `SELECT ur.user_id, r.id, r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = ANY($1)
ORDER BY r.name`

// Source maps the users table for the pgsql backend. Roles are joined for
// search and filtering and attached to each row for display.
func Source() pgsql.Source {
	return pgsql.Source{
		Name:    Entity,
		Table:   "users",
		Columns: []string{"id", "name", "email", "is_active", "created_at", "updated_at"},
		Relations: map[string]pgsql.Relation{
			"roles": {Kind: pgsql.ManyToMany, Table: "roles", Pivot: "user_roles", ForeignKey: "user_id", RelatedKey: "role_id"},
		},
		Enrich: attachRoles,
	}
}

func attachRoles(ctx context.Context, db pgsql.Querier, rows []grid.Record) error {
	ids := make([]int64, 0, len(rows))
	for _, rec := range rows {
		if id, err := strconv.ParseInt(rec.ID(""), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	result, err := db.Query(ctx, rolesByUser, ids)
	if err != nil {
		return err
	}
	roles := make(map[string][]grid.Record, len(ids))
	var userID, roleID int64
	var name string
	_, err = pgx.ForEachRow(result, []any{&userID, &roleID, &name}, func() error {
		key := strconv.FormatInt(userID, 10)
		roles[key] = append(roles[key], grid.Record{"id": roleID, "name": name})
		return nil
	})
	if err != nil {
		return err
	}
	for _, rec := range rows {
		related := roles[rec.ID("")]
		if related == nil {
			related = []grid.Record{}
		}
		rec["roles"] = related
	}
	return nil
}

// Parts declares the users grid. cfg may be nil; a catalog entry adds its
// filters, sorts and default sort on top.
func Parts(store Store, cfg grid.Config) grid.Parts {
	headers := grid.Columns(
		grid.NewColumn("name", "Name").Sortable().Searchable(),
		grid.NewColumn("email", "Email").Sortable().Searchable(),
		grid.NewColumn("roles.name", "Roles").Searchable().Gate(shared.PermRolesView),
		grid.NewColumn("is_active", "Status").
			Render(grid.RenderBadge).
			Content(func(rec grid.Record) any {
				if active, _ := rec["is_active"].(bool); active {
					return "active"
				}
				return "inactive"
			}).
			Variants(map[string]string{"active": "success", "inactive": "muted"}),
		grid.NewColumn("created_at", "Joined").Sortable().Render(grid.RenderDate),
	)
	headers = append(headers, grid.NewHeader("Actions").VisibleWhen(func(a grid.Access) bool {
		return a.Can(shared.PermUsersEdit) || a.Can(shared.PermUsersDelete)
	}))

	return grid.Parts{
		Entity:  Entity,
		Headers: headers,
		Filters: []*grid.Filter{
			grid.NewFilter("active", "Active", grid.FilterBoolean).Column("is_active"),
			grid.NewFilter("role", "Role", grid.FilterMultiSelect).
				Relationship("roles", "name").
				OptionsFrom(store.RoleOptions).
				Gate(shared.PermRolesView),
			grid.NewFilter("joined", "Joined", grid.FilterDateRange).Column("created_at"),
		},
		RowActions: []*grid.RowAction{
			grid.NewRowAction("edit", "Edit").Icon("pencil").Modal("users/edit").Gate(shared.PermUsersEdit),
			grid.NewRowAction("deactivate", "Deactivate").
				Icon("pause").
				Confirm("Deactivate this user? They will no longer be able to sign in.").
				When(isActive).
				Gate(shared.PermUsersEdit).
				Execute(func(ctx context.Context, rec grid.Record) error {
					return setActive(ctx, store, []string{rec.ID("")}, false)
				}),
			grid.NewRowAction("activate", "Activate").
				Icon("play").
				When(func(rec grid.Record) bool { return !isActive(rec) }).
				Gate(shared.PermUsersEdit).
				Execute(func(ctx context.Context, rec grid.Record) error {
					return setActive(ctx, store, []string{rec.ID("")}, true)
				}),
			grid.NewRowAction("delete", "Delete").
				Icon("trash").
				Variant("danger").
				Confirm("Delete this user permanently?").
				Gate(shared.PermUsersDelete).
				Execute(func(ctx context.Context, rec grid.Record) error {
					id, err := parseIDs([]string{rec.ID("")})
					if err != nil {
						return err
					}
					return store.Delete(ctx, id[0])
				}),
		},
		BulkActions: []*grid.BulkAction{
			grid.NewBulkAction("activate", "Activate").
				Gate(shared.PermUsersEdit).
				Execute(func(ctx context.Context, ids []string) error {
					return setActive(ctx, store, ids, true)
				}),
			grid.NewBulkAction("deactivate", "Deactivate").
				Variant("danger").
				Confirm("Deactivate the selected users?").
				Gate(shared.PermUsersEdit).
				Execute(func(ctx context.Context, ids []string) error {
					return setActive(ctx, store, ids, false)
				}),
		},
		DefaultSort: grid.Sort{Column: "created_at", Direction: grid.Desc},
		PerPage:     25,
		RowClick:    "edit",
		Config:      cfg,
	}
}

// Grid registers the users grid with the grid handler.
func Grid(store Store, pipeline *query.Pipeline, cfg grid.Config) gridhttp.Grid {
	return gridhttp.Grid{
		Entity:   Entity,
		Title:    "Users",
		Gate:     shared.PermUsersView,
		Pipeline: pipeline,
		Base:     query.From(Entity),
		Compile: func(access grid.Access) (*grid.Definition, error) {
			return grid.Compile(access, Parts(store, cfg))
		},
	}
}

func isActive(rec grid.Record) bool {
	active, _ := rec["is_active"].(bool)
	return active
}

func setActive(ctx context.Context, store Store, raw []string, active bool) error {
	ids, err := parseIDs(raw)
	if err != nil {
		return err
	}
	return store.SetActive(ctx, ids, active)
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("users: invalid id %q: %w", r, shared.ErrNotFound)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
