// Package roles hosts the "roles" grid.
package roles

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

// Entity is the grid key of the roles grid.
const Entity = "roles"

// Store is what the grid actions need from persistence.
type Store interface {
	Delete(ctx context.Context, id int64) error
	PermissionOptions(ctx context.Context) ([]grid.Option, error)
}

const roleDetails = `SELECT r.id,
	COALESCE((SELECT array_agg(p.name ORDER BY p.name)
		FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = r.id), '{}') AS permissions,
	(SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id) AS members
FROM roles r
WHERE r.id = ANY($1)`

// Source maps the roles table. Permissions are joined for search and
// filtering; names and member counts are attached per row.
func Source() pgsql.Source {
	return pgsql.Source{
		Name:    Entity,
		Table:   "roles",
		Columns: []string{"id", "name", "description", "created_at", "updated_at"},
		Relations: map[string]pgsql.Relation{
			"permissions": {Kind: pgsql.ManyToMany, Table: "permissions", Pivot: "role_permissions", ForeignKey: "role_id", RelatedKey: "permission_id"},
		},
		Enrich: attachDetails,
	}
}

func attachDetails(ctx context.Context, db pgsql.Querier, rows []grid.Record) error {
	ids := make([]int64, 0, len(rows))
	for _, rec := range rows {
		if id, err := strconv.ParseInt(rec.ID(""), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	result, err := db.Query(ctx, roleDetails, ids)
	if err != nil {
		return err
	}
	type details struct {
		permissions []grid.Record
		members     int64
	}
	byID := make(map[string]details, len(ids))
	var id, members int64
	var names []string
	_, err = pgx.ForEachRow(result, []any{&id, &names, &members}, func() error {
		perms := make([]grid.Record, 0, len(names))
		for _, name := range names {
			perms = append(perms, grid.Record{"name": name})
		}
		byID[strconv.FormatInt(id, 10)] = details{permissions: perms, members: members}
		return nil
	})
	if err != nil {
		return err
	}
	for _, rec := range rows {
		d, ok := byID[rec.ID("")]
		if !ok {
			d.permissions = []grid.Record{}
		}
		rec["permissions"] = d.permissions
		rec["members"] = d.members
	}
	return nil
}

// Parts declares the roles grid.
func Parts(store Store, cfg grid.Config) grid.Parts {
	headers := grid.Columns(
		grid.NewColumn("name", "Role").Sortable().Searchable(),
		grid.NewColumn("description", "Description").Searchable(),
		grid.NewColumn("permissions.name", "Permissions").Searchable(),
		grid.NewColumn("members", "Members").Render(grid.RenderNumber),
		grid.NewColumn("updated_at", "Updated").Sortable().Render(grid.RenderDateTime),
	)
	headers = append(headers, grid.NewHeader("Actions").Gate(shared.PermRolesEdit))

	return grid.Parts{
		Entity:  Entity,
		Headers: headers,
		Filters: []*grid.Filter{
			grid.NewFilter("permission", "Permission", grid.FilterMultiSelect).
				Relationship("permissions", "name").
				OptionsFrom(store.PermissionOptions),
		},
		RowActions: []*grid.RowAction{
			grid.NewRowAction("delete", "Delete").
				Icon("trash").
				Variant("danger").
				Confirm("Delete this role?").
				When(unassigned).
				Gate(shared.PermRolesEdit).
				Execute(func(ctx context.Context, rec grid.Record) error {
					id, err := strconv.ParseInt(rec.ID(""), 10, 64)
					if err != nil {
						return fmt.Errorf("roles: invalid id %q: %w", rec.ID(""), shared.ErrNotFound)
					}
					return store.Delete(ctx, id)
				}),
		},
		DefaultSort: grid.Sort{Column: "name", Direction: grid.Asc},
		PerPage:     25,
		Config:      cfg,
	}
}

// Grid registers the roles grid with the grid handler.
func Grid(store Store, pipeline *query.Pipeline, cfg grid.Config) gridhttp.Grid {
	return gridhttp.Grid{
		Entity:   Entity,
		Title:    "Roles",
		Gate:     shared.PermRolesView,
		Pipeline: pipeline,
		Base:     query.From(Entity),
		Compile: func(access grid.Access) (*grid.Definition, error) {
			return grid.Compile(access, Parts(store, cfg))
		},
	}
}

func unassigned(rec grid.Record) bool {
	switch n := rec["members"].(type) {
	case int64:
		return n == 0
	case int:
		return n == 0
	}
	return false
}
