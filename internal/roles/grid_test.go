package roles

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/query/memory"
	"github.com/odyssey-erp/admingrid/internal/grid/query/pgsql"
	"github.com/odyssey-erp/admingrid/internal/shared"
)

type fakeStore struct {
	deleted []int64
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) PermissionOptions(context.Context) ([]grid.Option, error) {
	return []grid.Option{{Value: shared.PermUsersView}, {Value: shared.PermRolesEdit}}, nil
}

func perms(names ...string) []grid.Record {
	out := []grid.Record{}
	for _, n := range names {
		out = append(out, grid.Record{"name": n})
	}
	return out
}

func TestViewerCannotDelete(t *testing.T) {
	def, err := grid.Compile(grid.NewAccess(true, shared.PermRolesView), Parts(&fakeStore{}, nil))
	require.NoError(t, err)

	assert.Len(t, def.Headers, 5)
	assert.Empty(t, def.RowActions)
	assert.NotNil(t, def.Filter("permission"))
	assert.Equal(t, grid.Sort{Column: "name", Direction: grid.Asc}, def.DefaultSort)
}

func TestDeleteOnlyUnassignedRoles(t *testing.T) {
	store := &fakeStore{}
	def, err := grid.Compile(grid.NewAccess(true, shared.CoreScopes()...), Parts(store, nil))
	require.NoError(t, err)

	del := def.RowAction("delete")
	require.NotNil(t, del)
	assert.False(t, del.AvailableFor(grid.Record{"id": int64(1), "members": int64(3)}))
	assert.True(t, del.AvailableFor(grid.Record{"id": int64(2), "members": int64(0)}))
	assert.False(t, del.AvailableFor(grid.Record{"id": int64(4)}))

	require.NoError(t, del.Execute(context.Background(), grid.Record{"id": int64(2), "members": int64(0)}))
	assert.Equal(t, []int64{2}, store.deleted)

	err = del.Execute(context.Background(), grid.Record{"id": "abc"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPermissionFilterOverMemoryBackend(t *testing.T) {
	def, err := grid.Compile(grid.NewAccess(true, shared.PermRolesView), Parts(&fakeStore{}, nil))
	require.NoError(t, err)

	backend := memory.New()
	backend.Put(Entity, []grid.Record{
		{"id": int64(1), "name": "admin", "description": "Administrator", "members": int64(1),
			"permissions": perms(shared.PermUsersView, shared.PermRolesEdit)},
		{"id": int64(2), "name": "viewer", "description": "Read only", "members": int64(4),
			"permissions": perms(shared.PermUsersView)},
	})
	pipeline := query.NewPipeline(backend, query.PipelineOptions{})

	res, err := pipeline.Run(context.Background(), query.From(Entity), query.Request{Definition: def, State: grid.State{
		Filters: map[string][]string{"permission": {shared.PermRolesEdit}},
		Page:    1, PerPage: 10,
	}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "admin", res.Rows[0]["name"])

	res, err = pipeline.Run(context.Background(), query.From(Entity), query.Request{Definition: def, State: grid.State{
		Search: "read", Page: 1, PerPage: 10,
	}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "viewer", res.Rows[0]["name"])
}

func TestSourceJoinsPermissions(t *testing.T) {
	def, err := grid.Compile(grid.NewAccess(true, shared.PermRolesView), Parts(&fakeStore{}, nil))
	require.NoError(t, err)
	b := pgsql.New(nil, Source())
	q := query.NewPipeline(b, query.PipelineOptions{}).Build(query.From(Entity), query.Request{
		Definition: def,
		State:      grid.State{Filters: map[string][]string{"permission": {"users.view"}}},
	})

	sql, args, err := b.BuildSelect(q)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, `SELECT "t"."id", "t"."name", "t"."description"`), sql)
	assert.Contains(t, sql, `"role_permissions"`)
	assert.Contains(t, sql, `ORDER BY "t"."name" ASC`)
	assert.Contains(t, args, "users.view")
}
