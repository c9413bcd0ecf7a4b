package grid

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
version: 1
grids:
  users:
    searchable: [name, email]
    per_page: 50
    default_sort: {column: created_at, direction: desc}
    sortable:
      created_at: created_at
    filters:
      status:
        type: select
        label: Status
        options:
          - {value: active, label: Active}
          - {value: inactive, label: Inactive}
        value_mapping:
          active: true
          inactive: false
      role:
        type: relationship
        relationship: {relation: roles, column: id}
      team:
        type: select
        depends_on: role
`

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	entry, err := cat.Entry("users")
	require.NoError(t, err)
	assert.Equal(t, "users", entry.EntityKey())
	assert.Equal(t, []string{"name", "email"}, entry.SearchableFields())
	assert.Equal(t, 50, entry.PerPage())
	assert.Equal(t, Sort{Column: "created_at", Direction: Desc}, entry.DefaultSort())

	def, err := Compile(Guest(), Parts{Config: entry})
	require.NoError(t, err)
	assert.Equal(t, 50, def.PerPage)
	assert.Equal(t, true, def.Filter("status").Map("active"))
	assert.Equal(t, "roles", def.Filter("role").Relationship.Relation)
	assert.Equal(t, []string{"team"}, def.Dependents("role"))

	_, err = cat.Entry("orders")
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestLoadCatalogValidation(t *testing.T) {
	cases := map[string]string{
		"missing version": "grids:\n  users: {}\n",
		"bad filter type": "version: 1\ngrids:\n  users:\n    filters:\n      x: {type: regex}\n",
		"relationship without target": "version: 1\ngrids:\n  users:\n    filters:\n      x: {type: relationship}\n",
		"unknown parent": "version: 1\ngrids:\n  users:\n    filters:\n      x: {type: select, depends_on: y}\n",
		"per page too large": "version: 1\ngrids:\n  users:\n    per_page: 1000\n",
		"unknown field": "version: 1\ngrids:\n  users:\n    colour: red\n",
		"bad direction": "version: 1\ngrids:\n  users:\n    default_sort: {column: a, direction: up}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	fsys := fstest.MapFS{"grids.yaml": &fstest.MapFile{Data: []byte(sampleCatalog)}}
	cat, err := LoadCatalogFile(fsys, "grids.yaml")
	require.NoError(t, err)
	assert.Len(t, cat.Grids, 1)

	_, err = LoadCatalogFile(fsys, "missing.yaml")
	assert.Error(t, err)
}
