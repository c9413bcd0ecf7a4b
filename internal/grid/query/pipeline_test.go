package query_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/query/memory"
)

func usersDefinition(t *testing.T) *grid.Definition {
	t.Helper()
	def, err := grid.Compile(grid.Guest(), grid.Parts{
		Entity: "users",
		Headers: grid.Columns(
			grid.NewColumn("name", "Name").Searchable(),
			grid.NewColumn("email", "Email").Searchable(),
			grid.NewColumn("created_at", "Created").Sortable(),
			grid.NewColumn("secret", "Secret"),
		),
		Filters: []*grid.Filter{
			grid.NewFilter("status", "Status", grid.FilterSelect).
				Options(grid.Option{Value: "active"}, grid.Option{Value: "inactive"}).
				MapValue("active", true).
				MapValue("inactive", false).
				Column("is_active"),
			grid.NewFilter("login", "Last login", grid.FilterSelect).
				MapValue("never", grid.SentinelNull).
				MapValue("ever", grid.SentinelNotNull).
				Column("last_login_at"),
			grid.NewFilter("role", "Role", grid.FilterMultiSelect).Relationship("roles", "name"),
			grid.NewFilter("created", "Created", grid.FilterDateRange).Column("created_at"),
		},
		PerPage: 2,
	})
	require.NoError(t, err)
	return def
}

func seed() *memory.Backend {
	b := memory.New()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	b.Put("users", []grid.Record{
		{"id": 1, "name": "Alice", "email": "a@x.com", "secret": "bob", "is_active": true, "created_at": day(1), "last_login_at": day(2),
			"roles": []grid.Record{{"name": "admin"}}},
		{"id": 2, "name": "Bob", "email": "b@x.com", "secret": "alice", "is_active": false, "created_at": day(5), "last_login_at": nil,
			"roles": []grid.Record{}},
		{"id": 3, "name": "Carol", "email": "c@x.com", "secret": "", "is_active": true, "created_at": day(3), "last_login_at": day(4),
			"roles": []grid.Record{{"name": "ops"}, {"name": "admin"}}},
	})
	return b
}

func ids(rows []grid.Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID("")
	}
	return out
}

func run(t *testing.T, state grid.State) query.Result {
	t.Helper()
	p := query.NewPipeline(seed(), query.PipelineOptions{})
	res, err := p.Run(context.Background(), query.From("users"), query.Request{Definition: usersDefinition(t), State: state})
	require.NoError(t, err)
	return res
}

func TestSearchMatchesOnlySearchableColumns(t *testing.T) {
	res := run(t, grid.State{Search: "alice"})
	assert.Equal(t, []string{"1"}, ids(res.Rows))
	assert.Equal(t, 1, res.Total)

	res = run(t, grid.State{Search: "  B@X  "})
	assert.Equal(t, []string{"2"}, ids(res.Rows))
}

func TestSearchFallsBackToHostFields(t *testing.T) {
	def, err := grid.Compile(grid.Guest(), grid.Parts{
		Headers: grid.Columns(grid.NewColumn("name", "Name")),
		Config:  &grid.CatalogEntry{Entity: "users", Searchable: []string{"roles.name"}},
	})
	require.NoError(t, err)

	q := query.Search(query.From("users"), query.Request{Definition: def, State: grid.State{Search: "ops"}})
	groups := q.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, query.Path{Relation: "roles", Column: "name"}, groups[0][0].Path)

	def, err = grid.Compile(grid.Guest(), grid.Parts{Entity: "users"})
	require.NoError(t, err)
	q = query.Search(query.From("users"), query.Request{Definition: def, State: grid.State{Search: "ops"}})
	assert.Empty(t, q.Groups())
}

func TestUndeclaredFilterIsIgnored(t *testing.T) {
	base := run(t, grid.State{})
	injected := run(t, grid.State{Filters: map[string][]string{"secret": {"bob"}, "id; drop": {"1"}}})
	assert.Equal(t, ids(base.Rows), ids(injected.Rows))
	assert.Equal(t, base.Total, injected.Total)
}

func TestFilterValueMapping(t *testing.T) {
	res := run(t, grid.State{Filters: map[string][]string{"status": {"inactive"}}})
	assert.Equal(t, []string{"2"}, ids(res.Rows))

	res = run(t, grid.State{Filters: map[string][]string{"status": {"unlisted"}}})
	assert.Equal(t, 3, res.Total, "values outside static options are dropped")

	res = run(t, grid.State{Filters: map[string][]string{"login": {"never"}}})
	assert.Equal(t, []string{"2"}, ids(res.Rows))

	res = run(t, grid.State{Filters: map[string][]string{"login": {"ever"}}, PerPage: 10})
	assert.Equal(t, []string{"1", "3"}, ids(res.Rows))
}

func TestRelationshipFilterDoesNotDuplicateRows(t *testing.T) {
	res := run(t, grid.State{Filters: map[string][]string{"role": {"admin", "ops"}}, PerPage: 10})
	assert.Equal(t, []string{"1", "3"}, ids(res.Rows))
	assert.Equal(t, 2, res.Total)
}

func TestDateRangeIsInclusive(t *testing.T) {
	res := run(t, grid.State{Filters: map[string][]string{"created": {"2024-03-03", "2024-03-05"}}, PerPage: 10})
	assert.Equal(t, []string{"2", "3"}, ids(res.Rows))

	res = run(t, grid.State{Filters: map[string][]string{"created": {"", "2024-03-01"}}})
	assert.Equal(t, []string{"1"}, ids(res.Rows))

	res = run(t, grid.State{Filters: map[string][]string{"created": {"garbage", "also"}}})
	assert.Equal(t, 3, res.Total)
}

func TestSortAllowlist(t *testing.T) {
	res := run(t, grid.State{SortBy: "created_at", SortDirection: grid.Desc, PerPage: 10})
	assert.Equal(t, []string{"2", "3", "1"}, ids(res.Rows))

	res = run(t, grid.State{SortBy: "secret", SortDirection: grid.Desc, PerPage: 10})
	assert.Equal(t, []string{"1", "2", "3"}, ids(res.Rows), "undeclared sort falls back to primary key")

	q := query.Sort(query.From("users"), query.Request{Definition: usersDefinition(t), State: grid.State{SortBy: "secret"}})
	assert.Equal(t, []query.Order{{Column: "id", Direction: grid.Asc}}, q.Orders())
}

func TestSortFallsBackToDefault(t *testing.T) {
	def, err := grid.Compile(grid.Guest(), grid.Parts{
		Entity:      "users",
		Headers:     grid.Columns(grid.NewColumn("name", "Name").Sortable()),
		DefaultSort: grid.Sort{Column: "name", Direction: grid.Desc},
	})
	require.NoError(t, err)
	q := query.Sort(query.From("users"), query.Request{Definition: def, State: grid.State{SortBy: "password"}})
	assert.Equal(t, []query.Order{
		{Column: "name", Direction: grid.Desc},
		{Column: "id", Direction: grid.Asc},
	}, q.Orders())
}

func TestPaginationIsIdempotentAndClamped(t *testing.T) {
	first := run(t, grid.State{Page: 2})
	second := run(t, grid.State{Page: 2})
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"3"}, ids(first.Rows))
	assert.Equal(t, query.Paging{Page: 2, PerPage: 2, Total: 3, LastPage: 2, From: 3, To: 3}, first.Paging)

	beyond := run(t, grid.State{Page: 99})
	assert.Equal(t, 2, beyond.Page)

	huge := run(t, grid.State{PerPage: 100000})
	assert.Equal(t, grid.MaxPerPage, huge.PerPage)
}

func TestEmptyResult(t *testing.T) {
	res := run(t, grid.State{Search: "nobody"})
	assert.Empty(t, res.Rows)
	assert.Equal(t, query.Paging{Page: 1, PerPage: 2, Total: 0, LastPage: 1}, res.Paging)
}

func TestEndToEndScenario(t *testing.T) {
	def, err := grid.Compile(grid.Guest(), grid.Parts{
		Entity: "users",
		Headers: grid.Columns(
			grid.NewColumn("name", "Name").Searchable(),
			grid.NewColumn("email", "Email").Searchable(),
			grid.NewColumn("created_at", "Created").Sortable(),
		),
	})
	require.NoError(t, err)
	b := memory.New()
	b.Put("users", []grid.Record{
		{"id": 1, "name": "Alice", "email": "a@x.com", "created_at": "2024-01-01T00:00:00Z"},
		{"id": 2, "name": "Bob", "email": "b@x.com", "created_at": "2024-02-01T00:00:00Z"},
	})
	p := query.NewPipeline(b, query.PipelineOptions{})

	res, err := p.Run(context.Background(), query.From("users"), query.Request{Definition: def, State: grid.State{Search: "alice"}})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice", res.Rows[0]["name"])

	res, err = p.Run(context.Background(), query.From("users"), query.Request{Definition: def, State: grid.State{SortBy: "created_at", SortDirection: grid.Desc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(res.Rows))
}

type countingObserver struct {
	calls atomic.Int32
	last  error
}

func (o *countingObserver) ObservePipeline(_ string, _ time.Duration, err error) {
	o.calls.Add(1)
	o.last = err
}

type failingBackend struct{}

func (failingBackend) Count(context.Context, query.Query) (int, error) { return 0, errors.New("boom") }
func (failingBackend) Fetch(context.Context, query.Query) ([]grid.Record, error) {
	return nil, errors.New("boom")
}

func TestPipelineObservesFailures(t *testing.T) {
	obs := &countingObserver{}
	p := query.NewPipeline(failingBackend{}, query.PipelineOptions{Observer: obs})
	_, err := p.Run(context.Background(), query.From("users"), query.Request{Definition: usersDefinition(t)})
	require.Error(t, err)
	assert.EqualValues(t, 1, obs.calls.Load())
	assert.Error(t, obs.last)
}

func TestWindowAndFind(t *testing.T) {
	p := query.NewPipeline(seed(), query.PipelineOptions{MaxPerPage: 2})
	def := usersDefinition(t)

	res, err := p.Window(context.Background(), query.From("users"), query.Request{Definition: def}, 3)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2, "window is capped at the page size bound")
	assert.True(t, res.HasMore())

	res, err = query.NewPipeline(seed(), query.PipelineOptions{}).Window(context.Background(), query.From("users"), query.Request{Definition: def}, 3)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	assert.False(t, res.HasMore())

	rec, err := p.Find(context.Background(), query.From("users"), def, "3")
	require.NoError(t, err)
	assert.Equal(t, "Carol", rec["name"])

	_, err = p.Find(context.Background(), query.From("users"), def, "42")
	require.ErrorIs(t, err, query.ErrNotFound)
}

func TestWindowNeverExceedsMaxPerPage(t *testing.T) {
	b := memory.New()
	rows := make([]grid.Record, 0, 300)
	for i := 1; i <= 300; i++ {
		rows = append(rows, grid.Record{"id": i, "name": "user"})
	}
	b.Put("users", rows)
	def := usersDefinition(t)

	res, err := query.NewPipeline(b, query.PipelineOptions{}).Window(context.Background(), query.From("users"), query.Request{Definition: def}, 1000)
	require.NoError(t, err)
	assert.Len(t, res.Rows, grid.MaxPerPage)

	p := query.NewPipeline(b, query.PipelineOptions{MaxPerPage: 40})
	assert.Equal(t, 40, p.MaxPerPage())
	res, err = p.Window(context.Background(), query.From("users"), query.Request{Definition: def, MaxPerPage: 1000}, 1000)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 40)
}

func TestOptionsLoaderDegrades(t *testing.T) {
	loader := query.NewOptionsLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ok := &grid.FilterDef{Key: "role", Provider: func(context.Context) ([]grid.Option, error) {
		return []grid.Option{{Value: "admin", Label: "Admin"}}, nil
	}}
	broken := &grid.FilterDef{Key: "team", Provider: func(context.Context) ([]grid.Option, error) {
		return nil, errors.New("db down")
	}}
	static := &grid.FilterDef{Key: "status", Options: []grid.Option{{Value: "active"}}}

	assert.Equal(t, []grid.Option{{Value: "admin", Label: "Admin"}}, loader.Load(context.Background(), "users", ok))
	assert.Equal(t, []grid.Option{}, loader.Load(context.Background(), "users", broken))
	assert.Equal(t, []grid.Option{{Value: "active"}}, loader.Load(context.Background(), "users", static))
}
