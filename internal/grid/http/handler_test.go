package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/query/memory"
	"github.com/odyssey-erp/admingrid/internal/shared"
	"github.com/odyssey-erp/admingrid/internal/view"
)

type stubAccess struct {
	granted []string
}

func (s stubAccess) Resolve(_ context.Context, _ string) (grid.Access, error) {
	return grid.NewAccess(true, s.granted...), nil
}

type harness struct {
	router  http.Handler
	sess    *shared.Session
	deleted []string
}

func newHarness(t *testing.T, user string, access AccessResolver) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "grid_session", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	if user != "" {
		sess.SetUser(user)
	}

	engine, err := view.NewEngine()
	require.NoError(t, err)

	backend := memory.New()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC) }
	backend.Put("users", []grid.Record{
		{"id": 1, "name": "Alice", "email": "a@x.com", "created_at": day(1)},
		{"id": 2, "name": "Bob", "email": "b@x.com", "created_at": day(5)},
		{"id": 3, "name": "Carol", "email": "c@x.com", "created_at": day(3)},
	})
	pipeline := query.NewPipeline(backend, query.PipelineOptions{})

	hs := &harness{sess: sess}
	users := Grid{
		Entity:   "users",
		Title:    "Users",
		Pipeline: pipeline,
		Compile: func(access grid.Access) (*grid.Definition, error) {
			return grid.Compile(access, grid.Parts{
				Entity: "users",
				Headers: append(grid.Columns(
					grid.NewColumn("name", "Name").Searchable(),
					grid.NewColumn("email", "Email").Searchable(),
					grid.NewColumn("created_at", "Created").Sortable().Render(grid.RenderDate),
				), grid.NewHeader("Actions")),
				RowActions: []*grid.RowAction{
					grid.NewRowAction("delete", "Delete").
						Confirm("Delete?").
						Execute(func(_ context.Context, rec grid.Record) error {
							hs.deleted = append(hs.deleted, rec.ID(""))
							return nil
						}),
				},
				BulkActions: []*grid.BulkAction{
					grid.NewBulkAction("export", "Export").Execute(func(context.Context, []string) error { return nil }),
				},
				PerPage: 2,
			})
		},
	}
	audit := Grid{
		Entity:   "audit",
		Gate:     "audit.view",
		Base:     query.From("users"),
		Pipeline: pipeline,
		Compile: func(access grid.Access) (*grid.Definition, error) {
			return grid.Compile(access, grid.Parts{
				Entity:  "audit",
				Headers: grid.Columns(grid.NewColumn("name", "Name")),
			})
		},
	}

	h, err := NewHandler(Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Templates: engine,
		CSRF:      shared.NewCSRFManager("csrf-secret"),
		Access:    access,
	}, users, audit)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	h.MountRoutes(r)
	hs.router = r
	return hs
}

func (hs *harness) do(method, target string, form url.Values, asJSON bool) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	rec := httptest.NewRecorder()
	hs.router.ServeHTTP(rec, req)
	return rec
}

type wireResponse struct {
	Page struct {
		Rows []struct {
			ID string `json:"id"`
		} `json:"rows"`
		State    grid.State   `json:"state"`
		Paging   query.Paging `json:"paging"`
		Selected []string     `json:"selected"`
	} `json:"page"`
	Signals []struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	} `json:"signals"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) wireResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out wireResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (w wireResponse) ids() []string {
	out := []string{}
	for _, r := range w.Page.Rows {
		out = append(out, r.ID)
	}
	return out
}

func (w wireResponse) signalTypes() []string {
	out := []string{}
	for _, s := range w.Signals {
		out = append(out, s.Type)
	}
	return out
}

func TestUnknownGrid(t *testing.T) {
	hs := newHarness(t, "", nil)
	rec := hs.do(http.MethodGet, "/grids/invoices/data", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)
}

func TestGateRequiresCapability(t *testing.T) {
	hs := newHarness(t, "", nil)
	rec := hs.do(http.MethodGet, "/grids/audit/data", nil, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	hs = newHarness(t, "9", stubAccess{granted: []string{"audit.view"}})
	res := decode(t, hs.do(http.MethodGet, "/grids/audit/data", nil, true))
	assert.Equal(t, []string{"1", "2", "3"}, res.ids())
}

func TestPageAdoptsURLStateThenRedirects(t *testing.T) {
	hs := newHarness(t, "", nil)

	rec := hs.do(http.MethodGet, "/grids/users?search=alice&tab=1", nil, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/grids/users?tab=1", rec.Header().Get("Location"))
	assert.Contains(t, hs.sess.Get("grid.users"), `"search":"alice"`)

	rec = hs.do(http.MethodGet, "/grids/users?tab=1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Alice")
	assert.NotContains(t, body, "Bob")
	assert.Contains(t, body, `name="csrf_token"`)

	rec = hs.do(http.MethodGet, "/grids/users", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Bob", "saved search survives a fresh mount")
}

func TestStateMutations(t *testing.T) {
	hs := newHarness(t, "", nil)

	res := decode(t, hs.do(http.MethodGet, "/grids/users/data", nil, true))
	assert.Equal(t, []string{"1", "2"}, res.ids())

	res = decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"sort"}, "key": {"created_at"}}, true))
	assert.Equal(t, "created_at", res.Page.State.SortBy)
	assert.Equal(t, []string{"1", "3"}, res.ids())
	assert.Contains(t, res.signalTypes(), "scroll-to-top")

	res = decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"sort"}, "key": {"created_at"}}, true))
	assert.Equal(t, grid.Desc, res.Page.State.SortDirection)
	assert.Equal(t, []string{"2", "3"}, res.ids())

	res = decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"page"}, "value": {"2"}}, true))
	assert.Equal(t, 2, res.Page.Paging.Page)
	assert.Equal(t, []string{"1"}, res.ids())

	res = decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"search"}, "value": {"carol"}}, true))
	assert.Equal(t, 1, res.Page.Paging.Page)
	assert.Equal(t, []string{"3"}, res.ids())

	saved := hs.sess.Get("grid.users")
	assert.Contains(t, saved, `"search":"carol"`)
	assert.Contains(t, saved, `"sortDirection":"desc"`)
}

func TestStateValidation(t *testing.T) {
	hs := newHarness(t, "", nil)

	rec := hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"drop_table"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"sort"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"per_page"}, "value": {"many"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res := decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"sort"}, "key": {"password"}}, true))
	assert.Empty(t, res.Page.State.SortBy)
}

func TestHTMLMutationRedirectsAndResumes(t *testing.T) {
	hs := newHarness(t, "", nil)

	rec := hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"page"}, "value": {"2"}}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/grids/users", rec.Header().Get("Location"))

	rec = hs.do(http.MethodGet, "/grids/users", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Carol")
	assert.NotContains(t, body, "Alice")
	assert.Contains(t, body, "Page 2 of 2")
}

func TestRowAction(t *testing.T) {
	hs := newHarness(t, "", nil)

	rec := hs.do(http.MethodPost, "/grids/users/actions/delete", url.Values{"id": {"2"}}, true)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Empty(t, hs.deleted)

	res := decode(t, hs.do(http.MethodPost, "/grids/users/actions/delete", url.Values{"id": {"2"}, "confirmed": {"true"}}, true))
	assert.Equal(t, []string{"2"}, hs.deleted)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "action-confirmed", res.Signals[0].Type)
	assert.Equal(t, "delete", res.Signals[0].Payload["action"])

	rec = hs.do(http.MethodPost, "/grids/users/actions/delete", url.Values{"id": {"99"}, "confirmed": {"true"}}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hs.do(http.MethodPost, "/grids/users/actions/purge", url.Values{"id": {"1"}}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = hs.do(http.MethodPost, "/grids/users/actions/delete", url.Values{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodPost, "/grids/users/actions/delete", url.Values{"id": {"2"}}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	flash := hs.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "danger", flash.Kind)
}

func TestBulkActionUsesSelection(t *testing.T) {
	hs := newHarness(t, "", nil)

	rec := hs.do(http.MethodPost, "/grids/users/bulk/export", url.Values{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res := decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"select"}, "key": {"3"}}, true))
	assert.Equal(t, []string{"3"}, res.Page.Selected)

	res = decode(t, hs.do(http.MethodPost, "/grids/users/bulk/export", url.Values{}, true))
	assert.Empty(t, res.Page.Selected)
	assert.Contains(t, res.signalTypes(), "action-confirmed")
	assert.Contains(t, res.signalTypes(), "selection-changed")
}

func TestClearPreferences(t *testing.T) {
	hs := newHarness(t, "", nil)
	decode(t, hs.do(http.MethodPost, "/grids/users/state", url.Values{"op": {"search"}, "value": {"bob"}}, true))
	require.NotEmpty(t, hs.sess.Get("grid.users"))

	res := decode(t, hs.do(http.MethodDelete, "/grids/users/preferences", nil, true))
	assert.Empty(t, res.Page.State.Search)
	assert.Equal(t, []string{"1", "2"}, res.ids())
	assert.Empty(t, hs.sess.Get("grid.users"))
}
