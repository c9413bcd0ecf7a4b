package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/admingrid/internal/grid"
	gridhttp "github.com/odyssey-erp/admingrid/internal/grid/http"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/query/memory"
	"github.com/odyssey-erp/admingrid/internal/observability"
	"github.com/odyssey-erp/admingrid/internal/shared"
	"github.com/odyssey-erp/admingrid/internal/view"
)

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	sessions := shared.NewSessionManager(client, "grid_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf")
	engine, err := view.NewEngine()
	require.NoError(t, err)

	backend := memory.New()
	backend.Put("people", []grid.Record{
		{"id": 1, "name": "Ada"},
		{"id": 2, "name": "Grace"},
	})
	pipeline := query.NewPipeline(backend, query.PipelineOptions{Observer: metrics})
	people := gridhttp.Grid{
		Entity:   "people",
		Title:    "People",
		Pipeline: pipeline,
		Compile: func(access grid.Access) (*grid.Definition, error) {
			return grid.Compile(access, grid.Parts{
				Entity:  "people",
				Headers: grid.Columns(grid.NewColumn("name", "Name").Searchable().Sortable()),
			})
		},
	}
	grids, err := gridhttp.NewHandler(gridhttp.Config{
		Logger:    logger,
		Templates: engine,
		CSRF:      csrf,
		Failures:  metrics,
	}, people)
	require.NoError(t, err)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: sessions,
		CSRFManager:    csrf,
		GridHandler:    grids,
		Metrics:        metrics,
	})
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterInfrastructureRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/static/js/grid.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/grids/people", rec.Header().Get("Location"))
}

func TestRouterGridFlowWithSessionAndCSRF(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/grids/people", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	match := csrfInput.FindStringSubmatch(rec.Body.String())
	require.Len(t, match, 2)
	token := match[1]

	post := func(form url.Values, withToken bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/grids/people/state", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		if withToken {
			req.Header.Set(shared.CSRFHeader, token)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return serve(router, req)
	}

	rec = post(url.Values{"op": {"search"}, "value": {"grace"}}, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = post(url.Values{"op": {"search"}, "value": {"grace"}}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"id":"2"`)
	assert.NotContains(t, rec.Body.String(), `"id":"1"`)

	req := httptest.NewRequest(http.MethodGet, "/grids/people", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Grace")
	assert.NotContains(t, rec.Body.String(), "Ada", "search is restored from the session")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `admingrid_http_requests_total{code="200",route="/grids/{entity}/state"} 1`)
	assert.Contains(t, body, `code="403"`)
	assert.Contains(t, body, `admingrid_pipeline_duration_seconds_count{entity="people",outcome="ok"}`)
}
