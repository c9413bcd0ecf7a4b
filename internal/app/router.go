package app

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	gridhttp "github.com/odyssey-erp/admingrid/internal/grid/http"
	"github.com/odyssey-erp/admingrid/internal/observability"
	"github.com/odyssey-erp/admingrid/internal/shared"
	"github.com/odyssey-erp/admingrid/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	GridHandler    *gridhttp.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with admingrid defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := web.StaticFS()
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if params.GridHandler == nil {
				http.NotFound(w, r)
				return
			}
			entities := params.GridHandler.Entities()
			if len(entities) == 0 {
				http.NotFound(w, r)
				return
			}
			http.Redirect(w, r, "/grids/"+url.PathEscape(entities[0]), http.StatusSeeOther)
		})
		if params.GridHandler != nil {
			params.GridHandler.MountRoutes(r)
		}
	})

	return r
}

// staticCacheHandler caches static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
