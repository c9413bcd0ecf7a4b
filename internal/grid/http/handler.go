package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/admingrid/internal/grid"
	"github.com/odyssey-erp/admingrid/internal/grid/controller"
	"github.com/odyssey-erp/admingrid/internal/grid/prefs"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/render"
	"github.com/odyssey-erp/admingrid/internal/platform/httpx"
	"github.com/odyssey-erp/admingrid/internal/shared"
	"github.com/odyssey-erp/admingrid/internal/view"
)

// Grid is one grid type served under /grids/{entity}.
type Grid struct {
	Entity string
	Title  string
	// Gate is the capability needed to open the grid; empty means anyone.
	Gate     string
	Compile  func(access grid.Access) (*grid.Definition, error)
	Base     query.Query
	Pipeline *query.Pipeline
}

// AccessResolver loads the capabilities of a signed-in user.
type AccessResolver interface {
	Resolve(ctx context.Context, userID string) (grid.Access, error)
}

// Config wires a Handler.
type Config struct {
	Logger     *slog.Logger
	Templates  *view.Engine
	CSRF       *shared.CSRFManager
	Access     AccessResolver
	Documents  prefs.DocumentRepository
	Cells      *render.CellRenderer
	Filters    *render.Registry[grid.FilterType]
	Loader     *query.OptionsLoader
	Failures   controller.FailureCounter
	Namespace  string
	MaxPerPage int
	// RateLimit bounds mutating requests per minute per user or IP; zero
	// disables it.
	RateLimit int
}

// Handler serves every registered grid.
type Handler struct {
	cfg       Config
	logger    *slog.Logger
	grids     map[string]Grid
	validator *validator.Validate
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the grid handler.
func NewHandler(cfg Config, grids ...Grid) (*Handler, error) {
	if cfg.Templates == nil {
		return nil, fmt.Errorf("grid handler: template engine required")
	}
	if cfg.CSRF == nil {
		return nil, fmt.Errorf("grid handler: csrf manager required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cells == nil {
		cfg.Cells = render.NewCellRenderer(nil, language.English, nil)
	}
	if cfg.Filters == nil {
		cfg.Filters = render.NewFilterRegistry()
	}
	if cfg.Loader == nil {
		cfg.Loader = query.NewOptionsLoader(cfg.Logger)
	}
	h := &Handler{
		cfg:       cfg,
		logger:    cfg.Logger,
		grids:     make(map[string]Grid, len(grids)),
		validator: validator.New(),
		rateLimit: func(next http.Handler) http.Handler { return next },
	}
	for _, g := range grids {
		if g.Entity == "" || g.Compile == nil || g.Pipeline == nil {
			return nil, fmt.Errorf("grid handler: incomplete grid %q", g.Entity)
		}
		if _, dup := h.grids[g.Entity]; dup {
			return nil, fmt.Errorf("grid handler: duplicate grid %q", g.Entity)
		}
		if g.Base.Source() == "" {
			g.Base = query.From(g.Entity)
		}
		h.grids[g.Entity] = g
	}
	if cfg.RateLimit > 0 {
		h.rateLimit = httprate.Limit(cfg.RateLimit, time.Minute, httprate.WithKeyFuncs(rateKey))
	}
	return h, nil
}

// Entities lists the registered grid keys.
func (h *Handler) Entities() []string {
	return slices.Sorted(maps.Keys(h.grids))
}

// MountRoutes registers the grid routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/grids/{entity}", func(r chi.Router) {
		r.Use(h.resolve)
		r.Get("/", h.handlePage)
		r.Get("/data", h.handleData)
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)
			r.Post("/state", h.handleState)
			r.Post("/actions/{action}", h.handleRowAction)
			r.Post("/bulk/{action}", h.handleBulkAction)
			r.Delete("/preferences", h.handleClearPreferences)
			r.Post("/preferences/clear", h.handleClearPreferences)
		})
	})
}

func rateKey(r *http.Request) (string, error) {
	if user := shared.CurrentUser(r.Context()); user != "" {
		return "user:" + user, nil
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr, nil
	}
	return "ip:" + host, nil
}

type targetKey struct{}

// target is the grid a request addresses, compiled for its viewer.
type target struct {
	grid  Grid
	def   *grid.Definition
	sess  *shared.Session
	store prefs.Store
}

func (h *Handler) resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entity := chi.URLParam(r, "entity")
		g, ok := h.grids[entity]
		if !ok {
			httpx.RespondError(w, fmt.Errorf("%w: grid %s", httpx.ErrNotFound, entity))
			return
		}
		sess, err := shared.RequireSession(r.Context())
		if err != nil {
			h.logger.Error("grid request without session", slog.String("entity", entity))
			httpx.RespondError(w, err)
			return
		}
		access, err := h.access(r.Context())
		if err != nil {
			h.logger.Error("resolve grid access", slog.String("entity", entity), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if g.Gate != "" && !access.Can(g.Gate) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrForbidden, g.Gate))
			return
		}
		def, err := g.Compile(access)
		if err != nil {
			h.logger.Error("compile grid", slog.String("entity", entity), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		t := &target{
			grid:  g,
			def:   def,
			sess:  sess,
			store: prefs.ForSession(sess, h.cfg.Documents, h.cfg.Namespace),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), targetKey{}, t)))
	})
}

func (h *Handler) access(ctx context.Context) (grid.Access, error) {
	user := shared.CurrentUser(ctx)
	if user == "" {
		return grid.Guest(), nil
	}
	if h.cfg.Access == nil {
		return grid.NewAccess(true), nil
	}
	return h.cfg.Access.Resolve(ctx, user)
}

func targetFrom(ctx context.Context) *target {
	t, _ := ctx.Value(targetKey{}).(*target)
	return t
}

func (h *Handler) controller(t *target, sink controller.Sink) *controller.Controller {
	return controller.New(t.def, t.grid.Pipeline, t.store, sink, controller.Options{
		Base:       t.grid.Base,
		MaxPerPage: h.cfg.MaxPerPage,
		Cells:      h.cfg.Cells,
		Filters:    h.cfg.Filters,
		Loader:     h.cfg.Loader,
		Logger:     h.logger.With(slog.String("entity", t.def.Entity)),
		Failures:   h.cfg.Failures,
	})
}

// problem maps controller and pipeline errors onto problem responses.
func problem(err error) error {
	switch {
	case errors.Is(err, controller.ErrUnknownAction), errors.Is(err, query.ErrNotFound):
		return fmt.Errorf("%w: %w", httpx.ErrNotFound, err)
	case errors.Is(err, controller.ErrActionUnavailable):
		return fmt.Errorf("%w: %w", httpx.ErrConflict, err)
	case errors.Is(err, controller.ErrConfirmationRequired):
		return fmt.Errorf("%w: %w", httpx.ErrPrecondition, err)
	case errors.Is(err, controller.ErrEmptySelection):
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	return err
}
