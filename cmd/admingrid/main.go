package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/odyssey-erp/admingrid/internal/app"
	"github.com/odyssey-erp/admingrid/internal/grid"
	gridhttp "github.com/odyssey-erp/admingrid/internal/grid/http"
	"github.com/odyssey-erp/admingrid/internal/grid/prefs"
	"github.com/odyssey-erp/admingrid/internal/grid/query"
	"github.com/odyssey-erp/admingrid/internal/grid/query/pgsql"
	"github.com/odyssey-erp/admingrid/internal/grid/render"
	"github.com/odyssey-erp/admingrid/internal/observability"
	"github.com/odyssey-erp/admingrid/internal/platform/cache"
	"github.com/odyssey-erp/admingrid/internal/platform/db"
	"github.com/odyssey-erp/admingrid/internal/rbac"
	"github.com/odyssey-erp/admingrid/internal/roles"
	"github.com/odyssey-erp/admingrid/internal/shared"
	"github.com/odyssey-erp/admingrid/internal/users"
	"github.com/odyssey-erp/admingrid/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("admingrid stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "admingrid_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	lang, err := cfg.Language()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	usersConfig, err := gridConfig(cfg.GridCatalog, users.Entity)
	if err != nil {
		return err
	}
	rolesConfig, err := gridConfig(cfg.GridCatalog, roles.Entity)
	if err != nil {
		return err
	}

	backend := pgsql.New(pool, users.Source(), roles.Source())
	pipeline := query.NewPipeline(backend, query.PipelineOptions{
		MaxPerPage: cfg.GridMaxPerPage,
		Observer:   metrics,
	})

	grids, err := gridhttp.NewHandler(gridhttp.Config{
		Logger:     logger,
		Templates:  templates,
		CSRF:       csrfManager,
		Access:     rbac.Resolver{Permissions: rbac.NewService(pool), Logger: logger},
		Documents:  prefs.NewPGDocuments(pool),
		Cells:      render.NewCellRenderer(nil, lang, loc),
		Loader:     query.NewOptionsLoader(logger),
		Failures:   metrics,
		Namespace:  cfg.GridPrefsNamespace,
		MaxPerPage: cfg.GridMaxPerPage,
		RateLimit:  cfg.GridRateLimit,
	},
		users.Grid(users.NewRepository(pool), pipeline, usersConfig),
		roles.Grid(roles.NewRepository(pool), pipeline, rolesConfig),
	)
	if err != nil {
		return err
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		GridHandler:    grids,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Any("grids", grids.Entities()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// gridConfig returns the catalog entry for entity, or nil when no catalog is
// configured or the catalog does not mention the entity.
func gridConfig(path, entity string) (grid.Config, error) {
	if path == "" {
		return nil, nil
	}
	cat, err := grid.LoadCatalogFile(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	entry, err := cat.Entry(entity)
	if errors.Is(err, grid.ErrUnknownEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}
