// Package internal provides the application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/archgraph/internal/api"
	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/engine"
	"github.com/starford/archgraph/internal/importgraph"
	"github.com/starford/archgraph/internal/index"
	"github.com/starford/archgraph/internal/mcpserver"
	"github.com/starford/archgraph/internal/metrics"
	"github.com/starford/archgraph/internal/queryservice"
	"github.com/starford/archgraph/internal/report"
	"github.com/starford/archgraph/internal/sse"
	"github.com/starford/archgraph/internal/storage"
)

// runtimeDeps are the pieces every command shares.
type runtimeDeps struct {
	cfg     *Config
	logger  *slog.Logger
	store   *storage.FS
	engine  *engine.Engine
	metrics *metrics.Metrics
}

func newApplication(opts []Option) (*application, error) {
	app := &application{
		logOutput: os.Stdout,
		output:    os.Stdout,
		version:   "dev",
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func setup(opts []Option) (*application, *runtimeDeps, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, nil, err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("corpus_root", cfg.Corpus.Root),
		slog.String("artifact_path", cfg.Index.ArtifactPath),
		slog.String("sqlite_path", cfg.Index.SQLitePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Corpus.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: init storage: %w", apperr.ErrFatal, err)
	}

	m := metrics.New()
	eng := engine.New(cfg.EngineOptions(), store, importProvider(cfg, store), logger, m)
	return app, &runtimeDeps{cfg: cfg, logger: logger, store: store, engine: eng, metrics: m}, nil
}

// importProvider combines the configured import graph sources.
func importProvider(cfg *Config, store storage.Provider) importgraph.Provider {
	var providers importgraph.Multi
	if cfg.Imports.File != "" {
		providers = append(providers, importgraph.FileProvider{
			Store:    store,
			Path:     cfg.Imports.File,
			Optional: cfg.Imports.Optional,
		})
	}
	if cfg.Imports.Go {
		providers = append(providers, importgraph.GoExtractor{Store: store})
	}
	if len(providers) == 0 {
		return nil
	}
	return providers
}

func finish(app *application, res *engine.Result) error {
	if err := report.WriteText(app.output, res.Report); err != nil {
		return err
	}
	if !res.Report.OK() {
		return fmt.Errorf("%w: %d errors", apperr.ErrValidation, res.Report.ErrorCount())
	}
	return nil
}

// Check runs the engine and prints the report without writing anything.
func Check(ctx context.Context, opts ...Option) error {
	app, deps, err := setup(opts)
	if err != nil {
		return err
	}
	res, err := deps.engine.Run(ctx)
	if err != nil {
		return err
	}
	return finish(app, res)
}

// Index runs the engine, writes the JSON artifact and replaces the SQLite
// mirror, then prints the report.
func Index(ctx context.Context, opts ...Option) error {
	app, deps, err := setup(opts)
	if err != nil {
		return err
	}
	db, err := index.Open(deps.cfg.Index.SQLitePath)
	if err != nil {
		return fmt.Errorf("%w: init index: %w", apperr.ErrFatal, err)
	}
	defer db.Close()

	res, err := index.Sync(ctx, db, deps.engine, true, deps.logger)
	if err != nil {
		return err
	}
	return finish(app, res)
}

// rebuilder serializes index passes triggered by the watcher and the MCP
// reindex tool.
type rebuilder struct {
	mu     sync.Mutex
	db     index.Store
	engine *engine.Engine
	logger *slog.Logger
}

func (r *rebuilder) rebuild(ctx context.Context) (*engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return index.Sync(ctx, r.db, r.engine, true, r.logger)
}

// MCP serves the query tools over stdio. The index is rebuilt once at
// start and then on demand through the reindex tool.
func MCP(ctx context.Context, opts ...Option) error {
	app, deps, err := setup(opts)
	if err != nil {
		return err
	}
	db, err := index.Open(deps.cfg.Index.SQLitePath)
	if err != nil {
		return fmt.Errorf("%w: init index: %w", apperr.ErrFatal, err)
	}
	defer db.Close()

	rb := &rebuilder{db: db, engine: deps.engine, logger: deps.logger}
	if _, err := rb.rebuild(ctx); err != nil {
		deps.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc := queryservice.NewService(deps.store, db, deps.metrics, "mcp", deps.cfg.Corpus.DocumentDirs())
	srv := mcpserver.New(svc, func(ctx context.Context) (report.Summary, error) {
		res, err := rb.rebuild(ctx)
		if err != nil {
			return report.Summary{}, err
		}
		return res.Report.Summary(), nil
	}, app.version)

	deps.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// watchSkip keeps the watcher away from the directories Walk prunes and
// from the files archgraph itself writes.
func watchSkip(cfg *Config, root string) index.SkipFunc {
	walk := cfg.EngineOptions().Walk
	dbRel := ""
	if abs, err := filepath.Abs(cfg.Index.SQLitePath); err == nil {
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			dbRel = filepath.ToSlash(rel)
		}
	}
	return func(rel string, isDir bool) bool {
		if isDir {
			return storage.SkipDirName(path.Base(rel), walk)
		}
		if storage.IsTemp(rel) || walk.Excluded(rel) {
			return true
		}
		return dbRel != "" && strings.HasPrefix(rel, dbRel)
	}
}

// Serve starts the HTTP query API with live rebuilds on corpus changes.
func Serve(ctx context.Context, opts ...Option) error {
	_, deps, err := setup(opts)
	if err != nil {
		return err
	}
	cfg, logger := deps.cfg, deps.logger

	db, err := index.Open(cfg.Index.SQLitePath)
	if err != nil {
		return fmt.Errorf("%w: init index: %w", apperr.ErrFatal, err)
	}
	defer db.Close()

	rb := &rebuilder{db: db, engine: deps.engine, logger: logger}
	if _, err := rb.rebuild(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker()
	defer broker.Close()

	svc := queryservice.NewService(deps.store, db, deps.metrics, "http", cfg.Corpus.DocumentDirs())
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, deps.metrics.Handler())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := db.Meta(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"indexing"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, deps.store.Root(), watchSkip(cfg, deps.store.Root()), cfg.App.HTTP.Debounce, logger,
			func(ctx context.Context, changed []string) {
				broker.PublishChanges(changed)
				res, err := rb.rebuild(ctx)
				if err != nil {
					logger.Error("rebuild failed", slog.String("error", err.Error()))
					broker.PublishFailure(err)
					return
				}
				broker.PublishRebuild(sse.Rebuild{RunID: res.RunID, Summary: res.Report.Summary()})
			})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
