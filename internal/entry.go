// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mimir/internal/api"
	"github.com/starford/mimir/internal/embed"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/indexer"
	"github.com/starford/mimir/internal/mcpserver"
	"github.com/starford/mimir/internal/notify"
	"github.com/starford/mimir/internal/queryservice"
	"github.com/starford/mimir/internal/sse"
	"github.com/starford/mimir/internal/vector"
)

// engine bundles the long-lived components shared by the HTTP and MCP
// entry points.
type engine struct {
	db       *index.DB
	embedder embed.Embedder
	vectors  *vector.Index
	broker   *sse.Broker
	notifier *notify.Debouncer
	indexer  *indexer.Indexer
	svc      *queryservice.Service
	logger   *slog.Logger
}

func (e *engine) close() {
	e.indexer.Stop()
	e.notifier.Close()
	e.broker.Close()
	if err := e.embedder.Close(); err != nil {
		e.logger.Warn("embedder close error", slog.String("error", err.Error()))
	}
	if err := e.db.Close(); err != nil {
		e.logger.Warn("index close error", slog.String("error", err.Error()))
	}
}

// newEngine builds the indexing engine from configuration: index database,
// embedder, vector cache (rebuilt from stored embeddings), SSE broker,
// change notifier, indexer, and query service.
func newEngine(cfg *Config, logger *slog.Logger) (*engine, error) {
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	embedder, err := embed.New(cfg.Embedding.EmbedConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	vectors := vector.New(embedder.Dimensions())
	stored, err := db.AllEmbeddings()
	if err != nil {
		logger.Warn("vector rebuild failed", slog.String("error", err.Error()))
	} else {
		for id, vec := range stored {
			if addErr := vectors.Add(id, vec); addErr != nil {
				logger.Warn("vector rebuild: skipping entry",
					slog.String("id", id), slog.String("error", addErr.Error()))
			}
		}
		if len(stored) > 0 {
			logger.Info("vector index rebuilt", slog.Int("entries", vectors.Len()))
		}
	}

	broker := sse.NewBroker()
	notifier := notify.New(cfg.Indexing.DebounceWindow(), func() {
		broker.Publish(sse.Event{Type: sse.EventIndexUpdated, Data: map[string]string{}})
	})

	idx := indexer.New(db, embedder, vectors, notifier, broker, logger)
	svc := queryservice.NewService(db, embedder, vectors, logger)

	return &engine{
		db:       db,
		embedder: embedder,
		vectors:  vectors,
		broker:   broker,
		notifier: notifier,
		indexer:  idx,
		svc:      svc,
		logger:   logger,
	}, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildApp(opts []Option) (*Config, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app.config, nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	cfg, err := buildApp(opts)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	// Autostart indexing when a vault is configured. A bad vault path is a
	// startup failure, not something to limp past.
	if cfg.Vault.Path != "" {
		if err := eng.indexer.Start(ctx, cfg.Vault.Path); err != nil {
			return fmt.Errorf("start indexing: %w", err)
		}
	}

	apiRouter := api.NewRouter(eng.svc, eng.indexer, cfg.Auth.AuthEnabled(), cfg.Auth.Token, eng.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server with the given options. Logs go to
// stderr so stdout stays clean for the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, err := buildApp(opts)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.close()

	if cfg.Vault.Path != "" {
		if err := eng.indexer.Start(ctx, cfg.Vault.Path); err != nil {
			return fmt.Errorf("start indexing: %w", err)
		}
	}

	srv := mcpserver.New(eng.svc, eng.indexer)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
