// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nordlys/metawatch/internal/catalog"
	"github.com/nordlys/metawatch/internal/engine"
	"github.com/nordlys/metawatch/internal/mcpserver"
	"github.com/nordlys/metawatch/internal/scan"
	"github.com/nordlys/metawatch/internal/schema"
	"github.com/nordlys/metawatch/internal/storage"
	"github.com/nordlys/metawatch/internal/vcs"
	"github.com/nordlys/metawatch/internal/watch"
)

// components is the assembled object graph shared by the watcher and MCP
// entry points.
type components struct {
	engine  *engine.Engine
	catalog *catalog.Service
}

func build(cfg *Config, logger *slog.Logger) (*components, error) {
	if err := os.MkdirAll(cfg.Monitor.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create monitor dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Monitor.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	resolver := schema.NewResolver(schema.ResolverConfig{
		Overrides:   cfg.Schemas.Overrides,
		MonitorRoot: store.Root(),
		CustomDir:   cfg.Schemas.CustomDir,
		PackagedDir: cfg.Schemas.PackagedDir,
	})

	var sink vcs.Sink = vcs.Noop{}
	if cfg.VersionControl.Enabled {
		repoDir := cfg.VersionControl.RepoDir
		if repoDir == "" {
			repoDir = store.Root()
		}
		sink = &vcs.Git{Dir: repoDir}
	}

	eng := engine.New(
		engine.Config{
			MinFileSizeBytes: cfg.Monitor.MinFileSizeBytes,
			WorkerCount:      cfg.Monitor.ReconcileWorkers,
			IgnoreDirs:       cfg.Monitor.IgnoreDirs,
		},
		store,
		resolver,
		schema.NewMaterializer(cfg.Schemas.MaterializeDepth),
		schema.NewValidator(cfg.Validation.Strict, logger),
		scan.NewStatScanner(),
		sink,
		logger,
	)

	return &components{
		engine:  eng,
		catalog: catalog.NewService(eng, store, resolver, logger),
	}, nil
}

func newLogger(cfg *Config, out io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the watcher application with the given options: a startup
// reconciliation sweep followed by live event processing until a shutdown
// signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg, os.Stdout)
	logger.Info("Configuration loaded",
		slog.String("monitor_path", cfg.Monitor.Path),
		slog.String("packaged_schemas", cfg.Schemas.PackagedDir),
		slog.Bool("strict_validation", cfg.Validation.Strict),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(cfg, logger)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)

	// Catch up with everything that changed while the process was down,
	// then keep processing live events.
	g.Go(func() error {
		if err := c.engine.Reconcile(gCtx); err != nil {
			logger.Warn("reconciliation sweep failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		err := watch.New(c.engine, logger, app.eventCallback).Run(gCtx)
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watcher stopped successfully")
	return nil
}

// RunMCP serves the metadata catalog over MCP stdio. Logs go to stderr
// because stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg, os.Stderr)
	c, err := build(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("MCP server starting", slog.String("monitor_path", cfg.Monitor.Path))
	return mcpserver.New(c.catalog).ServeStdio()
}
