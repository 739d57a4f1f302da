// Package app wires configuration into a running notification engine
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/foxzi/alumnet/internal/api"
	"github.com/foxzi/alumnet/internal/audience"
	"github.com/foxzi/alumnet/internal/config"
	"github.com/foxzi/alumnet/internal/db"
	"github.com/foxzi/alumnet/internal/dispatch"
	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/foxzi/alumnet/internal/metrics"
	"github.com/foxzi/alumnet/internal/notify"
	"github.com/foxzi/alumnet/internal/repository"
)

// Engine holds the components shared by the HTTP server and the CLI
type Engine struct {
	DB       *db.DB
	People   *repository.PersonRepository
	Listings *repository.ListingRepository
	Reports  *repository.ReportRepository
	Notify   *notify.Service
	Sender   mailer.Sender
	Captures *mailer.CaptureStore // nil unless the sandbox transport is used
	Tracker  *dispatch.Tracker

	closeMailer func() error
	logger      *slog.Logger
}

// NewEngine opens the database, applies migrations and builds the
// resolver, mailer, dispatcher and notify service
func NewEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	sender, closeMailer, err := mailer.New(cfg.Mailer, logger)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	var captures *mailer.CaptureStore
	if sb, ok := sender.(*mailer.SandboxSender); ok {
		captures = sb.Store()
	}

	people := repository.NewPersonRepository(database)
	listings := repository.NewListingRepository(database)
	reports := repository.NewReportRepository(database)
	from := mailer.FormatFrom(cfg.Mailer.FromName, cfg.Mailer.FromEmail)

	tracker := dispatch.NewTracker(cfg.Dispatch.ProgressTTL)
	dispatcher := dispatch.New(sender, dispatch.Config{
		From:        from,
		BatchSize:   cfg.Dispatch.BatchSize,
		Concurrency: cfg.Dispatch.Concurrency,
		RatePerSec:  cfg.Dispatch.RatePerSec,
		RetryMax:    cfg.Dispatch.RetryMax,
	}, logger)
	dispatcher.SetProgressSink(tracker)

	resolver := audience.NewResolver(people, audience.Options{
		PageSize:        cfg.Audience.PageSize,
		ExpandComposite: cfg.Audience.ExpandComposite,
	}, logger)

	svc := notify.NewService(notify.Deps{
		Listings:   listings,
		People:     people,
		Resolver:   resolver,
		Dispatcher: dispatcher,
		Tester:     dispatch.NewTestSender(sender, from, logger),
		Renderer:   notify.NewRenderer(cfg.Notify),
		Reports:    reports,
		Drafts:     repository.NewDraftRepository(database),
		Progress:   tracker,
	}, logger)

	return &Engine{
		DB:          database,
		People:      people,
		Listings:    listings,
		Reports:     reports,
		Notify:      svc,
		Sender:      sender,
		Captures:    captures,
		Tracker:     tracker,
		closeMailer: closeMailer,
		logger:      logger,
	}, nil
}

// Close releases the mailer and the database
func (e *Engine) Close() error {
	if err := e.closeMailer(); err != nil {
		e.logger.Error("mailer close error", "error", err)
	}
	return e.DB.Close()
}

// App is the long-running server process
type App struct {
	config        *config.Config
	engine        *Engine
	apiServer     *api.Server
	metricsServer *metrics.Server
	collector     *metrics.Collector
	logger        *slog.Logger
}

// New creates the application
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metrics.SetGlobal(m)
	}

	engine, err := NewEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	apiServer := api.NewServer(engine.Notify, cfg.Server, cfg.Auth.Admins, logger)
	apiServer.SetVersion(version)
	if engine.Captures != nil {
		apiServer.SetCaptureStore(engine.Captures)
	}

	a := &App{
		config:    cfg,
		engine:    engine,
		apiServer: apiServer,
		logger:    logger,
	}
	if m != nil {
		a.metricsServer = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
		a.collector = metrics.NewCollector(m, 15*time.Second)
	}
	return a, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting alumnet",
		"api_addr", a.config.Server.ListenAddr,
		"database", a.config.Database.Driver,
		"transport", a.config.Mailer.Transport,
		"metrics", a.config.Metrics.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		a.collector.Start()
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components. In-flight dispatches get
// the HTTP server's shutdown window to finish their current batches.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.metricsServer != nil {
		a.collector.Stop()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if err := a.engine.Close(); err != nil {
		a.logger.Error("storage close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// SetupLogger creates a logger based on configuration
func SetupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
