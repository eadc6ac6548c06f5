package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/pocketlist/pocketlist/internal/http"
	"github.com/pocketlist/pocketlist/internal/metrics"
	"github.com/pocketlist/pocketlist/internal/service"
	"github.com/pocketlist/pocketlist/internal/store"
	"github.com/pocketlist/pocketlist/internal/store/sqlite"
	"github.com/pocketlist/pocketlist/internal/ws"
	"github.com/pocketlist/pocketlist/pkg/jwtx"
	"github.com/pocketlist/pocketlist/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the session service, notifier, hub and HTTP surface.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   jwtx.Signer
	verifier jwtx.Verifier
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hub      *ws.Hub

	sessionService      *service.SessionService
	todoService         *service.TodoService
	userService         *service.UserService
	notifier            *service.ExpiryNotifier
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "pocketlist",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initKeys(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initMetrics()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	go app.hub.Run()
	app.housekeepingService.Start()

	app.logger.Info("pocketlist starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts the application down.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down pocketlist...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.notifier.Stop()
	app.hub.Stop()
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("pocketlist stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initKeys loads the Ed25519 signing key from disk, or generates an
// ephemeral one. Ephemeral keys invalidate access tokens on restart;
// clients recover via refresh.
func (app *Application) initKeys() error {
	if app.cfg.SigningKey != "" {
		pemKey, err := os.ReadFile(app.cfg.SigningKey)
		if err != nil {
			return fmt.Errorf("failed to read signing key: %w", err)
		}
		signer, err := jwtx.NewSignerEdDSA("primary", pemKey)
		if err != nil {
			return fmt.Errorf("failed to load signing key: %w", err)
		}
		app.signer = signer
		app.verifier = jwtx.NewVerifierEdDSA(signer.PublicKey(), app.cfg.Issuer)
		return nil
	}

	signer, err := jwtx.GenerateSignerEdDSA("ephemeral")
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}
	app.signer = signer
	app.verifier = jwtx.NewVerifierEdDSA(signer.PublicKey(), app.cfg.Issuer)
	app.logger.Warn("using an ephemeral signing key; access tokens will not survive a restart")
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)
}

func (app *Application) initServices() {
	app.hub = ws.NewHub(context.Background(), app.metrics)

	app.notifier = service.NewExpiryNotifier(
		app.cfg.WarningLead,
		app.hub.NotifyTokenExpiring,
		app.logger,
		app.metrics,
	)

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Signer:     app.signer,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		Notifier:   app.notifier,
		Metrics:    app.metrics,
	}

	app.todoService = &service.TodoService{Store: app.db}
	app.userService = &service.UserService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.hub,
		app.registry,
		app.logger,
	)

	router.SessionService = app.sessionService
	router.TodoService = app.todoService
	router.UserService = app.userService
	router.CookieSecure = app.cfg.CookieSecure
	router.WithCORSOrigins(app.cfg.CORSOrigins)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
