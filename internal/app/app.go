// Package app assembles the keygate application: configuration, logging,
// observability, the store backend, the entitlement service, and the HTTP
// server with its middleware chain.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"keygate/internal/config"
	"keygate/internal/entitlement"
	"keygate/internal/infrastructure"
	"keygate/internal/middleware"
	"keygate/internal/store"
	handlers "keygate/internal/transport/http"
)

// Application is the assembled service container.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	Service       entitlement.Service
	OTelProviders *infrastructure.OTelProviders
}

// NewApplication builds the application from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", infrastructure.ServiceVersion),
		slog.String("store_driver", cfg.Store.Driver))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	entStore, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics, err := entitlement.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create entitlement metrics: %w", err)
	}

	quotaStore, ok := entStore.(entitlement.QuotaStore)
	if !ok {
		return nil, fmt.Errorf("store driver %q does not support reset quotas", cfg.Store.Driver)
	}
	quota := entitlement.NewResetQuotaTracker(quotaStore, cfg.Entitlement.ResetLimit)

	service := entitlement.NewService(entStore, entitlement.NewKeyGenerator(), quota, logger, metrics)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Service:       service,
		OTelProviders: otelProviders,
	}
	app.Router = app.buildRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (entitlement.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store; records and quotas will not survive restart")
		return store.NewMemory(), nil
	default:
		f, err := store.OpenFile(cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open entitlement store: %w", err)
		}
		return f, nil
	}
}

func (a *Application) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.Logger))
	if a.Config.Security.RateLimit.Enabled {
		r.Use(middleware.RateLimit(a.Config.Security.RateLimit.RPS, a.Config.Security.RateLimit.Burst))
	}
	r.Use(chimiddleware.Timeout(30 * time.Second))

	verifier := middleware.NewStaticSecretVerifier(a.Config.Security.AdminSecret)

	entitlementHandler := handlers.NewEntitlementHandler(a.Service, a.Logger)
	adminHandler := handlers.NewAdminHandler(a.Service, verifier, a.Logger)
	healthHandler := handlers.NewHealthHandler()

	entitlementHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)
	r.Get("/healthz", healthHandler.Health)
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	return r
}

// Run starts the HTTP server and blocks until shutdown completes. SIGINT
// and SIGTERM trigger a graceful drain bounded by the configured timeout.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("otel shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	a.Logger.Info("application stopped")
	return err
}
