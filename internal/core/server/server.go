package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/tzwhere/internal/core/config"
	"github.com/mohammed-shakir/tzwhere/internal/core/health"
	middleware "github.com/mohammed-shakir/tzwhere/internal/core/middleware"
	"github.com/mohammed-shakir/tzwhere/internal/core/router"
	"github.com/mohammed-shakir/tzwhere/internal/metrics"
)

type Deps struct {
	Resolver router.Resolver
	Ready    health.ReadinessReporter
	// Metrics serves /metrics from its private registry; nil falls back to
	// the default registry.
	Metrics *metrics.Provider
}

// NewHandler wires the routes.
func NewHandler(cfg config.Config, logger *slog.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	if deps.Ready != nil {
		r.Get("/readyz", health.Readiness(deps.Ready))
	}
	if cfg.MetricsEnabled {
		if deps.Metrics != nil {
			r.Handle(deps.Metrics.Path(), deps.Metrics.Handler())
		} else {
			r.Get("/metrics", promhttp.Handler().ServeHTTP)
		}
	}
	r.Get(router.Route, router.HandleTimezone(logger, cfg.RequestTimeout, deps.Resolver))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
