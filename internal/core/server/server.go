// Package server wires the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/knownlayers/internal/core/config"
	"github.com/mohammed-shakir/knownlayers/internal/core/health"
	"github.com/mohammed-shakir/knownlayers/internal/core/middleware"
	"github.com/mohammed-shakir/knownlayers/internal/core/router"
)

type Deps struct {
	Classifier router.Classifier
	Readiness  health.ReadinessReporter
	Metrics    http.Handler
}

// NewHandler builds the route table.
func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	h := router.New(logger, d.Classifier, cfg.MaxBatchRecords)

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	if d.Readiness != nil {
		r.Get("/readyz", health.Readiness(d.Readiness))
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Get("/layers", h.ListLayers())
	r.Get("/layers/{id}", h.GetLayer())
	r.With(router.Limit).Post("/classify", h.Classify())
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
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
