// Package server wires the HTTP stack and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/health"
	middleware "github.com/mohammed-shakir/barrier-prioritizer/internal/core/middleware"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/core/router"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/metrics"
)

type Options struct {
	Addr        string
	MetricsAddr string
	Metrics     *metrics.Provider
	Checks      map[string]health.Check
}

// Handler builds the full router. Metrics are served here unless they have
// their own listener.
func Handler(opts Options, logger *slog.Logger, api *router.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(opts.Checks, 2*time.Second))
	if opts.Metrics != nil && opts.Metrics.Enabled() && opts.MetricsAddr == "" {
		r.Method(http.MethodGet, opts.Metrics.Path(), opts.Metrics.Handler())
	}
	api.Routes(r)
	return r
}

// Run serves until ctx is done.
func Run(ctx context.Context, opts Options, logger *slog.Logger, api *router.API) error {
	srvs := []*http.Server{newServer(opts.Addr, Handler(opts, logger, api))}
	if opts.Metrics != nil && opts.Metrics.Enabled() && opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(opts.Metrics.Path(), opts.Metrics.Handler())
		srvs = append(srvs, newServer(opts.MetricsAddr, mux))
	}

	errCh := make(chan error, len(srvs))
	for _, srv := range srvs {
		go func() {
			logger.Info("http listen", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range srvs {
			_ = srv.Shutdown(shutdownCtx)
		}
	}

	select {
	case <-ctx.Done():
		shutdown()
		return nil
	case err := <-errCh:
		shutdown()
		return err
	}
}

func newServer(addr string, h http.Handler) *http.Server {
	// no WriteTimeout: map streams stay open for the life of a page
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
