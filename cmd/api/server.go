package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/batchdesk/pkg/httpx"
	"github.com/FACorreiaa/batchdesk/pkg/middleware"
)

// NewRouter builds the API router with its middleware stack
func NewRouter(d *Dependencies, limiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   d.Config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		d.ImportHandler.Routes(r)
		d.BatchHandler.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, r, d.Logger, http.StatusNotFound, httpx.ErrorResponse{
			Message: "The requested resource does not exist.",
			Code:    "REQ404",
		}, nil)
	})

	return r
}

// Run serves the API (and the metrics endpoint when enabled) until ctx is cancelled,
// then shuts both servers down gracefully.
func Run(ctx context.Context, d *Dependencies) error {
	cfg := d.Config

	limiter := middleware.NewRateLimiter(float64(cfg.Server.RateLimitPerSecond), cfg.Server.RateLimitBurst, 0)

	apiServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           NewRouter(d, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	servers := []*http.Server{apiServer}
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.Metrics.Handler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	if err := d.startScheduler(); err != nil {
		return err
	}
	defer d.Cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		limiter.Run(gctx, time.Minute)
		return nil
	})

	for _, srv := range servers {
		g.Go(func() error {
			d.Logger.Info("http server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		d.Logger.Info("shutting down http servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// startScheduler warms the dashboard snapshot and schedules its refresh.
// The job only runs when a backend service token is configured.
func (d *Dependencies) startScheduler() error {
	if d.Config.Backend.ServiceToken == "" || d.Config.Dashboard.RefreshInterval <= 0 {
		d.Logger.Info("dashboard refresh disabled")
		return nil
	}

	go d.Scheduler.RunNow()
	return d.Scheduler.Start()
}
