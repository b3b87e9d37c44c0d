// Package server assembles the HTTP routes and runs the server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/manfullwel/ska/internal/handler"
)

// Config holds the assembled dependencies for the HTTP server.
type Config struct {
	Addr     string
	Analysis *handler.AnalysisHandler
	Watch    *handler.WatchHandler
	Log      *zap.Logger
}

// Router builds the chi router with all routes registered.
func Router(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", cfg.Analysis.RunAnalysis)
		r.Get("/runs/watch", cfg.Watch.ServeHTTP)
		r.Get("/rankings", cfg.Analysis.GetRankings)
		r.Get("/entities/{id}/metrics", cfg.Analysis.GetEntityMetrics)
		r.Get("/entities/{id}/forecast", cfg.Analysis.GetEntityForecast)
		r.Get("/entities/{id}/efficiency-trend", cfg.Analysis.GetEfficiencyTrend)
		r.Get("/bottlenecks", cfg.Analysis.GetBottlenecks)
		r.Get("/history", cfg.Analysis.GetHistory)
		r.Get("/groups/comparison", cfg.Analysis.GetGroupComparison)
	})

	return r
}

// Run starts the HTTP server and shuts it down gracefully when the
// context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Router(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", zap.Error(err))
		}
	}()

	log.Info("http server listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
