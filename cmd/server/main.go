package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/manfullwel/ska/internal/bottleneck"
	"github.com/manfullwel/ska/internal/config"
	"github.com/manfullwel/ska/internal/eventbus"
	"github.com/manfullwel/ska/internal/forecast"
	"github.com/manfullwel/ska/internal/handler"
	"github.com/manfullwel/ska/internal/history"
	"github.com/manfullwel/ska/internal/pipeline"
	"github.com/manfullwel/ska/internal/server"
	"github.com/manfullwel/ska/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer logger.Sync()

	db, err := sql.Open("sqlite", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	store := history.NewSQLiteStore(db)
	if err := store.CreateSchema(ctx); err != nil {
		logger.Fatal("creating schema", zap.Error(err))
	}
	logger.Info("snapshot store ready", zap.String("dsn", cfg.Database.DSN))

	bus := eventbus.New(cfg.Analysis.EventBufferSize, logger)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))

	app := wire(cfg, store, logger, bus)

	// All subscriptions are in place; start consuming and drain on
	// shutdown.
	bus.Start(ctx)
	defer bus.Stop()

	retention := worker.NewRetentionWorker(store, cfg.Analysis.HistoryLimit, time.Hour, logger)
	go retention.Run(ctx)

	if err := server.Run(ctx, server.Config{
		Addr:     cfg.Addr(),
		Analysis: app.analysis,
		Watch:    app.watch,
		Log:      logger,
	}); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

type app struct {
	analysis *handler.AnalysisHandler
	watch    *handler.WatchHandler
}

func wire(cfg *config.Config, store history.Store, logger *zap.Logger, bus *eventbus.Bus) app {
	fcCfg := forecast.Config{
		Horizon:    cfg.Analysis.ForecastHorizon,
		MaxHistory: cfg.Analysis.HistoryLimit,
		MinSample:  cfg.Analysis.MinForecastRuns,
	}
	opts := pipeline.Options{
		Thresholds: bottleneck.Thresholds{
			EfficiencyFactor: cfg.Analysis.EfficiencyFactor,
			VolumeFactor:     cfg.Analysis.VolumeFactor,
			DistributionCV:   cfg.Analysis.DistributionCV,
		},
		Forecast:     fcCfg,
		HistoryLimit: cfg.Analysis.HistoryLimit,
	}

	p := pipeline.New(store, bus, logger, opts)
	watch := handler.NewWatchHandler(logger)
	bus.Subscribe("watch", watch)

	return app{
		analysis: handler.NewAnalysisHandler(p, store, forecast.New(fcCfg), logger),
		watch:    watch,
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
