package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"linkr/internal/engine/analytics"
	"linkr/internal/pkg/logger"
	"linkr/internal/platform/config"
	"linkr/internal/platform/database"
	"linkr/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open link store")
	}
	defer db.Close()

	aggregator := workers.NewStatsAggregator(
		analytics.NewRepository(db),
		cfg.Worker.StatsLookback,
		logger.For("stats-aggregator"),
	)
	expiry := workers.NewExpiryReporter(db, logger.For("expiry-reporter"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runPeriodic(ctx, cfg.Worker.StatsInterval, "stats aggregation", aggregator.Run)
	go runPeriodic(ctx, 24*time.Hour, "expiry report", expiry.Run)

	log.Info().Msg("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down workers")
}

// runPeriodic runs job immediately and then on every tick until ctx ends.
func runPeriodic(ctx context.Context, interval time.Duration, name string, job func(context.Context) error) {
	run := func() {
		if err := job(ctx); err != nil {
			log.Error().Err(err).Str("job", name).Msg("Job failed")
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
