package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"linkr/internal/api"
	"linkr/internal/api/handlers"
	"linkr/internal/engine/analytics"
	"linkr/internal/engine/links"
	"linkr/internal/engine/redirect"
	"linkr/internal/engine/routing"
	"linkr/internal/pkg/geoip"
	"linkr/internal/pkg/logger"
	"linkr/internal/pkg/ratelimit"
	"linkr/internal/platform/config"
	"linkr/internal/platform/database"
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

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Core pipeline
	linkRepo := links.NewRepository(db)
	cache := redirect.NewLinkCache(rdb, cfg.Cache.Timeout)
	resolver := redirect.NewResolver(cache, linkRepo, cfg.Database.QueryTimeout, logger.For("resolver"))
	engine := redirect.NewEngine()

	sink := analytics.NewSQLSink(db)
	recorder := redirect.NewClickRecorder(
		sink,
		cfg.Recorder.Workers,
		cfg.Recorder.QueueSize,
		cfg.Recorder.WriteTimeout,
		logger.For("recorder"),
	)

	limiter := ratelimit.New(cfg.RateLimit.CreateLinkPerMinute)
	defer limiter.Close()

	// Ops/API surface and public stats
	statsRepo := analytics.NewRepository(db)
	statsSvc := analytics.NewService(statsRepo, linkRepo)
	statsHandler := handlers.NewStatsHandler(statsSvc)

	apiRouter := api.NewRouter(&api.Dependencies{
		HealthHandler:  handlers.NewHealthHandler(db, rdb),
		MetricsHandler: handlers.NewMetricsHandler(),
		StatsHandler:   statsHandler,
	})

	classifier := routing.NewClassifier(cfg.Hostnames)
	dispatcher := redirect.NewDispatcher(
		classifier,
		resolver,
		engine,
		recorder,
		geoip.NewHeaderResolver(cfg.GeoIP.Headers, cfg.GeoIP.DefaultCountry),
		limiter,
		redirect.Handoffs{
			API:   apiRouter,
			Stats: http.HandlerFunc(statsHandler.ServePage),
		},
		cfg.Hostnames.AppURL,
		logger.For("dispatcher"),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      dispatcher,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// Flush queued clicks before the process exits
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Recorder.DrainTimeout)
	defer drainCancel()
	if err := recorder.Close(drainCtx); err != nil {
		log.Warn().Err(err).Msg("Click queue drain incomplete")
	}
}
