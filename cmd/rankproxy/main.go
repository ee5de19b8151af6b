package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rushteam/rankproxy/config"
	"github.com/rushteam/rankproxy/reorder"
	"github.com/rushteam/rankproxy/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("load config failed")
	}

	cache, err := config.BuildCache(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("init cache failed")
	}
	defer cache.Close()

	repo := config.BuildRepository(cfg, logger.With().Str("component", "repository").Logger())
	predictor := config.BuildPredictor(cfg, logger.With().Str("component", "rank").Logger())

	var enricher reorder.Enricher
	feastEnricher, err := config.BuildEnricher(cfg, logger.With().Str("component", "feast").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("init feast enricher failed")
	}
	if feastEnricher != nil {
		defer feastEnricher.Close()
		enricher = feastEnricher
	}

	usecase := config.BuildUsecase(cfg, repo, cache, predictor, enricher,
		logger.With().Str("component", "reorder").Logger())

	opts := []service.ServerOption{
		service.WithServerLogger(logger.With().Str("component", "server").Logger()),
	}
	if cfg.ABTest.DefaultEndpoint.URL != "" {
		registry, err := config.BuildRegistry(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("init ab registry failed")
		}
		router := config.BuildRouter(registry, cfg, logger.With().Str("component", "abtest").Logger())
		opts = append(opts, service.WithABRouter(router))
	}
	srv := service.NewServer(usecase, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("model", cfg.Model.Name).
		Str("cache", cache.Name()).
		Str("addr", cfg.Server.Addr).
		Msg("rankproxy starting")
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("rankproxy stopped")
}
