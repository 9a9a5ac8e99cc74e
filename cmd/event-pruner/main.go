package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
	"github.com/hackgods/opd-token-allocation/internal/config"
	"github.com/hackgods/opd-token-allocation/internal/db"
	"github.com/hackgods/opd-token-allocation/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Setup(cfg.Env)

	if cfg.PostgresDSN == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}
	logger.Info().
		Dur("retention", cfg.EventRetention).
		Dur("interval", cfg.PruneInterval).
		Msg("event-pruner starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	sink := allocation.NewPgEventSink(pgPool)
	if err := sink.EnsureSchema(rootCtx); err != nil {
		logger.Fatal().Err(err).Msg("event log schema")
	}

	runOnce(rootCtx, logger, sink, cfg.EventRetention)

	ticker := time.NewTicker(cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping event pruner")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, sink, cfg.EventRetention)
		}
	}
}

func runOnce(ctx context.Context, logger zerolog.Logger, sink *allocation.PgEventSink, retention time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := sink.Prune(runCtx, start.Add(-retention))
	if err != nil {
		logger.Error().Err(err).Msg("prune run error")
		return
	}
	logger.Info().Int64("deleted", n).Dur("took", time.Since(start)).Msg("prune run complete")
}
