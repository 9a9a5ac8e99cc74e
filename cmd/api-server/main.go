package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
	"github.com/hackgods/opd-token-allocation/internal/api"
	"github.com/hackgods/opd-token-allocation/internal/config"
	"github.com/hackgods/opd-token-allocation/internal/db"
	"github.com/hackgods/opd-token-allocation/internal/logging"
	redisclient "github.com/hackgods/opd-token-allocation/internal/redis"
	"github.com/hackgods/opd-token-allocation/internal/roster"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Setup(cfg.Env)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("version", version).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		sinks   allocation.MultiSink
		history allocation.EventHistory
		pgPool  *pgxpool.Pool
		rdb     *redis.Client
	)

	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()

		eventLog := allocation.NewPgEventSink(pgPool)
		if err := eventLog.EnsureSchema(rootCtx); err != nil {
			logger.Fatal().Err(err).Msg("event log schema")
		}
		sinks = append(sinks, eventLog)
		history = eventLog
		logger.Info().Msg("connected to Postgres, event log enabled")
	}

	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()

		sinks = append(sinks, redisclient.NewEventPublisher(rdb, cfg.EventsChannel))
		logger.Info().Str("channel", cfg.EventsChannel).Msg("connected to Redis, event publishing enabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []allocation.Option{allocation.WithMetrics(allocation.NewMetrics(reg))}
	if len(sinks) > 0 {
		opts = append(opts, allocation.WithEventSink(sinks))
	}
	svc := allocation.NewService(logger.With().Str("component", "allocation").Logger(), opts...)

	if cfg.RosterFile != "" {
		r, err := roster.Load(cfg.RosterFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("roster load error")
		}
		n, err := r.Register(rootCtx, svc, cfg.SlotDuration, cfg.SlotCapacity)
		if err != nil {
			logger.Fatal().Err(err).Int("registered", n).Msg("roster registration error")
		}
		logger.Info().Int("doctors", n).Str("file", cfg.RosterFile).Msg("roster loaded")
	}

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		History:  history,
		Defaults: api.SlotDefaults{Duration: cfg.SlotDuration, Capacity: cfg.SlotCapacity},
		PgPool:   pgPool,
		Redis:    rdb,
		Gatherer: reg,
		Metrics:  api.NewHTTPMetrics(reg),
		Logger:   logger.With().Str("component", "http").Logger(),
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
