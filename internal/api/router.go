package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
)

type RouterConfig struct {
	Service  *allocation.Service
	History  allocation.EventHistory // optional, enables GET /doctors/{id}/events
	Defaults SlotDefaults
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Gatherer prometheus.Gatherer // optional, enables GET /metrics
	Metrics  *HTTPMetrics        // optional
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	svc := cfg.Service
	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", registerDoctorHandler(svc, cfg.Defaults))
		r.Get("/", listDoctorsHandler(svc))
		r.Get("/{id}", getDoctorHandler(svc))
		r.Get("/{id}/slots", slotsHandler(svc))
		r.Get("/{id}/queue", queueHandler(svc))
		r.Get("/{id}/summary", summaryHandler(svc))
		r.Post("/{id}/delay", delayHandler(svc))
		r.Post("/{id}/resume", resumeHandler(svc))
		if cfg.History != nil {
			r.Get("/{id}/events", eventsHandler(svc, cfg.History))
		}
	})

	r.Route("/tokens", func(r chi.Router) {
		r.Post("/", submitTokenHandler(svc))
		r.Get("/{id}", getTokenHandler(svc))
		r.Post("/{id}/cancel", tokenTransitionHandler(svc.CancelToken))
		r.Post("/{id}/no-show", tokenTransitionHandler(svc.MarkNoShow))
		r.Post("/{id}/complete", tokenTransitionHandler(svc.CompleteToken))
	})

	return r
}
