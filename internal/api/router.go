package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/container-tracker/internal/audit"
	"github.com/noah-isme/container-tracker/internal/health"
	"github.com/noah-isme/container-tracker/internal/obs"
)

// RouterConfig carries the handlers and middleware settings for NewRouter.
type RouterConfig struct {
	Schedules      ScheduleHandler
	Logs           audit.Handler
	Health         health.Handler
	Logger         zerolog.Logger
	Metrics        *obs.HTTPMetrics
	Gatherer       prometheus.Gatherer
	Tracing        bool
	AllowedOrigins []string
	// Tokens enables bearer authentication of requesters. Nil leaves every
	// request anonymous.
	Tokens TokenParser
}

// NewRouter builds the chi router for the API process.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(secureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	r.Route("/api", func(a chi.Router) {
		a.Use(bodyLimit(maxBodyBytes))
		if cfg.Tokens != nil {
			a.Use(requesterAuth(cfg.Tokens))
		}
		a.Route("/schedules", func(s chi.Router) {
			s.Post("/track-and-notify", cfg.Schedules.TrackAndNotify)
			s.Get("/active", cfg.Schedules.Active)
			s.Post("/run", cfg.Schedules.RunCycle)
		})
		a.Get("/tracking-logs", cfg.Logs.List)
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
