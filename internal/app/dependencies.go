// Package app wires the tracking components shared by the API and worker
// processes.
package app

import (
	"fmt"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/container-tracker/internal/audit"
	"github.com/noah-isme/container-tracker/internal/auth"
	"github.com/noah-isme/container-tracker/internal/config"
	"github.com/noah-isme/container-tracker/internal/lock"
	"github.com/noah-isme/container-tracker/internal/notify"
	"github.com/noah-isme/container-tracker/internal/obs"
	"github.com/noah-isme/container-tracker/internal/registry"
	"github.com/noah-isme/container-tracker/internal/report"
	"github.com/noah-isme/container-tracker/internal/resilience"
	"github.com/noah-isme/container-tracker/internal/schedule"
	"github.com/noah-isme/container-tracker/internal/scheduler"
	"github.com/noah-isme/container-tracker/internal/tracker"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

// Dependencies enumerates the shared infrastructure each process builds once.
type Dependencies struct {
	Config          *config.Config
	DB              *pgxpool.Pool
	Redis           *redis.Client
	Validator       *validator.Validate
	MetricsRegistry *prometheus.Registry
	Logger          zerolog.Logger
	HTTPClient      *http.Client
	Breakers        *resilience.BreakerSet
}

// New fills the defaults derived from cfg.
func New(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, logger zerolog.Logger) *Dependencies {
	t := cfg.Tracking()
	return &Dependencies{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Validator:  validator.New(),
		Logger:     logger,
		HTTPClient: tracking.NewHTTPClient(),
		Breakers: &resilience.BreakerSet{
			MinRequests:  t.BreakerMinRequests,
			FailureRatio: t.BreakerFailRatio,
			OpenFor:      t.BreakerOpenFor,
			Logger:       obs.Component(logger, "breaker"),
		},
	}
}

// AuditStore persists attempt entries in Postgres.
func (d *Dependencies) AuditStore() audit.PGStore {
	return audit.PGStore{DB: d.DB}
}

// Endpoints layers PROVIDER_ENDPOINTS over the tracking_endpoints table.
func (d *Dependencies) Endpoints() registry.Layered {
	return registry.Layered{
		Override: registry.NewStatic(d.Config.Tracking().ProviderEndpoints),
		Base:     registry.PGStore{DB: d.DB},
	}
}

// Fetcher routes through the origin proxy when BACKEND_SERVER is set and
// calls providers directly otherwise.
func (d *Dependencies) Fetcher() tracking.Fetcher {
	if backend := d.Config.Tracking().BackendServer; backend != "" {
		return tracking.ProxyFetcher{BaseURL: backend, Client: d.HTTPClient}
	}
	return tracking.DirectFetcher{Client: d.HTTPClient}
}

// Pipeline renders reports and delivers them through the mail relay.
func (d *Dependencies) Pipeline() notify.Pipeline {
	t := d.Config.Tracking()
	renderer := report.Renderer{Brand: t.ReportBrand}
	if t.RendererURL != "" {
		renderer.Converter = report.HTTPConverter{URL: t.RendererURL, Client: d.HTTPClient, Breaker: d.Breakers.For("renderer")}
	}
	return notify.Pipeline{
		Renderer: renderer,
		Sender: notify.RelayClient{
			URL:      t.RelayURL,
			Username: t.RelayUsername,
			Password: t.RelayPassword,
			Client:   d.HTTPClient,
			Breaker:  d.Breakers.For("relay"),
		},
		DeliveryTimeout: t.DeliveryTimeout,
		Logger:          obs.Component(d.Logger, "pipeline"),
	}
}

// TrackerService assembles resolve, normalize and notify.
func (d *Dependencies) TrackerService() tracker.Service {
	t := d.Config.Tracking()
	return tracker.Service{
		Resolver: tracking.Resolver{
			Endpoints: d.Endpoints(),
			Fetcher:   d.Fetcher(),
			Attempts:  audit.Service{Store: d.AuditStore()},
			Timeout:   t.ProviderTimeout,
			Logger:    obs.Component(d.Logger, "resolver"),
		},
		Normalizer: tracking.Normalizer{Now: time.Now},
		Pipeline:   d.Pipeline(),
		Validate:   d.Validator,
		Timeout:    t.PipelineTimeout,
		Logger:     obs.Component(d.Logger, "tracker"),
	}
}

// Tokens returns the requester token signer and verifier. ok is false when
// JWT_SECRET is unset, in which case every request is anonymous.
func (d *Dependencies) Tokens() (tokens auth.Tokens, ok bool) {
	if d.Config.JWTSecret == "" {
		return auth.Tokens{}, false
	}
	return auth.Tokens{
		Secret:    []byte(d.Config.JWTSecret),
		Issuer:    d.Config.JWTIssuer,
		Audience:  d.Config.JWTAudience,
		ClockSkew: d.Config.JWTClockSkew,
		TTL:       d.Config.ServiceTokenTTL,
	}, true
}

// PendingSource selects the page source named by PENDING_SOURCE.
func (d *Dependencies) PendingSource() schedule.PendingSource {
	s := d.Config.Scheduler()
	if s.PendingSource == config.PendingHTTP {
		return schedule.HTTPSource{BaseURL: s.BaseURL, Client: d.HTTPClient}
	}
	return schedule.PGStore{DB: d.DB}
}

// Dispatcher selects the per-item dispatcher named by DISPATCH_MODE.
func (d *Dependencies) Dispatcher() schedule.Dispatcher {
	s := d.Config.Scheduler()
	if s.DispatchMode == config.DispatchHTTP {
		dispatcher := schedule.HTTPDispatcher{BaseURL: s.BaseURL, Client: d.HTTPClient, Timeout: s.PipelineTimeout}
		if tokens, ok := d.Tokens(); ok {
			dispatcher.Tokens = tokens
		}
		return dispatcher
	}
	return schedule.InProcess{Service: d.TrackerService()}
}

// Scheduler builds the batch scheduler guarded by a Redis lock.
func (d *Dependencies) Scheduler() *scheduler.Scheduler {
	s := d.Config.Scheduler()
	sched := &scheduler.Scheduler{
		Source:       d.PendingSource(),
		Dispatcher:   d.Dispatcher(),
		BatchSize:    s.BatchSize,
		Concurrency:  s.Concurrency,
		PageCooldown: s.PageCooldown,
		ItemTimeout:  s.PipelineTimeout,
		LockTTL:      s.CycleLockTTL,
		Logger:       obs.Component(d.Logger, "scheduler"),
	}
	if d.Redis != nil {
		sched.Locker = lock.Locker{R: d.Redis}
	}
	return sched
}

// RedisConnOpt converts REDIS_URL into asynq connection options.
func RedisConnOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for asynq: %w", err)
	}
	return opt, nil
}
