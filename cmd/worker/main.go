package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/container-tracker/internal/app"
	"github.com/noah-isme/container-tracker/internal/config"
	"github.com/noah-isme/container-tracker/internal/obs"
	"github.com/noah-isme/container-tracker/internal/scheduler"
	"github.com/noah-isme/container-tracker/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.Component(obs.NewLogger(cfg.LogFormat, cfg.LogLevel), "worker")
	sched := cfg.Scheduler()
	logger.Info().
		Str("cron", sched.CronTimer).
		Str("base_url", sched.BaseURL).
		Int("batch_size", sched.BatchSize).
		Int("concurrency", sched.Concurrency).
		Str("dispatch_mode", sched.DispatchMode).
		Str("pending_source", sched.PendingSource).
		Msg("worker configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "tracker"), registry)

	if shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		ServiceName:   "container-tracker-worker",
		Endpoint:      cfg.OTLPEndpoint,
		Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
		SamplingRatio: cfg.TraceSampleRatio,
		Environment:   cfg.AppEnv,
	}); err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	deps := app.New(cfg, pool, redisClient, logger)
	deps.MetricsRegistry = registry
	cycle := deps.Scheduler()

	connOpt, err := app.RedisConnOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis options")
	}
	taskLogger := asynqLogger{obs.Component(logger, "asynq")}

	server := asynq.NewServer(connOpt, asynq.Config{
		Concurrency:     1,
		Queues:          map[string]int{scheduler.QueueName: 1},
		Logger:          taskLogger,
		ShutdownTimeout: 30 * time.Second,
	})
	handler := scheduler.TaskHandler{Scheduler: cycle, Logger: obs.Component(logger, "scheduler")}
	if err := server.Start(scheduler.NewServeMux(handler)); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	cron := asynq.NewScheduler(connOpt, &asynq.SchedulerOpts{Logger: taskLogger, Location: time.UTC})
	entryID, err := scheduler.RegisterCron(cron, sched.CronTimer, sched.CycleLockTTL)
	if err != nil {
		logger.Fatal().Err(err).Str("cron", sched.CronTimer).Msg("register cycle cron")
	}
	if err := cron.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start cron scheduler")
	}
	logger.Info().Str("entry_id", entryID).Str("cron", sched.CronTimer).Msg("cycle cron registered")

	metricsSrv := startMetricsServer(envOrDefault("WORKER_METRICS_ADDR", ":9091"), registry, logger)

	if envBool("RUN_ON_START", false) {
		go func() {
			if _, err := cycle.TryRunCycle(ctx); err != nil {
				logger.Warn().Err(err).Msg("startup cycle skipped")
			}
		}()
	}

	logger.Info().Msg("worker starting")
	<-ctx.Done()
	logger.Info().Msg("worker shutting down")

	cron.Shutdown()
	server.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown")
	}
	logger.Info().Msg("worker shutdown complete")
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.Gatherers{registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return srv
}

// asynqLogger routes asynq's logs through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}
