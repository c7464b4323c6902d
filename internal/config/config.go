package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// DispatchInProcess runs the tracking service inside the worker.
	DispatchInProcess = "inprocess"
	// DispatchHTTP posts each item to the API's track-and-notify route.
	DispatchHTTP = "http"

	// PendingDatabase pages pending requests straight out of Postgres.
	PendingDatabase = "database"
	// PendingHTTP pages pending requests through the API.
	PendingHTTP = "http"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string
	OTLPEndpoint       string
	TraceSampleRatio   float64

	CronTimer     string
	BaseURL       string
	BackendServer string
	BatchSize     int
	Concurrency   int
	PageCooldown  time.Duration
	CycleLockTTL  time.Duration
	DispatchMode  string
	PendingSource string

	ProviderTimeout   time.Duration
	PipelineTimeout   time.Duration
	DeliveryTimeout   time.Duration
	ProviderEndpoints map[string]string

	BreakerMinRequests int
	BreakerFailRatio   float64
	BreakerOpenFor     time.Duration

	RelayURL      string
	RelayUsername string
	RelayPassword string
	ReportBrand   string
	RendererURL   string

	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	JWTClockSkew    time.Duration
	ServiceTokenTTL time.Duration
}

// Tracking carries the settings used by the resolve and notify path.
type Tracking struct {
	BackendServer      string
	ProviderTimeout    time.Duration
	PipelineTimeout    time.Duration
	DeliveryTimeout    time.Duration
	ProviderEndpoints  map[string]string
	BreakerMinRequests int
	BreakerFailRatio   float64
	BreakerOpenFor     time.Duration
	RelayURL           string
	RelayUsername      string
	RelayPassword      string
	ReportBrand        string
	RendererURL        string
}

// Scheduler carries the batch cycle settings.
type Scheduler struct {
	CronTimer       string
	BaseURL         string
	BatchSize       int
	Concurrency     int
	PageCooldown    time.Duration
	PipelineTimeout time.Duration
	CycleLockTTL    time.Duration
	DispatchMode    string
	PendingSource   string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	baseURL := strings.TrimRight(valueOrDefault(k.String("BASE_URL"), "http://localhost:5000"), "/")
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "5000"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		OTLPEndpoint:       strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
		TraceSampleRatio:   parseFloat(k.String("OTEL_TRACES_SAMPLER_RATIO"), 1),

		CronTimer:     valueOrDefault(k.String("CRON_TIMER"), "0 0,12 * * *"),
		BaseURL:       baseURL,
		BackendServer: strings.TrimRight(strings.TrimSpace(k.String("BACKEND_SERVER")), "/"),
		BatchSize:     parseInt(k.String("BATCH_SIZE"), 500),
		Concurrency:   parseInt(k.String("CONCURRENCY"), 10),
		PageCooldown:  parseDuration(k.String("PAGE_COOLDOWN"), "1s"),
		CycleLockTTL:  parseDuration(k.String("CYCLE_LOCK_TTL"), "6h"),
		DispatchMode:  strings.ToLower(valueOrDefault(k.String("DISPATCH_MODE"), DispatchInProcess)),
		PendingSource: strings.ToLower(valueOrDefault(k.String("PENDING_SOURCE"), PendingDatabase)),

		ProviderTimeout:   parseDuration(k.String("PROVIDER_TIMEOUT"), "30s"),
		PipelineTimeout:   parseDuration(k.String("PIPELINE_TIMEOUT"), "60s"),
		DeliveryTimeout:   parseDuration(k.String("DELIVERY_TIMEOUT"), "20s"),
		ProviderEndpoints: parsePairs(k.String("PROVIDER_ENDPOINTS")),

		BreakerMinRequests: parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailRatio:   parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:     parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		RelayURL:      strings.TrimSpace(k.String("RELAY_URL")),
		RelayUsername: k.String("BRAVO_USERNAME"),
		RelayPassword: k.String("BRAVO_PASSWORD"),
		ReportBrand:   valueOrDefault(k.String("REPORT_BRAND"), "TrackWW"),
		RendererURL:   strings.TrimSpace(k.String("RENDERER_URL")),

		JWTSecret:       k.String("JWT_SECRET"),
		JWTIssuer:       valueOrDefault(k.String("JWT_ISSUER"), "container-tracker"),
		JWTAudience:     valueOrDefault(k.String("JWT_AUDIENCE"), "tracker-api"),
		JWTClockSkew:    parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),
		ServiceTokenTTL: parseDuration(k.String("SERVICE_TOKEN_TTL"), "5m"),
	}

	if cfg.BatchSize <= 0 {
		return nil, errors.New("BATCH_SIZE must be positive")
	}
	if cfg.Concurrency <= 0 {
		return nil, errors.New("CONCURRENCY must be positive")
	}
	switch cfg.DispatchMode {
	case DispatchInProcess, DispatchHTTP:
	default:
		return nil, fmt.Errorf("unsupported DISPATCH_MODE %q", cfg.DispatchMode)
	}
	switch cfg.PendingSource {
	case PendingDatabase, PendingHTTP:
	default:
		return nil, fmt.Errorf("unsupported PENDING_SOURCE %q", cfg.PendingSource)
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "5000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Tracking returns a copy of the resolve and notify settings.
func (c *Config) Tracking() Tracking {
	endpoints := make(map[string]string, len(c.ProviderEndpoints))
	for id, url := range c.ProviderEndpoints {
		endpoints[id] = url
	}
	return Tracking{
		BackendServer:      c.BackendServer,
		ProviderTimeout:    c.ProviderTimeout,
		PipelineTimeout:    c.PipelineTimeout,
		DeliveryTimeout:    c.DeliveryTimeout,
		ProviderEndpoints:  endpoints,
		BreakerMinRequests: c.BreakerMinRequests,
		BreakerFailRatio:   c.BreakerFailRatio,
		BreakerOpenFor:     c.BreakerOpenFor,
		RelayURL:           c.RelayURL,
		RelayUsername:      c.RelayUsername,
		RelayPassword:      c.RelayPassword,
		ReportBrand:        c.ReportBrand,
		RendererURL:        c.RendererURL,
	}
}

// Scheduler returns a copy of the batch cycle settings.
func (c *Config) Scheduler() Scheduler {
	return Scheduler{
		CronTimer:       c.CronTimer,
		BaseURL:         c.BaseURL,
		BatchSize:       c.BatchSize,
		Concurrency:     c.Concurrency,
		PageCooldown:    c.PageCooldown,
		PipelineTimeout: c.PipelineTimeout,
		CycleLockTTL:    c.CycleLockTTL,
		DispatchMode:    c.DispatchMode,
		PendingSource:   c.PendingSource,
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parsePairs reads "id=url,id=url". Entries without '=' are ignored.
func parsePairs(value string) map[string]string {
	out := map[string]string{}
	for _, part := range splitAndTrim(value) {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	return out
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
