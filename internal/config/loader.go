package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "gitbridge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GITBRIDGE_PORT")
	setString(&cfg.Server.CORSOrigin, "GITBRIDGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GITBRIDGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GITBRIDGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GITBRIDGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GITBRIDGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "GITBRIDGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "GITBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "GITBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "GITBRIDGE_LOG_ASYNC")
	setString(&cfg.Services.GitHubBaseURL, "GITBRIDGE_GITHUB_BASE_URL")
	setString(&cfg.Services.GitLabBaseURL, "GITBRIDGE_GITLAB_BASE_URL")
	setDuration(&cfg.TokenCache.TTL, "GITBRIDGE_TOKEN_CACHE_TTL")
	setFloat64(&cfg.Throttle.Threshold, "GITBRIDGE_THROTTLE_THRESHOLD")
	setDuration(&cfg.Throttle.FallbackWait, "GITBRIDGE_THROTTLE_FALLBACK_WAIT")
	setInt(&cfg.Retry.MaxAttempts, "GITBRIDGE_RETRY_MAX_ATTEMPTS")
	setFloat64(&cfg.Retry.BackoffBase, "GITBRIDGE_RETRY_BACKOFF_BASE")
	setDuration(&cfg.Retry.RateLimitFallback, "GITBRIDGE_RETRY_RATE_LIMIT_FALLBACK")
	setDuration(&cfg.Idempotency.Window, "GITBRIDGE_IDEMPOTENCY_WINDOW")
	setInt64(&cfg.Idempotency.L1MaxSizeMB, "GITBRIDGE_IDEMPOTENCY_L1_SIZE_MB")
	setString(&cfg.Idempotency.Bucket, "GITBRIDGE_IDEMPOTENCY_BUCKET")
	setString(&cfg.Webhook.GitHubSecret, "GITBRIDGE_WEBHOOK_GITHUB_SECRET")
	setString(&cfg.Webhook.GitLabToken, "GITBRIDGE_WEBHOOK_GITLAB_TOKEN")
	setFloat64(&cfg.Rate.RequestsPerSecond, "GITBRIDGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "GITBRIDGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "GITBRIDGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "GITBRIDGE_RATE_MAX_IDLE_TIME")
	setString(&cfg.Secrets.MasterKey, "GITBRIDGE_MASTER_KEY")
}

// validate checks that required fields are set and numeric knobs are sane.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.TokenCache.TTL <= 0 {
		return errors.New("token_cache.ttl must be positive")
	}
	if cfg.Throttle.Threshold < 0 || cfg.Throttle.Threshold >= 1 {
		return errors.New("throttle.threshold must be in [0, 1)")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be >= 1")
	}
	if cfg.Retry.BackoffBase <= 1 {
		return errors.New("retry.backoff_base must be > 1")
	}
	if cfg.Idempotency.Window <= 0 {
		return errors.New("idempotency.window must be positive")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
