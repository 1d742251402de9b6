package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "ticketslack.yaml"

// DefaultEnvFile is the dotenv file overlaid onto the process environment.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < .env < ENV.
// Both files are optional; a missing file is not an error.
func Load() (*Config, error) {
	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config dotenv: %w", err)
	}
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

// loadDotEnv sets variables from a dotenv file. Variables already present in
// the environment win over the file.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
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
	setString(&cfg.Server.Port, "TICKETSLACK_PORT")
	setString(&cfg.Server.CORSOrigin, "TICKETSLACK_CORS_ORIGIN")
	setString(&cfg.Server.AdminToken, "TICKETSLACK_ADMIN_TOKEN")
	setDuration(&cfg.Server.ShutdownTimeout, "TICKETSLACK_SHUTDOWN_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TICKETSLACK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TICKETSLACK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TICKETSLACK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TICKETSLACK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TICKETSLACK_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "TICKETSLACK_NATS_STREAM")
	setString(&cfg.NATS.Durable, "TICKETSLACK_NATS_DURABLE")

	setString(&cfg.Logging.Level, "TICKETSLACK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TICKETSLACK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TICKETSLACK_LOG_ASYNC")
	setInt(&cfg.Logging.AsyncBuffer, "TICKETSLACK_LOG_ASYNC_BUFFER")
	setInt(&cfg.Logging.AsyncWorkers, "TICKETSLACK_LOG_ASYNC_WORKERS")

	setInt(&cfg.Breaker.MaxFailures, "TICKETSLACK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TICKETSLACK_BREAKER_TIMEOUT")
	setDuration(&cfg.Delivery.Timeout, "TICKETSLACK_DELIVERY_TIMEOUT")

	setString(&cfg.Host.BaseURL, "TICKETSLACK_HOST_BASE_URL")

	setString(&cfg.Ingress.Secret, "TICKETSLACK_INGRESS_SECRET")
	setString(&cfg.Ingress.SignatureHeader, "TICKETSLACK_INGRESS_SIGNATURE_HEADER")

	setInt64(&cfg.Cache.MaxPatterns, "TICKETSLACK_CACHE_MAX_PATTERNS")

	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "TICKETSLACK_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "TICKETSLACK_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
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
	if cfg.NATS.URL != "" && cfg.NATS.Stream == "" {
		return errors.New("nats.stream is required when nats.url is set")
	}
	if cfg.Breaker.MaxFailures < 0 {
		return errors.New("breaker.max_failures must be >= 0")
	}
	if cfg.Breaker.MaxFailures > 0 && cfg.Breaker.Timeout <= 0 {
		return errors.New("breaker.timeout must be > 0 when the breaker is enabled")
	}
	if cfg.Delivery.Timeout < 0 {
		return errors.New("delivery.timeout must be >= 0")
	}
	if cfg.Host.BaseURL == "" {
		return errors.New("host.base_url is required")
	}
	if cfg.Ingress.Secret != "" && cfg.Ingress.SignatureHeader == "" {
		return errors.New("ingress.signature_header is required when ingress.secret is set")
	}
	if cfg.Cache.MaxPatterns < 1 {
		return errors.New("cache.max_patterns must be >= 1")
	}
	if cfg.Logging.Async && (cfg.Logging.AsyncBuffer < 1 || cfg.Logging.AsyncWorkers < 1) {
		return errors.New("logging.async_buffer and logging.async_workers must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be within [0, 1]")
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
