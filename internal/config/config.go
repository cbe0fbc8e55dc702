// Package config loads order-service settings from an optional YAML file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoints are the collaborator base URLs and the per-call timeout.
type Endpoints struct {
	CatalogBaseURL string        `yaml:"catalog_base_url"`
	PaymentBaseURL string        `yaml:"payment_base_url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Retry bounds payment submission attempts and the backoff between them.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// Breaker configures the circuit breakers around each collaborator.
type Breaker struct {
	MinRequests      uint32        `yaml:"min_requests"`
	FailureRatio     float64       `yaml:"failure_ratio"`
	HalfOpenRequests uint32        `yaml:"half_open_requests"`
	Interval         time.Duration `yaml:"interval"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

// Store selects the order store backend.
type Store struct {
	Driver string `yaml:"driver"` // memory or mysql
	DSN    string `yaml:"dsn"`
}

// Kafka configures order event publishing. No brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Tracing configures the Jaeger exporter. An empty endpoint disables export.
type Tracing struct {
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// Config is the full order-service configuration.
type Config struct {
	HTTPAddr     string    `yaml:"http_addr"`
	LogLevel     string    `yaml:"log_level"`
	Endpoints    Endpoints `yaml:"endpoints"`
	Retry        Retry     `yaml:"retry"`
	Breaker      Breaker   `yaml:"breaker"`
	ReserveStock bool      `yaml:"reserve_stock"`
	BulkheadSize int       `yaml:"bulkhead_size"`
	Store        Store     `yaml:"store"`
	Kafka        Kafka     `yaml:"kafka"`
	Tracing      Tracing   `yaml:"tracing"`
}

// Store drivers
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

// Default returns the settings used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Endpoints: Endpoints{
			CatalogBaseURL: "http://localhost:8081",
			PaymentBaseURL: "http://localhost:8082",
			Timeout:        5 * time.Second,
		},
		Retry: Retry{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    2 * time.Second,
		},
		Breaker: Breaker{
			MinRequests:      3,
			FailureRatio:     0.6,
			HalfOpenRequests: 1,
			Interval:         15 * time.Second,
			OpenTimeout:      30 * time.Second,
		},
		ReserveStock: true,
		BulkheadSize: 10,
		Store:        Store{Driver: DriverMemory},
		Kafka:        Kafka{Topic: "order-events"},
	}
}

// Load starts from Default, applies the YAML file at path (if path is not
// empty), then environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = Env("ORDER_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = Env("LOG_LEVEL", cfg.LogLevel)
	cfg.Endpoints.CatalogBaseURL = Env("CATALOG_SERVICE_URL", cfg.Endpoints.CatalogBaseURL)
	cfg.Endpoints.PaymentBaseURL = Env("PAYMENT_SERVICE_URL", cfg.Endpoints.PaymentBaseURL)
	cfg.Store.Driver = Env("ORDER_STORE", cfg.Store.Driver)
	cfg.Store.DSN = Env("MYSQL_DSN", cfg.Store.DSN)
	cfg.Kafka.Topic = Env("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Tracing.JaegerEndpoint = Env("JAEGER_ENDPOINT", cfg.Tracing.JaegerEndpoint)

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}

	var errs []error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"UPSTREAM_TIMEOUT", &cfg.Endpoints.Timeout},
		{"PAYMENT_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay},
		{"PAYMENT_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PAYMENT_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts},
		{"BULKHEAD_SIZE", &cfg.BulkheadSize},
	}
	for _, i := range ints {
		v, ok := os.LookupEnv(i.key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", i.key, err))
			continue
		}
		*i.dst = parsed
	}

	if v, ok := os.LookupEnv("BREAKER_HALF_OPEN_REQUESTS"); ok {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("BREAKER_HALF_OPEN_REQUESTS: %w", err))
		} else {
			cfg.Breaker.HalfOpenRequests = uint32(parsed)
		}
	}

	if v, ok := os.LookupEnv("RESERVE_STOCK"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RESERVE_STOCK: %w", err))
		} else {
			cfg.ReserveStock = parsed
		}
	}

	return errors.Join(errs...)
}

// Validate rejects settings the order service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Endpoints.CatalogBaseURL == "" {
		errs = append(errs, errors.New("catalog base url is required"))
	}
	if c.Endpoints.PaymentBaseURL == "" {
		errs = append(errs, errors.New("payment base url is required"))
	}
	if c.Endpoints.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Endpoints.Timeout))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, fmt.Errorf("retry delays must satisfy 0 <= base (%s) <= max (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay))
	}
	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		errs = append(errs, fmt.Errorf("breaker.failure_ratio must be in (0, 1], got %v", c.Breaker.FailureRatio))
	}
	if c.Breaker.HalfOpenRequests < 1 {
		errs = append(errs, fmt.Errorf("breaker.half_open_requests must be at least 1, got %d", c.Breaker.HalfOpenRequests))
	}
	if c.BulkheadSize < 1 {
		errs = append(errs, fmt.Errorf("bulkhead_size must be at least 1, got %d", c.BulkheadSize))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMySQL:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Env gets an environment variable with fallback
func Env(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
