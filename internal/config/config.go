// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty runs the gateway with in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// BackendBaseURL is the base URL of the remote Pick-3 API (e.g. https://api.example.com).
	BackendBaseURL string `mapstructure:"BACKEND_BASE_URL"`
	// BackendTimeout is the HTTP timeout for login and refresh calls (e.g. "10s").
	BackendTimeout string `mapstructure:"BACKEND_TIMEOUT"`
	// SubscriptionTimeout is the HTTP timeout for a single subscription-profile fetch (e.g. "5s").
	SubscriptionTimeout string `mapstructure:"SUBSCRIPTION_TIMEOUT"`
	// RefreshSafetyBuffer is how long before access-token expiry a read triggers a refresh (e.g. "30s").
	RefreshSafetyBuffer string `mapstructure:"REFRESH_SAFETY_BUFFER"`
	// SubscriptionMaxRetries bounds the forced subscription resync retry loop.
	SubscriptionMaxRetries int `mapstructure:"SUBSCRIPTION_MAX_RETRIES"`
	// SubscriptionInitialDelay is the first backoff delay of the resync loop (e.g. "1s").
	SubscriptionInitialDelay string `mapstructure:"SUBSCRIPTION_INITIAL_DELAY"`
	// SubscriptionBackoffMultiplier multiplies the delay after each failed resync attempt.
	SubscriptionBackoffMultiplier float64 `mapstructure:"SUBSCRIPTION_BACKOFF_MULTIPLIER"`
	// SubscriptionMaxDelay caps a single backoff delay (e.g. "10s").
	SubscriptionMaxDelay string `mapstructure:"SUBSCRIPTION_MAX_DELAY"`
	// SubscriptionGraceDelay is the wait before re-checking a confirmed-absent
	// subscription once, absorbing payment-webhook propagation delay (e.g. "500ms").
	SubscriptionGraceDelay string `mapstructure:"SUBSCRIPTION_GRACE_DELAY"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, the server emits session events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for session events (default pick3-session-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BACKEND_BASE_URL", "")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("SUBSCRIPTION_TIMEOUT", "5s")
	v.SetDefault("REFRESH_SAFETY_BUFFER", "30s")
	v.SetDefault("SUBSCRIPTION_MAX_RETRIES", 5)
	v.SetDefault("SUBSCRIPTION_INITIAL_DELAY", "1s")
	v.SetDefault("SUBSCRIPTION_BACKOFF_MULTIPLIER", 2.0)
	v.SetDefault("SUBSCRIPTION_MAX_DELAY", "10s")
	v.SetDefault("SUBSCRIPTION_GRACE_DELAY", "500ms")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "pick3-session-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "pick3-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.SubscriptionMaxRetries < 0 {
		return nil, errors.New("config: SUBSCRIPTION_MAX_RETRIES must not be negative")
	}
	if cfg.SubscriptionBackoffMultiplier < 1 {
		return nil, errors.New("config: SUBSCRIPTION_BACKOFF_MULTIPLIER must be >= 1")
	}

	return &cfg, nil
}

// BackendCallTimeout parses BackendTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) BackendCallTimeout() time.Duration {
	return durationOr(c.BackendTimeout, 10*time.Second)
}

// SubscriptionCallTimeout parses SubscriptionTimeout as a time.Duration. Returns 5s if unset or invalid.
func (c *Config) SubscriptionCallTimeout() time.Duration {
	return durationOr(c.SubscriptionTimeout, 5*time.Second)
}

// RefreshBuffer parses RefreshSafetyBuffer as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) RefreshBuffer() time.Duration {
	return durationOr(c.RefreshSafetyBuffer, 30*time.Second)
}

// InitialDelay parses SubscriptionInitialDelay. Returns 1s if unset or invalid.
func (c *Config) InitialDelay() time.Duration {
	return durationOr(c.SubscriptionInitialDelay, time.Second)
}

// MaxDelay parses SubscriptionMaxDelay. Returns 10s if unset or invalid.
func (c *Config) MaxDelay() time.Duration {
	return durationOr(c.SubscriptionMaxDelay, 10*time.Second)
}

// GraceDelay parses SubscriptionGraceDelay. Returns 500ms if unset or invalid.
func (c *Config) GraceDelay() time.Duration {
	return durationOr(c.SubscriptionGraceDelay, 500*time.Millisecond)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
