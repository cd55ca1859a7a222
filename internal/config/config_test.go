package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear environment
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.BackendTimeout != "10s" {
		t.Errorf("BackendTimeout = %q, want %q", cfg.BackendTimeout, "10s")
	}
	if cfg.SubscriptionTimeout != "5s" {
		t.Errorf("SubscriptionTimeout = %q, want %q", cfg.SubscriptionTimeout, "5s")
	}
	if cfg.RefreshSafetyBuffer != "30s" {
		t.Errorf("RefreshSafetyBuffer = %q, want %q", cfg.RefreshSafetyBuffer, "30s")
	}
	if cfg.SubscriptionMaxRetries != 5 {
		t.Errorf("SubscriptionMaxRetries = %d, want 5", cfg.SubscriptionMaxRetries)
	}
	if cfg.SubscriptionBackoffMultiplier != 2.0 {
		t.Errorf("SubscriptionBackoffMultiplier = %v, want 2.0", cfg.SubscriptionBackoffMultiplier)
	}
	if cfg.TelemetryKafkaTopic != "pick3-session-events" {
		t.Errorf("TelemetryKafkaTopic = %q, want default", cfg.TelemetryKafkaTopic)
	}
	if cfg.KafkaGroupID != "pick3-telemetry-worker" {
		t.Errorf("KafkaGroupID = %q, want default", cfg.KafkaGroupID)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	os.Setenv("SUBSCRIPTION_MAX_RETRIES", "3")
	os.Setenv("SUBSCRIPTION_GRACE_DELAY", "250ms")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.BackendBaseURL != "https://api.example.com" {
		t.Errorf("BackendBaseURL = %q", cfg.BackendBaseURL)
	}
	if cfg.SubscriptionMaxRetries != 3 {
		t.Errorf("SubscriptionMaxRetries = %d, want 3", cfg.SubscriptionMaxRetries)
	}
	if got := cfg.GraceDelay(); got != 250*time.Millisecond {
		t.Errorf("GraceDelay() = %v, want 250ms", got)
	}
	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "k1:9092" || brokers[1] != "k2:9092" {
		t.Errorf("TelemetryKafkaBrokersList() = %v", brokers)
	}
}

func TestLoad_InvalidBackoffMultiplier(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("SUBSCRIPTION_BACKOFF_MULTIPLIER", "0.5")

	if _, err := Load(); err == nil {
		t.Fatal("Load: want error for multiplier < 1, got nil")
	}
}

func TestDurationAccessors_Fallbacks(t *testing.T) {
	cfg := &Config{
		BackendTimeout:           "bogus",
		SubscriptionTimeout:      "",
		RefreshSafetyBuffer:      "-5s",
		SubscriptionInitialDelay: "2s",
		SubscriptionMaxDelay:     "20s",
		SubscriptionGraceDelay:   "",
	}
	if got := cfg.BackendCallTimeout(); got != 10*time.Second {
		t.Errorf("BackendCallTimeout() = %v, want 10s fallback", got)
	}
	if got := cfg.SubscriptionCallTimeout(); got != 5*time.Second {
		t.Errorf("SubscriptionCallTimeout() = %v, want 5s fallback", got)
	}
	if got := cfg.RefreshBuffer(); got != 30*time.Second {
		t.Errorf("RefreshBuffer() = %v, want 30s fallback", got)
	}
	if got := cfg.InitialDelay(); got != 2*time.Second {
		t.Errorf("InitialDelay() = %v, want 2s", got)
	}
	if got := cfg.MaxDelay(); got != 20*time.Second {
		t.Errorf("MaxDelay() = %v, want 20s", got)
	}
	if got := cfg.GraceDelay(); got != 500*time.Millisecond {
		t.Errorf("GraceDelay() = %v, want 500ms fallback", got)
	}
}
