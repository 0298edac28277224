package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("Port = %d", cfg.Port)
	}
	if cfg.DB.Driver != "postgres" {
		t.Fatalf("Driver = %q", cfg.DB.Driver)
	}
	if cfg.Rates.Base != 50 || cfg.Rates.PerKm != 15 || cfg.Rates.PerKg != 5 || cfg.Rates.PerM3 != 20 {
		t.Fatalf("unexpected default rates: %+v", cfg.Rates)
	}
	if cfg.Outbox.PollingInterval != 5*time.Second {
		t.Fatalf("PollingInterval = %v", cfg.Outbox.PollingInterval)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_PER_KM", "17.5")
	t.Setenv("OUTBOX_POLLING_INTERVAL", "250ms")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 || cfg.DB.Driver != "pgx" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Rates.PerKm != 17.5 {
		t.Fatalf("PerKm = %v", cfg.Rates.PerKm)
	}
	if cfg.Outbox.PollingInterval != 250*time.Millisecond {
		t.Fatalf("PollingInterval = %v", cfg.Outbox.PollingInterval)
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for bad DB_PORT")
	}
}

func TestFromEnvRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
