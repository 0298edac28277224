package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	Env       string
	Log       LogConfig
	DB        DBConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	Orders    OrderServiceConfig
	Rates     RateConfig
	Matching  MatchingConfig
	Routing   RoutingConfig
	Workers   WorkersConfig
	RateLimit RateLimitConfig
}

// LogConfig controls log verbosity and the optional rotating log file
type LogConfig struct {
	Level string
	File  string
}

// DBConfig holds the database configuration
type DBConfig struct {
	// Driver is "postgres" (lib/pq) or "pgx" (jackc/pgx stdlib).
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds broker addresses and topic names
type KafkaConfig struct {
	Enabled             bool
	Brokers             []string
	ClientID            string
	DeliveryEventsTopic string
	VehiclePingsTopic   string
	ConsumerGroup       string
}

// OutboxConfig tunes the outbox and dead-letter pollers
type OutboxConfig struct {
	PollingInterval    time.Duration
	BatchSize          int
	MaxRetries         int
	DLQPollingInterval time.Duration
	DLQBatchSize       int
	DLQMaxRetries      int
}

// OrderServiceConfig points at the order collaborator
type OrderServiceConfig struct {
	BaseURL             string
	Timeout             time.Duration
	MaxAttempts         int
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// RateConfig overrides the cost estimator's default rate table
type RateConfig struct {
	Version string
	Base    float64
	PerKm   float64
	PerKg   float64
	PerM3   float64
}

// MatchingConfig holds carrier matching defaults
type MatchingConfig struct {
	DefaultMaxDistanceKm float64
}

// RoutingConfig bounds batch optimization
type RoutingConfig struct {
	BatchConcurrency int
}

// WorkersConfig holds cron schedules for background workers
type WorkersConfig struct {
	ZoneStatsSchedule string
}

// RateLimitConfig configures the HTTP rate limiter
type RateLimitConfig struct {
	GlobalTokens float64
	GlobalRefill float64
	IPTokens     float64
	IPRefill     float64
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(defaultValue, 'f', -1, 64)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
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

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() (*Config, error) {
	var errs []error

	intVal := func(key string, def int) int {
		v, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatVal := func(key string, def float64) float64 {
		v, err := getFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durVal := func(key string, def time.Duration) time.Duration {
		v, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVal := func(key string, def bool) bool {
		v, err := getBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port: intVal("PORT", 8080),
		Env:  getEnv("APP_ENV", "development"),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     intVal("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Enabled:             boolVal("KAFKA_ENABLED", true),
			Brokers:             splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			ClientID:            getEnv("KAFKA_CLIENT_ID", "dispatch-engine"),
			DeliveryEventsTopic: getEnv("KAFKA_DELIVERY_EVENTS_TOPIC", "delivery-events"),
			VehiclePingsTopic:   getEnv("KAFKA_VEHICLE_PINGS_TOPIC", "vehicle-pings"),
			ConsumerGroup:       getEnv("KAFKA_CONSUMER_GROUP", "dispatch-engine"),
		},
		Outbox: OutboxConfig{
			PollingInterval:    durVal("OUTBOX_POLLING_INTERVAL", 5*time.Second),
			BatchSize:          intVal("OUTBOX_BATCH_SIZE", 20),
			MaxRetries:         intVal("OUTBOX_MAX_RETRIES", 3),
			DLQPollingInterval: durVal("DLQ_POLLING_INTERVAL", 30*time.Second),
			DLQBatchSize:       intVal("DLQ_BATCH_SIZE", 5),
			DLQMaxRetries:      intVal("DLQ_MAX_RETRIES", 5),
		},
		Orders: OrderServiceConfig{
			BaseURL:             getEnv("ORDER_SERVICE_URL", "http://localhost:8081"),
			Timeout:             durVal("ORDER_SERVICE_TIMEOUT", 5*time.Second),
			MaxAttempts:         intVal("ORDER_SERVICE_MAX_ATTEMPTS", 3),
			BreakerThreshold:    intVal("ORDER_SERVICE_BREAKER_THRESHOLD", 5),
			BreakerResetTimeout: durVal("ORDER_SERVICE_BREAKER_RESET", 30*time.Second),
		},
		Rates: RateConfig{
			Version: getEnv("RATE_VERSION", "2024-01"),
			Base:    floatVal("RATE_BASE", 50),
			PerKm:   floatVal("RATE_PER_KM", 15),
			PerKg:   floatVal("RATE_PER_KG", 5),
			PerM3:   floatVal("RATE_PER_M3", 20),
		},
		Matching: MatchingConfig{
			DefaultMaxDistanceKm: floatVal("MATCH_DEFAULT_MAX_DISTANCE_KM", 50),
		},
		Routing: RoutingConfig{
			BatchConcurrency: intVal("ROUTING_BATCH_CONCURRENCY", 4),
		},
		Workers: WorkersConfig{
			ZoneStatsSchedule: getEnv("ZONE_STATS_SCHEDULE", "@every 15m"),
		},
		RateLimit: RateLimitConfig{
			GlobalTokens: floatVal("RATE_LIMIT_GLOBAL_TOKENS", 500),
			GlobalRefill: floatVal("RATE_LIMIT_GLOBAL_REFILL", 200),
			IPTokens:     floatVal("RATE_LIMIT_IP_TOKENS", 50),
			IPRefill:     floatVal("RATE_LIMIT_IP_REFILL", 10),
		},
	}

	if len(errs) > 0 {
		return nil, errs[0]
	}

	switch cfg.DB.Driver {
	case "postgres", "pgx":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want postgres or pgx", cfg.DB.Driver)
	}

	return cfg, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
