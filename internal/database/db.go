package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
	"github.com/vaidashi/dispatch-engine/internal/config"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection using the configured driver
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect(cfg.DB.Driver, cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database",
		"driver", cfg.DB.Driver,
		"host", cfg.DB.Host,
		"database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// BeginTx starts a read-write transaction
func (d *Database) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return d.DB.BeginTxx(ctx, nil)
}

// BeginSnapshot starts a read-only transaction that sees one consistent snapshot
func (d *Database) BeginSnapshot(ctx context.Context) (*sqlx.Tx, error) {
	return d.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

// RunMigrations creates the schema if it does not exist
func (d *Database) RunMigrations() error {
	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS carriers (
	id VARCHAR(50) PRIMARY KEY,
	name VARCHAR(200) NOT NULL,
	role VARCHAR(30) NOT NULL DEFAULT 'transporter',
	registration_number VARCHAR(50) NOT NULL DEFAULT '',
	phone VARCHAR(20) NOT NULL DEFAULT '',
	email VARCHAR(200) NOT NULL DEFAULT '',
	operating_areas TEXT[] NOT NULL DEFAULT '{}',
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	verified_at TIMESTAMP,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	is_accepting_orders BOOLEAN NOT NULL DEFAULT TRUE,
	total_deliveries INT NOT NULL DEFAULT 0,
	successful_deliveries INT NOT NULL DEFAULT 0,
	average_rating DECIMAL(3, 2) NOT NULL DEFAULT 0,
	rating_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS vehicles (
	id VARCHAR(50) PRIMARY KEY,
	carrier_id VARCHAR(50) NOT NULL REFERENCES carriers(id),
	carrier_name VARCHAR(200) NOT NULL DEFAULT '',
	carrier_role VARCHAR(30) NOT NULL DEFAULT 'transporter',
	vehicle_type VARCHAR(20) NOT NULL,
	make VARCHAR(50) NOT NULL DEFAULT '',
	model VARCHAR(50) NOT NULL DEFAULT '',
	license_plate VARCHAR(20) NOT NULL DEFAULT '',
	fuel_type VARCHAR(20) NOT NULL DEFAULT 'diesel',
	max_weight_kg DECIMAL(10, 2) NOT NULL,
	max_volume_m3 DECIMAL(10, 2),
	current_location VARCHAR(200) NOT NULL DEFAULT '',
	current_latitude DECIMAL(10, 8),
	current_longitude DECIMAL(11, 8),
	location_updated_at TIMESTAMP,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	is_available BOOLEAN NOT NULL DEFAULT TRUE,
	total_distance_km DECIMAL(12, 2) NOT NULL DEFAULT 0,
	total_deliveries INT NOT NULL DEFAULT 0,
	average_rating DECIMAL(3, 2) NOT NULL DEFAULT 0,
	rating_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_vehicles_carrier ON vehicles(carrier_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_available ON vehicles(is_active, is_available);

CREATE TABLE IF NOT EXISTS routes (
	route_id VARCHAR(50) PRIMARY KEY,
	name VARCHAR(200) NOT NULL,
	transporter_id VARCHAR(50) NOT NULL,
	vehicle_id VARCHAR(50) NOT NULL REFERENCES vehicles(id),
	start_location VARCHAR(200) NOT NULL DEFAULT '',
	start_latitude DECIMAL(10, 8) NOT NULL,
	start_longitude DECIMAL(11, 8) NOT NULL,
	end_location VARCHAR(200) NOT NULL DEFAULT '',
	end_latitude DECIMAL(10, 8) NOT NULL,
	end_longitude DECIMAL(11, 8) NOT NULL,
	waypoints JSONB NOT NULL DEFAULT '[]',
	total_distance_km DECIMAL(10, 2) NOT NULL,
	estimated_duration_minutes INT NOT NULL,
	optimization_algorithm VARCHAR(30) NOT NULL,
	optimization_factors JSONB NOT NULL DEFAULT '{}',
	source_optimization_id VARCHAR(50) NOT NULL,
	times_used INT NOT NULL DEFAULT 0,
	last_used TIMESTAMP,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS deliveries (
	id BIGSERIAL PRIMARY KEY,
	delivery_id VARCHAR(50) NOT NULL UNIQUE,
	order_ref VARCHAR(50) NOT NULL,
	carrier_id VARCHAR(50) NOT NULL,
	vehicle_id VARCHAR(50) NOT NULL REFERENCES vehicles(id),
	route_id VARCHAR(50) REFERENCES routes(route_id),
	pickup_address TEXT NOT NULL,
	pickup_latitude DECIMAL(10, 8) NOT NULL,
	pickup_longitude DECIMAL(11, 8) NOT NULL,
	pickup_contact_name VARCHAR(100) NOT NULL DEFAULT '',
	pickup_contact_phone VARCHAR(20) NOT NULL DEFAULT '',
	pickup_instructions TEXT NOT NULL DEFAULT '',
	dropoff_address TEXT NOT NULL,
	dropoff_latitude DECIMAL(10, 8) NOT NULL,
	dropoff_longitude DECIMAL(11, 8) NOT NULL,
	dropoff_contact_name VARCHAR(100) NOT NULL DEFAULT '',
	dropoff_contact_phone VARCHAR(20) NOT NULL DEFAULT '',
	dropoff_instructions TEXT NOT NULL DEFAULT '',
	scheduled_pickup_time TIMESTAMP NOT NULL,
	scheduled_delivery_time TIMESTAMP NOT NULL,
	actual_pickup_time TIMESTAMP,
	actual_delivery_time TIMESTAMP,
	status VARCHAR(20) NOT NULL DEFAULT 'assigned',
	priority VARCHAR(10) NOT NULL DEFAULT 'normal',
	total_weight_kg DECIMAL(10, 2) NOT NULL,
	total_volume_m3 DECIMAL(10, 2) NOT NULL DEFAULT 0,
	package_count INT NOT NULL DEFAULT 1,
	special_handling TEXT[] NOT NULL DEFAULT '{}',
	delivery_cost DECIMAL(10, 2) NOT NULL,
	fuel_cost DECIMAL(10, 2),
	toll_cost DECIMAL(10, 2),
	is_paid BOOLEAN NOT NULL DEFAULT FALSE,
	rating INT CHECK (rating BETWEEN 1 AND 5),
	feedback TEXT,
	rated_by VARCHAR(50),
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_deliveries_carrier_created ON deliveries(carrier_id, created_at);
CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
CREATE INDEX IF NOT EXISTS idx_deliveries_order ON deliveries(order_ref);

CREATE TABLE IF NOT EXISTS tracking_events (
	id BIGSERIAL PRIMARY KEY,
	delivery_id VARCHAR(50) NOT NULL REFERENCES deliveries(delivery_id),
	timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
	status VARCHAR(20) NOT NULL,
	location VARCHAR(200) NOT NULL DEFAULT '',
	latitude DECIMAL(10, 8) NOT NULL,
	longitude DECIMAL(11, 8) NOT NULL,
	status_update TEXT NOT NULL,
	notes TEXT,
	estimated_arrival TIMESTAMP,
	temperature DECIMAL(5, 2),
	humidity DECIMAL(5, 2),
	speed_kmh DECIMAL(6, 2),
	fuel_level DECIMAL(5, 2),
	is_automated BOOLEAN NOT NULL DEFAULT FALSE,
	updated_by VARCHAR(50)
);

CREATE INDEX IF NOT EXISTS idx_tracking_delivery_ts ON tracking_events(delivery_id, timestamp, id);

CREATE TABLE IF NOT EXISTS delivery_zones (
	id VARCHAR(50) PRIMARY KEY,
	name VARCHAR(100) NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	center_latitude DECIMAL(10, 8),
	center_longitude DECIMAL(11, 8),
	radius_km DECIMAL(8, 2),
	coverage_area_km2 DECIMAL(10, 2),
	base_cost DECIMAL(10, 2) NOT NULL,
	cost_per_km DECIMAL(8, 2) NOT NULL,
	min_order_value DECIMAL(10, 2) NOT NULL DEFAULT 0,
	service_days VARCHAR(100) NOT NULL DEFAULT 'mon,tue,wed,thu,fri,sat',
	service_hours VARCHAR(50) NOT NULL DEFAULT '08:00-18:00',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	total_deliveries INT NOT NULL DEFAULT 0,
	successful_deliveries INT NOT NULL DEFAULT 0,
	stats_refreshed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS route_optimizations (
	id BIGSERIAL PRIMARY KEY,
	optimization_id VARCHAR(50) NOT NULL UNIQUE,
	transporter_id VARCHAR(50) NOT NULL,
	vehicle_id VARCHAR(50) NOT NULL REFERENCES vehicles(id),
	optimization_type VARCHAR(20) NOT NULL,
	algorithm VARCHAR(30) NOT NULL,
	start_location JSONB,
	end_location JSONB,
	waypoints JSONB NOT NULL DEFAULT '[]',
	delivery_windows JSONB NOT NULL DEFAULT '[]',
	max_distance_km DECIMAL(10, 2),
	max_duration_minutes INT,
	avoid_toll_roads BOOLEAN NOT NULL DEFAULT FALSE,
	avoid_highways BOOLEAN NOT NULL DEFAULT FALSE,
	optimized_route JSONB NOT NULL DEFAULT '[]',
	visit_order JSONB NOT NULL DEFAULT '[]',
	total_distance_km DECIMAL(10, 2),
	total_duration_minutes INT,
	estimated_fuel_cost DECIMAL(10, 2),
	processing_time_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_processed BOOLEAN NOT NULL DEFAULT FALSE,
	processing_error TEXT,
	warnings TEXT[] NOT NULL DEFAULT '{}',
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	created_route_id VARCHAR(50) REFERENCES routes(route_id),
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_route_opt_transporter ON route_optimizations(transporter_id, created_at);

CREATE TABLE IF NOT EXISTS outbox_messages (
	id SERIAL PRIMARY KEY,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id VARCHAR(50) NOT NULL,
	event_type VARCHAR(50) NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	processed_at TIMESTAMP,
	processing_attempts INT NOT NULL DEFAULT 0,
	last_error TEXT,
	status VARCHAR(20) NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

CREATE TABLE IF NOT EXISTS dead_letter_messages (
	id SERIAL PRIMARY KEY,
	original_message_id INT NOT NULL,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id VARCHAR(50) NOT NULL,
	event_type VARCHAR(50) NOT NULL,
	payload JSONB NOT NULL,
	error_message TEXT NOT NULL,
	failure_reason TEXT NOT NULL,
	retry_count INT NOT NULL DEFAULT 0,
	last_retry_at TIMESTAMP,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	resolved_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dead_letter_status ON dead_letter_messages(status);
`
