package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const vehicleColumns = `
	id, carrier_id, carrier_name, carrier_role, vehicle_type, make, model,
	license_plate, fuel_type, max_weight_kg, max_volume_m3, current_location,
	current_latitude, current_longitude, location_updated_at, is_active,
	is_available, total_distance_km, total_deliveries, average_rating,
	rating_count, created_at, updated_at`

// VehicleRepository handles database operations for vehicles
type VehicleRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewVehicleRepository creates a new VehicleRepository
func NewVehicleRepository(q sqlx.ExtContext, logger logger.Logger) *VehicleRepository {
	return &VehicleRepository{
		q:      q,
		logger: logger,
	}
}

// CreateVehicle registers a vehicle
func (r *VehicleRepository) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES (
			:id, :carrier_id, :carrier_name, :carrier_role, :vehicle_type, :make, :model,
			:license_plate, :fuel_type, :max_weight_kg, :max_volume_m3, :current_location,
			:current_latitude, :current_longitude, :location_updated_at, :is_active,
			:is_available, :total_distance_km, :total_deliveries, :average_rating,
			:rating_count, :created_at, :updated_at
		)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, v); err != nil {
		r.logger.Error("Failed to create vehicle", "error", err, "vehicle_id", v.ID)
		return dbError(err)
	}

	return nil
}

// GetVehicle retrieves a vehicle by its ID
func (r *VehicleRepository) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`

	var v models.Vehicle

	if err := sqlx.GetContext(ctx, r.q, &v, query, id); err != nil {
		return nil, dbError(err)
	}

	return &v, nil
}

// ListVehicles returns active vehicles, optionally only those free for assignment
func (r *VehicleRepository) ListVehicles(ctx context.Context, availableOnly bool) ([]*models.Vehicle, error) {
	query := `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE is_active = TRUE AND ($1 = FALSE OR is_available = TRUE)
		ORDER BY id
	`

	vehicles := []*models.Vehicle{}

	if err := sqlx.SelectContext(ctx, r.q, &vehicles, query, availableOnly); err != nil {
		r.logger.Error("Failed to list vehicles", "error", err)
		return nil, dbError(err)
	}

	return vehicles, nil
}

// ClaimVehicle atomically flips an active, available vehicle to unavailable.
// It returns ErrNotFound for an unknown id and ErrVehicleUnavailable when the
// vehicle is inactive or already assigned.
func (r *VehicleRepository) ClaimVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `
		UPDATE vehicles
		SET is_available = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE AND is_available = TRUE
		RETURNING ` + vehicleColumns

	var v models.Vehicle

	err := sqlx.GetContext(ctx, r.q, &v, query, id)
	if err == nil {
		return &v, nil
	}

	if err = dbError(err); err != ErrNotFound {
		r.logger.Error("Failed to claim vehicle", "error", err, "vehicle_id", id)
		return nil, err
	}

	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS(SELECT 1 FROM vehicles WHERE id = $1)`, id); err != nil {
		return nil, dbError(err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	return nil, ErrVehicleUnavailable
}

// ReleaseVehicle makes a vehicle available again
func (r *VehicleRepository) ReleaseVehicle(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE vehicles SET is_available = TRUE, updated_at = NOW() WHERE id = $1`, id)

	if err != nil {
		r.logger.Error("Failed to release vehicle", "error", err, "vehicle_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// RecordVehicleDelivery adds a completed trip to the vehicle's counters
func (r *VehicleRepository) RecordVehicleDelivery(ctx context.Context, id string, distanceKm float64) error {
	query := `
		UPDATE vehicles
		SET total_distance_km = total_distance_km + $2,
			total_deliveries = total_deliveries + 1,
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.q.ExecContext(ctx, query, id, distanceKm)

	if err != nil {
		r.logger.Error("Failed to record vehicle delivery", "error", err, "vehicle_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// AddVehicleRating folds a rating into the vehicle's rolling average
func (r *VehicleRepository) AddVehicleRating(ctx context.Context, id string, rating int) error {
	query := `
		UPDATE vehicles
		SET average_rating = (average_rating * rating_count + $2) / (rating_count + 1),
			rating_count = rating_count + 1,
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.q.ExecContext(ctx, query, id, rating)

	if err != nil {
		r.logger.Error("Failed to rate vehicle", "error", err, "vehicle_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// UpdateVehicleLocation records a position report
func (r *VehicleRepository) UpdateVehicleLocation(ctx context.Context, id string, c geo.Coordinate, label string, at time.Time) error {
	query := `
		UPDATE vehicles
		SET current_latitude = $2,
			current_longitude = $3,
			current_location = $4,
			location_updated_at = $5,
			updated_at = NOW()
		WHERE id = $1 AND (location_updated_at IS NULL OR location_updated_at <= $5)
	`

	res, err := r.q.ExecContext(ctx, query, id, c.Latitude, c.Longitude, label, at)

	if err != nil {
		r.logger.Error("Failed to update vehicle location", "error", err, "vehicle_id", id)
		return dbError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		r.logger.Debug("Ignored stale or unknown vehicle location", "vehicle_id", id, "recorded_at", at)
	}

	return nil
}
