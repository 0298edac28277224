package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// TrackingRepository stores tracking checkpoints. Events are never updated.
type TrackingRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewTrackingRepository creates a new TrackingRepository
func NewTrackingRepository(q sqlx.ExtContext, logger logger.Logger) *TrackingRepository {
	return &TrackingRepository{
		q:      q,
		logger: logger,
	}
}

// CreateTrackingEvent appends a checkpoint
func (r *TrackingRepository) CreateTrackingEvent(ctx context.Context, e *models.TrackingEvent) error {
	query := `
		INSERT INTO tracking_events (
			delivery_id, timestamp, status, location, latitude, longitude,
			status_update, notes, estimated_arrival, temperature, humidity,
			speed_kmh, fuel_level, is_automated, updated_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		) RETURNING id
	`

	err := r.q.QueryRowxContext(ctx, query,
		e.DeliveryID,
		e.Timestamp,
		e.Status,
		e.Location,
		e.Latitude,
		e.Longitude,
		e.StatusUpdate,
		e.Notes,
		e.EstimatedArrival,
		e.Temperature,
		e.Humidity,
		e.SpeedKmh,
		e.FuelLevel,
		e.IsAutomated,
		e.UpdatedBy,
	).Scan(&e.ID)

	if err != nil {
		r.logger.Error("Failed to create tracking event", "error", err, "delivery_id", e.DeliveryID)
		return dbError(err)
	}

	return nil
}

// ListTrackingEvents returns a delivery's checkpoints in timestamp order
func (r *TrackingRepository) ListTrackingEvents(ctx context.Context, deliveryID string) ([]*models.TrackingEvent, error) {
	query := `
		SELECT id, delivery_id, timestamp, status, location, latitude, longitude,
			status_update, notes, estimated_arrival, temperature, humidity,
			speed_kmh, fuel_level, is_automated, updated_by
		FROM tracking_events
		WHERE delivery_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	events := []*models.TrackingEvent{}

	if err := sqlx.SelectContext(ctx, r.q, &events, query, deliveryID); err != nil {
		r.logger.Error("Failed to list tracking events", "error", err, "delivery_id", deliveryID)
		return nil, dbError(err)
	}

	return events, nil
}
