package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const carrierColumns = `
	id, name, role, registration_number, phone, email, operating_areas,
	is_verified, verified_at, is_active, is_accepting_orders, total_deliveries,
	successful_deliveries, average_rating, rating_count, created_at, updated_at`

// CarrierRepository handles database operations for carriers
type CarrierRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewCarrierRepository creates a new CarrierRepository
func NewCarrierRepository(q sqlx.ExtContext, logger logger.Logger) *CarrierRepository {
	return &CarrierRepository{
		q:      q,
		logger: logger,
	}
}

// CreateCarrier registers a carrier
func (r *CarrierRepository) CreateCarrier(ctx context.Context, c *models.Carrier) error {
	query := `
		INSERT INTO carriers (` + carrierColumns + `)
		VALUES (
			:id, :name, :role, :registration_number, :phone, :email, :operating_areas,
			:is_verified, :verified_at, :is_active, :is_accepting_orders, :total_deliveries,
			:successful_deliveries, :average_rating, :rating_count, :created_at, :updated_at
		)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, c); err != nil {
		r.logger.Error("Failed to create carrier", "error", err, "carrier_id", c.ID)
		return dbError(err)
	}

	return nil
}

// GetCarrier retrieves a carrier by ID
func (r *CarrierRepository) GetCarrier(ctx context.Context, id string) (*models.Carrier, error) {
	var c models.Carrier

	if err := sqlx.GetContext(ctx, r.q, &c, `SELECT `+carrierColumns+` FROM carriers WHERE id = $1`, id); err != nil {
		return nil, dbError(err)
	}

	return &c, nil
}

// VerifyCarrier marks a carrier as verified. Verifying twice keeps the first timestamp.
func (r *CarrierRepository) VerifyCarrier(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE carriers
		SET is_verified = TRUE,
			verified_at = COALESCE(verified_at, $2),
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.q.ExecContext(ctx, query, id, at)

	if err != nil {
		r.logger.Error("Failed to verify carrier", "error", err, "carrier_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// RecordCarrierOutcome counts a delivery that reached a terminal status
func (r *CarrierRepository) RecordCarrierOutcome(ctx context.Context, id string, successful bool) error {
	query := `
		UPDATE carriers
		SET total_deliveries = total_deliveries + 1,
			successful_deliveries = successful_deliveries + CASE WHEN $2 THEN 1 ELSE 0 END,
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.q.ExecContext(ctx, query, id, successful)

	if err != nil {
		r.logger.Error("Failed to record carrier outcome", "error", err, "carrier_id", id)
		return dbError(err)
	}

	return expectOne(res)
}

// AddCarrierRating folds a rating into the carrier's rolling average
func (r *CarrierRepository) AddCarrierRating(ctx context.Context, id string, rating int) error {
	query := `
		UPDATE carriers
		SET average_rating = (average_rating * rating_count + $2) / (rating_count + 1),
			rating_count = rating_count + 1,
			updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.q.ExecContext(ctx, query, id, rating)

	if err != nil {
		r.logger.Error("Failed to rate carrier", "error", err, "carrier_id", id)
		return dbError(err)
	}

	return expectOne(res)
}
