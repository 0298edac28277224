package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const deliveryColumns = `
	id, delivery_id, order_ref, carrier_id, vehicle_id, route_id,
	pickup_address, pickup_latitude, pickup_longitude, pickup_contact_name,
	pickup_contact_phone, pickup_instructions,
	dropoff_address, dropoff_latitude, dropoff_longitude, dropoff_contact_name,
	dropoff_contact_phone, dropoff_instructions,
	scheduled_pickup_time, scheduled_delivery_time, actual_pickup_time,
	actual_delivery_time, status, priority, total_weight_kg, total_volume_m3,
	package_count, special_handling, delivery_cost, fuel_cost, toll_cost,
	is_paid, rating, feedback, rated_by, created_at, updated_at`

// DeliveryRepository handles database operations for deliveries
type DeliveryRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewDeliveryRepository creates a new DeliveryRepository
func NewDeliveryRepository(q sqlx.ExtContext, logger logger.Logger) *DeliveryRepository {
	return &DeliveryRepository{
		q:      q,
		logger: logger,
	}
}

// CreateDelivery inserts a delivery and sets its internal ID
func (r *DeliveryRepository) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	query := `
		INSERT INTO deliveries (
			delivery_id, order_ref, carrier_id, vehicle_id, route_id,
			pickup_address, pickup_latitude, pickup_longitude, pickup_contact_name,
			pickup_contact_phone, pickup_instructions,
			dropoff_address, dropoff_latitude, dropoff_longitude, dropoff_contact_name,
			dropoff_contact_phone, dropoff_instructions,
			scheduled_pickup_time, scheduled_delivery_time, status, priority,
			total_weight_kg, total_volume_m3, package_count, special_handling,
			delivery_cost, fuel_cost, toll_cost, is_paid, created_at, updated_at
		) VALUES (
			:delivery_id, :order_ref, :carrier_id, :vehicle_id, :route_id,
			:pickup_address, :pickup_latitude, :pickup_longitude, :pickup_contact_name,
			:pickup_contact_phone, :pickup_instructions,
			:dropoff_address, :dropoff_latitude, :dropoff_longitude, :dropoff_contact_name,
			:dropoff_contact_phone, :dropoff_instructions,
			:scheduled_pickup_time, :scheduled_delivery_time, :status, :priority,
			:total_weight_kg, :total_volume_m3, :package_count, :special_handling,
			:delivery_cost, :fuel_cost, :toll_cost, :is_paid, :created_at, :updated_at
		) RETURNING id
	`

	rows, err := sqlx.NamedQueryContext(ctx, r.q, query, d)

	if err != nil {
		r.logger.Error("Failed to create delivery", "error", err, "delivery_id", d.DeliveryID)
		return dbError(err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&d.ID); err != nil {
			return dbError(err)
		}
	}

	return dbErrorOrNil(rows.Err())
}

// GetDelivery retrieves a delivery by its external ID
func (r *DeliveryRepository) GetDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	return r.getDelivery(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE delivery_id = $1`, deliveryID)
}

// GetDeliveryForUpdate retrieves a delivery and locks its row until the transaction ends
func (r *DeliveryRepository) GetDeliveryForUpdate(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	return r.getDelivery(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE delivery_id = $1 FOR UPDATE`, deliveryID)
}

func (r *DeliveryRepository) getDelivery(ctx context.Context, query, deliveryID string) (*models.Delivery, error) {
	var d models.Delivery

	if err := sqlx.GetContext(ctx, r.q, &d, query, deliveryID); err != nil {
		err = dbError(err)
		if err != ErrNotFound {
			r.logger.Error("Failed to get delivery", "error", err, "delivery_id", deliveryID)
		}
		return nil, err
	}

	return &d, nil
}

// UpdateDeliveryStatus persists status and the actual pickup/delivery timestamps
func (r *DeliveryRepository) UpdateDeliveryStatus(ctx context.Context, d *models.Delivery) error {
	query := `
		UPDATE deliveries
		SET status = $2, actual_pickup_time = $3, actual_delivery_time = $4, updated_at = $5
		WHERE delivery_id = $1
	`

	res, err := r.q.ExecContext(ctx, query,
		d.DeliveryID, d.Status, d.ActualPickupTime, d.ActualDeliveryTime, d.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to update delivery status", "error", err, "delivery_id", d.DeliveryID)
		return dbError(err)
	}

	return expectOne(res)
}

// UpdateDeliveryRating stores the customer's rating and feedback
func (r *DeliveryRepository) UpdateDeliveryRating(ctx context.Context, d *models.Delivery) error {
	query := `
		UPDATE deliveries
		SET rating = $2, feedback = $3, rated_by = $4, updated_at = $5
		WHERE delivery_id = $1
	`

	res, err := r.q.ExecContext(ctx, query, d.DeliveryID, d.Rating, d.Feedback, d.RatedBy, d.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to rate delivery", "error", err, "delivery_id", d.DeliveryID)
		return dbError(err)
	}

	return expectOne(res)
}

// ListCarrierDeliveries returns a carrier's deliveries created within [from, to].
// Nil bounds are open.
func (r *DeliveryRepository) ListCarrierDeliveries(ctx context.Context, carrierID string, from, to *time.Time) ([]*models.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE carrier_id = $1
			AND ($2::timestamp IS NULL OR created_at >= $2)
			AND ($3::timestamp IS NULL OR created_at <= $3)
		ORDER BY created_at ASC
	`

	deliveries := []*models.Delivery{}

	if err := sqlx.SelectContext(ctx, r.q, &deliveries, query, carrierID, from, to); err != nil {
		r.logger.Error("Failed to list carrier deliveries", "error", err, "carrier_id", carrierID)
		return nil, dbError(err)
	}

	return deliveries, nil
}

// ListDeliveries returns every delivery, oldest first
func (r *DeliveryRepository) ListDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	deliveries := []*models.Delivery{}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries ORDER BY created_at ASC`

	if err := sqlx.SelectContext(ctx, r.q, &deliveries, query); err != nil {
		r.logger.Error("Failed to list deliveries", "error", err)
		return nil, dbError(err)
	}

	return deliveries, nil
}
