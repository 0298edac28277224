package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const zoneColumns = `
	id, name, description, center_latitude, center_longitude, radius_km,
	coverage_area_km2, base_cost, cost_per_km, min_order_value, service_days,
	service_hours, is_active, total_deliveries, successful_deliveries,
	stats_refreshed_at, created_at, updated_at`

// ZoneRepository handles database operations for delivery zones
type ZoneRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewZoneRepository creates a new ZoneRepository
func NewZoneRepository(q sqlx.ExtContext, logger logger.Logger) *ZoneRepository {
	return &ZoneRepository{
		q:      q,
		logger: logger,
	}
}

// CreateZone registers a zone
func (r *ZoneRepository) CreateZone(ctx context.Context, z *models.DeliveryZone) error {
	query := `
		INSERT INTO delivery_zones (` + zoneColumns + `)
		VALUES (
			:id, :name, :description, :center_latitude, :center_longitude, :radius_km,
			:coverage_area_km2, :base_cost, :cost_per_km, :min_order_value, :service_days,
			:service_hours, :is_active, :total_deliveries, :successful_deliveries,
			:stats_refreshed_at, :created_at, :updated_at
		)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, z); err != nil {
		r.logger.Error("Failed to create zone", "error", err, "zone_id", z.ID)
		return dbError(err)
	}

	return nil
}

// GetZone retrieves a zone by ID
func (r *ZoneRepository) GetZone(ctx context.Context, id string) (*models.DeliveryZone, error) {
	var z models.DeliveryZone

	if err := sqlx.GetContext(ctx, r.q, &z, `SELECT `+zoneColumns+` FROM delivery_zones WHERE id = $1`, id); err != nil {
		return nil, dbError(err)
	}

	return &z, nil
}

// ListActiveZones returns every zone currently in service
func (r *ZoneRepository) ListActiveZones(ctx context.Context) ([]*models.DeliveryZone, error) {
	zones := []*models.DeliveryZone{}

	query := `SELECT ` + zoneColumns + ` FROM delivery_zones WHERE is_active = TRUE ORDER BY name`

	if err := sqlx.SelectContext(ctx, r.q, &zones, query); err != nil {
		r.logger.Error("Failed to list zones", "error", err)
		return nil, dbError(err)
	}

	return zones, nil
}

// UpdateZoneStats stores freshly computed delivery totals
func (r *ZoneRepository) UpdateZoneStats(ctx context.Context, zoneID string, total, successful int, at time.Time) error {
	query := `
		UPDATE delivery_zones
		SET total_deliveries = $2, successful_deliveries = $3, stats_refreshed_at = $4, updated_at = $4
		WHERE id = $1
	`

	res, err := r.q.ExecContext(ctx, query, zoneID, total, successful, at)

	if err != nil {
		r.logger.Error("Failed to update zone stats", "error", err, "zone_id", zoneID)
		return dbError(err)
	}

	return expectOne(res)
}
