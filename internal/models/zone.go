package models

import (
	"time"

	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// DeliveryZone is a named, priced service-coverage area
type DeliveryZone struct {
	ID                   string     `db:"id" json:"id"`
	Name                 string     `db:"name" json:"name"`
	Description          string     `db:"description" json:"description,omitempty"`
	CenterLatitude       *float64   `db:"center_latitude" json:"center_latitude,omitempty"`
	CenterLongitude      *float64   `db:"center_longitude" json:"center_longitude,omitempty"`
	RadiusKm             *float64   `db:"radius_km" json:"radius_km,omitempty"`
	CoverageAreaKm2      *float64   `db:"coverage_area_km2" json:"coverage_area_km2,omitempty"`
	BaseCost             float64    `db:"base_cost" json:"base_cost"`
	CostPerKm            float64    `db:"cost_per_km" json:"cost_per_km"`
	MinOrderValue        float64    `db:"min_order_value" json:"min_order_value"`
	ServiceDays          string     `db:"service_days" json:"service_days"`
	ServiceHours         string     `db:"service_hours" json:"service_hours"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	TotalDeliveries      int        `db:"total_deliveries" json:"total_deliveries"`
	SuccessfulDeliveries int        `db:"successful_deliveries" json:"successful_deliveries"`
	StatsRefreshedAt     *time.Time `db:"stats_refreshed_at" json:"stats_refreshed_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Geofence returns the zone's circular boundary, if one is configured.
func (z *DeliveryZone) Geofence() (center geo.Coordinate, radiusKm float64, ok bool) {
	if z.CenterLatitude == nil || z.CenterLongitude == nil || z.RadiusKm == nil {
		return geo.Coordinate{}, 0, false
	}
	return geo.Coordinate{Latitude: *z.CenterLatitude, Longitude: *z.CenterLongitude}, *z.RadiusKm, true
}
