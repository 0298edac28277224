// Package pricing turns distance, weight, volume and priority into a delivery cost.
package pricing

import (
	"math"

	"github.com/vaidashi/dispatch-engine/internal/models"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// MinutesPerKm is the fixed travel-time heuristic used for duration estimates.
const MinutesPerKm = 2.0

// RateTable is a versioned set of pricing rates.
type RateTable struct {
	Version             string                      `json:"version"`
	Base                float64                     `json:"base"`
	PerKm               float64                     `json:"per_km"`
	PerKg               float64                     `json:"per_kg"`
	PerM3               float64                     `json:"per_m3"`
	PriorityMultipliers map[models.Priority]float64 `json:"priority_multipliers"`
}

// DefaultRateTable returns the standard rates.
func DefaultRateTable() RateTable {
	return RateTable{
		Version: "default",
		Base:    50.00,
		PerKm:   15.00,
		PerKg:   5.00,
		PerM3:   20.00,
		PriorityMultipliers: map[models.Priority]float64{
			models.PriorityLow:    0.8,
			models.PriorityNormal: 1.0,
			models.PriorityHigh:   1.3,
			models.PriorityUrgent: 1.8,
		},
	}
}

// Multiplier returns the factor for p; unrecognized priorities price as normal.
func (r RateTable) Multiplier(p models.Priority) float64 {
	if m, ok := r.PriorityMultipliers[p]; ok {
		return m
	}
	return 1.0
}

// ForZone returns a copy of r with the zone's base and per-km rates.
func (r RateTable) ForZone(zone *models.DeliveryZone) RateTable {
	out := r
	out.Version = r.Version + "+zone:" + zone.ID
	out.Base = zone.BaseCost
	out.PerKm = zone.CostPerKm
	return out
}

// CostBreakdown itemizes an estimate.
type CostBreakdown struct {
	DistanceKm               float64         `json:"distance_km"`
	Base                     float64         `json:"base"`
	DistanceCost             float64         `json:"distance_cost"`
	WeightCost               float64         `json:"weight_cost"`
	VolumeCost               float64         `json:"volume_cost"`
	Priority                 models.Priority `json:"priority"`
	PriorityMultiplier       float64         `json:"priority_multiplier"`
	Total                    float64         `json:"total"`
	EstimatedDurationMinutes int             `json:"estimated_duration_minutes"`
	RateVersion              string          `json:"rate_version"`
}

// Estimator prices shipments against a rate table.
type Estimator struct {
	rates RateTable
}

// NewEstimator creates an Estimator over rates.
func NewEstimator(rates RateTable) *Estimator {
	if rates.PriorityMultipliers == nil {
		rates.PriorityMultipliers = DefaultRateTable().PriorityMultipliers
	}
	return &Estimator{rates: rates}
}

// Rates returns the table in use.
func (e *Estimator) Rates() RateTable { return e.rates }

// WithRates returns an Estimator that prices with rates instead.
func (e *Estimator) WithRates(rates RateTable) *Estimator { return NewEstimator(rates) }

// Estimate prices a shipment from pickup to dropoff. Negative weight or volume is rejected.
func (e *Estimator) Estimate(pickup, dropoff geo.Coordinate, weightKg, volumeM3 float64, priority models.Priority) (CostBreakdown, error) {
	if weightKg < 0 || math.IsNaN(weightKg) {
		return CostBreakdown{}, apperrors.NewValidationError("weight_kg", "must be a non-negative number")
	}
	if volumeM3 < 0 || math.IsNaN(volumeM3) {
		return CostBreakdown{}, apperrors.NewValidationError("volume_m3", "must be a non-negative number")
	}

	distance := geo.DistanceKm(pickup, dropoff)
	multiplier := e.rates.Multiplier(priority)

	b := CostBreakdown{
		DistanceKm:               distance,
		Base:                     e.rates.Base,
		DistanceCost:             distance * e.rates.PerKm,
		WeightCost:               weightKg * e.rates.PerKg,
		VolumeCost:               volumeM3 * e.rates.PerM3,
		Priority:                 priority,
		PriorityMultiplier:       multiplier,
		EstimatedDurationMinutes: EstimateDurationMinutes(distance),
		RateVersion:              e.rates.Version,
	}
	b.Total = (b.Base + b.DistanceCost + b.WeightCost + b.VolumeCost) * multiplier

	return b, nil
}

// EstimateDurationMinutes applies the fixed minutes-per-km heuristic.
func EstimateDurationMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm * MinutesPerKm))
}
