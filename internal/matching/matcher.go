// Package matching ranks vehicles that can take a shipment.
package matching

import (
	"sort"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/pricing"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// CarrierPredicate decides whether a vehicle's owner may receive assignments.
type CarrierPredicate func(v *models.Vehicle) bool

// TransportersOnly admits vehicles owned by carriers with the transporter role.
func TransportersOnly(v *models.Vehicle) bool {
	return v.CarrierRole == models.CarrierRoleTransporter
}

// CarrierCandidate is one ranked option for a shipment
type CarrierCandidate struct {
	VehicleID                string  `json:"vehicle_id"`
	CarrierID                string  `json:"carrier_id"`
	CarrierName              string  `json:"carrier_name"`
	VehicleDescriptor        string  `json:"vehicle_descriptor"`
	VehicleType              string  `json:"vehicle_type"`
	MaxWeightKg              float64 `json:"max_weight_kg"`
	Rating                   float64 `json:"rating"`
	DistanceToPickupKm       float64 `json:"distance_to_pickup_km"`
	EstimatedCost            float64 `json:"estimated_cost"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
}

// Matcher filters and ranks a vehicle pool against a shipment request.
type Matcher struct {
	estimator *pricing.Estimator
	isCarrier CarrierPredicate
}

// NewMatcher creates a Matcher. A nil predicate defaults to TransportersOnly.
func NewMatcher(estimator *pricing.Estimator, isCarrier CarrierPredicate) *Matcher {
	if isCarrier == nil {
		isCarrier = TransportersOnly
	}
	return &Matcher{estimator: estimator, isCarrier: isCarrier}
}

// FindCandidates returns the vehicles able to serve req, best first.
// Vehicles without a reported location are never returned.
func (m *Matcher) FindCandidates(req models.ShipmentRequest, vehicles []*models.Vehicle, maxDistanceKm float64) ([]CarrierCandidate, error) {
	if req.WeightKg < 0 {
		return nil, apperrors.NewValidationError("weight_kg", "must be non-negative")
	}
	if req.VolumeM3 < 0 {
		return nil, apperrors.NewValidationError("volume_m3", "must be non-negative")
	}
	if maxDistanceKm < 0 {
		return nil, apperrors.NewValidationError("max_distance_km", "must be non-negative")
	}
	if !req.Pickup.IsFinite() || !req.Dropoff.IsFinite() {
		return nil, apperrors.NewValidationError("pickup", "coordinates must be finite")
	}

	// The estimate depends only on the request, not the vehicle.
	estimate, err := m.estimator.Estimate(req.Pickup, req.Dropoff, req.WeightKg, req.VolumeM3, req.Priority)
	if err != nil {
		return nil, err
	}

	candidates := make([]CarrierCandidate, 0)

	for _, v := range vehicles {
		if !v.IsActive || !v.IsAvailable || v.MaxWeightKg < req.WeightKg || !m.isCarrier(v) {
			continue
		}

		loc, ok := v.Location()
		if !ok {
			continue
		}

		distance := geo.DistanceKm(loc, req.Pickup)
		if distance > maxDistanceKm {
			continue
		}

		candidates = append(candidates, CarrierCandidate{
			VehicleID:                v.ID,
			CarrierID:                v.CarrierID,
			CarrierName:              v.CarrierName,
			VehicleDescriptor:        v.Descriptor(),
			VehicleType:              string(v.VehicleType),
			MaxWeightKg:              v.MaxWeightKg,
			Rating:                   v.AverageRating,
			DistanceToPickupKm:       distance,
			EstimatedCost:            estimate.Total,
			EstimatedDurationMinutes: estimate.EstimatedDurationMinutes,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Rating != candidates[j].Rating {
			return candidates[i].Rating > candidates[j].Rating
		}
		return candidates[i].DistanceToPickupKm < candidates[j].DistanceToPickupKm
	})

	return candidates, nil
}
