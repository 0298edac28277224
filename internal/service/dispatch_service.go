package service

import (
	"context"

	"github.com/vaidashi/dispatch-engine/internal/matching"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/pricing"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// DispatchService quotes shipments and ranks the vehicles that can carry them
type DispatchService struct {
	store                repository.Store
	estimator            *pricing.Estimator
	matcher              *matching.Matcher
	defaultMaxDistanceKm float64
	logger               logger.Logger
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(
	store repository.Store,
	estimator *pricing.Estimator,
	matcher *matching.Matcher,
	defaultMaxDistanceKm float64,
	logger logger.Logger,
) *DispatchService {
	return &DispatchService{
		store:                store,
		estimator:            estimator,
		matcher:              matcher,
		defaultMaxDistanceKm: defaultMaxDistanceKm,
		logger:               logger,
	}
}

// Quote prices a shipment, using the zone's rates when zoneID is set
func (s *DispatchService) Quote(ctx context.Context, req models.ShipmentRequest, zoneID string) (*pricing.CostBreakdown, error) {
	if !req.Pickup.IsFinite() || !req.Dropoff.IsFinite() {
		return nil, apperrors.NewValidationError("coordinates", "must be finite")
	}
	if req.Priority != "" && !req.Priority.IsValid() {
		return nil, apperrors.NewValidationError("priority", "unknown priority "+string(req.Priority))
	}

	estimator := s.estimator
	if zoneID != "" {
		zone, err := s.store.GetZone(ctx, zoneID)
		if err != nil {
			return nil, translate(err, "zone", zoneID)
		}
		estimator = estimator.WithRates(estimator.Rates().ForZone(zone))
	}

	b, err := estimator.Estimate(req.Pickup, req.Dropoff, req.WeightKg, req.VolumeM3, req.Priority)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// Match returns the available vehicles able to take req, best first.
// A nil maxDistanceKm uses the configured default.
func (s *DispatchService) Match(ctx context.Context, req models.ShipmentRequest, maxDistanceKm *float64) (candidates []matching.CarrierCandidate, err error) {
	defer logger.Time(ctx, s.logger, "dispatch.Match")(&err)

	limit := s.defaultMaxDistanceKm
	if maxDistanceKm != nil {
		limit = *maxDistanceKm
	}

	vehicles, err := s.store.ListVehicles(ctx, true)
	if err != nil {
		return nil, translate(err, "vehicles", "")
	}

	candidates, err = s.matcher.FindCandidates(req, vehicles, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Matched shipment", "pool", len(vehicles), "candidates", len(candidates), "max_distance_km", limit)
	return candidates, nil
}
