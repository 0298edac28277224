package service

import (
	"context"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/analytics"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// AnalyticsService answers read-only performance queries over a consistent snapshot
type AnalyticsService struct {
	store  repository.Store
	match  analytics.ZoneMatcher
	logger logger.Logger
	now    func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(store repository.Store, logger logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:  store,
		match:  analytics.MatchZone,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// CarrierPerformance aggregates a registered carrier's deliveries created within [from, to]
func (s *AnalyticsService) CarrierPerformance(ctx context.Context, carrierID string, from, to *time.Time) (m *analytics.CarrierMetrics, err error) {
	defer logger.Time(ctx, s.logger, "analytics.CarrierPerformance")(&err)

	if carrierID == "" {
		return nil, apperrors.NewValidationError("carrier_id", "is required")
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, apperrors.NewValidationError("from", "must not be after to")
	}

	err = s.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		carrier, err := r.GetCarrier(ctx, carrierID)
		if err != nil {
			return err
		}
		deliveries, err := r.ListCarrierDeliveries(ctx, carrierID, from, to)
		if err != nil {
			return err
		}
		metrics := analytics.CarrierPerformance(carrierID, deliveries, from, to)
		metrics.CarrierName = carrier.Name
		m = &metrics
		return nil
	})
	if err != nil {
		return nil, translate(err, "carrier", carrierID)
	}

	return m, nil
}

// ZoneAnalytics computes metrics for one zone
func (s *AnalyticsService) ZoneAnalytics(ctx context.Context, zoneID string) (m *analytics.ZoneMetrics, err error) {
	defer logger.Time(ctx, s.logger, "analytics.ZoneAnalytics")(&err)

	err = s.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		zone, err := r.GetZone(ctx, zoneID)
		if err != nil {
			return err
		}
		deliveries, err := r.ListDeliveries(ctx)
		if err != nil {
			return err
		}
		metrics := analytics.ZoneAnalytics(zone, deliveries, s.match)
		m = &metrics
		return nil
	})
	if err != nil {
		return nil, translate(err, "zone", zoneID)
	}

	return m, nil
}

// RefreshZoneStats recomputes the cached delivery counters on every active
// zone and returns how many zones were updated.
func (s *AnalyticsService) RefreshZoneStats(ctx context.Context) (updated int, err error) {
	defer logger.Time(ctx, s.logger, "analytics.RefreshZoneStats")(&err)

	var metrics []analytics.ZoneMetrics

	err = s.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		zones, err := r.ListActiveZones(ctx)
		if err != nil {
			return err
		}
		deliveries, err := r.ListDeliveries(ctx)
		if err != nil {
			return err
		}
		for _, z := range zones {
			metrics = append(metrics, analytics.ZoneAnalytics(z, deliveries, s.match))
		}
		return nil
	})
	if err != nil {
		return 0, translate(err, "zones", "active")
	}

	if len(metrics) == 0 {
		return 0, nil
	}

	at := s.now()
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		for _, m := range metrics {
			if err := tx.UpdateZoneStats(ctx, m.ZoneID, m.TotalDeliveries, m.SuccessfulDeliveries, at); err != nil {
				return translate(err, "zone", m.ZoneID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Zone statistics refreshed", "zones", len(metrics))
	return len(metrics), nil
}
