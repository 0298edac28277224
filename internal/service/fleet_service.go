package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// FleetService onboards carriers, vehicles and zones and tracks vehicle
// positions. Nothing is created implicitly on first use.
type FleetService struct {
	store  repository.Store
	logger logger.Logger
	now    func() time.Time
}

// NewFleetService creates a new FleetService
func NewFleetService(store repository.Store, logger logger.Logger) *FleetService {
	return &FleetService{
		store:  store,
		logger: logger,
		now:    models.GetCurrentTime,
	}
}

// RegisterCarrier onboards a carrier. New carriers are unverified and accept orders
// unless told otherwise.
func (s *FleetService) RegisterCarrier(ctx context.Context, c *models.Carrier) (*models.Carrier, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}

	now := s.now()
	if c.ID == "" {
		c.ID = models.GenerateID("CAR")
	}
	if c.Role == "" {
		c.Role = models.CarrierRoleTransporter
	}
	if c.OperatingAreas == nil {
		c.OperatingAreas = []string{}
	}
	c.IsVerified = false
	c.VerifiedAt = nil
	c.IsActive = true
	c.TotalDeliveries, c.SuccessfulDeliveries = 0, 0
	c.AverageRating, c.RatingCount = 0, 0
	c.CreatedAt = now
	c.UpdatedAt = now

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		return tx.CreateCarrier(ctx, c)
	})
	if err != nil {
		return nil, translate(err, "carrier", c.ID)
	}

	s.logger.Info("Carrier registered", "carrier_id", c.ID, "name", c.Name, "role", c.Role)
	return c, nil
}

// GetCarrier retrieves a carrier
func (s *FleetService) GetCarrier(ctx context.Context, id string) (*models.Carrier, error) {
	c, err := s.store.GetCarrier(ctx, id)
	if err != nil {
		return nil, translate(err, "carrier", id)
	}
	return c, nil
}

// VerifyCarrier marks a carrier as verified and returns it
func (s *FleetService) VerifyCarrier(ctx context.Context, id string) (c *models.Carrier, err error) {
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if err := tx.VerifyCarrier(ctx, id, s.now()); err != nil {
			return translate(err, "carrier", id)
		}
		verified, err := tx.GetCarrier(ctx, id)
		if err != nil {
			return translate(err, "carrier", id)
		}
		c = verified
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Carrier verified", "carrier_id", id)
	return c, nil
}

// RegisterVehicle adds a vehicle to a registered carrier's fleet. It starts
// active and available and takes the carrier's name and role.
func (s *FleetService) RegisterVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	switch {
	case strings.TrimSpace(v.CarrierID) == "":
		return nil, apperrors.NewValidationError("carrier_id", "is required")
	case v.VehicleType == "":
		return nil, apperrors.NewValidationError("vehicle_type", "is required")
	case v.MaxWeightKg <= 0:
		return nil, apperrors.NewValidationError("max_weight_kg", "must be positive")
	case v.MaxVolumeM3 != nil && *v.MaxVolumeM3 <= 0:
		return nil, apperrors.NewValidationError("max_volume_m3", "must be positive")
	}

	if loc, ok := v.Location(); ok && !loc.IsFinite() {
		return nil, apperrors.NewValidationError("current_location", "coordinates must be finite")
	}

	now := s.now()
	if v.ID == "" {
		v.ID = models.GenerateID("VEH")
	}
	if v.FuelType == "" {
		v.FuelType = "diesel"
	}
	v.IsActive = true
	v.IsAvailable = true
	v.CreatedAt = now
	v.UpdatedAt = now

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		carrier, err := tx.GetCarrier(ctx, v.CarrierID)
		if err != nil {
			return translate(err, "carrier", v.CarrierID)
		}
		v.CarrierName = carrier.Name
		v.CarrierRole = carrier.Role

		return tx.CreateVehicle(ctx, v)
	})
	if err != nil {
		return nil, translate(err, "vehicle", v.ID)
	}

	s.logger.Info("Vehicle registered", "vehicle_id", v.ID, "carrier_id", v.CarrierID, "type", v.VehicleType)
	return v, nil
}

// RegisterZone adds a priced service zone
func (s *FleetService) RegisterZone(ctx context.Context, z *models.DeliveryZone) (*models.DeliveryZone, error) {
	switch {
	case strings.TrimSpace(z.Name) == "":
		return nil, apperrors.NewValidationError("name", "is required")
	case z.BaseCost < 0 || z.CostPerKm < 0:
		return nil, apperrors.NewValidationError("base_cost", "rates must be non-negative")
	case z.RadiusKm != nil && *z.RadiusKm <= 0:
		return nil, apperrors.NewValidationError("radius_km", "must be positive")
	}

	if (z.CenterLatitude == nil) != (z.CenterLongitude == nil) {
		return nil, apperrors.NewValidationError("center", "latitude and longitude must be set together")
	}

	now := s.now()
	if z.ID == "" {
		z.ID = models.GenerateID("ZONE")
	}
	if z.ServiceDays == "" {
		z.ServiceDays = "mon,tue,wed,thu,fri,sat"
	}
	if z.ServiceHours == "" {
		z.ServiceHours = "08:00-18:00"
	}
	z.IsActive = true
	z.CreatedAt = now
	z.UpdatedAt = now

	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		return tx.CreateZone(ctx, z)
	})
	if err != nil {
		return nil, translate(err, "zone", z.ID)
	}

	s.logger.Info("Zone registered", "zone_id", z.ID, "name", z.Name)
	return z, nil
}

// GetVehicle retrieves a vehicle
func (s *FleetService) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, translate(err, "vehicle", id)
	}
	return v, nil
}

// RecordLocation stores a vehicle position report. Reports older than the
// last stored one are ignored.
func (s *FleetService) RecordLocation(ctx context.Context, vehicleID string, c geo.Coordinate, label string, at time.Time) error {
	if strings.TrimSpace(vehicleID) == "" {
		return apperrors.NewValidationError("vehicle_id", "is required")
	}
	if !c.IsFinite() || c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return apperrors.NewValidationError("coordinate", fmt.Sprintf("invalid position %v", c))
	}
	if at.IsZero() {
		at = s.now()
	}

	if err := s.store.UpdateVehicleLocation(ctx, vehicleID, c, label, at); err != nil {
		return translate(err, "vehicle", vehicleID)
	}

	return nil
}
