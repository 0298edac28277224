package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/lifecycle"
	"github.com/vaidashi/dispatch-engine/internal/matching"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/pricing"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// Stop is one end of a delivery
type Stop struct {
	Address      string         `json:"address"`
	Coordinate   geo.Coordinate `json:"coordinate"`
	ContactName  string         `json:"contact_name"`
	ContactPhone string         `json:"contact_phone"`
	Instructions string         `json:"instructions,omitempty"`
}

// CreateDeliveryInput assigns a shipment to a carrier's vehicle
type CreateDeliveryInput struct {
	OrderRef              string
	CarrierID             string
	VehicleID             string
	RouteID               *string
	ZoneID                string
	Pickup                Stop
	Dropoff               Stop
	ScheduledPickupTime   time.Time
	ScheduledDeliveryTime time.Time
	Priority              models.Priority
	WeightKg              float64
	VolumeM3              float64
	PackageCount          int
	SpecialHandling       []string
}

// UpdateStatusInput records a status change and its checkpoint
type UpdateStatusInput struct {
	DeliveryID       string
	Status           models.DeliveryStatus
	Location         string
	Coordinate       *geo.Coordinate
	Notes            *string
	EstimatedArrival *time.Time
	Readings         models.Readings
	// UpdatedBy is empty for automated updates.
	UpdatedBy string
}

// RateDeliveryInput is a customer's post-delivery rating
type RateDeliveryInput struct {
	DeliveryID string
	Rating     int
	Feedback   *string
	RatedBy    *string
}

// TrackingSnapshot is a delivery's current state plus its full history
type TrackingSnapshot struct {
	Delivery *models.Delivery        `json:"delivery"`
	Events   []*models.TrackingEvent `json:"events"`
}

// DeliveryService owns the delivery lifecycle
type DeliveryService struct {
	store     repository.Store
	estimator *pricing.Estimator
	isCarrier matching.CarrierPredicate
	logger    logger.Logger
	now       func() time.Time
}

// NewDeliveryService creates a new DeliveryService. A nil predicate admits transporters only.
func NewDeliveryService(
	store repository.Store,
	estimator *pricing.Estimator,
	isCarrier matching.CarrierPredicate,
	logger logger.Logger,
) *DeliveryService {
	if isCarrier == nil {
		isCarrier = matching.TransportersOnly
	}

	return &DeliveryService{
		store:     store,
		estimator: estimator,
		isCarrier: isCarrier,
		logger:    logger,
		now:       models.GetCurrentTime,
	}
}

func (in *CreateDeliveryInput) validate() error {
	switch {
	case strings.TrimSpace(in.OrderRef) == "":
		return apperrors.NewValidationError("order_ref", "is required")
	case strings.TrimSpace(in.CarrierID) == "":
		return apperrors.NewValidationError("carrier_id", "is required")
	case strings.TrimSpace(in.VehicleID) == "":
		return apperrors.NewValidationError("vehicle_id", "is required")
	case strings.TrimSpace(in.Pickup.Address) == "":
		return apperrors.NewValidationError("pickup.address", "is required")
	case strings.TrimSpace(in.Dropoff.Address) == "":
		return apperrors.NewValidationError("dropoff.address", "is required")
	case !in.Pickup.Coordinate.IsFinite():
		return apperrors.NewValidationError("pickup.coordinate", "must be finite")
	case !in.Dropoff.Coordinate.IsFinite():
		return apperrors.NewValidationError("dropoff.coordinate", "must be finite")
	case in.ScheduledPickupTime.IsZero() || in.ScheduledDeliveryTime.IsZero():
		return apperrors.NewValidationError("schedule", "pickup and delivery times are required")
	case in.ScheduledDeliveryTime.Before(in.ScheduledPickupTime):
		return apperrors.NewValidationError("scheduled_delivery_time", "must not be before scheduled pickup")
	case in.WeightKg < 0:
		return apperrors.NewValidationError("weight_kg", "must be non-negative")
	case in.VolumeM3 < 0:
		return apperrors.NewValidationError("volume_m3", "must be non-negative")
	case in.PackageCount < 0:
		return apperrors.NewValidationError("package_count", "must be non-negative")
	}

	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !in.Priority.IsValid() {
		return apperrors.NewValidationError("priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}
	if in.PackageCount == 0 {
		in.PackageCount = 1
	}

	return nil
}

// CreateDelivery claims the vehicle, prices the shipment and records the delivery
// with its first checkpoint. The order and notification signals commit in the
// same transaction.
func (s *DeliveryService) CreateDelivery(ctx context.Context, in CreateDeliveryInput) (d *models.Delivery, err error) {
	defer logger.Time(ctx, s.logger, "delivery.Create")(&err)

	if err = in.validate(); err != nil {
		return nil, err
	}

	now := s.now()

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		carrier, err := tx.GetCarrier(ctx, in.CarrierID)
		if err != nil {
			return translate(err, "carrier", in.CarrierID)
		}
		if !carrier.CanAcceptDeliveries() {
			return apperrors.NewConflictError(fmt.Sprintf("carrier %s is not accepting orders", carrier.ID)).
				WithContext("carrier_id", carrier.ID)
		}

		vehicle, err := tx.ClaimVehicle(ctx, in.VehicleID)
		if err != nil {
			return translate(err, "vehicle", in.VehicleID)
		}

		if vehicle.CarrierID != in.CarrierID {
			return apperrors.NewValidationError("vehicle_id",
				fmt.Sprintf("vehicle %s does not belong to carrier %s", vehicle.ID, in.CarrierID))
		}
		if !s.isCarrier(vehicle) {
			return apperrors.NewValidationError("carrier_id",
				fmt.Sprintf("carrier %s may not accept deliveries", in.CarrierID))
		}
		if vehicle.MaxWeightKg < in.WeightKg {
			return apperrors.NewValidationError("weight_kg",
				fmt.Sprintf("%.2f kg exceeds vehicle capacity of %.2f kg", in.WeightKg, vehicle.MaxWeightKg))
		}
		if vehicle.MaxVolumeM3 != nil && *vehicle.MaxVolumeM3 < in.VolumeM3 {
			return apperrors.NewValidationError("volume_m3",
				fmt.Sprintf("%.2f m3 exceeds vehicle capacity of %.2f m3", in.VolumeM3, *vehicle.MaxVolumeM3))
		}

		estimator := s.estimator
		if in.ZoneID != "" {
			zone, err := tx.GetZone(ctx, in.ZoneID)
			if err != nil {
				return translate(err, "zone", in.ZoneID)
			}
			estimator = estimator.WithRates(estimator.Rates().ForZone(zone))
		}

		cost, err := estimator.Estimate(in.Pickup.Coordinate, in.Dropoff.Coordinate, in.WeightKg, in.VolumeM3, in.Priority)
		if err != nil {
			return err
		}

		d = &models.Delivery{
			DeliveryID:            models.GenerateID("DEL"),
			OrderRef:              in.OrderRef,
			CarrierID:             in.CarrierID,
			VehicleID:             vehicle.ID,
			RouteID:               in.RouteID,
			PickupAddress:         in.Pickup.Address,
			PickupLatitude:        in.Pickup.Coordinate.Latitude,
			PickupLongitude:       in.Pickup.Coordinate.Longitude,
			PickupContactName:     in.Pickup.ContactName,
			PickupContactPhone:    in.Pickup.ContactPhone,
			PickupInstructions:    in.Pickup.Instructions,
			DropoffAddress:        in.Dropoff.Address,
			DropoffLatitude:       in.Dropoff.Coordinate.Latitude,
			DropoffLongitude:      in.Dropoff.Coordinate.Longitude,
			DropoffContactName:    in.Dropoff.ContactName,
			DropoffContactPhone:   in.Dropoff.ContactPhone,
			DropoffInstructions:   in.Dropoff.Instructions,
			ScheduledPickupTime:   in.ScheduledPickupTime,
			ScheduledDeliveryTime: in.ScheduledDeliveryTime,
			Status:                models.DeliveryStatusAssigned,
			Priority:              in.Priority,
			TotalWeightKg:         in.WeightKg,
			TotalVolumeM3:         in.VolumeM3,
			PackageCount:          in.PackageCount,
			SpecialHandling:       append([]string{}, in.SpecialHandling...),
			DeliveryCost:          cost.Total,
			CreatedAt:             now,
			UpdatedAt:             now,
		}

		if err := tx.CreateDelivery(ctx, d); err != nil {
			return translate(err, "delivery", d.DeliveryID)
		}

		scheduled := in.ScheduledPickupTime
		initial := &models.TrackingEvent{
			DeliveryID:       d.DeliveryID,
			Timestamp:        now,
			Status:           models.DeliveryStatusAssigned,
			Location:         d.PickupAddress,
			Latitude:         d.PickupLatitude,
			Longitude:        d.PickupLongitude,
			StatusUpdate:     models.InitialTrackingMessage,
			EstimatedArrival: &scheduled,
			IsAutomated:      true,
		}
		if err := tx.CreateTrackingEvent(ctx, initial); err != nil {
			return translate(err, "tracking event", d.DeliveryID)
		}

		if in.RouteID != nil {
			if err := tx.MarkRouteUsed(ctx, *in.RouteID, now); err != nil {
				return translate(err, "route", *in.RouteID)
			}
		}

		created, err := models.NewDeliveryCreatedEvent(d, now)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to build outbox message: %v", err))
		}
		mirror, err := models.NewOrderStatusMirrorEvent(d, models.OrderStatusProcessing, now)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to build outbox message: %v", err))
		}

		for _, msg := range []*models.OutboxMessage{created, mirror} {
			if err := tx.Enqueue(ctx, msg); err != nil {
				return translate(err, "outbox message", d.DeliveryID)
			}
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Delivery created",
		"delivery_id", d.DeliveryID,
		"order_ref", d.OrderRef,
		"vehicle_id", d.VehicleID,
		"cost", d.DeliveryCost)

	return d, nil
}

// UpdateStatus moves a delivery through its lifecycle and appends a checkpoint.
// It returns the new checkpoint and the updated delivery. Calls on the same
// delivery are serialized by a row lock.
func (s *DeliveryService) UpdateStatus(ctx context.Context, in UpdateStatusInput) (event *models.TrackingEvent, d *models.Delivery, err error) {
	defer logger.Time(ctx, s.logger, "delivery.UpdateStatus")(&err)

	if in.Coordinate == nil {
		return nil, nil, apperrors.NewValidationError("coordinate", "is required")
	}
	if !in.Coordinate.IsFinite() {
		return nil, nil, apperrors.NewValidationError("coordinate", "must be finite")
	}

	var previous models.DeliveryStatus

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error

		d, err = tx.GetDeliveryForUpdate(ctx, in.DeliveryID)
		if err != nil {
			return translate(err, "delivery", in.DeliveryID)
		}

		if err := lifecycle.CheckTransition(d.Status, in.Status); err != nil {
			return err
		}

		now := s.now()
		previous = d.Status
		lifecycle.Apply(d, in.Status, now)

		if err := tx.UpdateDeliveryStatus(ctx, d); err != nil {
			return translate(err, "delivery", d.DeliveryID)
		}

		event = &models.TrackingEvent{
			DeliveryID:       d.DeliveryID,
			Timestamp:        now,
			Status:           in.Status,
			Location:         in.Location,
			Latitude:         in.Coordinate.Latitude,
			Longitude:        in.Coordinate.Longitude,
			StatusUpdate:     lifecycle.StatusMessage(in.Status),
			Notes:            in.Notes,
			EstimatedArrival: in.EstimatedArrival,
			Temperature:      in.Readings.Temperature,
			Humidity:         in.Readings.Humidity,
			SpeedKmh:         in.Readings.SpeedKmh,
			FuelLevel:        in.Readings.FuelLevel,
			IsAutomated:      in.UpdatedBy == "",
		}
		if in.UpdatedBy != "" {
			updatedBy := in.UpdatedBy
			event.UpdatedBy = &updatedBy
		}

		if err := tx.CreateTrackingEvent(ctx, event); err != nil {
			return translate(err, "tracking event", d.DeliveryID)
		}

		if previous == in.Status {
			return nil
		}

		if lifecycle.ReleasesVehicle(in.Status) {
			if err := tx.ReleaseVehicle(ctx, d.VehicleID); err != nil {
				return translate(err, "vehicle", d.VehicleID)
			}
			successful := in.Status == models.DeliveryStatusDelivered || in.Status == models.DeliveryStatusCompleted
			if err := tx.RecordCarrierOutcome(ctx, d.CarrierID, successful); err != nil {
				return translate(err, "carrier", d.CarrierID)
			}
		}
		if in.Status == models.DeliveryStatusDelivered {
			if err := tx.RecordVehicleDelivery(ctx, d.VehicleID, d.DistanceKm()); err != nil {
				return translate(err, "vehicle", d.VehicleID)
			}
		}

		messages := make([]*models.OutboxMessage, 0, 2)

		changed, err := models.NewDeliveryStatusChangedEvent(d, previous, now)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to build outbox message: %v", err))
		}
		messages = append(messages, changed)

		if in.Status == models.DeliveryStatusDelivered {
			mirror, err := models.NewOrderStatusMirrorEvent(d, models.OrderStatusDelivered, now)
			if err != nil {
				return apperrors.NewInternalError(fmt.Sprintf("failed to build outbox message: %v", err))
			}
			messages = append(messages, mirror)
		}

		for _, msg := range messages {
			if err := tx.Enqueue(ctx, msg); err != nil {
				return translate(err, "outbox message", d.DeliveryID)
			}
		}

		return nil
	})

	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Delivery status updated",
		"delivery_id", in.DeliveryID,
		"from", previous,
		"to", in.Status,
		"automated", event.IsAutomated)

	return event, d, nil
}

// GetTracking returns the delivery and its checkpoints from one consistent snapshot
func (s *DeliveryService) GetTracking(ctx context.Context, deliveryID string) (*TrackingSnapshot, error) {
	snapshot := &TrackingSnapshot{}

	err := s.store.ReadSnapshot(ctx, func(r repository.Reader) error {
		d, err := r.GetDelivery(ctx, deliveryID)
		if err != nil {
			return translate(err, "delivery", deliveryID)
		}

		events, err := r.ListTrackingEvents(ctx, deliveryID)
		if err != nil {
			return translate(err, "tracking events", deliveryID)
		}

		snapshot.Delivery = d
		snapshot.Events = events
		return nil
	})

	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// RateDelivery records the customer's rating once a delivery has been handed over
func (s *DeliveryService) RateDelivery(ctx context.Context, in RateDeliveryInput) (d *models.Delivery, err error) {
	defer logger.Time(ctx, s.logger, "delivery.Rate")(&err)

	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperrors.NewValidationError("rating", "must be between 1 and 5")
	}

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error

		d, err = tx.GetDeliveryForUpdate(ctx, in.DeliveryID)
		if err != nil {
			return translate(err, "delivery", in.DeliveryID)
		}

		if d.Status != models.DeliveryStatusDelivered && d.Status != models.DeliveryStatusCompleted {
			return apperrors.NewValidationError("status", fmt.Sprintf("cannot rate a delivery that is %s", d.Status))
		}
		if d.Rating != nil {
			return apperrors.NewConflictError(fmt.Sprintf("delivery %s has already been rated", d.DeliveryID))
		}

		rating := in.Rating
		d.Rating = &rating
		d.Feedback = in.Feedback
		d.RatedBy = in.RatedBy
		d.UpdatedAt = s.now()

		if err := tx.UpdateDeliveryRating(ctx, d); err != nil {
			return translate(err, "delivery", d.DeliveryID)
		}
		if err := tx.AddVehicleRating(ctx, d.VehicleID, rating); err != nil {
			return translate(err, "vehicle", d.VehicleID)
		}
		if err := tx.AddCarrierRating(ctx, d.CarrierID, rating); err != nil {
			return translate(err, "carrier", d.CarrierID)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Delivery rated", "delivery_id", d.DeliveryID, "rating", *d.Rating)
	return d, nil
}
