package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// LocationRecorder stores vehicle position reports
type LocationRecorder interface {
	RecordLocation(ctx context.Context, vehicleID string, c geo.Coordinate, label string, at time.Time) error
}

// VehiclePing is a position report published by a vehicle's telematics unit
type VehiclePing struct {
	VehicleID  string    `json:"vehicle_id"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	Location   string    `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`
}

// VehicleLocationHandler consumes vehicle pings from Kafka
type VehicleLocationHandler struct {
	recorder LocationRecorder
	logger   logger.Logger
}

// NewVehicleLocationHandler creates a new VehicleLocationHandler
func NewVehicleLocationHandler(recorder LocationRecorder, logger logger.Logger) *VehicleLocationHandler {
	return &VehicleLocationHandler{
		recorder: recorder,
		logger:   logger,
	}
}

// HandleMessage updates the vehicle's current location. Malformed pings and
// pings for unknown vehicles are dropped; store failures are returned so the
// message is redelivered.
func (h *VehicleLocationHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ping VehiclePing

	if err := json.Unmarshal(msg.Value, &ping); err != nil {
		h.logger.Warn("Dropping malformed vehicle ping",
			"error", err,
			"partition", msg.Partition,
			"offset", msg.Offset)
		return nil
	}

	if ping.Latitude == nil || ping.Longitude == nil {
		h.logger.Warn("Dropping vehicle ping without coordinates",
			"vehicleId", ping.VehicleID,
			"offset", msg.Offset)
		return nil
	}

	c := geo.Coordinate{Latitude: *ping.Latitude, Longitude: *ping.Longitude}

	err := h.recorder.RecordLocation(ctx, ping.VehicleID, c, ping.Location, ping.RecordedAt)
	switch {
	case err == nil:
		h.logger.Debug("Vehicle location updated",
			"vehicleId", ping.VehicleID,
			"location", ping.Location)
		return nil
	case apperrors.IsValidation(err), apperrors.IsNotFound(err):
		h.logger.Warn("Dropping rejected vehicle ping",
			"error", err,
			"vehicleId", ping.VehicleID,
			"offset", msg.Offset)
		return nil
	default:
		h.logger.Error("Failed to record vehicle location",
			"error", err,
			"vehicleId", ping.VehicleID)
		return err
	}
}
