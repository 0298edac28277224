package models

import (
	"time"

	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// Message written on the checkpoint created together with a delivery
const InitialTrackingMessage = "Delivery assigned to transporter"

// TrackingEvent is an immutable checkpoint in a delivery's history
type TrackingEvent struct {
	ID               int64          `db:"id" json:"id"`
	DeliveryID       string         `db:"delivery_id" json:"delivery_id"`
	Timestamp        time.Time      `db:"timestamp" json:"timestamp"`
	Status           DeliveryStatus `db:"status" json:"status"`
	Location         string         `db:"location" json:"location"`
	Latitude         float64        `db:"latitude" json:"latitude"`
	Longitude        float64        `db:"longitude" json:"longitude"`
	StatusUpdate     string         `db:"status_update" json:"status_update"`
	Notes            *string        `db:"notes" json:"notes,omitempty"`
	EstimatedArrival *time.Time     `db:"estimated_arrival" json:"estimated_arrival,omitempty"`
	Temperature      *float64       `db:"temperature" json:"temperature,omitempty"`
	Humidity         *float64       `db:"humidity" json:"humidity,omitempty"`
	SpeedKmh         *float64       `db:"speed_kmh" json:"speed_kmh,omitempty"`
	FuelLevel        *float64       `db:"fuel_level" json:"fuel_level,omitempty"`
	IsAutomated      bool           `db:"is_automated" json:"is_automated"`
	UpdatedBy        *string        `db:"updated_by" json:"updated_by,omitempty"`
}

// Coordinate returns where the checkpoint was recorded
func (e *TrackingEvent) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
}

// Readings are optional environmental measurements attached to a checkpoint
type Readings struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	SpeedKmh    *float64 `json:"speed_kmh,omitempty"`
	FuelLevel   *float64 `json:"fuel_level,omitempty"`
}
