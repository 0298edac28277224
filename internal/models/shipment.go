package models

import (
	"time"

	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// Priority ranks how urgently a shipment must move
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid reports whether p is one of the known priorities
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ShipmentRequest is the input to matching and cost estimation. It is never persisted.
type ShipmentRequest struct {
	Pickup              geo.Coordinate `json:"pickup"`
	Dropoff             geo.Coordinate `json:"dropoff"`
	WeightKg            float64        `json:"weight_kg"`
	VolumeM3            float64        `json:"volume_m3,omitempty"`
	Priority            Priority       `json:"priority"`
	RequestedDeliveryAt *time.Time     `json:"requested_delivery_at,omitempty"`
}
