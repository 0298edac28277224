package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// DeliveryStatus is a state in the delivery lifecycle
type DeliveryStatus string

const (
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusPickedUp       DeliveryStatus = "picked_up"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusCompleted      DeliveryStatus = "completed"
	DeliveryStatusFailed         DeliveryStatus = "failed"
	DeliveryStatusReturned       DeliveryStatus = "returned"
	DeliveryStatusCancelled      DeliveryStatus = "cancelled"
)

// IsValid reports whether s is a known status
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusInTransit,
		DeliveryStatusOutForDelivery, DeliveryStatusDelivered, DeliveryStatusCompleted,
		DeliveryStatusFailed, DeliveryStatusReturned, DeliveryStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusCompleted, DeliveryStatusFailed,
		DeliveryStatusReturned, DeliveryStatusCancelled:
		return true
	}
	return false
}

// Delivery is the durable unit of dispatch work
type Delivery struct {
	ID                    int64          `db:"id" json:"-"`
	DeliveryID            string         `db:"delivery_id" json:"delivery_id"`
	OrderRef              string         `db:"order_ref" json:"order_ref"`
	CarrierID             string         `db:"carrier_id" json:"carrier_id"`
	VehicleID             string         `db:"vehicle_id" json:"vehicle_id"`
	RouteID               *string        `db:"route_id" json:"route_id,omitempty"`
	PickupAddress         string         `db:"pickup_address" json:"pickup_address"`
	PickupLatitude        float64        `db:"pickup_latitude" json:"pickup_latitude"`
	PickupLongitude       float64        `db:"pickup_longitude" json:"pickup_longitude"`
	PickupContactName     string         `db:"pickup_contact_name" json:"pickup_contact_name"`
	PickupContactPhone    string         `db:"pickup_contact_phone" json:"pickup_contact_phone"`
	PickupInstructions    string         `db:"pickup_instructions" json:"pickup_instructions,omitempty"`
	DropoffAddress        string         `db:"dropoff_address" json:"dropoff_address"`
	DropoffLatitude       float64        `db:"dropoff_latitude" json:"dropoff_latitude"`
	DropoffLongitude      float64        `db:"dropoff_longitude" json:"dropoff_longitude"`
	DropoffContactName    string         `db:"dropoff_contact_name" json:"dropoff_contact_name"`
	DropoffContactPhone   string         `db:"dropoff_contact_phone" json:"dropoff_contact_phone"`
	DropoffInstructions   string         `db:"dropoff_instructions" json:"dropoff_instructions,omitempty"`
	ScheduledPickupTime   time.Time      `db:"scheduled_pickup_time" json:"scheduled_pickup_time"`
	ScheduledDeliveryTime time.Time      `db:"scheduled_delivery_time" json:"scheduled_delivery_time"`
	ActualPickupTime      *time.Time     `db:"actual_pickup_time" json:"actual_pickup_time,omitempty"`
	ActualDeliveryTime    *time.Time     `db:"actual_delivery_time" json:"actual_delivery_time,omitempty"`
	Status                DeliveryStatus `db:"status" json:"status"`
	Priority              Priority       `db:"priority" json:"priority"`
	TotalWeightKg         float64        `db:"total_weight_kg" json:"total_weight_kg"`
	TotalVolumeM3         float64        `db:"total_volume_m3" json:"total_volume_m3"`
	PackageCount          int            `db:"package_count" json:"package_count"`
	SpecialHandling       pq.StringArray `db:"special_handling" json:"special_handling"`
	DeliveryCost          float64        `db:"delivery_cost" json:"delivery_cost"`
	FuelCost              *float64       `db:"fuel_cost" json:"fuel_cost,omitempty"`
	TollCost              *float64       `db:"toll_cost" json:"toll_cost,omitempty"`
	IsPaid                bool           `db:"is_paid" json:"is_paid"`
	Rating                *int           `db:"rating" json:"rating,omitempty"`
	Feedback              *string        `db:"feedback" json:"feedback,omitempty"`
	RatedBy               *string        `db:"rated_by" json:"rated_by,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// Pickup returns the pickup coordinate
func (d *Delivery) Pickup() geo.Coordinate {
	return geo.Coordinate{Latitude: d.PickupLatitude, Longitude: d.PickupLongitude}
}

// Dropoff returns the drop-off coordinate
func (d *Delivery) Dropoff() geo.Coordinate {
	return geo.Coordinate{Latitude: d.DropoffLatitude, Longitude: d.DropoffLongitude}
}

// DistanceKm is the straight-line pickup to drop-off distance
func (d *Delivery) DistanceKm() float64 {
	return geo.DistanceKm(d.Pickup(), d.Dropoff())
}

// RecipientRefs lists who is notified about status changes.
func (d *Delivery) RecipientRefs() []string {
	refs := []string{"carrier:" + d.CarrierID, "order:" + d.OrderRef}
	if d.DropoffContactPhone != "" {
		refs = append(refs, "phone:"+d.DropoffContactPhone)
	}
	return refs
}
