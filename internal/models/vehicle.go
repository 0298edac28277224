package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// VehicleType is the class of transport asset
type VehicleType string

const (
	VehicleMotorcycle VehicleType = "motorcycle"
	VehiclePickup     VehicleType = "pickup"
	VehicleVan        VehicleType = "van"
	VehicleTruck      VehicleType = "truck"
	VehicleTrailer    VehicleType = "trailer"
	VehicleBicycle    VehicleType = "bicycle"
)

// CarrierRoleTransporter is the role a vehicle owner must hold to receive assignments
const CarrierRoleTransporter = "transporter"

// Vehicle is a carrier's transport asset
type Vehicle struct {
	ID                string      `db:"id" json:"id"`
	CarrierID         string      `db:"carrier_id" json:"carrier_id"`
	CarrierName       string      `db:"carrier_name" json:"carrier_name"`
	CarrierRole       string      `db:"carrier_role" json:"carrier_role"`
	VehicleType       VehicleType `db:"vehicle_type" json:"vehicle_type"`
	Make              string      `db:"make" json:"make"`
	Model             string      `db:"model" json:"model"`
	LicensePlate      string      `db:"license_plate" json:"license_plate"`
	FuelType          string      `db:"fuel_type" json:"fuel_type"`
	MaxWeightKg       float64     `db:"max_weight_kg" json:"max_weight_kg"`
	MaxVolumeM3       *float64    `db:"max_volume_m3" json:"max_volume_m3,omitempty"`
	CurrentLocation   string      `db:"current_location" json:"current_location"`
	CurrentLatitude   *float64    `db:"current_latitude" json:"current_latitude,omitempty"`
	CurrentLongitude  *float64    `db:"current_longitude" json:"current_longitude,omitempty"`
	LocationUpdatedAt *time.Time  `db:"location_updated_at" json:"location_updated_at,omitempty"`
	IsActive          bool        `db:"is_active" json:"is_active"`
	IsAvailable       bool        `db:"is_available" json:"is_available"`
	TotalDistanceKm   float64     `db:"total_distance_km" json:"total_distance_km"`
	TotalDeliveries   int         `db:"total_deliveries" json:"total_deliveries"`
	AverageRating     float64     `db:"average_rating" json:"average_rating"`
	RatingCount       int         `db:"rating_count" json:"rating_count"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// Location returns the last reported position, or false if none was ever reported.
func (v *Vehicle) Location() (geo.Coordinate, bool) {
	if v.CurrentLatitude == nil || v.CurrentLongitude == nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Latitude: *v.CurrentLatitude, Longitude: *v.CurrentLongitude}, true
}

// SetLocation records a position report.
func (v *Vehicle) SetLocation(c geo.Coordinate, label string, at time.Time) {
	v.CurrentLatitude = floatPtr(c.Latitude)
	v.CurrentLongitude = floatPtr(c.Longitude)
	v.CurrentLocation = label
	v.LocationUpdatedAt = &at
}

// Descriptor is a short human-readable label such as "Isuzu NPR (KBX 123A)".
func (v *Vehicle) Descriptor() string {
	name := strings.TrimSpace(v.Make + " " + v.Model)
	if name == "" {
		name = string(v.VehicleType)
	}
	if v.LicensePlate == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, v.LicensePlate)
}

// AddRating folds a 1-5 rating into the rolling average.
func (v *Vehicle) AddRating(rating int) {
	total := v.AverageRating*float64(v.RatingCount) + float64(rating)
	v.RatingCount++
	v.AverageRating = total / float64(v.RatingCount)
}
