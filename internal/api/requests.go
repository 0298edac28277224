package api

import (
	"encoding/json"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/routing"
	"github.com/vaidashi/dispatch-engine/internal/service"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

type coordinateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

func (c coordinateRequest) coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: *c.Latitude, Longitude: *c.Longitude}
}

func optionalCoordinate(c *coordinateRequest) *geo.Coordinate {
	if c == nil {
		return nil
	}
	coord := c.coordinate()
	return &coord
}

type shipmentRequest struct {
	Pickup              coordinateRequest `json:"pickup"`
	Dropoff             coordinateRequest `json:"dropoff"`
	WeightKg            float64           `json:"weight_kg" validate:"gte=0"`
	VolumeM3            float64           `json:"volume_m3" validate:"gte=0"`
	Priority            models.Priority   `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	RequestedDeliveryAt *time.Time        `json:"requested_delivery_at"`
}

func (r shipmentRequest) toModel() models.ShipmentRequest {
	return models.ShipmentRequest{
		Pickup:              r.Pickup.coordinate(),
		Dropoff:             r.Dropoff.coordinate(),
		WeightKg:            r.WeightKg,
		VolumeM3:            r.VolumeM3,
		Priority:            r.Priority,
		RequestedDeliveryAt: r.RequestedDeliveryAt,
	}
}

type quoteRequest struct {
	shipmentRequest
	ZoneID string `json:"zone_id"`
}

type matchRequest struct {
	shipmentRequest
	MaxDistanceKm *float64 `json:"max_distance_km" validate:"omitempty,gt=0"`
}

type stopRequest struct {
	coordinateRequest
	Address      string `json:"address" validate:"required"`
	ContactName  string `json:"contact_name" validate:"required"`
	ContactPhone string `json:"contact_phone" validate:"required"`
	Instructions string `json:"instructions"`
}

func (s stopRequest) toStop() service.Stop {
	return service.Stop{
		Address:      s.Address,
		Coordinate:   s.coordinate(),
		ContactName:  s.ContactName,
		ContactPhone: s.ContactPhone,
		Instructions: s.Instructions,
	}
}

type createDeliveryRequest struct {
	OrderRef              string          `json:"order_ref" validate:"required"`
	CarrierID             string          `json:"carrier_id" validate:"required"`
	VehicleID             string          `json:"vehicle_id" validate:"required"`
	RouteID               *string         `json:"route_id"`
	ZoneID                string          `json:"zone_id"`
	Pickup                stopRequest     `json:"pickup"`
	Dropoff               stopRequest     `json:"dropoff"`
	ScheduledPickupTime   time.Time       `json:"scheduled_pickup_time" validate:"required"`
	ScheduledDeliveryTime time.Time       `json:"scheduled_delivery_time" validate:"required"`
	Priority              models.Priority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	WeightKg              float64         `json:"weight_kg" validate:"gte=0"`
	VolumeM3              float64         `json:"volume_m3" validate:"gte=0"`
	PackageCount          int             `json:"package_count" validate:"gte=0"`
	SpecialHandling       []string        `json:"special_handling"`
}

func (r createDeliveryRequest) toInput() service.CreateDeliveryInput {
	return service.CreateDeliveryInput{
		OrderRef:              r.OrderRef,
		CarrierID:             r.CarrierID,
		VehicleID:             r.VehicleID,
		RouteID:               r.RouteID,
		ZoneID:                r.ZoneID,
		Pickup:                r.Pickup.toStop(),
		Dropoff:               r.Dropoff.toStop(),
		ScheduledPickupTime:   r.ScheduledPickupTime,
		ScheduledDeliveryTime: r.ScheduledDeliveryTime,
		Priority:              r.Priority,
		WeightKg:              r.WeightKg,
		VolumeM3:              r.VolumeM3,
		PackageCount:          r.PackageCount,
		SpecialHandling:       r.SpecialHandling,
	}
}

type updateStatusRequest struct {
	Status           models.DeliveryStatus `json:"status" validate:"required"`
	Location         string                `json:"location"`
	Coordinate       *coordinateRequest    `json:"coordinate" validate:"omitempty"`
	Notes            *string               `json:"notes"`
	EstimatedArrival *time.Time            `json:"estimated_arrival"`
	Readings         models.Readings       `json:"readings"`
	UpdatedBy        string                `json:"updated_by"`
}

func (r updateStatusRequest) toInput(deliveryID string) service.UpdateStatusInput {
	return service.UpdateStatusInput{
		DeliveryID:       deliveryID,
		Status:           r.Status,
		Location:         r.Location,
		Coordinate:       optionalCoordinate(r.Coordinate),
		Notes:            r.Notes,
		EstimatedArrival: r.EstimatedArrival,
		Readings:         r.Readings,
		UpdatedBy:        r.UpdatedBy,
	}
}

type rateDeliveryRequest struct {
	Rating   int     `json:"rating" validate:"required,min=1,max=5"`
	Feedback *string `json:"feedback"`
	RatedBy  *string `json:"rated_by"`
}

type optimizeRequest struct {
	TransporterID      string                  `json:"transporter_id"`
	VehicleID          string                  `json:"vehicle_id" validate:"required"`
	OptimizationType   models.OptimizationType `json:"optimization_type" validate:"omitempty,oneof=distance time cost fuel balanced"`
	Algorithm          routing.Algorithm       `json:"algorithm"`
	Start              *coordinateRequest      `json:"start" validate:"omitempty"`
	End                *coordinateRequest      `json:"end" validate:"omitempty"`
	Waypoints          []coordinateRequest     `json:"waypoints" validate:"dive"`
	DeliveryWindows    json.RawMessage         `json:"delivery_windows"`
	MaxDistanceKm      *float64                `json:"max_distance_km" validate:"omitempty,gt=0"`
	MaxDurationMinutes *int                    `json:"max_duration_minutes" validate:"omitempty,gt=0"`
	AvoidTolls         bool                    `json:"avoid_tolls"`
	AvoidHighways      bool                    `json:"avoid_highways"`
}

func (r optimizeRequest) toInput() service.OptimizeInput {
	waypoints := make([]geo.Coordinate, len(r.Waypoints))
	for i, w := range r.Waypoints {
		waypoints[i] = w.coordinate()
	}

	return service.OptimizeInput{
		TransporterID:      r.TransporterID,
		VehicleID:          r.VehicleID,
		Type:               r.OptimizationType,
		Algorithm:          r.Algorithm,
		Start:              optionalCoordinate(r.Start),
		End:                optionalCoordinate(r.End),
		Waypoints:          waypoints,
		DeliveryWindows:    r.DeliveryWindows,
		MaxDistanceKm:      r.MaxDistanceKm,
		MaxDurationMinutes: r.MaxDurationMinutes,
		AvoidTolls:         r.AvoidTolls,
		AvoidHighways:      r.AvoidHighways,
	}
}

type batchOptimizeRequest struct {
	Requests []optimizeRequest `json:"requests" validate:"required,min=1,dive"`
}

type promoteRequest struct {
	OptimizationID string `json:"optimization_id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	StartLocation  string `json:"start_location"`
	EndLocation    string `json:"end_location"`
}

type registerCarrierRequest struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name" validate:"required"`
	Role               string   `json:"role"`
	RegistrationNumber string   `json:"registration_number"`
	Phone              string   `json:"phone"`
	Email              string   `json:"email" validate:"omitempty,email"`
	OperatingAreas     []string `json:"operating_areas"`
	AcceptingOrders    *bool    `json:"accepting_orders"`
}

func (r registerCarrierRequest) toModel() *models.Carrier {
	c := &models.Carrier{
		ID:                 r.ID,
		Name:               r.Name,
		Role:               r.Role,
		RegistrationNumber: r.RegistrationNumber,
		Phone:              r.Phone,
		Email:              r.Email,
		OperatingAreas:     r.OperatingAreas,
		IsAcceptingOrders:  true,
	}
	if r.AcceptingOrders != nil {
		c.IsAcceptingOrders = *r.AcceptingOrders
	}
	return c
}

type registerVehicleRequest struct {
	ID           string             `json:"id"`
	CarrierID    string             `json:"carrier_id" validate:"required"`
	VehicleType  models.VehicleType `json:"vehicle_type" validate:"required,oneof=motorcycle pickup van truck trailer bicycle"`
	Make         string             `json:"make"`
	Model        string             `json:"model"`
	LicensePlate string             `json:"license_plate"`
	FuelType     string             `json:"fuel_type"`
	MaxWeightKg  float64            `json:"max_weight_kg" validate:"gt=0"`
	MaxVolumeM3  *float64           `json:"max_volume_m3" validate:"omitempty,gt=0"`
	Location     string             `json:"current_location"`
	Coordinate   *coordinateRequest `json:"coordinate" validate:"omitempty"`
}

func (r registerVehicleRequest) toModel() *models.Vehicle {
	v := &models.Vehicle{
		ID:              r.ID,
		CarrierID:       r.CarrierID,
		VehicleType:     r.VehicleType,
		Make:            r.Make,
		Model:           r.Model,
		LicensePlate:    r.LicensePlate,
		FuelType:        r.FuelType,
		MaxWeightKg:     r.MaxWeightKg,
		MaxVolumeM3:     r.MaxVolumeM3,
		CurrentLocation: r.Location,
	}
	if r.Coordinate != nil {
		v.CurrentLatitude = r.Coordinate.Latitude
		v.CurrentLongitude = r.Coordinate.Longitude
	}
	return v
}

type registerZoneRequest struct {
	ID              string             `json:"id"`
	Name            string             `json:"name" validate:"required"`
	Description     string             `json:"description"`
	Center          *coordinateRequest `json:"center" validate:"omitempty"`
	RadiusKm        *float64           `json:"radius_km" validate:"omitempty,gt=0"`
	CoverageAreaKm2 *float64           `json:"coverage_area_km2" validate:"omitempty,gt=0"`
	BaseCost        float64            `json:"base_cost" validate:"gte=0"`
	CostPerKm       float64            `json:"cost_per_km" validate:"gte=0"`
	MinOrderValue   float64            `json:"min_order_value" validate:"gte=0"`
	ServiceDays     string             `json:"service_days"`
	ServiceHours    string             `json:"service_hours"`
}

func (r registerZoneRequest) toModel() *models.DeliveryZone {
	z := &models.DeliveryZone{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		RadiusKm:        r.RadiusKm,
		CoverageAreaKm2: r.CoverageAreaKm2,
		BaseCost:        r.BaseCost,
		CostPerKm:       r.CostPerKm,
		MinOrderValue:   r.MinOrderValue,
		ServiceDays:     r.ServiceDays,
		ServiceHours:    r.ServiceHours,
	}
	if r.Center != nil {
		z.CenterLatitude = r.Center.Latitude
		z.CenterLongitude = r.Center.Longitude
	}
	return z
}

type discardRequest struct {
	Reason string `json:"reason"`
}
