package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// OptimizationType is the objective an optimization run targets
type OptimizationType string

const (
	OptimizeDistance OptimizationType = "distance"
	OptimizeTime     OptimizationType = "time"
	OptimizeCost     OptimizationType = "cost"
	OptimizeFuel     OptimizationType = "fuel"
	OptimizeBalanced OptimizationType = "balanced"
)

// IsValid reports whether t is a known objective
func (t OptimizationType) IsValid() bool {
	switch t {
	case OptimizeDistance, OptimizeTime, OptimizeCost, OptimizeFuel, OptimizeBalanced:
		return true
	}
	return false
}

// RouteOptimization is a persisted optimization request together with its result
type RouteOptimization struct {
	ID                    int64            `db:"id" json:"-"`
	OptimizationID        string           `db:"optimization_id" json:"optimization_id"`
	TransporterID         string           `db:"transporter_id" json:"transporter_id"`
	VehicleID             string           `db:"vehicle_id" json:"vehicle_id"`
	OptimizationType      OptimizationType `db:"optimization_type" json:"optimization_type"`
	Algorithm             string           `db:"algorithm" json:"algorithm"`
	StartLocation         types.JSONText   `db:"start_location" json:"start_location"`
	EndLocation           types.JSONText   `db:"end_location" json:"end_location"`
	Waypoints             types.JSONText   `db:"waypoints" json:"waypoints"`
	DeliveryWindows       types.JSONText   `db:"delivery_windows" json:"delivery_windows"`
	MaxDistanceKm         *float64         `db:"max_distance_km" json:"max_distance_km,omitempty"`
	MaxDurationMinutes    *int             `db:"max_duration_minutes" json:"max_duration_minutes,omitempty"`
	AvoidTollRoads        bool             `db:"avoid_toll_roads" json:"avoid_toll_roads"`
	AvoidHighways         bool             `db:"avoid_highways" json:"avoid_highways"`
	OptimizedRoute        types.JSONText   `db:"optimized_route" json:"optimized_route"`
	VisitOrder            types.JSONText   `db:"visit_order" json:"visit_order"`
	TotalDistanceKm       *float64         `db:"total_distance_km" json:"total_distance_km,omitempty"`
	TotalDurationMinutes  *int             `db:"total_duration_minutes" json:"total_duration_minutes,omitempty"`
	EstimatedFuelCost     *float64         `db:"estimated_fuel_cost" json:"estimated_fuel_cost,omitempty"`
	ProcessingTimeSeconds float64          `db:"processing_time_seconds" json:"processing_time_seconds"`
	IsProcessed           bool             `db:"is_processed" json:"is_processed"`
	ProcessingError       *string          `db:"processing_error" json:"processing_error,omitempty"`
	Warnings              pq.StringArray   `db:"warnings" json:"warnings"`
	IsUsed                bool             `db:"is_used" json:"is_used"`
	CreatedRouteID        *string          `db:"created_route_id" json:"created_route_id,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
}

// Route is a named, reusable route promoted from a successful optimization
type Route struct {
	RouteID                  string         `db:"route_id" json:"route_id"`
	Name                     string         `db:"name" json:"name"`
	TransporterID            string         `db:"transporter_id" json:"transporter_id"`
	VehicleID                string         `db:"vehicle_id" json:"vehicle_id"`
	StartLocation            string         `db:"start_location" json:"start_location"`
	StartLatitude            float64        `db:"start_latitude" json:"start_latitude"`
	StartLongitude           float64        `db:"start_longitude" json:"start_longitude"`
	EndLocation              string         `db:"end_location" json:"end_location"`
	EndLatitude              float64        `db:"end_latitude" json:"end_latitude"`
	EndLongitude             float64        `db:"end_longitude" json:"end_longitude"`
	Waypoints                types.JSONText `db:"waypoints" json:"waypoints"`
	TotalDistanceKm          float64        `db:"total_distance_km" json:"total_distance_km"`
	EstimatedDurationMinutes int            `db:"estimated_duration_minutes" json:"estimated_duration_minutes"`
	OptimizationAlgorithm    string         `db:"optimization_algorithm" json:"optimization_algorithm"`
	OptimizationFactors      types.JSONText `db:"optimization_factors" json:"optimization_factors"`
	SourceOptimizationID     string         `db:"source_optimization_id" json:"source_optimization_id"`
	TimesUsed                int            `db:"times_used" json:"times_used"`
	LastUsed                 *time.Time     `db:"last_used" json:"last_used,omitempty"`
	IsActive                 bool           `db:"is_active" json:"is_active"`
	CreatedAt                time.Time      `db:"created_at" json:"created_at"`
}

// OptimizationFactors records what a promoted route was optimized for
type OptimizationFactors struct {
	Type          OptimizationType `json:"type"`
	AvoidTolls    bool             `json:"avoid_tolls"`
	AvoidHighways bool             `json:"avoid_highways"`
}

// EncodeJSON marshals v into a JSONText column value.
func EncodeJSON(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return types.JSONText(b), nil
}

// DecodeCoordinate reads an optional coordinate from a JSON column.
func DecodeCoordinate(raw types.JSONText) (*geo.Coordinate, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var c geo.Coordinate
	if err := raw.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode coordinate: %w", err)
	}
	return &c, nil
}

// DecodeCoordinates reads a coordinate list from a JSON column.
func DecodeCoordinates(raw types.JSONText) ([]geo.Coordinate, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []geo.Coordinate{}, nil
	}
	var cs []geo.Coordinate
	if err := raw.Unmarshal(&cs); err != nil {
		return nil, fmt.Errorf("decode coordinates: %w", err)
	}
	return cs, nil
}
