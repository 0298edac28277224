package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

const optimizationColumns = `
	id, optimization_id, transporter_id, vehicle_id, optimization_type, algorithm,
	start_location, end_location, waypoints, delivery_windows, max_distance_km,
	max_duration_minutes, avoid_toll_roads, avoid_highways, optimized_route,
	visit_order, total_distance_km, total_duration_minutes, estimated_fuel_cost,
	processing_time_seconds, is_processed, processing_error, warnings, is_used,
	created_route_id, created_at`

const routeColumns = `
	route_id, name, transporter_id, vehicle_id, start_location, start_latitude,
	start_longitude, end_location, end_latitude, end_longitude, waypoints,
	total_distance_km, estimated_duration_minutes, optimization_algorithm,
	optimization_factors, source_optimization_id, times_used, last_used,
	is_active, created_at`

// RouteRepository stores optimization runs and the named routes promoted from them
type RouteRepository struct {
	q      sqlx.ExtContext
	logger logger.Logger
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(q sqlx.ExtContext, logger logger.Logger) *RouteRepository {
	return &RouteRepository{
		q:      q,
		logger: logger,
	}
}

// CreateOptimization persists an optimization request with its outcome
func (r *RouteRepository) CreateOptimization(ctx context.Context, o *models.RouteOptimization) error {
	query := `
		INSERT INTO route_optimizations (
			optimization_id, transporter_id, vehicle_id, optimization_type, algorithm,
			start_location, end_location, waypoints, delivery_windows, max_distance_km,
			max_duration_minutes, avoid_toll_roads, avoid_highways, optimized_route,
			visit_order, total_distance_km, total_duration_minutes, estimated_fuel_cost,
			processing_time_seconds, is_processed, processing_error, warnings, is_used,
			created_route_id, created_at
		) VALUES (
			:optimization_id, :transporter_id, :vehicle_id, :optimization_type, :algorithm,
			:start_location, :end_location, :waypoints, :delivery_windows, :max_distance_km,
			:max_duration_minutes, :avoid_toll_roads, :avoid_highways, :optimized_route,
			:visit_order, :total_distance_km, :total_duration_minutes, :estimated_fuel_cost,
			:processing_time_seconds, :is_processed, :processing_error, :warnings, :is_used,
			:created_route_id, :created_at
		) RETURNING id
	`

	rows, err := sqlx.NamedQueryContext(ctx, r.q, query, o)

	if err != nil {
		r.logger.Error("Failed to create route optimization", "error", err, "optimization_id", o.OptimizationID)
		return dbError(err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&o.ID); err != nil {
			return dbError(err)
		}
	}

	return dbErrorOrNil(rows.Err())
}

// GetOptimization retrieves an optimization run by its external ID
func (r *RouteRepository) GetOptimization(ctx context.Context, optimizationID string) (*models.RouteOptimization, error) {
	return r.getOptimization(ctx, `SELECT `+optimizationColumns+` FROM route_optimizations WHERE optimization_id = $1`, optimizationID)
}

// GetOptimizationForUpdate retrieves an optimization run and locks it
func (r *RouteRepository) GetOptimizationForUpdate(ctx context.Context, optimizationID string) (*models.RouteOptimization, error) {
	return r.getOptimization(ctx, `SELECT `+optimizationColumns+` FROM route_optimizations WHERE optimization_id = $1 FOR UPDATE`, optimizationID)
}

func (r *RouteRepository) getOptimization(ctx context.Context, query, optimizationID string) (*models.RouteOptimization, error) {
	var o models.RouteOptimization

	if err := sqlx.GetContext(ctx, r.q, &o, query, optimizationID); err != nil {
		return nil, dbError(err)
	}

	return &o, nil
}

// MarkOptimizationUsed links an optimization run to the route created from it
func (r *RouteRepository) MarkOptimizationUsed(ctx context.Context, optimizationID, routeID string) error {
	query := `
		UPDATE route_optimizations
		SET is_used = TRUE, created_route_id = $2
		WHERE optimization_id = $1
	`

	res, err := r.q.ExecContext(ctx, query, optimizationID, routeID)

	if err != nil {
		r.logger.Error("Failed to mark optimization used", "error", err, "optimization_id", optimizationID)
		return dbError(err)
	}

	return expectOne(res)
}

// CreateRoute inserts a named route
func (r *RouteRepository) CreateRoute(ctx context.Context, route *models.Route) error {
	query := `
		INSERT INTO routes (` + routeColumns + `)
		VALUES (
			:route_id, :name, :transporter_id, :vehicle_id, :start_location, :start_latitude,
			:start_longitude, :end_location, :end_latitude, :end_longitude, :waypoints,
			:total_distance_km, :estimated_duration_minutes, :optimization_algorithm,
			:optimization_factors, :source_optimization_id, :times_used, :last_used,
			:is_active, :created_at
		)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, route); err != nil {
		r.logger.Error("Failed to create route", "error", err, "route_id", route.RouteID)
		return dbError(err)
	}

	return nil
}

// GetRoute retrieves a named route
func (r *RouteRepository) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	var route models.Route

	if err := sqlx.GetContext(ctx, r.q, &route, `SELECT `+routeColumns+` FROM routes WHERE route_id = $1`, routeID); err != nil {
		return nil, dbError(err)
	}

	return &route, nil
}

// MarkRouteUsed bumps a route's usage counter
func (r *RouteRepository) MarkRouteUsed(ctx context.Context, routeID string, at time.Time) error {
	query := `
		UPDATE routes
		SET times_used = times_used + 1, last_used = $2
		WHERE route_id = $1 AND is_active = TRUE
	`

	res, err := r.q.ExecContext(ctx, query, routeID, at)

	if err != nil {
		r.logger.Error("Failed to mark route used", "error", err, "route_id", routeID)
		return dbError(err)
	}

	return expectOne(res)
}
