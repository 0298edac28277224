package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/internal/repository"
	"github.com/vaidashi/dispatch-engine/internal/routing"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

// OptimizeInput is a route optimization request from a carrier or dispatcher
type OptimizeInput struct {
	TransporterID      string
	VehicleID          string
	Type               models.OptimizationType
	Algorithm          routing.Algorithm
	Start              *geo.Coordinate
	End                *geo.Coordinate
	Waypoints          []geo.Coordinate
	DeliveryWindows    json.RawMessage
	MaxDistanceKm      *float64
	MaxDurationMinutes *int
	AvoidTolls         bool
	AvoidHighways      bool
}

func (in *OptimizeInput) validate() error {
	if strings.TrimSpace(in.VehicleID) == "" {
		return apperrors.NewValidationError("vehicle_id", "is required")
	}
	if in.Type == "" {
		in.Type = models.OptimizeDistance
	}
	if !in.Type.IsValid() {
		return apperrors.NewValidationError("optimization_type", fmt.Sprintf("unknown type %q", in.Type))
	}
	if in.Algorithm == "" {
		in.Algorithm = routing.AlgorithmGreedy
	}
	if in.MaxDistanceKm != nil && *in.MaxDistanceKm <= 0 {
		return apperrors.NewValidationError("max_distance_km", "must be positive")
	}
	if in.MaxDurationMinutes != nil && *in.MaxDurationMinutes <= 0 {
		return apperrors.NewValidationError("max_duration_minutes", "must be positive")
	}
	return nil
}

func (in *OptimizeInput) request() routing.Request {
	return routing.Request{
		Algorithm:          in.Algorithm,
		Type:               in.Type,
		Start:              in.Start,
		End:                in.End,
		Waypoints:          in.Waypoints,
		MaxDistanceKm:      in.MaxDistanceKm,
		MaxDurationMinutes: in.MaxDurationMinutes,
		AvoidTolls:         in.AvoidTolls,
		AvoidHighways:      in.AvoidHighways,
	}
}

// PromoteInput names the route to create from an optimization
type PromoteInput struct {
	OptimizationID string
	Name           string
	StartLocation  string
	EndLocation    string
}

// RouteService runs optimizations, records them and promotes them to named routes
type RouteService struct {
	store     repository.Store
	optimizer *routing.Optimizer
	logger    logger.Logger
	now       func() time.Time
}

// NewRouteService creates a new RouteService
func NewRouteService(store repository.Store, optimizer *routing.Optimizer, logger logger.Logger) *RouteService {
	return &RouteService{
		store:     store,
		optimizer: optimizer,
		logger:    logger,
		now:       models.GetCurrentTime,
	}
}

// Optimize runs one optimization and records it. A computation that fails is
// recorded with its error and returned without an error.
func (s *RouteService) Optimize(ctx context.Context, in OptimizeInput) (o *models.RouteOptimization, err error) {
	defer logger.Time(ctx, s.logger, "route.Optimize")(&err)

	if err = s.prepare(ctx, &in); err != nil {
		return nil, err
	}

	res := s.optimizer.Optimize(ctx, in.request())

	return s.record(ctx, in, res)
}

// OptimizeBatch runs several optimizations concurrently and records them in
// one transaction. A request naming an unknown vehicle or failing validation
// comes back as an unrecorded entry carrying its error; the rest still run.
func (s *RouteService) OptimizeBatch(ctx context.Context, inputs []OptimizeInput) (out []*models.RouteOptimization, err error) {
	defer logger.Time(ctx, s.logger, "route.OptimizeBatch")(&err)

	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("requests", "at least one request is required")
	}

	out = make([]*models.RouteOptimization, len(inputs))
	accepted := make([]int, 0, len(inputs))
	reqs := make([]routing.Request, 0, len(inputs))

	for i := range inputs {
		if err = s.prepare(ctx, &inputs[i]); err != nil {
			if !apperrors.IsValidation(err) && !apperrors.IsNotFound(err) {
				return nil, err
			}
			out[i] = rejected(inputs[i], err)
			continue
		}
		accepted = append(accepted, i)
		reqs = append(reqs, inputs[i].request())
	}

	if len(accepted) == 0 {
		return out, nil
	}

	results := s.optimizer.OptimizeBatch(ctx, reqs)

	records := make([]*models.RouteOptimization, len(results))
	for j, res := range results {
		if records[j], err = s.build(inputs[accepted[j]], res); err != nil {
			return nil, err
		}
	}

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		for _, o := range records {
			if err := tx.CreateOptimization(ctx, o); err != nil {
				return translate(err, "route optimization", o.OptimizationID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for j, o := range records {
		out[accepted[j]] = o
	}

	s.logger.Info("Route optimization batch recorded",
		"requested", len(inputs),
		"recorded", len(records))

	return out, nil
}

// rejected describes a batch entry that never reached the optimizer
func rejected(in OptimizeInput, err error) *models.RouteOptimization {
	msg := err.Error()
	return &models.RouteOptimization{
		TransporterID:    in.TransporterID,
		VehicleID:        in.VehicleID,
		OptimizationType: in.Type,
		Algorithm:        string(in.Algorithm),
		ProcessingError:  &msg,
	}
}

// Compare runs every algorithm over the same input without recording anything
func (s *RouteService) Compare(ctx context.Context, in OptimizeInput) (map[routing.Algorithm]*routing.Result, error) {
	if in.Type == "" {
		in.Type = models.OptimizeDistance
	}
	if !in.Type.IsValid() {
		return nil, apperrors.NewValidationError("optimization_type", fmt.Sprintf("unknown type %q", in.Type))
	}

	return s.optimizer.Compare(ctx, in.request()), nil
}

func (s *RouteService) prepare(ctx context.Context, in *OptimizeInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	vehicle, err := s.store.GetVehicle(ctx, in.VehicleID)
	if err != nil {
		return translate(err, "vehicle", in.VehicleID)
	}

	if in.TransporterID == "" {
		in.TransporterID = vehicle.CarrierID
	}
	if in.TransporterID != vehicle.CarrierID {
		return apperrors.NewValidationError("vehicle_id",
			fmt.Sprintf("vehicle %s does not belong to transporter %s", vehicle.ID, in.TransporterID))
	}

	return nil
}

func (s *RouteService) record(ctx context.Context, in OptimizeInput, res *routing.Result) (*models.RouteOptimization, error) {
	o, err := s.build(in, res)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		return tx.CreateOptimization(ctx, o)
	})
	if err != nil {
		return nil, translate(err, "route optimization", o.OptimizationID)
	}

	s.logger.Info("Route optimization recorded",
		"optimization_id", o.OptimizationID,
		"algorithm", o.Algorithm,
		"success", res.Success)

	return o, nil
}

func (s *RouteService) build(in OptimizeInput, res *routing.Result) (*models.RouteOptimization, error) {
	o := &models.RouteOptimization{
		OptimizationID:        models.GenerateID("OPT"),
		TransporterID:         in.TransporterID,
		VehicleID:             in.VehicleID,
		OptimizationType:      in.Type,
		Algorithm:             string(res.Algorithm),
		AvoidTollRoads:        in.AvoidTolls,
		AvoidHighways:         in.AvoidHighways,
		MaxDistanceKm:         in.MaxDistanceKm,
		MaxDurationMinutes:    in.MaxDurationMinutes,
		ProcessingTimeSeconds: res.ProcessingTime.Seconds(),
		IsProcessed:           true,
		Warnings:              append([]string{}, res.Warnings...),
		CreatedAt:             s.now(),
	}

	waypoints := in.Waypoints
	if waypoints == nil {
		waypoints = []geo.Coordinate{}
	}
	windows := in.DeliveryWindows
	if len(windows) == 0 {
		windows = json.RawMessage("[]")
	}

	sequence, order := res.Sequence, res.Order
	if sequence == nil {
		sequence, order = []geo.Coordinate{}, []int{}
	}

	var err error
	encode := func(v interface{}) types.JSONText {
		if err != nil {
			return nil
		}
		var out types.JSONText
		out, err = models.EncodeJSON(v)
		return out
	}

	o.StartLocation = encode(in.Start)
	o.EndLocation = encode(in.End)
	o.Waypoints = encode(waypoints)
	o.DeliveryWindows = encode(windows)
	o.OptimizedRoute = encode(sequence)
	o.VisitOrder = encode(order)
	if err != nil {
		return nil, apperrors.NewInternalError(err.Error())
	}

	if res.Success {
		distance := res.TotalDistanceKm
		duration := res.TotalDurationMinutes
		fuel := res.EstimatedFuelCost
		o.TotalDistanceKm = &distance
		o.TotalDurationMinutes = &duration
		o.EstimatedFuelCost = &fuel
	} else {
		msg := res.Error
		o.ProcessingError = &msg
	}

	return o, nil
}

// GetOptimization retrieves a recorded optimization
func (s *RouteService) GetOptimization(ctx context.Context, optimizationID string) (*models.RouteOptimization, error) {
	o, err := s.store.GetOptimization(ctx, optimizationID)
	if err != nil {
		return nil, translate(err, "route optimization", optimizationID)
	}
	return o, nil
}

// Promote turns a successful optimization into a reusable named route. Each
// optimization can be promoted once.
func (s *RouteService) Promote(ctx context.Context, in PromoteInput) (route *models.Route, err error) {
	defer logger.Time(ctx, s.logger, "route.Promote")(&err)

	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		o, err := tx.GetOptimizationForUpdate(ctx, in.OptimizationID)
		if err != nil {
			return translate(err, "route optimization", in.OptimizationID)
		}

		if !o.IsProcessed || o.ProcessingError != nil || o.TotalDistanceKm == nil {
			return apperrors.NewValidationError("optimization_id", "only successful optimizations can be promoted")
		}
		if o.IsUsed {
			return apperrors.NewConflictError(fmt.Sprintf("optimization %s was already promoted", o.OptimizationID))
		}

		start, err := models.DecodeCoordinate(o.StartLocation)
		if err != nil || start == nil {
			return apperrors.NewInternalError(fmt.Sprintf("optimization %s has no usable start", o.OptimizationID))
		}
		end, err := models.DecodeCoordinate(o.EndLocation)
		if err != nil || end == nil {
			return apperrors.NewInternalError(fmt.Sprintf("optimization %s has no usable end", o.OptimizationID))
		}

		factors, err := models.EncodeJSON(models.OptimizationFactors{
			Type:          o.OptimizationType,
			AvoidTolls:    o.AvoidTollRoads,
			AvoidHighways: o.AvoidHighways,
		})
		if err != nil {
			return apperrors.NewInternalError(err.Error())
		}

		duration := 0
		if o.TotalDurationMinutes != nil {
			duration = *o.TotalDurationMinutes
		}

		route = &models.Route{
			RouteID:                  models.GenerateID("RTE"),
			Name:                     in.Name,
			TransporterID:            o.TransporterID,
			VehicleID:                o.VehicleID,
			StartLocation:            in.StartLocation,
			StartLatitude:            start.Latitude,
			StartLongitude:           start.Longitude,
			EndLocation:              in.EndLocation,
			EndLatitude:              end.Latitude,
			EndLongitude:             end.Longitude,
			Waypoints:                o.OptimizedRoute,
			TotalDistanceKm:          *o.TotalDistanceKm,
			EstimatedDurationMinutes: duration,
			OptimizationAlgorithm:    o.Algorithm,
			OptimizationFactors:      factors,
			SourceOptimizationID:     o.OptimizationID,
			IsActive:                 true,
			CreatedAt:                s.now(),
		}

		if err := tx.CreateRoute(ctx, route); err != nil {
			return translate(err, "route", route.RouteID)
		}
		if err := tx.MarkOptimizationUsed(ctx, o.OptimizationID, route.RouteID); err != nil {
			return translate(err, "route optimization", o.OptimizationID)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("Route promoted", "route_id", route.RouteID, "optimization_id", in.OptimizationID)
	return route, nil
}

// GetRoute retrieves a named route
func (s *RouteService) GetRoute(ctx context.Context, routeID string) (*models.Route, error) {
	r, err := s.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, translate(err, "route", routeID)
	}
	return r, nil
}
