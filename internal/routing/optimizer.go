// Package routing sequences multi-stop routes and totals their distance, duration and fuel.
package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	// MinutesPerKm is the fixed travel-time heuristic
	MinutesPerKm = 2.0
	// FuelCostPerKm is the flat fuel cost estimate
	FuelCostPerKm = 12.00
)

// Request describes one optimization run
type Request struct {
	Algorithm          Algorithm               `json:"algorithm"`
	Type               models.OptimizationType `json:"optimization_type"`
	Start              *geo.Coordinate         `json:"start"`
	End                *geo.Coordinate         `json:"end"`
	Waypoints          []geo.Coordinate        `json:"waypoints"`
	MaxDistanceKm      *float64                `json:"max_distance_km,omitempty"`
	MaxDurationMinutes *int                    `json:"max_duration_minutes,omitempty"`
	AvoidTolls         bool                    `json:"avoid_tolls"`
	AvoidHighways      bool                    `json:"avoid_highways"`
}

// Result is the outcome of a run. When Success is false only Error,
// Algorithm and ProcessingTime are meaningful.
type Result struct {
	Success              bool             `json:"success"`
	Error                string           `json:"error,omitempty"`
	Algorithm            Algorithm        `json:"algorithm"`
	Sequence             []geo.Coordinate `json:"sequence,omitempty"`
	Order                []int            `json:"order,omitempty"`
	TotalDistanceKm      float64          `json:"total_distance_km"`
	TotalDurationMinutes int              `json:"total_duration_minutes"`
	EstimatedFuelCost    float64          `json:"estimated_fuel_cost"`
	Warnings             []string         `json:"warnings,omitempty"`
	ProcessingTime       time.Duration    `json:"processing_time"`
}

// Optimizer runs routing strategies. It holds no per-run state.
type Optimizer struct {
	strategies       map[Algorithm]Strategy
	batchConcurrency int
	logger           logger.Logger
}

// NewOptimizer creates an Optimizer. batchConcurrency bounds OptimizeBatch.
func NewOptimizer(batchConcurrency int, logger logger.Logger) *Optimizer {
	if batchConcurrency <= 0 {
		batchConcurrency = 1
	}
	return &Optimizer{
		strategies:       defaultStrategies(),
		batchConcurrency: batchConcurrency,
		logger:           logger,
	}
}

// Resolve maps an algorithm name to the one that will actually run.
// Unrecognized names run as basic.
func (o *Optimizer) Resolve(a Algorithm) Algorithm {
	if _, ok := o.strategies[a]; ok {
		return a
	}
	return AlgorithmBasic
}

// Optimize sequences the request's waypoints and computes totals.
func (o *Optimizer) Optimize(ctx context.Context, req Request) *Result {
	start := time.Now()
	algorithm := o.Resolve(req.Algorithm)

	res := o.run(ctx, algorithm, req)
	res.Algorithm = algorithm
	res.ProcessingTime = time.Since(start)

	if !res.Success {
		o.logger.Warn("Route optimization failed", "algorithm", algorithm, "error", res.Error)
	} else {
		o.logger.Debug("Route optimized",
			"algorithm", algorithm,
			"waypoints", len(req.Waypoints),
			"distance_km", res.TotalDistanceKm,
			"duration", res.ProcessingTime)
	}

	return res
}

func (o *Optimizer) run(ctx context.Context, algorithm Algorithm, req Request) *Result {
	if err := ctx.Err(); err != nil {
		return failed(err.Error())
	}
	if req.Start == nil {
		return failed("start location is required")
	}
	if req.End == nil {
		return failed("end location is required")
	}
	if !req.Start.IsFinite() || !req.End.IsFinite() {
		return failed("start and end coordinates must be finite")
	}
	for i, wp := range req.Waypoints {
		if !wp.IsFinite() {
			return failed(fmt.Sprintf("waypoint %d has non-finite coordinates", i))
		}
	}

	order := o.strategies[algorithm].Order(*req.Start, *req.End, req.Waypoints)

	sequence := make([]geo.Coordinate, len(order))
	for i, idx := range order {
		sequence[i] = req.Waypoints[idx]
	}

	path := make([]geo.Coordinate, 0, len(sequence)+2)
	path = append(path, *req.Start)
	path = append(path, sequence...)
	path = append(path, *req.End)

	distance := geo.PathDistanceKm(path...)

	res := &Result{
		Success:              true,
		Sequence:             sequence,
		Order:                order,
		TotalDistanceKm:      distance,
		TotalDurationMinutes: int(math.Round(distance * MinutesPerKm)),
		EstimatedFuelCost:    distance * FuelCostPerKm,
	}

	if req.MaxDistanceKm != nil && distance > *req.MaxDistanceKm {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("total distance %.2f km exceeds limit of %.2f km", distance, *req.MaxDistanceKm))
	}
	if req.MaxDurationMinutes != nil && res.TotalDurationMinutes > *req.MaxDurationMinutes {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("total duration %d min exceeds limit of %d min", res.TotalDurationMinutes, *req.MaxDurationMinutes))
	}
	if req.AvoidTolls || req.AvoidHighways {
		res.Warnings = append(res.Warnings, "road preferences are recorded but not applied to straight-line routing")
	}

	return res
}

func failed(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

// OptimizeBatch runs every request concurrently, at most batchConcurrency at a time.
// Results are returned in request order.
func (o *Optimizer) OptimizeBatch(ctx context.Context, reqs []Request) []*Result {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchConcurrency)

	for i := range reqs {
		g.Go(func() error {
			results[i] = o.Optimize(gctx, reqs[i])
			return nil
		})
	}

	// Optimize reports failures in the result, so Wait never returns an error.
	_ = g.Wait()

	return results
}

// Compare runs every algorithm over the same input.
func (o *Optimizer) Compare(ctx context.Context, req Request) map[Algorithm]*Result {
	reqs := make([]Request, len(Algorithms))
	for i, a := range Algorithms {
		reqs[i] = req
		reqs[i].Algorithm = a
	}

	results := o.OptimizeBatch(ctx, reqs)

	out := make(map[Algorithm]*Result, len(Algorithms))
	for i, a := range Algorithms {
		out[a] = results[i]
	}
	return out
}
