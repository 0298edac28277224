package routing

import (
	"context"
	"math"
	"testing"

	"github.com/vaidashi/dispatch-engine/pkg/geo"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
)

func pt(lat, lng float64) geo.Coordinate { return geo.Coordinate{Latitude: lat, Longitude: lng} }

func ptr(c geo.Coordinate) *geo.Coordinate { return &c }

func scenario(alg Algorithm) Request {
	return Request{
		Algorithm: alg,
		Start:     ptr(pt(0, 0)),
		End:       ptr(pt(0, 11)),
		Waypoints: []geo.Coordinate{pt(0, 10), pt(0, 1), pt(0, 5)},
	}
}

func newOptimizer() *Optimizer {
	return NewOptimizer(2, logger.NewNop())
}

func TestGreedyVisitsNearestFirst(t *testing.T) {
	res := newOptimizer().Optimize(context.Background(), scenario(AlgorithmGreedy))
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}

	want := []geo.Coordinate{pt(0, 1), pt(0, 5), pt(0, 10)}
	for i := range want {
		if res.Sequence[i] != want[i] {
			t.Fatalf("sequence[%d] = %v, want %v", i, res.Sequence[i], want[i])
		}
	}
	if got := res.Order; got[0] != 1 || got[1] != 2 || got[2] != 0 {
		t.Fatalf("order = %v, want [1 2 0]", got)
	}

	wantDistance := geo.DistanceKm(pt(0, 0), pt(0, 11))
	if math.Abs(res.TotalDistanceKm-wantDistance) > 1e-6 {
		t.Fatalf("TotalDistanceKm = %.6f, want %.6f", res.TotalDistanceKm, wantDistance)
	}
	if res.TotalDurationMinutes != int(math.Round(wantDistance*2)) {
		t.Fatalf("TotalDurationMinutes = %d", res.TotalDurationMinutes)
	}
	if math.Abs(res.EstimatedFuelCost-wantDistance*12) > 1e-6 {
		t.Fatalf("EstimatedFuelCost = %.4f", res.EstimatedFuelCost)
	}
}

func TestBasicKeepsInputOrder(t *testing.T) {
	res := newOptimizer().Optimize(context.Background(), scenario(AlgorithmBasic))
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	for i, idx := range res.Order {
		if idx != i {
			t.Fatalf("order = %v, want identity", res.Order)
		}
	}

	want := geo.PathDistanceKm(pt(0, 0), pt(0, 10), pt(0, 1), pt(0, 5), pt(0, 11))
	if math.Abs(res.TotalDistanceKm-want) > 1e-6 {
		t.Fatalf("TotalDistanceKm = %.4f, want %.4f", res.TotalDistanceKm, want)
	}
}

func TestGreedyNoWorseThanBasic(t *testing.T) {
	o := newOptimizer()
	basic := o.Optimize(context.Background(), scenario(AlgorithmBasic))
	greedy := o.Optimize(context.Background(), scenario(AlgorithmGreedy))

	if greedy.TotalDistanceKm > basic.TotalDistanceKm {
		t.Fatalf("greedy %.2f km longer than basic %.2f km", greedy.TotalDistanceKm, basic.TotalDistanceKm)
	}
}

func TestDijkstraAndUnknownFallBackToBasic(t *testing.T) {
	o := newOptimizer()
	basic := o.Optimize(context.Background(), scenario(AlgorithmBasic))

	for _, alg := range []Algorithm{AlgorithmDijkstra, Algorithm("genetic")} {
		res := o.Optimize(context.Background(), scenario(alg))
		if !res.Success {
			t.Fatalf("%s: expected success, got %q", alg, res.Error)
		}
		if res.TotalDistanceKm != basic.TotalDistanceKm {
			t.Fatalf("%s: distance %.4f, want basic %.4f", alg, res.TotalDistanceKm, basic.TotalDistanceKm)
		}
	}

	if got := o.Optimize(context.Background(), scenario("genetic")).Algorithm; got != AlgorithmBasic {
		t.Fatalf("unknown algorithm resolved to %s, want basic", got)
	}
	if got := o.Optimize(context.Background(), scenario(AlgorithmDijkstra)).Algorithm; got != AlgorithmDijkstra {
		t.Fatalf("dijkstra label not preserved, got %s", got)
	}
}

func TestOptimizeIsDeterministic(t *testing.T) {
	o := newOptimizer()
	for _, alg := range Algorithms {
		a := o.Optimize(context.Background(), scenario(alg))
		b := o.Optimize(context.Background(), scenario(alg))

		if a.TotalDistanceKm != b.TotalDistanceKm || len(a.Sequence) != len(b.Sequence) {
			t.Fatalf("%s: runs differ", alg)
		}
		for i := range a.Sequence {
			if a.Sequence[i] != b.Sequence[i] {
				t.Fatalf("%s: sequence differs at %d", alg, i)
			}
		}
	}
}

func TestGreedyTieKeepsInputOrder(t *testing.T) {
	req := Request{
		Algorithm: AlgorithmGreedy,
		Start:     ptr(pt(0, 0)),
		End:       ptr(pt(0, 0)),
		Waypoints: []geo.Coordinate{pt(0, 1), pt(0, -1)},
	}

	res := newOptimizer().Optimize(context.Background(), req)
	if res.Order[0] != 0 {
		t.Fatalf("tie should pick the first waypoint, order = %v", res.Order)
	}
}

func TestOptimizeFailures(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"missing start", Request{End: ptr(pt(0, 1))}},
		{"missing end", Request{Start: ptr(pt(0, 1))}},
		{"nan waypoint", Request{Start: ptr(pt(0, 0)), End: ptr(pt(0, 1)), Waypoints: []geo.Coordinate{pt(math.NaN(), 0)}}},
		{"infinite start", Request{Start: ptr(pt(math.Inf(1), 0)), End: ptr(pt(0, 1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newOptimizer().Optimize(context.Background(), tt.req)
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Error == "" {
				t.Fatal("expected an error message")
			}
			if res.TotalDistanceKm != 0 || res.Sequence != nil {
				t.Fatalf("failed result must not carry distances: %+v", res)
			}
		})
	}
}

func TestConstraintsProduceWarnings(t *testing.T) {
	req := scenario(AlgorithmGreedy)
	maxKm := 100.0
	maxMin := 60
	req.MaxDistanceKm = &maxKm
	req.MaxDurationMinutes = &maxMin

	res := newOptimizer().Optimize(context.Background(), req)
	if !res.Success {
		t.Fatalf("constraints must not fail the route: %q", res.Error)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected distance and duration warnings, got %v", res.Warnings)
	}
}

func TestOptimizeBatchKeepsRequestOrder(t *testing.T) {
	reqs := []Request{scenario(AlgorithmGreedy), {Algorithm: AlgorithmBasic}, scenario(AlgorithmBasic)}

	results := newOptimizer().OptimizeBatch(context.Background(), reqs)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Fatalf("unexpected success flags: %v %v %v", results[0].Success, results[1].Success, results[2].Success)
	}
	if results[0].Algorithm != AlgorithmGreedy || results[2].Algorithm != AlgorithmBasic {
		t.Fatal("results out of order")
	}
}

func TestOptimizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if res := newOptimizer().Optimize(ctx, scenario(AlgorithmGreedy)); res.Success {
		t.Fatal("expected cancelled context to fail the run")
	}
}

func TestCompareRunsEveryAlgorithm(t *testing.T) {
	out := newOptimizer().Compare(context.Background(), scenario("ignored"))
	for _, a := range Algorithms {
		res, ok := out[a]
		if !ok || !res.Success || res.Algorithm != a {
			t.Fatalf("missing or failed result for %s: %+v", a, res)
		}
	}
	if out[AlgorithmGreedy].TotalDistanceKm > out[AlgorithmBasic].TotalDistanceKm {
		t.Fatal("greedy should not be longer than basic here")
	}
}
