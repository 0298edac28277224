package routing

import (
	"github.com/vaidashi/dispatch-engine/pkg/geo"
)

// Algorithm names a sequencing strategy
type Algorithm string

const (
	AlgorithmBasic    Algorithm = "basic"
	AlgorithmGreedy   Algorithm = "greedy"
	AlgorithmDijkstra Algorithm = "dijkstra"
)

// Algorithms lists every strategy in a stable order.
var Algorithms = []Algorithm{AlgorithmBasic, AlgorithmGreedy, AlgorithmDijkstra}

// Strategy decides the order in which waypoints are visited.
// It returns a permutation of indices into waypoints.
type Strategy interface {
	Order(start, end geo.Coordinate, waypoints []geo.Coordinate) []int
}

// StrategyFunc adapts a function to Strategy
type StrategyFunc func(start, end geo.Coordinate, waypoints []geo.Coordinate) []int

func (f StrategyFunc) Order(start, end geo.Coordinate, waypoints []geo.Coordinate) []int {
	return f(start, end, waypoints)
}

// Sequential visits waypoints in the order given.
func Sequential(_, _ geo.Coordinate, waypoints []geo.Coordinate) []int {
	order := make([]int, len(waypoints))
	for i := range order {
		order[i] = i
	}
	return order
}

// NearestNeighbor repeatedly moves to the closest unvisited waypoint.
// On equal distances the earlier waypoint wins.
func NearestNeighbor(start, _ geo.Coordinate, waypoints []geo.Coordinate) []int {
	visited := make([]bool, len(waypoints))
	order := make([]int, 0, len(waypoints))
	current := start

	for len(order) < len(waypoints) {
		next := -1
		best := 0.0

		for i, wp := range waypoints {
			if visited[i] {
				continue
			}
			d := geo.DistanceKm(current, wp)
			if next == -1 || d < best {
				next, best = i, d
			}
		}

		visited[next] = true
		order = append(order, next)
		current = waypoints[next]
	}

	return order
}

// defaultStrategies maps algorithm names to implementations. Dijkstra has no
// road graph to search, so it sequences like basic.
func defaultStrategies() map[Algorithm]Strategy {
	return map[Algorithm]Strategy{
		AlgorithmBasic:    StrategyFunc(Sequential),
		AlgorithmGreedy:   StrategyFunc(NearestNeighbor),
		AlgorithmDijkstra: StrategyFunc(Sequential),
	}
}
