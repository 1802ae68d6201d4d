// Package matching chains trips into rotations. The primary objective is the
// minimum number of vehicles (a maximum matching between predecessor and
// successor trips); among all maximum matchings the one of minimum cost under
// the active cost function is selected with successive shortest paths.
package matching

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/rotaplan/core/cost"
	"github.com/kilianp07/rotaplan/core/events"
	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/logger"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/internal/eventbus"
)

// Algorithm selects the chaining strategy.
type Algorithm string

const (
	// SuccessiveShortestPath computes a minimum-cost maximum matching.
	SuccessiveShortestPath Algorithm = "ssp"
	// Greedy assigns trips in departure order to the open rotation with the
	// smallest idle gap.
	Greedy Algorithm = "greedy"
)

// ParseAlgorithm converts a configuration value to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", SuccessiveShortestPath, "min_cost", "mincost":
		return SuccessiveShortestPath, nil
	case Greedy:
		return Greedy, nil
	}
	return "", fmt.Errorf("unknown matching algorithm %q", s)
}

// RangeChecker validates chains against the range of their vehicle type.
type RangeChecker interface {
	Constrains(vehicleType string) bool
	Plan(vehicleType string, trips []model.Trip, links []model.Link) (rangetrack.Plan, bool)
}

// Options tunes the engine.
type Options struct {
	Algorithm Algorithm
	// Workers bounds how many groups are solved concurrently.
	Workers int
	// Bus receives a GroupSolvedEvent per group when set.
	Bus eventbus.EventBus
}

// Result is the outcome of one matching run.
type Result struct {
	Rotations []model.Rotation
	Vehicles  int
	// UnconstrainedVehicles is the minimum vehicle count ignoring range.
	UnconstrainedVehicles int
	// FuelAddedVehicles reports that range constraints forced extra vehicles.
	FuelAddedVehicles bool
	// RangeSplits is the number of vehicles added by range constraints.
	RangeSplits int
	// Rejections counts augmentations refused by the range tracker.
	Rejections int
	// Fallbacks counts shortest path searches replaced by the unweighted
	// search after the relaxation guard tripped.
	Fallbacks int
	Cost      float64
	Groups    int
}

// Engine runs the matching. It is safe for concurrent use when its cost
// function and range checker are.
type Engine struct {
	feas feasibility.Model
	fn   cost.Function
	rng  RangeChecker
	opts Options
	log  logger.Logger
}

// New builds an engine. A nil cost function defaults to the time-based one,
// a nil range checker disables range constraints.
func New(fm feasibility.Model, fn cost.Function, rng RangeChecker, opts Options, log logger.Logger) *Engine {
	if fn == nil {
		fn = cost.TimeBased{}
	}
	if opts.Algorithm == "" {
		opts.Algorithm = SuccessiveShortestPath
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Engine{feas: fm, fn: fn, rng: rng, opts: opts, log: logger.OrNop(log)}
}

// Cost returns the active cost function.
func (e *Engine) Cost() cost.Function { return e.fn }

type groupResult struct {
	rotations     []model.Rotation
	unconstrained int
	rejections    int
	fallbacks     int
	cost          float64
}

// Solve chains the trips. Trips are expected to be valid; groups are solved
// independently and merged in deterministic order.
func (e *Engine) Solve(ctx context.Context, trips []model.Trip) (Result, error) {
	groups := partition(trips, e.feas.Mode)
	results := make([]groupResult, len(groups))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.opts.Workers)
	for i, g := range groups {
		eg.Go(func() error {
			r, err := e.solveGroup(ctx, g)
			if err != nil {
				return fmt.Errorf("group %s: %w", g.key, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Groups: len(groups)}
	for _, r := range results {
		res.Rotations = append(res.Rotations, r.rotations...)
		res.UnconstrainedVehicles += r.unconstrained
		res.Rejections += r.rejections
		res.Fallbacks += r.fallbacks
		res.Cost += r.cost
	}
	model.SortRotations(res.Rotations)
	res.Vehicles = len(res.Rotations)
	res.RangeSplits = res.Vehicles - res.UnconstrainedVehicles
	res.FuelAddedVehicles = res.RangeSplits > 0
	if res.FuelAddedVehicles {
		e.log.Warnf("fuel constraints increased the fleet from %d to %d vehicles", res.UnconstrainedVehicles, res.Vehicles)
	}
	return res, nil
}

func (e *Engine) solveGroup(ctx context.Context, g *group) (groupResult, error) {
	g.connect(e.feas, nil)
	n := len(g.trips)
	size, _ := MaxCardinality(g.adjacency(), n)
	res := groupResult{unconstrained: n - size}

	var rng RangeChecker
	if e.rng != nil && e.rng.Constrains(g.vehicleType) {
		rng = e.rng
		oversize := make(map[int]bool)
		for i, t := range g.trips {
			if _, ok := rng.Plan(g.vehicleType, []model.Trip{t}, nil); !ok {
				e.log.Warnf("trip %s (%.0f km) exceeds the range of %s on its own", t.ID, t.DistanceKM, g.vehicleType)
				oversize[i] = true
			}
		}
		if len(oversize) > 0 {
			g.connect(e.feas, func(i int) bool { return oversize[i] })
		}
	}

	s := newSolver(g, e.fn, rng)
	var err error
	switch e.opts.Algorithm {
	case Greedy:
		err = s.greedy(ctx)
	default:
		err = s.successiveShortestPaths(ctx)
	}
	if err != nil {
		return groupResult{}, err
	}

	res.rotations = s.rotations(e.log)
	res.rejections = s.rejections
	res.fallbacks = s.fallbacks
	res.cost = s.totalCost()
	e.log.Debugw("group solved", map[string]any{
		"group": g.key, "trips": n, "edges": len(g.edges),
		"vehicles": len(res.rotations), "unconstrained": res.unconstrained,
	})
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(events.GroupSolvedEvent{
			Group: g.key, Trips: n, Vehicles: len(res.rotations), Unconstrained: res.unconstrained,
			Rejections: res.rejections, Fallbacks: res.fallbacks,
		})
	}
	return res, nil
}
