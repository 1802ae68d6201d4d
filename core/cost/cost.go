// Package cost provides the edge cost strategies minimised by the matching
// engine among all maximum matchings.
package cost

import (
	"fmt"

	"github.com/kilianp07/rotaplan/core/factory"
	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/model"
)

// Chain is the partial rotation ending at the predecessor trip of a connection.
type Chain struct {
	Trips []model.Trip
	Links []model.Link
}

// Last returns the final trip of the chain.
func (c Chain) Last() model.Trip { return c.Trips[len(c.Trips)-1] }

// Rotation wraps the chain as a rotation of the given fuel.
func (c Chain) Rotation(fuel model.FuelType) model.Rotation {
	return model.Rotation{VehicleType: c.Last().VehicleType, Trips: c.Trips, Links: c.Links, FuelType: fuel}
}

// Extend returns the chain with b appended through link. The receiver is not modified.
func (c Chain) Extend(b model.Trip, link model.Link) Chain {
	trips := make([]model.Trip, len(c.Trips), len(c.Trips)+1)
	copy(trips, c.Trips)
	links := make([]model.Link, len(c.Links), len(c.Links)+1)
	copy(links, c.Links)
	return Chain{Trips: append(trips, b), Links: append(links, link)}
}

// Function scores a feasible connection from the last trip of chain to b.
type Function interface {
	Name() string
	Cost(chain Chain, b model.Trip, link model.Link) float64
	// StateDependent reports whether Cost looks further back than the last trip.
	StateDependent() bool
}

// Options carries the run-level dependencies a strategy may need.
type Options struct {
	Finance *finance.Model
	// Fuel is assumed for deadhead pricing before fuel tags are assigned.
	Fuel model.FuelType
}

// Constructor builds a Function once run-level dependencies are known.
type Constructor func(Options) (Function, error)

var registry = factory.NewRegistry[Constructor]()

// Register adds a cost strategy under name.
func Register(name string, f factory.Factory[Constructor]) error {
	return registry.Register(name, f)
}

// New creates the strategy described by cfg.
func New(cfg factory.ModuleConfig, opts Options) (Function, error) {
	if cfg.Type == "" {
		cfg.Type = "time"
	}
	ctor, err := registry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("cost strategy: %w", err)
	}
	return ctor(opts)
}

// Names lists the registered strategies.
func Names() []string { return registry.Names() }

func init() {
	_ = Register("time", func(conf map[string]any) (Constructor, error) {
		var c struct {
			DeadheadWeight float64 `json:"deadhead_weight"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(Options) (Function, error) {
			return TimeBased{DeadheadWeight: c.DeadheadWeight}, nil
		}, nil
	})
	_ = Register("profit", func(map[string]any) (Constructor, error) {
		return func(o Options) (Function, error) {
			return NewProfitBased(o.Finance, o.Fuel)
		}, nil
	})
}
