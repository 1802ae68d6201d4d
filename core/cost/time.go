package cost

import (
	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/model"
)

// DefaultDeadheadWeight penalises empty driving over waiting.
const DefaultDeadheadWeight = 2.0

// TimeBased costs a connection in minutes: the idle gap, plus the weighted
// deadhead time when the vehicle has to change location.
type TimeBased struct {
	DeadheadWeight float64
}

func (TimeBased) Name() string         { return "time" }
func (TimeBased) StateDependent() bool { return false }

func (t TimeBased) Cost(chain Chain, b model.Trip, link model.Link) float64 {
	idle := link.Idle.Minutes()
	if feasibility.Normalize(chain.Last().Destination) == feasibility.Normalize(b.Origin) {
		return idle
	}
	w := t.DeadheadWeight
	if w == 0 {
		w = DefaultDeadheadWeight
	}
	return w*link.Deadhead.Minutes() + idle
}
