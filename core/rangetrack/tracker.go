// Package rangetrack keeps chains of trips within the range of their vehicle
// by inserting refuel or charge stops into idle windows, and assigns fuel
// types to finished rotations.
package rangetrack

import (
	"fmt"

	"github.com/kilianp07/rotaplan/core/logger"
	"github.com/kilianp07/rotaplan/core/model"
)

// Plan is the outcome of walking a chain against a profile.
type Plan struct {
	Events []model.EnergyEvent
	// Opportunities counts idle windows long enough for a fast charge.
	Opportunities int
	// FailAt is the index of the first link that could not be kept in range,
	// -1 when the first trip alone exceeds the range. Only meaningful when
	// the plan is infeasible.
	FailAt int
}

// Tracker evaluates range feasibility. It holds no per-chain state and is
// safe for concurrent use.
type Tracker struct {
	cfg      Config
	stations StationLookup
	log      logger.Logger
}

// New builds a tracker. A nil station lookup means no refuel opportunities.
func New(cfg Config, stations StationLookup, log logger.Logger) (*Tracker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("range config: %w", err)
	}
	return &Tracker{cfg: cfg, stations: stations, log: logger.OrNop(log)}, nil
}

// Constrains reports whether matching must respect a range for the vehicle type.
func (t *Tracker) Constrains(vehicleType string) bool {
	_, ok := t.cfg.Profiles[vehicleType]
	return ok
}

// Plan walks a chain with the matching profile of its vehicle type. Types
// without profile are always feasible.
func (t *Tracker) Plan(vehicleType string, trips []model.Trip, links []model.Link) (Plan, bool) {
	p, ok := t.cfg.Profiles[vehicleType]
	if !ok {
		return Plan{}, true
	}
	return t.PlanWith(p, trips, links)
}

// PlanWith walks the chain keeping the remaining range. When the next leg
// (deadhead plus trip) does not fit, it looks for a stop in the idle window;
// if none restores enough range the chain is infeasible at that link.
func (t *Tracker) PlanWith(p Profile, trips []model.Trip, links []model.Link) (Plan, bool) {
	plan := Plan{FailAt: -1}
	if len(trips) == 0 {
		return plan, true
	}
	remaining := p.RangeKM - trips[0].DistanceKM
	if remaining < 0 {
		return plan, false
	}
	for i, link := range links {
		a, b := trips[i], trips[i+1]
		if t.chargeOpportunity(a, link) {
			plan.Opportunities++
		}
		need := link.DeadheadKM + b.DistanceKM
		if remaining-need >= 0 {
			remaining -= need
			continue
		}
		ev, refilled, ok := t.refill(p, i, a, link, remaining)
		if !ok || refilled-need < 0 {
			plan.FailAt = i
			return plan, false
		}
		plan.Events = append(plan.Events, ev)
		remaining = refilled - need
	}
	return plan, true
}

// refill picks the stop near a's destination that leaves the most range
// after driving back. Stations are tried nearest first so ties keep the
// closest one.
func (t *Tracker) refill(p Profile, idx int, a model.Trip, link model.Link, remaining float64) (model.EnergyEvent, float64, bool) {
	if t.stations == nil {
		return model.EnergyEvent{}, 0, false
	}
	available := link.Idle - link.Deadhead
	var best model.EnergyEvent
	bestRange, found := 0.0, false
	for _, s := range t.stations.Nearby(a.Destination) {
		atStation := remaining - s.DistanceKM
		if atStation < 0 {
			continue
		}
		var ev model.EnergyEvent
		var after float64
		switch {
		case p.Energy == Fuel && !s.Charger():
			stop := t.cfg.refuelTime()
			if stop+2*s.DriveTime > available {
				continue
			}
			ev = model.EnergyEvent{Kind: model.EventRefuel, Duration: stop}
			after = p.RangeKM
		case p.Energy == Electric && s.Charger():
			stop := available - 2*s.DriveTime
			if stop < t.cfg.minCharge() {
				continue
			}
			kwh := stop.Hours() * s.PowerKW * t.cfg.ChargeEfficiency
			after = atStation + kwh/p.ConsumptionKWhPerKM
			if after > p.RangeKM {
				after = p.RangeKM
			}
			ev = model.EnergyEvent{Kind: model.EventCharge, Duration: stop}
		default:
			continue
		}
		after -= s.DistanceKM
		if !found || after > bestRange {
			ev.AfterTrip = idx
			ev.Station = s.Name
			ev.StationKM = s.DistanceKM
			ev.Start = a.Arrival.Add(s.DriveTime)
			ev.AddedKM = after + s.DistanceKM - atStation
			best, bestRange, found = ev, after, true
		}
	}
	return best, bestRange, found
}

// chargeOpportunity reports whether a fast charger near a's destination can
// be used for at least the minimum charge window.
func (t *Tracker) chargeOpportunity(a model.Trip, link model.Link) bool {
	if t.stations == nil {
		return false
	}
	available := link.Idle - link.Deadhead
	for _, s := range t.stations.Nearby(a.Destination) {
		if s.PowerKW >= t.cfg.FastChargeKW && available-2*s.DriveTime >= t.cfg.minCharge() {
			return true
		}
	}
	return false
}

// Verify checks that no stretch between stops exceeds the profile's range,
// counting the drive to and from each station.
func Verify(p Profile, r model.Rotation) error {
	events := make(map[int]model.EnergyEvent, len(r.Events))
	for _, ev := range r.Events {
		events[ev.AfterTrip] = ev
	}
	cum := 0.0
	for i, trip := range r.Trips {
		if i > 0 {
			cum += r.Links[i-1].DeadheadKM
		}
		cum += trip.DistanceKM
		if cum > p.RangeKM+1e-9 {
			return fmt.Errorf("rotation %s exceeds range %.0f km at trip %s (%.1f km)", r.ID, p.RangeKM, trip.ID, cum)
		}
		if ev, ok := events[i]; ok {
			if cum+ev.StationKM > p.RangeKM+1e-9 {
				return fmt.Errorf("rotation %s cannot reach station %s after trip %s", r.ID, ev.Station, trip.ID)
			}
			atStation := p.RangeKM - cum - ev.StationKM
			cum = p.RangeKM - (atStation + ev.AddedKM) + ev.StationKM
		}
	}
	return nil
}
