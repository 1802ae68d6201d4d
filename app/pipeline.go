package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/rotaplan/core/cost"
	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/matching"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/core/reserve"
	"github.com/kilianp07/rotaplan/infra/schedule"
)

// ErrFinanceRequired is returned when a run needs the financial model but no
// financial configuration is present.
var ErrFinanceRequired = errors.New("financial configuration required")

// Inputs are the loaded run inputs. Trips holds the valid trips only.
type Inputs struct {
	Trips      []model.Trip
	Read       int
	Rejections []model.Rejection
	Table      feasibility.Matrix
	Stations   []rangetrack.Station
	Reserves   []reserve.Requirement
	Warnings   []string
}

// LoadInputs reads the configured input files. tripsPath overrides the
// configured trips file when set. Invalid trips are rejected and reported;
// the valid remainder is kept.
func (s *Service) LoadInputs(tripsPath string) (Inputs, error) {
	ic := s.cfg.Inputs
	if tripsPath == "" {
		tripsPath = ic.Trips
	}
	if tripsPath == "" {
		return Inputs{}, errors.New("no trips file configured")
	}
	loc, err := ic.Location()
	if err != nil {
		return Inputs{}, err
	}
	clock := schedule.Clock{Location: loc}

	trips, rejected, err := schedule.LoadTrips(tripsPath, clock)
	if err != nil {
		return Inputs{}, fmt.Errorf("load trips: %w", err)
	}
	valid, invalid := model.FilterValid(trips)
	in := Inputs{
		Trips:      valid,
		Read:       len(trips) + len(rejected),
		Rejections: append(rejected, invalid...),
	}
	for _, r := range in.Rejections {
		s.log.Warnf("trip %s rejected: %s", r.TripID, r.Reason)
	}
	if len(in.Rejections) > 0 {
		in.Warnings = append(in.Warnings, fmt.Sprintf("%d trips rejected", len(in.Rejections)))
	}

	if ic.TravelTable != "" {
		m, err := schedule.LoadTravelTable(ic.TravelTable)
		if err != nil {
			return Inputs{}, fmt.Errorf("load travel table: %w", err)
		}
		in.Table = m
	} else {
		msg := "no travel table: only same-location connections are feasible"
		s.log.Warnf("%s", msg)
		in.Warnings = append(in.Warnings, msg)
	}
	if ic.Stations != "" {
		if in.Stations, err = schedule.LoadStations(ic.Stations); err != nil {
			return Inputs{}, fmt.Errorf("load stations: %w", err)
		}
	}
	if ic.Reserves != "" {
		if in.Reserves, err = schedule.LoadReserves(ic.Reserves, clock); err != nil {
			return Inputs{}, fmt.Errorf("load reserves: %w", err)
		}
	}
	s.log.Infof("loaded %d trips (%d valid, %d rejected)", in.Read, len(in.Trips), len(in.Rejections))
	return in, nil
}

// FeasibilityModel builds the connection rules for trips. Turnarounds come
// from the built-in vehicle families, or the timetable when detection is on,
// and are overridden by the configured values.
func (s *Service) FeasibilityModel(trips []model.Trip, table feasibility.Matrix) (feasibility.Model, error) {
	oc := s.cfg.Optimizer
	mode, err := feasibility.ParseMode(oc.Mode)
	if err != nil {
		return feasibility.Model{}, err
	}
	fm := feasibility.Model{
		Mode:              mode,
		Turnaround:        make(map[string]time.Duration),
		DefaultTurnaround: time.Duration(oc.DefaultTurnaroundMinutes) * time.Minute,
		HorizonDays:       oc.HorizonDays,
		ServiceConstraint: oc.ServiceConstraint,
	}
	switch {
	case oc.DetectTurnaround:
		for vt, d := range feasibility.DetectTurnarounds(trips, oc.ServiceConstraint) {
			fm.Turnaround[vt] = d
		}
	case oc.DefaultTurnaroundMinutes == 0:
		for _, vt := range vehicleTypes(trips) {
			fm.Turnaround[vt] = feasibility.DefaultTurnaround(vt)
		}
	}
	for vt, d := range oc.Turnarounds() {
		fm.Turnaround[vt] = d
	}
	if table != nil {
		fm.Table = table
	}
	return fm, nil
}

// financeModel validates the financial configuration against the vehicle
// types of the run. A missing configuration is only an error when required.
func (s *Service) financeModel(trips []model.Trip, required bool) (*finance.Model, error) {
	if s.cfg.Finance == nil {
		if required {
			return nil, fmt.Errorf("%w: set finance, finance_file or finance_defaults", ErrFinanceRequired)
		}
		return nil, nil
	}
	fin, err := finance.New(*s.cfg.Finance)
	if err != nil {
		return nil, err
	}
	if err := fin.Require(vehicleTypes(trips), []model.FuelType{model.FuelDiesel}); err != nil {
		return nil, err
	}
	return fin, nil
}

// requireFuels checks that every fuel actually assigned can be priced.
func requireFuels(fin *finance.Model, rs []model.Rotation) error {
	if fin == nil {
		return nil
	}
	byFuel := make(map[model.FuelType]map[string]bool)
	for _, r := range rs {
		f := finance.FuelOf(r)
		if byFuel[f] == nil {
			byFuel[f] = make(map[string]bool)
		}
		byFuel[f][r.VehicleType] = true
	}
	var errs []error
	for f, types := range byFuel {
		vts := make([]string, 0, len(types))
		for vt := range types {
			vts = append(vts, vt)
		}
		sort.Strings(vts)
		errs = append(errs, fin.Require(vts, []model.FuelType{f}))
	}
	return errors.Join(errs...)
}

// advisor keeps a nil model from turning into a non-nil interface.
func advisor(fin *finance.Model) rangetrack.FuelAdvisor {
	if fin == nil {
		return nil
	}
	return fin
}

func vehicleTypes(trips []model.Trip) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range trips {
		if !seen[t.VehicleType] {
			seen[t.VehicleType] = true
			out = append(out, t.VehicleType)
		}
	}
	sort.Strings(out)
	return out
}

// planned is a matched and fuel-tagged rotation set.
type planned struct {
	engine    *matching.Engine
	tracker   *rangetrack.Tracker
	fin       *finance.Model
	match     matching.Result
	rotations []model.Rotation
	ze        rangetrack.ZEResult
}

// plan runs the model, matching and fuel stages on trips.
func (s *Service) plan(ctx context.Context, runID string, trips []model.Trip, in Inputs, needFinance bool) (planned, error) {
	var p planned
	var fm feasibility.Model
	var fn cost.Function
	err := s.stage(runID, "model", func() error {
		var err error
		if fm, err = s.FeasibilityModel(trips, in.Table); err != nil {
			return err
		}
		if p.fin, err = s.financeModel(trips, needFinance); err != nil {
			return err
		}
		if fn, err = cost.New(s.cfg.Optimizer.Cost, cost.Options{Finance: p.fin, Fuel: model.FuelDiesel}); err != nil {
			return err
		}
		p.tracker, err = rangetrack.New(s.cfg.Range, rangetrack.NewStationIndex(in.Stations), s.log)
		return err
	})
	if err != nil {
		return planned{}, err
	}

	algo, err := matching.ParseAlgorithm(s.cfg.Optimizer.Algorithm)
	if err != nil {
		return planned{}, err
	}
	p.engine = matching.New(fm, fn, p.tracker, matching.Options{
		Algorithm: algo,
		Workers:   s.cfg.Optimizer.Workers,
		Bus:       s.bus,
	}, s.log)
	err = s.stage(runID, "matching", func() error {
		var err error
		p.match, err = p.engine.Solve(ctx, trips)
		return err
	})
	if err != nil {
		return planned{}, err
	}
	s.log.Infof("matching: %d trips on %d vehicles (%d without range limits), cost %.1f",
		len(trips), p.match.Vehicles, p.match.UnconstrainedVehicles, p.match.Cost)

	err = s.stage(runID, "fuel", func() error {
		p.rotations = model.CloneAll(p.match.Rotations)
		model.AssignIDs(p.rotations)
		p.ze = p.tracker.AssignFuels(p.rotations, advisor(p.fin))
		return requireFuels(p.fin, p.rotations)
	})
	if err != nil {
		return planned{}, err
	}
	return p, nil
}
