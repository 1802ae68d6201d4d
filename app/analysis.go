package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/reserve"
	"github.com/kilianp07/rotaplan/core/runlog"
	"github.com/kilianp07/rotaplan/core/sensitivity"
	"github.com/kilianp07/rotaplan/pkg/export"
)

// ErrNoReserves is returned by Reserve when no requirements are configured.
var ErrNoReserves = errors.New("no reserve requirements configured")

// SensitivityOutcome is the result of a turnaround sweep.
type SensitivityOutcome struct {
	RunID string
	Rows  []sensitivity.Row
	File  string
}

// Sensitivity sweeps the turnaround of every vehicle type and writes the rows
// to sensitivity.csv in dir, or the configured output directory.
func (s *Service) Sensitivity(ctx context.Context, tripsPath, dir string) (*SensitivityOutcome, error) {
	stop := s.collect(ctx)
	defer stop()

	out := &SensitivityOutcome{RunID: s.newID()}
	rec := s.newRecord(out.RunID, "sensitivity")
	err := s.sensitivity(ctx, tripsPath, dir, out, &rec)
	if err2 := s.close(ctx, &rec, err); err == nil {
		err = err2
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) sensitivity(ctx context.Context, tripsPath, dir string, out *SensitivityOutcome, rec *runlog.Record) error {
	var in Inputs
	err := s.stage(out.RunID, "load", func() error {
		var err error
		in, err = s.LoadInputs(tripsPath)
		return err
	})
	if err != nil {
		return err
	}
	rec.Inputs = runlog.Inputs{Trips: in.Read, Valid: len(in.Trips), Rejected: len(in.Rejections)}
	rec.Warnings = append(rec.Warnings, in.Warnings...)

	err = s.stage(out.RunID, "sweep", func() error {
		fm, err := s.FeasibilityModel(in.Trips, in.Table)
		if err != nil {
			return err
		}
		out.Rows, err = sensitivity.Sweep(ctx, fm, in.Trips, s.cfg.Optimizer.Workers)
		return err
	})
	if err != nil {
		return err
	}
	for _, r := range out.Rows {
		if r.Base {
			rec.Vehicles += r.Vehicles
		}
	}

	return s.stage(out.RunID, "export", func() error {
		if dir == "" {
			dir = s.cfg.Output.Dir
		}
		out.File = filepath.Join(dir, "sensitivity.csv")
		rows := out.Rows
		if err := export.WriteFile(out.File, func(w io.Writer) error { return export.WriteSensitivityCSV(w, rows) }); err != nil {
			return fmt.Errorf("write %s: %w", out.File, err)
		}
		return nil
	})
}

// ReserveOptions select how reserve duty is evaluated.
type ReserveOptions struct {
	TripsPath string
	OutDir    string
	// Phantom plans every requirement as a reserve trip instead of matching
	// it to idle windows of the service rotations.
	Phantom bool
}

// ReserveOutcome is the coverage of the reserve requirements.
type ReserveOutcome struct {
	RunID        string
	Report       reserve.Report
	BaseVehicles int
	// Vehicles is the fleet including reserve duty.
	Vehicles   int
	Unassigned []reserve.Requirement
	Rotations  []model.Rotation
	File       string
}

// Reserve plans the service trips and reports how the reserve requirements
// are covered.
func (s *Service) Reserve(ctx context.Context, opts ReserveOptions) (*ReserveOutcome, error) {
	stop := s.collect(ctx)
	defer stop()

	out := &ReserveOutcome{RunID: s.newID()}
	rec := s.newRecord(out.RunID, "reserve")
	err := s.reserve(ctx, opts, out, &rec)
	if err2 := s.close(ctx, &rec, err); err == nil {
		err = err2
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) reserve(ctx context.Context, opts ReserveOptions, out *ReserveOutcome, rec *runlog.Record) error {
	var in Inputs
	err := s.stage(out.RunID, "load", func() error {
		var err error
		in, err = s.LoadInputs(opts.TripsPath)
		return err
	})
	if err != nil {
		return err
	}
	rec.Inputs = runlog.Inputs{Trips: in.Read, Valid: len(in.Trips), Rejected: len(in.Rejections)}
	rec.Warnings = append(rec.Warnings, in.Warnings...)
	if len(in.Reserves) == 0 {
		return ErrNoReserves
	}

	needFinance := s.cfg.Optimizer.Cost.Type == "profit"
	base, err := s.plan(ctx, out.RunID, in.Trips, in, needFinance)
	if err != nil {
		return err
	}
	out.BaseVehicles = len(base.rotations)

	if !opts.Phantom {
		out.Rotations = base.rotations
		out.Report = reserve.Analyze(base.rotations, in.Reserves)
		out.Vehicles = out.BaseVehicles + out.Report.AdditionalVehicles
	} else {
		phantom, unassigned := reserve.PhantomTrips(in.Reserves, in.Trips)
		for _, u := range unassigned {
			msg := fmt.Sprintf("reserve at %s %s has no vehicle type", u.Station, u.Start.Format("2006-01-02 15:04"))
			s.log.Warnf("%s", msg)
			rec.Warnings = append(rec.Warnings, msg)
		}
		trips := append(append([]model.Trip(nil), in.Trips...), phantom...)
		p, err := s.plan(ctx, out.RunID, trips, in, needFinance)
		if err != nil {
			return err
		}
		out.Unassigned = unassigned
		out.Rotations = p.rotations
		out.Vehicles = len(p.rotations)
		out.Report = reserve.PhantomCoverage(in.Reserves, p.rotations)
		out.Report.AdditionalVehicles = max(out.Vehicles-out.BaseVehicles, 0)
	}
	rec.Vehicles = out.Vehicles
	rec.Reserve = &runlog.Reserve{
		Required:   out.Report.Required,
		Covered:    out.Report.Covered,
		Additional: out.Report.AdditionalVehicles,
	}
	s.log.Infof("reserve: %d of %d slots covered, %d additional vehicles",
		out.Report.Covered, out.Report.Required, out.Report.AdditionalVehicles)

	return s.stage(out.RunID, "export", func() error {
		dir := opts.OutDir
		if dir == "" {
			dir = s.cfg.Output.Dir
		}
		out.File = filepath.Join(dir, "reserve.csv")
		rep := out.Report
		if err := export.WriteFile(out.File, func(w io.Writer) error { return export.WriteReserveCSV(w, rep) }); err != nil {
			return fmt.Errorf("write %s: %w", out.File, err)
		}
		return nil
	})
}
