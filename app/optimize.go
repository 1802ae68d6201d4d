package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/matching"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/core/reserve"
	"github.com/kilianp07/rotaplan/core/runlog"
	"github.com/kilianp07/rotaplan/core/search"
	"github.com/kilianp07/rotaplan/pkg/export"
)

// OptimizeOptions override the configuration for one run.
type OptimizeOptions struct {
	// TripsPath replaces inputs.trips when set.
	TripsPath string
	// Search enables the profit search even when search.enabled is off.
	Search bool
	// Verify certifies the matching cost of small groups with the LP bound.
	Verify bool
	// OutDir replaces output.dir when set.
	OutDir string
}

// Outcome is the result of an optimize run.
type Outcome struct {
	RunID        string
	Inputs       Inputs
	Matching     matching.Result
	Rotations    []model.Rotation
	ZE           rangetrack.ZEResult
	Finance      *finance.Breakdown
	Search       *search.Result
	Reserve      *reserve.Report
	Certificates []matching.Certificate
	Record       runlog.Record
	Files        []string
}

// Optimize runs the full pipeline: load, match, fuel pass, finance, optional
// profit search, reserve analysis and export. Every run is recorded, failed
// ones included.
func (s *Service) Optimize(ctx context.Context, opts OptimizeOptions) (*Outcome, error) {
	stop := s.collect(ctx)
	defer stop()

	out := &Outcome{RunID: s.newID()}
	rec := s.newRecord(out.RunID, "optimize")
	err := s.optimize(ctx, opts, out, &rec)
	if err2 := s.close(ctx, &rec, err); err == nil {
		err = err2
	}
	out.Record = rec
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) optimize(ctx context.Context, opts OptimizeOptions, out *Outcome, rec *runlog.Record) error {
	err := s.stage(out.RunID, "load", func() error {
		var err error
		out.Inputs, err = s.LoadInputs(opts.TripsPath)
		return err
	})
	if err != nil {
		return err
	}
	in := out.Inputs
	rec.Inputs = runlog.Inputs{Trips: in.Read, Valid: len(in.Trips), Rejected: len(in.Rejections)}
	rec.Warnings = append(rec.Warnings, in.Warnings...)
	if len(in.Trips) == 0 {
		return errors.New("no valid trips to plan")
	}

	searching := opts.Search || s.cfg.Search.Enabled
	needFinance := searching || s.cfg.Optimizer.Cost.Type == "profit"
	p, err := s.plan(ctx, out.RunID, in.Trips, in, needFinance)
	if err != nil {
		return err
	}
	out.Matching = p.match
	out.Rotations = p.rotations
	out.ZE = p.ze
	rec.Cost = p.match.Cost
	rec.Unconstrained = p.match.UnconstrainedVehicles
	rec.FuelAdded = p.match.FuelAddedVehicles
	rec.RangeSplits = p.match.RangeSplits
	if p.match.FuelAddedVehicles {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("range constraints added %d vehicles", p.match.RangeSplits))
	}

	if searching {
		err := s.stage(out.RunID, "search", func() error {
			gen, err := search.NewGenerator(s.cfg.Search.Generator, search.Options{Finance: p.fin})
			if err != nil {
				return err
			}
			sr, err := search.New(s.cfg.Search.Config, gen, p.fin, p.tracker, s.bus, s.log)
			if err != nil {
				return err
			}
			res, err := sr.Run(ctx, p.rotations)
			if err != nil {
				return err
			}
			if err := requireFuels(p.fin, res.Best.Rotations); err != nil {
				return err
			}
			out.Search = &res
			return nil
		})
		if err != nil {
			return err
		}
		best := out.Search.Best
		out.Rotations, out.ZE = best.Rotations, best.ZE
		bd := best.Breakdown
		out.Finance = &bd
		rec.Search = &runlog.Search{
			Scored:       out.Search.Scored,
			Rounds:       out.Search.Rounds,
			BestOrigin:   best.Origin,
			BaseVehicles: out.Search.Baseline.Vehicles(),
			Improvement:  out.Search.Improvement(),
		}
	} else if p.fin != nil {
		bd := p.fin.Profit(out.Rotations)
		out.Finance = &bd
	}
	rec.Vehicles = len(out.Rotations)
	rec.ZEMet = out.ZE.Met
	if !out.ZE.Met {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("ZE minimum not met: %d of %d", len(out.ZE.Assigned), out.ZE.Required))
	}
	if bd := out.Finance; bd != nil {
		rec.Finance = runlog.Finance{
			Revenue: bd.Revenue, Labor: bd.Labor, Energy: bd.Energy,
			Bonus: bd.Bonus, Malus: bd.Malus, Profit: bd.Profit,
		}
	}

	if len(in.Reserves) > 0 {
		err := s.stage(out.RunID, "reserve", func() error {
			rep := reserve.Analyze(out.Rotations, in.Reserves)
			out.Reserve = &rep
			return nil
		})
		if err != nil {
			return err
		}
		rec.Reserve = &runlog.Reserve{
			Required: out.Reserve.Required, Covered: out.Reserve.Covered,
			Additional: out.Reserve.AdditionalVehicles,
		}
	}

	if opts.Verify {
		err := s.stage(out.RunID, "verify", func() error {
			var err error
			out.Certificates, err = p.engine.Certify(ctx, in.Trips, s.cfg.Optimizer.VerifyMaxTrips)
			return err
		})
		switch {
		case errors.Is(err, matching.ErrStateDependent):
			s.log.Warnf("verify skipped: %v", err)
			rec.Warnings = append(rec.Warnings, "verify skipped: "+matching.ErrStateDependent.Error())
		case err != nil:
			return err
		default:
			for _, c := range out.Certificates {
				if !c.Skipped {
					s.log.Infof("certificate %s: matching %.2f, LP bound %.2f, gap %.4f", c.Group, c.MatchingCost, c.LPCost, c.Gap())
				}
			}
		}
	}

	return s.stage(out.RunID, "export", func() error {
		var err error
		out.Files, err = s.exportPlan(opts.OutDir, out)
		return err
	})
}

// exportPlan writes the plan in the configured formats.
func (s *Service) exportPlan(dir string, out *Outcome) ([]string, error) {
	if dir == "" {
		dir = s.cfg.Output.Dir
	}
	var files []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		if err := export.WriteFile(path, fn); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		files = append(files, path)
		return nil
	}
	if s.cfg.Output.Wants("json") {
		plan := export.NewPlan(out.RunID, out.Rotations, out.Finance, out.Reserve)
		if err := write("plan.json", func(w io.Writer) error { return export.WriteJSON(w, plan) }); err != nil {
			return files, err
		}
	}
	if s.cfg.Output.Wants("csv") {
		if err := write("rotations.csv", func(w io.Writer) error { return export.WriteCSV(w, out.Rotations) }); err != nil {
			return files, err
		}
		if out.Finance != nil {
			bd := *out.Finance
			if err := write("finance.csv", func(w io.Writer) error { return export.WriteFinanceCSV(w, bd) }); err != nil {
				return files, err
			}
		}
		if out.Reserve != nil {
			rep := *out.Reserve
			if err := write("reserve.csv", func(w io.Writer) error { return export.WriteReserveCSV(w, rep) }); err != nil {
				return files, err
			}
		}
	}
	return files, nil
}

func (s *Service) newRecord(runID, command string) runlog.Record {
	return runlog.Record{
		RunID:        runID,
		Command:      command,
		StartedAt:    s.now().UTC(),
		Algorithm:    s.cfg.Optimizer.Algorithm,
		CostFunction: s.cfg.Optimizer.Cost.Type,
	}
}

// close stamps the record and hands it to the reporting side channels. They
// still run when the caller's context was cancelled.
func (s *Service) close(ctx context.Context, rec *runlog.Record, runErr error) error {
	rec.FinishedAt = s.now().UTC()
	if runErr != nil {
		rec.Error = runErr.Error()
		s.log.Errorf("%s run %s failed: %v", rec.Command, rec.RunID, runErr)
	} else {
		s.log.Infof("%s run %s: %d vehicles in %s", rec.Command, rec.RunID, rec.Vehicles, rec.Duration())
	}
	return s.finish(context.WithoutCancel(ctx), *rec)
}
