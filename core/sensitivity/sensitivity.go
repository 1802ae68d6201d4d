// Package sensitivity measures how the minimum fleet reacts to the
// turnaround time of each vehicle type.
package sensitivity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/matching"
	"github.com/kilianp07/rotaplan/core/model"
)

// Row is the fleet needed at one turnaround value.
type Row struct {
	VehicleType string `json:"vehicle_type"`
	Turnaround  int    `json:"turnaround_min"`
	Vehicles    int    `json:"vehicles"`
	// Delta is the vehicle difference with the configured turnaround.
	Delta int `json:"delta"`
	// Utilisation is driving time over rotation span, in percent.
	Utilisation float64 `json:"utilisation_pct"`
	Base        bool    `json:"base"`
}

// Range returns the turnaround values swept for a base value in minutes:
// from the floor up to max(base+4, 15). A base below the floor is swept too
// so that deltas have a reference.
func Range(base int) []int {
	hi := base + 4
	if hi < 15 {
		hi = 15
	}
	lo := int(feasibility.MinTurnaround / time.Minute)
	out := make([]int, 0, hi-lo+2)
	if base >= 0 && base < lo {
		out = append(out, base)
	}
	for m := lo; m <= hi; m++ {
		out = append(out, m)
	}
	return out
}

// Sweep solves every vehicle type at every turnaround value. Reserve trips
// are ignored. Rows are ordered by vehicle type and turnaround.
func Sweep(ctx context.Context, fm feasibility.Model, trips []model.Trip, workers int) ([]Row, error) {
	byType := make(map[string][]model.Trip)
	for _, t := range trips {
		if !t.Reserve {
			byType[t.VehicleType] = append(byType[t.VehicleType], t)
		}
	}
	types := make([]string, 0, len(byType))
	for vt := range byType {
		types = append(types, vt)
	}
	sort.Strings(types)

	type job struct {
		vt   string
		base int
		ta   int
	}
	var jobs []job
	for _, vt := range types {
		base := int(fm.TurnaroundFor(vt) / time.Minute)
		for _, ta := range Range(base) {
			jobs = append(jobs, job{vt: vt, base: base, ta: ta})
		}
	}

	rows := make([]Row, len(jobs))
	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, j := range jobs {
		eg.Go(func() error {
			m := fm.WithTurnaround(j.vt, time.Duration(j.ta)*time.Minute)
			res, err := matching.New(m, nil, nil, matching.Options{Workers: 1}, nil).Solve(ctx, byType[j.vt])
			if err != nil {
				return fmt.Errorf("%s at %d min: %w", j.vt, j.ta, err)
			}
			rows[i] = Row{
				VehicleType: j.vt, Turnaround: j.ta, Vehicles: res.Vehicles,
				Utilisation: utilisation(res.Rotations), Base: j.ta == j.base,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	baseline := make(map[string]int)
	for _, r := range rows {
		if r.Base {
			baseline[r.VehicleType] = r.Vehicles
		}
	}
	for i := range rows {
		if b, ok := baseline[rows[i].VehicleType]; ok {
			rows[i].Delta = rows[i].Vehicles - b
		}
	}
	return rows, nil
}

func utilisation(rs []model.Rotation) float64 {
	var drive, span time.Duration
	for _, r := range rs {
		drive += r.DrivingTime()
		span += r.End().Sub(r.Start())
	}
	if span <= 0 {
		return 0
	}
	return float64(drive) / float64(span) * 100
}
