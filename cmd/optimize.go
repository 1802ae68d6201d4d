package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rotaplan/app"
	"github.com/kilianp07/rotaplan/config"
)

var optimizeOpts app.OptimizeOptions
var optimizeAlgorithm string

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Chain trips into rotations and export the plan",
	RunE:  runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optimizeOpts.TripsPath, "trips", "", "trips file, overrides inputs.trips")
	f.StringVar(&optimizeOpts.OutDir, "out", "", "output directory, overrides output.dir")
	f.BoolVar(&optimizeOpts.Search, "search", false, "run the profit search")
	f.BoolVar(&optimizeOpts.Verify, "verify", false, "certify the matching cost with the LP relaxation")
	f.StringVar(&optimizeAlgorithm, "algorithm", "", "matching algorithm (ssp, greedy)")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	hook := func(cfg *config.Config) {
		if optimizeAlgorithm != "" {
			cfg.Optimizer.Algorithm = optimizeAlgorithm
		}
	}
	return withService(hook, func(ctx context.Context, svc *app.Service) error {
		out, err := svc.Optimize(ctx, optimizeOpts)
		if err != nil {
			return err
		}
		return printOutcome(cmd.OutOrStdout(), out)
	})
}

func printOutcome(w io.Writer, out *app.Outcome) error {
	rec := out.Record
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]any{
		{"run", rec.RunID},
		{"trips", fmt.Sprintf("%d read, %d valid, %d rejected", rec.Inputs.Trips, rec.Inputs.Valid, rec.Inputs.Rejected)},
		{"vehicles", rec.Vehicles},
		{"without range limits", rec.Unconstrained},
		{"range splits", rec.RangeSplits},
		{"ze minimum met", rec.ZEMet},
		{"matching cost", fmt.Sprintf("%.1f", rec.Cost)},
	}
	if out.Finance != nil {
		rows = append(rows,
			[2]any{"revenue", fmt.Sprintf("%.2f", rec.Finance.Revenue)},
			[2]any{"labor", fmt.Sprintf("%.2f", rec.Finance.Labor)},
			[2]any{"energy", fmt.Sprintf("%.2f", rec.Finance.Energy)},
			[2]any{"profit", fmt.Sprintf("%.2f", rec.Finance.Profit)},
		)
	}
	if s := rec.Search; s != nil {
		rows = append(rows,
			[2]any{"candidates scored", s.Scored},
			[2]any{"best origin", s.BestOrigin},
			[2]any{"improvement", fmt.Sprintf("%.2f", s.Improvement)},
		)
	}
	if r := rec.Reserve; r != nil {
		rows = append(rows, [2]any{"reserve", fmt.Sprintf("%d/%d covered, %d additional", r.Covered, r.Required, r.Additional)})
	}
	for _, c := range out.Certificates {
		if !c.Skipped {
			rows = append(rows, [2]any{"certificate " + c.Group, fmt.Sprintf("gap %.4f", c.Gap())})
		}
	}
	for _, f := range out.Files {
		rows = append(rows, [2]any{"written", f})
	}
	for _, warn := range rec.Warnings {
		rows = append(rows, [2]any{"warning", warn})
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%v\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
