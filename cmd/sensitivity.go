package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rotaplan/app"
)

var sensitivityTrips, sensitivityOut string

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity",
	Short: "Sweep the turnaround time of every vehicle type",
	RunE:  runSensitivity,
}

func init() {
	sensitivityCmd.Flags().StringVar(&sensitivityTrips, "trips", "", "trips file, overrides inputs.trips")
	sensitivityCmd.Flags().StringVar(&sensitivityOut, "out", "", "output directory, overrides output.dir")
	rootCmd.AddCommand(sensitivityCmd)
}

func runSensitivity(cmd *cobra.Command, args []string) error {
	return withService(nil, func(ctx context.Context, svc *app.Service) error {
		out, err := svc.Sensitivity(ctx, sensitivityTrips, sensitivityOut)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tTURNAROUND\tVEHICLES\tDELTA\tUTILISATION")
		for _, r := range out.Rows {
			mark := ""
			if r.Base {
				mark = " *"
			}
			fmt.Fprintf(tw, "%s\t%d%s\t%d\t%+d\t%.1f%%\n", r.VehicleType, r.Turnaround, mark, r.Vehicles, r.Delta, r.Utilisation)
		}
		fmt.Fprintf(tw, "written\t%s\n", out.File)
		return tw.Flush()
	})
}
