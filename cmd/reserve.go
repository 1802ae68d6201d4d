package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rotaplan/app"
)

var reserveOpts app.ReserveOptions

var reserveCmd = &cobra.Command{
	Use:   "reserve",
	Short: "Report how reserve duty is covered by the planned rotations",
	RunE:  runReserve,
}

func init() {
	f := reserveCmd.Flags()
	f.StringVar(&reserveOpts.TripsPath, "trips", "", "trips file, overrides inputs.trips")
	f.StringVar(&reserveOpts.OutDir, "out", "", "output directory, overrides output.dir")
	f.BoolVar(&reserveOpts.Phantom, "phantom", false, "plan reserve duty as trips instead of using idle windows")
	rootCmd.AddCommand(reserveCmd)
}

func runReserve(cmd *cobra.Command, args []string) error {
	return withService(nil, func(ctx context.Context, svc *app.Service) error {
		out, err := svc.Reserve(ctx, reserveOpts)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATION\tSTART\tEND\tREQUIRED\tCOVERED\tSHORTFALL")
		for _, c := range out.Report.Coverage {
			req := c.Requirement
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", req.Station,
				req.Start.Format(time.DateTime), req.End.Format(time.DateTime), req.Count, c.Covered, c.Shortfall)
		}
		fmt.Fprintf(tw, "\nservice vehicles\t%d\n", out.BaseVehicles)
		fmt.Fprintf(tw, "additional vehicles\t%d\n", out.Report.AdditionalVehicles)
		for _, u := range out.Unassigned {
			fmt.Fprintf(tw, "unassigned\t%s %s\n", u.Station, u.Start.Format(time.DateTime))
		}
		fmt.Fprintf(tw, "written\t%s\n", out.File)
		return tw.Flush()
	})
}
