package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rotaplan/app"
	"github.com/kilianp07/rotaplan/core/runlog"
)

var (
	historyLimit   int
	historyCommand string
	historyRunID   string
	historySince   time.Duration
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded optimization runs",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyLimit, "limit", 20, "number of most recent runs, 0 for all")
	f.StringVar(&historyCommand, "command", "", "only runs of this command")
	f.StringVar(&historyRunID, "run", "", "only the run with this ID")
	f.DurationVar(&historySince, "since", 0, "only runs started within this duration")
	f.BoolVar(&historyJSON, "json", false, "print records as JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withService(nil, func(ctx context.Context, svc *app.Service) error {
		q := runlog.Query{Command: historyCommand, RunID: historyRunID, Limit: historyLimit}
		if historySince > 0 {
			q.Start = time.Now().Add(-historySince)
		}
		recs, err := svc.History(ctx, q)
		if err != nil {
			return err
		}
		if historyJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range recs {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tRUN\tCOMMAND\tVEHICLES\tPROFIT\tDURATION\tERROR")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n", r.StartedAt.Local().Format(time.DateTime),
				r.RunID, r.Command, r.Vehicles, r.Finance.Profit, r.Duration().Round(time.Millisecond), r.Error)
		}
		return tw.Flush()
	})
}
