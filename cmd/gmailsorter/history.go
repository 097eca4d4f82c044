package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"gmailsorter/internal/model"
	"gmailsorter/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent cleanup runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			return a.invoke(func(st *store.SQLiteStore) error {
				runs, err := st.RecentRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded yet.")
					return nil
				}
				for i, r := range runs {
					if i > 0 {
						fmt.Fprintln(out)
					}
					writeRun(out, r)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func writeRun(w io.Writer, r model.RunSummary) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "#%d %s%s  took %s\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), mode,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
		return
	}
	fmt.Fprintf(w, "  scanned %d, matched %d, labeled %d, failed %d\n", r.Scanned, r.Matched, len(r.Records), r.Failed)
	verb := "Moved to"
	if r.DryRun {
		verb = "Would move to"
	}
	for _, rec := range r.Records {
		fmt.Fprintf(w, "  %s → %s: %s\n", rec.Subject, verb, rec.LabelApplied)
	}
}
