package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/reporting"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs",
	Long: `List the most recent runs from the run index in the output directory.
Given a run ID (or a unique prefix of one), print its event counts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: listRuns,
}

func init() {
	runsCmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	runsCmd.Flags().StringP("output", "o", "", "output directory holding the run index")
}

func listRuns(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("output")
	if dir == "" {
		dir = viper.GetString("output")
	}
	path := filepath.Join(dir, reporting.IndexFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No runs recorded in %s\n", dir)
		return nil
	}

	idx, err := reporting.OpenRunIndex(path)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	if len(args) == 1 {
		// Prefix lookup scans a wider window than the listing
		limit = 1000
	}
	runs, err := idx.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "RUN\tSIMULATION\tSTARTED\tSEED\tTICKS\tDESTROYED\tREASON")
		_, _ = fmt.Fprintln(w, "---\t----------\t-------\t----\t-----\t---------\t------")
		for _, r := range runs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d/%d\t%s\n",
				shortID(r.RunID), r.Simulation, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Seed, r.Ticks, r.TargetsDestroyed, r.Targets, r.Reason)
		}
		return w.Flush()
	}

	var match *reporting.RunRow
	for i := range runs {
		if strings.HasPrefix(runs[i].RunID, args[0]) {
			if match != nil {
				return fmt.Errorf("run id %s is ambiguous", args[0])
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	counts, err := idx.EventCounts(cmd.Context(), match.RunID)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s (%s, seed %d): %s after %d ticks\n", match.RunID, match.Simulation, match.Seed, match.Reason, match.Ticks)
	if match.ReportPath != "" {
		fmt.Printf("Report: %s\n", match.ReportPath)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EVENT\tCOUNT")
	for _, t := range types {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", t, counts[t])
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
