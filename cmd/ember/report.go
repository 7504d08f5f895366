package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ember/internal/observ"
)

var reportCmd = &cobra.Command{
	Use:   "report <record>...",
	Short: "Print run records written by run --record or bench --record-dir",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().Bool("summary", false, "print one aggregate line per scenario instead of each record")
}

func runReport(cmd *cobra.Command, args []string) error {
	summary, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return fmt.Errorf("failed to get summary flag: %w", err)
	}

	out := cmd.OutOrStdout()
	var order []string
	grouped := make(map[string][]*observ.RunReport)
	for _, path := range args {
		r, err := observ.ReadRecord(path)
		if err != nil {
			return err
		}
		if !summary {
			if err := observ.Render(out, r); err != nil {
				return err
			}
			continue
		}
		if _, seen := grouped[r.Scenario]; !seen {
			order = append(order, r.Scenario)
		}
		grouped[r.Scenario] = append(grouped[r.Scenario], r)
	}
	for _, name := range order {
		if err := observ.RenderAggregate(out, observ.Summarize(grouped[name])); err != nil {
			return err
		}
	}
	return nil
}
