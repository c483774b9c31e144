package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/ui4t/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent test runs",
		Long: `List recent test runs from the run ledger, newest first. Each
warehouse of a ui4t test invocation is one run.`,
		Example: `  ui4t history --limit 5`,
		Args:    usageArgs(cobra.NoArgs),
		RunE:    runHistory,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt := RuntimeFrom(ctx)
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return Usagef("--limit must be positive")
	}

	ledger, err := state.OpenLedger(ctx, rt.Config.StatePath, rt.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	runs, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	p := newPrinter(cmd.OutOrStdout())
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), p.muted("no runs recorded in "+rt.Config.StatePath))
		return nil
	}

	rows := make([]table.Row, 0, len(runs))
	for _, r := range runs {
		results, err := ledger.CaseResults(ctx, r.ID)
		if err != nil {
			return err
		}
		passed := 0
		for _, c := range results {
			if c.Status == state.CaseStatusPassed {
				passed++
			}
		}
		dur := ""
		if r.CompletedAt != nil {
			dur = round(r.CompletedAt.Sub(r.StartedAt))
		}
		rows = append(rows, table.Row{
			r.ID[:8], r.Target, p.status(string(r.Status)),
			fmt.Sprintf("%d/%d", passed, len(results)),
			r.StartedAt.Local().Format(time.DateTime), dur, firstLine(r.Error),
		})
	}
	p.table(table.Row{"Run", "Warehouse", "Status", "Passed", "Started", "Duration", "Error"}, rows)
	return nil
}
