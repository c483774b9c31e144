package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/ui4t/internal/config"
	"github.com/leapstack-labs/ui4t/internal/engine"
	"github.com/leapstack-labs/ui4t/internal/state"
	"github.com/spf13/cobra"
)

// NewTestCommand creates the test command.
func NewTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the integration cases on warehouses",
		Long: `Discover every case under the test directory and run it on each
warehouse: seed the case fixtures, compile the spec for the warehouse
dialect, execute it and compare the output with the expected rows.

Warehouses run in parallel and independently. Cases that pass on more
than one warehouse are also compared across warehouses. Every outcome is
recorded in the run ledger (see ui4t history).

Without --warehouse, DuckDB runs along with every warehouse whose
credentials are fully present in the environment.`,
		Example: `  # Run on every configured warehouse
  ui4t test

  # Run on Postgres and BigQuery only
  ui4t test --warehouse postgres --warehouse bigquery`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runTest,
	}
	cmd.Flags().StringSlice("warehouse", nil, "Warehouse to test on (repeatable)")
	cmd.Flags().String("dir", config.DefaultTestDir, "Directory holding the cases")
	return cmd
}

func runTest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt := RuntimeFrom(ctx)

	targets, err := testTargets(cmd, rt)
	if err != nil {
		return err
	}
	cases, err := engine.Discover(rt.FS, rt.Config.TestDir)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return fmt.Errorf("no cases found in %s", rt.Config.TestDir)
	}

	ledger, err := state.OpenLedger(ctx, rt.Config.StatePath, rt.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	eng := engine.New(engine.Config{
		FS:       rt.FS,
		Ledger:   ledger,
		Retry:    rt.retryPolicy(),
		Parallel: rt.Config.Parallel,
		Logger:   rt.Logger,
	})
	report, err := eng.Run(ctx, targets, cases)
	if err != nil {
		return err
	}
	failed := printReport(cmd, report, len(cases))
	if err := report.Err(); err != nil {
		rt.Logger.Error("test run failed", slog.Int("failures", failed), slog.Any("error", err))
		return fmt.Errorf("%d failures", failed)
	}
	return nil
}

func testTargets(cmd *cobra.Command, rt *Runtime) ([]engine.TargetConfig, error) {
	names, _ := cmd.Flags().GetStringSlice("warehouse")
	explicit := len(names) > 0
	if !explicit {
		names = config.Warehouses
	}

	var targets []engine.TargetConfig
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		wh, err := rt.warehouse(name)
		var missing *config.MissingEnvError
		if !explicit && errors.As(err, &missing) {
			rt.Logger.Info("skipping warehouse without credentials",
				slog.String("warehouse", name), slog.Any("missing", missing.Names))
			continue
		}
		if err != nil {
			return nil, err
		}
		targets = append(targets, engine.TargetConfig{Name: name, Config: wh})
	}
	return targets, nil
}

// printReport writes the results table and returns the number of failures.
func printReport(cmd *cobra.Command, report *engine.Report, cases int) int {
	out := cmd.OutOrStdout()
	p := newPrinter(out)

	var rows []table.Row
	failed := 0
	for _, rep := range report.Targets {
		if rep.Err != nil {
			failed++
			rows = append(rows, table.Row{"*", rep.Target, p.status("error"), "", round(rep.Duration), firstLine(rep.Err.Error())})
			continue
		}
		for _, c := range rep.Cases {
			status, detail, n := string(c.Status), "", ""
			if c.Result != nil {
				n = fmt.Sprint(c.Result.Actual.Len())
			}
			switch {
			case c.Err != nil:
				detail = firstLine(c.Err.Error())
			case c.Result != nil && c.Result.Mismatch != nil:
				detail = firstLine(c.Result.Mismatch.Error())
			case c.Overwrite:
				detail = p.muted("upsert compiled as overwrite")
			}
			if c.Status != state.CaseStatusPassed {
				failed++
			}
			dur := ""
			if c.Result != nil {
				dur = round(c.Result.Duration)
			}
			rows = append(rows, table.Row{c.Case, rep.Target, p.status(status), n, dur, detail})
		}
	}
	p.table(table.Row{"Case", "Warehouse", "Status", "Rows", "Duration", "Detail"}, rows)

	for _, m := range report.CrossChecks {
		failed++
		_, _ = fmt.Fprintf(out, "%s %s\n", p.status("mismatch"), firstLine(m.Error()))
	}

	targets := make([]string, len(report.Targets))
	for i, rep := range report.Targets {
		targets[i] = rep.Target
	}
	_, _ = fmt.Fprintln(out, p.muted(fmt.Sprintf("%d cases on %s", cases, strings.Join(targets, ", "))))

	return failed
}
