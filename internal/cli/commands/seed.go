package commands

import (
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/ui4t/internal/config"
	"github.com/leapstack-labs/ui4t/internal/engine"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture sets into a warehouse",
		Long: `Load fixture sets into the schema of a warehouse target.

Every table of a fixture set is dropped, recreated and loaded, so seeding
is idempotent. Progress is recorded in the schema's fixture manifest;
transient warehouse failures are retried with exponential backoff.

Connection settings come from the environment (see .env). Without
DUCKDB_PATH, DuckDB seeds an in-memory database that is discarded when the
command exits.`,
		Example: `  # Seed the configured fixture sets into DuckDB
  ui4t seed --warehouse duckdb

  # Seed specific sets into Postgres
  ui4t seed --warehouse postgres --fixtures testdata/integration/fixtures/shop.yaml`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runSeed,
	}
	cmd.Flags().String("warehouse", "", "Warehouse to seed (postgres|bigquery|duckdb)")
	cmd.Flags().StringSlice("fixtures", nil, "Fixture set files (repeatable)")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	rt := RuntimeFrom(cmd.Context())
	name, _ := cmd.Flags().GetString("warehouse")
	if name == "" {
		return Usagef("--warehouse is required")
	}
	wh, err := rt.warehouse(name)
	if err != nil {
		return err
	}
	paths := rt.Config.Fixtures
	if len(paths) == 0 {
		return Usagef("no fixture sets given (use --fixtures or set fixtures in the config file)")
	}

	if wh.Type == "duckdb" && wh.Path == config.DuckDBMemory {
		rt.Logger.Warn("seeding an in-memory duckdb database", slog.String("hint", "set DUCKDB_PATH to keep the data"))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: DUCKDB_PATH is not set; the seeded in-memory database is discarded on exit")
	}

	eng := engine.New(engine.Config{FS: rt.FS, Retry: rt.retryPolicy(), Logger: rt.Logger})
	results, err := eng.Seed(cmd.Context(), engine.TargetConfig{Name: name, Config: wh}, paths)

	p := newPrinter(cmd.OutOrStdout())
	if len(results) > 0 {
		rows := make([]table.Row, 0, len(results))
		for _, r := range results {
			rows = append(rows, table.Row{r.FixtureSet, r.Tables, r.Rows, round(r.Duration), p.status("complete")})
		}
		p.table(table.Row{"Fixture set", "Tables", "Rows", "Duration", "Status"}, rows)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), p.muted(fmt.Sprintf("seeded %d fixture sets into %s", len(results), wh)))
	return nil
}
