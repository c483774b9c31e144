package commands

import (
	"fmt"

	"github.com/leapstack-labs/ui4t/internal/engine"
	"github.com/leapstack-labs/ui4t/internal/fixture"
	"github.com/leapstack-labs/ui4t/pkg/adapters"
	"github.com/leapstack-labs/ui4t/pkg/codegen"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
	"github.com/spf13/cobra"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the SQL a spec compiles to",
		Long: `Validate a transformation spec and print the SQL artifact it compiles
to for one warehouse dialect. Nothing is executed.

The source schema is taken from a fixture table with the spec's source
name, or from the columns declared in the spec.`,
		Example: `  ui4t compile --warehouse bigquery --spec specs/latest_orders.yaml \
    --fixtures fixtures/shop.yaml`,
		Args: usageArgs(cobra.NoArgs),
		RunE: runCompile,
	}
	cmd.Flags().String("warehouse", "", "Target dialect (postgres|bigquery|duckdb)")
	cmd.Flags().String("spec", "", "Spec file")
	cmd.Flags().StringSlice("fixtures", nil, "Fixture set files declaring the source table")
	cmd.Flags().Bool("intermediates", false, "Materialize every intermediate block as a table")
	return cmd
}

func runCompile(cmd *cobra.Command, _ []string) error {
	rt := RuntimeFrom(cmd.Context())
	name, _ := cmd.Flags().GetString("warehouse")
	specPath, _ := cmd.Flags().GetString("spec")
	intermediates, _ := cmd.Flags().GetBool("intermediates")
	if name == "" || specPath == "" {
		return Usagef("--warehouse and --spec are required")
	}
	wh, err := rt.warehouse(name)
	if err != nil {
		return err
	}
	d, err := adapters.NewDialect(wh)
	if err != nil {
		return err
	}

	s, err := spec.Load(rt.FS, specPath)
	if err != nil {
		return err
	}
	source, err := fixtureSchema(rt, s.Source)
	if err != nil {
		return err
	}
	v, err := spec.Validate(s, source)
	if err != nil {
		return fmt.Errorf("spec %s: %w", s.Name, err)
	}

	eng := engine.New(engine.Config{FS: rt.FS, Logger: rt.Logger})
	a, _, err := eng.Compile(v, d, codegen.Options{Intermediates: intermediates}, rt.Logger)
	if err != nil {
		return fmt.Errorf("spec %s on %s: %w", s.Name, name, err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), a.SQL())
	return err
}

// fixtureSchema finds the schema of ref among the configured fixture sets.
// It returns nil when no set declares the table.
func fixtureSchema(rt *Runtime, ref core.TableRef) (*core.Schema, error) {
	sets, err := fixture.LoadAll(rt.FS, rt.Config.Fixtures)
	if err != nil {
		return nil, err
	}
	for _, set := range sets {
		if t, ok := set.Table(ref.Table); ok {
			return t.Schema, nil
		}
	}
	return nil, nil
}
