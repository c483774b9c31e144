package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewSeedCommand(), "seed", []string{"warehouse", "fixtures"}},
		{NewCompileCommand(), "compile", []string{"warehouse", "spec", "fixtures", "intermediates"}},
		{NewTestCommand(), "test", []string{"warehouse", "dir"}},
		{NewHistoryCommand(), "history", []string{"limit"}},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "flag %q should exist", f)
			}
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "1.2.3", GitCommit: "abc123", BuildDate: "2024-06-01"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "ui4t v1.2.3")
	assert.Contains(t, out, "commit abc123")
	assert.Contains(t, out, "built 2024-06-01")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(Usagef("bad flag %s", "x")))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrapped: %w", Usagef("bad"))))
}

func TestUsageArgs(t *testing.T) {
	check := usageArgs(cobra.NoArgs)
	cmd := &cobra.Command{Use: "x"}
	require.NoError(t, check(cmd, nil))

	var usage *UsageError
	require.ErrorAs(t, check(cmd, []string{"y"}), &usage)
}

func TestRuntimeFrom_Default(t *testing.T) {
	rt := RuntimeFrom(context.Background())
	require.NotNil(t, rt.Config)
	assert.Equal(t, "logs", rt.Config.LogDir)
	assert.Equal(t, uint64(5), rt.retryPolicy().Attempts)

	custom := &Runtime{}
	assert.Same(t, custom, RuntimeFrom(WithRuntime(context.Background(), custom)))
}

func TestRuntime_Warehouse(t *testing.T) {
	rt := &Runtime{Env: func(string) (string, bool) { return "", false }}

	cfg, err := rt.warehouse("duckdb")
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Type)

	_, err = rt.warehouse("snowflake")
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	assert.Contains(t, err.Error(), "snowflake")

	_, err = rt.warehouse("bigquery")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
}

func TestPrinter_PlainOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	p := newPrinter(buf)
	assert.False(t, p.styled)
	assert.Equal(t, "passed", p.status("passed"))
	assert.Equal(t, "note", p.muted("note"))

	p.table(table.Row{"Case", "Status"}, []table.Row{{"latest", p.status("passed")}})
	assert.Contains(t, buf.String(), "latest")
	assert.Contains(t, buf.String(), "passed")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one"))
	assert.Equal(t, "one ...", firstLine("one\ntwo"))
	assert.False(t, strings.Contains(firstLine("a\nb\nc"), "b"))
}
