// Package cli provides the command-line interface for ui4t.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/ui4t/internal/cli/commands"
	"github.com/leapstack-labs/ui4t/internal/config"
	"github.com/leapstack-labs/ui4t/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Options inject process dependencies, for tests.
type Options struct {
	FS     afero.Fs
	Env    config.LookupFunc
	Stdout io.Writer
	Stderr io.Writer
}

// session holds what PersistentPreRunE sets up for Execute to tear down.
// cobra skips post-run hooks when a command fails, so the log is closed by
// Execute instead.
type session struct {
	logger   *slog.Logger
	closeLog func() error
}

func (s *session) close() error {
	if s.closeLog == nil {
		return nil
	}
	closer := s.closeLog
	s.closeLog = nil
	return closer()
}

// NewRootCmd creates and returns the root command. Callers other than
// Execute own no log file handle; prefer Execute.
func NewRootCmd(opts Options) *cobra.Command {
	return newRootCmd(opts, &session{})
}

func newRootCmd(opts Options, sess *session) *cobra.Command {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	var (
		cfgFile string
		envFile string
	)

	rootCmd := &cobra.Command{
		Use:   "ui4t",
		Short: "ui4t - warehouse-agnostic transformation codegen",
		Long: `ui4t compiles declarative transformation specs into SQL for
Postgres, BigQuery and DuckDB, and proves the generated SQL correct by
running it against fixture data seeded into each warehouse.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip setup for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			if opts.Env == nil {
				if err := config.LoadDotEnv(envFile); err != nil {
					return err
				}
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			// The log directory exists before any warehouse is touched.
			logger, closer, err := logging.Setup(opts.FS, logging.Options{
				Dir:     cfg.LogDir,
				Level:   slog.LevelInfo,
				Verbose: cfg.Verbose,
				Stderr:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			sess.logger, sess.closeLog = logger, closer
			logger.Debug("starting", slog.String("command", cmd.CommandPath()), slog.String("version", Version))

			cmd.SetContext(commands.WithRuntime(cmd.Context(), &commands.Runtime{
				Config: cfg,
				Logger: logger,
				FS:     opts.FS,
				Env:    opts.Env,
			}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &commands.UsageError{Err: err}
	})
	if opts.Stdout != nil {
		rootCmd.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		rootCmd.SetErr(opts.Stderr)
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./ui4t.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file with warehouse credentials")
	pf.String("log-dir", config.DefaultLogDir, "Directory for the JSON log file")
	pf.String("state", config.DefaultStatePath, "Path to the run ledger database")
	pf.Int("parallel", 0, "Maximum warehouses tested at once (0 = all)")
	pf.BoolP("verbose", "v", false, "Mirror logs to stderr")

	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewTestCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{
		Version: Version, GitCommit: GitCommit, BuildDate: BuildDate,
	}))

	return rootCmd
}

// Execute runs the root command and returns the process exit code:
// 0 on success, 2 for usage errors, 1 for any other failure.
func Execute(ctx context.Context, args []string, opts Options) int {
	sess := &session{}
	rootCmd := newRootCmd(opts, sess)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && sess.logger != nil {
		sess.logger.Error("command failed", slog.Any("error", err))
	}
	if cerr := sess.close(); cerr != nil && err == nil {
		err = fmt.Errorf("close log: %w", cerr)
	}
	if err != nil {
		var usage *commands.UsageError
		if !errors.As(err, &usage) && strings.HasPrefix(err.Error(), "unknown command") {
			err = &commands.UsageError{Err: err}
		}
		if errors.As(err, &usage) {
			_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\nRun '%s --help' for usage.\n", err, rootCmd.Name())
		} else {
			_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return commands.ExitCode(err)
}

// Main is the entry point used by cmd/ui4t.
func Main() {
	os.Exit(Execute(context.Background(), os.Args[1:], Options{}))
}
