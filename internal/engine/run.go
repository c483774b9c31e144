package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/leapstack-labs/ui4t/internal/fixture"
	"github.com/leapstack-labs/ui4t/internal/seed"
	"github.com/leapstack-labs/ui4t/internal/state"
	"github.com/leapstack-labs/ui4t/internal/verify"
	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/codegen"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
	"golang.org/x/sync/errgroup"
)

// TargetConfig names a warehouse and its connection settings.
type TargetConfig struct {
	Name   string
	Config core.AdapterConfig
}

// CaseOutcome is the result of one case on one target.
type CaseOutcome struct {
	Case     string
	Target   string
	Status   state.CaseStatus
	Artifact *codegen.Artifact
	Result   *verify.Result
	// Overwrite is set when an upsert was compiled as a full overwrite.
	Overwrite bool
	Err       error
}

// TargetReport is everything one target did.
type TargetReport struct {
	Target   string
	RunID    string
	Seeded   []*seed.Result
	Cases    []*CaseOutcome
	Duration time.Duration
	// Err is set when the target could not run its cases at all.
	Err error
}

// Report is the outcome of a run across targets.
type Report struct {
	Targets []*TargetReport
	// CrossChecks lists spec outputs that differ between targets.
	CrossChecks []*core.VerificationMismatch
	Suite       *verify.Suite
}

// Err joins every failure of the run, or returns nil.
func (r *Report) Err() error {
	return r.Suite.Err()
}

// Run executes cases on every target. Targets run concurrently and
// independently; the returned error is only for problems that prevent the
// run as a whole, such as unreadable fixture files. Per-target and per-case
// failures are in the report.
func (e *Engine) Run(ctx context.Context, targets []TargetConfig, cases []*Case) (*Report, error) {
	sets, err := e.loadFixtures(cases)
	if err != nil {
		return nil, err
	}

	report := &Report{Targets: make([]*TargetReport, len(targets)), Suite: &verify.Suite{}}
	g := new(errgroup.Group)
	if e.parallel > 0 {
		g.SetLimit(e.parallel)
	}
	for i, tc := range targets {
		g.Go(func() error {
			report.Targets[i] = e.runTarget(ctx, tc, cases, sets, report.Suite)
			return nil
		})
	}
	_ = g.Wait()

	report.CrossChecks = crossCheck(report.Targets)
	for _, m := range report.CrossChecks {
		report.Suite.Fail(m)
	}
	return report, nil
}

func (e *Engine) loadFixtures(cases []*Case) (map[string]*fixture.Set, error) {
	sets := make(map[string]*fixture.Set)
	names := make(map[string]string)
	for _, c := range cases {
		for _, path := range c.Fixtures {
			if _, ok := sets[path]; ok {
				continue
			}
			set, err := fixture.Load(e.fs, path)
			if err != nil {
				return nil, fmt.Errorf("case %s: %w", c.Name, err)
			}
			if prev, dup := names[set.Name]; dup {
				return nil, fmt.Errorf("fixture set %q is declared in both %s and %s", set.Name, prev, path)
			}
			names[set.Name] = path
			sets[path] = set
		}
	}
	return sets, nil
}

func (e *Engine) runTarget(ctx context.Context, tc TargetConfig, cases []*Case, sets map[string]*fixture.Set, suite *verify.Suite) *TargetReport {
	start := time.Now()
	logger := e.logger.With(slog.String("target", tc.Name))
	rep := &TargetReport{Target: tc.Name}

	if e.ledger != nil {
		run, err := e.ledger.CreateRun(ctx, tc.Name)
		if err != nil {
			logger.Warn("failed to record run", slog.Any("error", err))
		} else {
			rep.RunID = run.ID
		}
	}
	defer func() {
		rep.Duration = time.Since(start)
		e.completeRun(ctx, rep, logger)
	}()

	target, err := e.connect(ctx, tc, logger)
	if err != nil {
		rep.Err = err
		suite.Fail(err)
		return rep
	}
	defer func() { _ = target.Adapter.Close() }()

	var mine []*Case
	for _, c := range cases {
		if c.RunsOn(tc.Name) {
			mine = append(mine, c)
		}
	}

	// Seed everything before any artifact executes.
	seeded := make(map[string]bool)
	for _, c := range mine {
		for _, path := range c.Fixtures {
			if seeded[path] {
				continue
			}
			res, err := e.seeder.Seed(ctx, target, sets[path])
			if err != nil {
				rep.Err = err
				suite.Fail(err)
				return rep
			}
			seeded[path] = true
			rep.Seeded = append(rep.Seeded, res)
		}
	}

	for _, c := range mine {
		out := e.runCase(ctx, target, c, sets, logger)
		rep.Cases = append(rep.Cases, out)
		switch {
		case out.Err != nil:
			suite.Fail(fmt.Errorf("target %s: case %s: %w", tc.Name, c.Name, out.Err))
		case out.Result != nil:
			suite.Add(out.Result)
		}
		e.recordCase(ctx, rep.RunID, out, logger)
	}
	return rep
}

func (e *Engine) connect(ctx context.Context, tc TargetConfig, logger *slog.Logger) (*adapter.Target, error) {
	adp, err := e.open(tc.Config, logger)
	if err != nil {
		return nil, err
	}
	err = e.retry.Do(ctx, adp.IsTransient, func(ctx context.Context) error {
		return adp.Connect(ctx, tc.Config)
	})
	if err != nil {
		return nil, fmt.Errorf("target %s: failed to connect to %s: %w", tc.Name, tc.Config, err)
	}
	logger.Info("connected", slog.String("warehouse", tc.Config.String()))
	return &adapter.Target{Name: tc.Name, Schema: tc.Config.Schema, Config: tc.Config, Adapter: adp}, nil
}

func (e *Engine) runCase(ctx context.Context, target *adapter.Target, c *Case, sets map[string]*fixture.Set, logger *slog.Logger) *CaseOutcome {
	out := &CaseOutcome{Case: c.Name, Target: target.Name}
	fail := func(err error) *CaseOutcome {
		out.Status = state.CaseStatusError
		out.Err = err
		logger.Error("case failed", slog.String("case", c.Name), slog.Any("error", err))
		return out
	}

	source, err := e.sourceSchema(ctx, target, c, sets)
	if err != nil {
		return fail(err)
	}
	v, err := spec.Validate(c.Spec, source)
	if err != nil {
		return fail(err)
	}
	a, overwrite, err := e.Compile(v, target.Dialect(), codegen.Options{}, logger)
	if err != nil {
		return fail(err)
	}
	out.Artifact, out.Overwrite = a, overwrite

	res, err := e.verifier.Verify(ctx, a, target, c.Expected)
	if err != nil {
		return fail(err)
	}
	out.Result = res
	out.Status = state.CaseStatusPassed
	if res.Err() != nil {
		out.Status = state.CaseStatusMismatch
	}
	return out
}

// Compile compiles v through the cache. An upsert the dialect cannot
// express natively is recompiled as a full overwrite, reported by the
// second result.
func (e *Engine) Compile(v *spec.Validated, d codegen.Dialect, opts codegen.Options, logger *slog.Logger) (*codegen.Artifact, bool, error) {
	a, err := e.cache.Compile(v, d, opts)
	var unsupported *core.UnsupportedOperationError
	if errors.As(err, &unsupported) && unsupported.Kind == core.OpUpsert {
		logger.Warn("upsert unsupported, falling back to full overwrite",
			slog.String("spec", v.Spec.Name), slog.String("dialect", d.GetName()), slog.String("reason", unsupported.Error()))
		opts.Merge = codegen.MergeOverwrite
		a, err = e.cache.Compile(v, d, opts)
		return a, err == nil, err
	}
	return a, false, err
}

// sourceSchema resolves the spec source from the case fixtures, then from
// the spec's declared columns, then from the warehouse catalog.
func (e *Engine) sourceSchema(ctx context.Context, target *adapter.Target, c *Case, sets map[string]*fixture.Set) (*core.Schema, error) {
	src := c.Spec.Source
	if src.Schema == "" || src.Schema == target.Schema {
		for _, path := range c.Fixtures {
			if t, ok := sets[path].Table(src.Table); ok {
				return t.Schema, nil
			}
		}
	}
	if len(c.Spec.Columns) > 0 {
		return nil, nil
	}
	schema, err := target.Adapter.TableSchema(ctx, src.WithDefaultSchema(target.Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source %s: %w", src, err)
	}
	return schema, nil
}

func (e *Engine) recordCase(ctx context.Context, runID string, out *CaseOutcome, logger *slog.Logger) {
	if e.ledger == nil || runID == "" {
		return
	}
	r := &state.CaseResult{RunID: runID, Case: out.Case, Status: out.Status}
	if a := out.Artifact; a != nil {
		r.ArtifactKey = a.Key.String()
		r.Dialect = a.Dialect
		r.SQL = a.SQL()
	}
	if out.Result != nil && out.Result.Mismatch != nil {
		r.Mismatches = len(out.Result.Mismatch.Rows) + len(out.Result.Mismatch.MissingColumns) + len(out.Result.Mismatch.ExtraColumns)
		r.Error = out.Result.Mismatch.Error()
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
	}
	if err := e.ledger.RecordCase(ctx, r); err != nil {
		logger.Warn("failed to record case", slog.String("case", out.Case), slog.Any("error", err))
	}
}

func (e *Engine) completeRun(ctx context.Context, rep *TargetReport, logger *slog.Logger) {
	if e.ledger == nil || rep.RunID == "" {
		return
	}
	status, msg := state.RunStatusSuccess, ""
	if err := rep.Failure(); err != nil {
		status, msg = state.RunStatusFailed, err.Error()
	}
	// The run is recorded even when ctx was canceled.
	if err := e.ledger.CompleteRun(context.WithoutCancel(ctx), rep.RunID, status, msg); err != nil {
		logger.Warn("failed to complete run", slog.Any("error", err))
	}
}

// Failure summarizes why the target did not pass, or returns nil.
func (r *TargetReport) Failure() error {
	if r.Err != nil {
		return r.Err
	}
	failed := 0
	for _, c := range r.Cases {
		if c.Status != state.CaseStatusPassed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(r.Cases))
	}
	return nil
}

// crossCheck compares the output of every case that passed on two or more
// targets. Targets are compared in name order against the first.
func crossCheck(reports []*TargetReport) []*core.VerificationMismatch {
	byCase := make(map[string][]*verify.Result)
	for _, rep := range reports {
		for _, c := range rep.Cases {
			if c.Status == state.CaseStatusPassed && c.Result != nil {
				byCase[c.Case] = append(byCase[c.Case], c.Result)
			}
		}
	}
	names := make([]string, 0, len(byCase))
	for name := range byCase {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []*core.VerificationMismatch
	for _, name := range names {
		results := byCase[name]
		sort.Slice(results, func(i, j int) bool { return results[i].Target < results[j].Target })
		for _, other := range results[1:] {
			if m := verify.CrossCheck(name, results[0], other); m != nil {
				out = append(out, m)
			}
		}
	}
	return out
}
