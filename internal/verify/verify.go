// Package verify executes compiled artifacts on a warehouse and checks the
// materialized rows against expectations.
//
// Rows are compared as multisets after type normalization, so row order
// and driver-specific value representations do not matter.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/ui4t/internal/seed"
	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/codegen"
	"github.com/leapstack-labs/ui4t/pkg/core"
)

// Verifier runs artifacts and compares their output.
type Verifier struct {
	logger *slog.Logger
}

// New creates a Verifier. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{logger: logger}
}

// Result is the outcome of one verification.
type Result struct {
	Target string
	Spec   string
	Key    codegen.Key
	// Actual holds the fetched rows, normalized.
	Actual   *Rows
	Mismatch *core.VerificationMismatch
	Duration time.Duration
}

// Err returns the mismatch, or nil when the rows matched.
func (r *Result) Err() error {
	if r == nil || r.Mismatch == nil {
		return nil
	}
	return r.Mismatch
}

// CheckSeeded fails with *core.PartialSeedError unless the target schema
// has at least one fixture set and every set is completely seeded.
func CheckSeeded(ctx context.Context, target *adapter.Target) error {
	entries, err := seed.ReadManifest(ctx, target)
	if err != nil {
		return err
	}
	status := make(map[string]string, len(entries))
	complete := len(entries) > 0
	for _, e := range entries {
		status[e.FixtureSet] = e.Status
		if e.Status != seed.StatusComplete {
			complete = false
		}
	}
	if !complete {
		return &core.PartialSeedError{Target: target.Name, Schema: target.Schema, Status: status}
	}
	return nil
}

// Execute runs every artifact statement in order. A failing statement is
// returned as *core.ExecutionError.
func (v *Verifier) Execute(ctx context.Context, a *codegen.Artifact, target *adapter.Target) error {
	for i, st := range a.Statements {
		v.logger.Debug("executing statement",
			slog.String("target", target.Name), slog.String("spec", a.Spec),
			slog.Int("statement", i), slog.String("kind", string(st.Kind)))
		if err := target.Adapter.Exec(ctx, st.SQL); err != nil {
			return &core.ExecutionError{
				Target:     target.Name,
				Spec:       a.Spec,
				Statement:  i,
				Operations: st.Operations,
				Err:        err,
			}
		}
	}
	return nil
}

// Fetch reads the artifact's materialized relation.
func (v *Verifier) Fetch(ctx context.Context, a *codegen.Artifact, target *adapter.Target) (*Rows, error) {
	rs, err := target.Adapter.Query(ctx, a.SelectSQL())
	if err != nil {
		return nil, &core.ExecutionError{Target: target.Name, Spec: a.Spec, Statement: len(a.Statements), Err: err}
	}
	rows, err := FromResultSet(rs, a.Output)
	if err != nil {
		return nil, fmt.Errorf("target %s: spec %s: %w", target.Name, a.Spec, err)
	}
	return rows, nil
}

// Verify checks the seed state, executes a, fetches the result and compares
// it with expected. A data mismatch is reported in the Result, not as an
// error; errors mean the verification could not be carried out.
func (v *Verifier) Verify(ctx context.Context, a *codegen.Artifact, target *adapter.Target, expected []core.Row) (*Result, error) {
	start := time.Now()
	want, err := FromRecords(expected, a.Output)
	if err != nil {
		return nil, fmt.Errorf("spec %s: %w", a.Spec, err)
	}
	if err := CheckSeeded(ctx, target); err != nil {
		return nil, err
	}
	if err := v.Execute(ctx, a, target); err != nil {
		return nil, err
	}
	got, err := v.Fetch(ctx, a, target)
	if err != nil {
		return nil, err
	}

	res := &Result{Target: target.Name, Spec: a.Spec, Key: a.Key, Actual: got}
	if diff := Compare(want, got); !diff.Empty() {
		res.Mismatch = &core.VerificationMismatch{
			Target:         target.Name,
			Spec:           a.Spec,
			MissingColumns: diff.MissingColumns,
			ExtraColumns:   diff.ExtraColumns,
			Rows:           diff.Rows,
		}
	}
	res.Duration = time.Since(start)
	v.logger.Info("verified",
		slog.String("target", target.Name), slog.String("spec", a.Spec),
		slog.Int("rows", got.Len()), slog.Bool("match", res.Mismatch == nil),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// CrossCheck compares the rows two targets produced for the same spec.
// Differences are reported as a mismatch on "left~right".
func CrossCheck(spec string, left, right *Result) *core.VerificationMismatch {
	diff := Compare(left.Actual, right.Actual)
	if diff.Empty() {
		return nil
	}
	return &core.VerificationMismatch{
		Target:         left.Target + "~" + right.Target,
		Spec:           spec,
		MissingColumns: diff.MissingColumns,
		ExtraColumns:   diff.ExtraColumns,
		Rows:           diff.Rows,
	}
}

// Suite collects verification outcomes across targets. It is safe for
// concurrent use.
type Suite struct {
	mu      sync.Mutex
	results []*Result
	errs    []error
}

// Add records a result; its mismatch, if any, becomes a suite error.
func (s *Suite) Add(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	if err := r.Err(); err != nil {
		s.errs = append(s.errs, err)
	}
}

// Fail records an error that prevented a verification.
func (s *Suite) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Results returns the recorded results sorted by spec, then target.
func (s *Suite) Results() []*Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*Result(nil), s.results...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Spec != out[j].Spec {
			return out[i].Spec < out[j].Spec
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Err joins every recorded mismatch and failure, or returns nil.
func (s *Suite) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}
