package core

import (
	"fmt"
	"strings"
)

// SchemaError is returned when a spec references unknown columns, invalid
// types or structurally invalid parameters. It is a caller error and is
// never retried.
type SchemaError struct {
	Index  int // operation index, -1 for the spec or source itself
	Kind   OperationKind
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Index >= 0 {
		fmt.Fprintf(&b, "operation %d (%s): ", e.Index, e.Kind)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, "column %q: ", e.Column)
	}
	b.WriteString(e.Reason)
	return b.String()
}

// UnsupportedOperationError is returned when a dialect cannot express an
// operation. It is surfaced immediately and never silently downgraded.
type UnsupportedOperationError struct {
	Dialect string
	Index   int // operation index, -1 for materialization-level constructs
	Kind    OperationKind
	Reason  string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("dialect %s does not support %s", e.Dialect, e.Kind)
	if e.Index >= 0 {
		msg = fmt.Sprintf("operation %d (%s): %s", e.Index, e.Kind, msg)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AmbiguousDedupeError is returned for a dedupe without an ordering column.
// There is no implicit row order, so the caller must supply one.
type AmbiguousDedupeError struct {
	Index int
	Keys  []string
}

func (e *AmbiguousDedupeError) Error() string {
	return fmt.Sprintf("operation %d (dedupe): keys [%s] need an order_by column to pick a surviving row",
		e.Index, strings.Join(e.Keys, ", "))
}

// SeedFailure is returned when fixture data could not be loaded into a
// warehouse target.
type SeedFailure struct {
	Target     string
	FixtureSet string
	Table      string // empty when the failure is not table-specific
	Partial    bool   // at least one table was loaded before the failure
	Transient  bool
	Err        error
}

func (e *SeedFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "seeding %s into target %s failed", e.FixtureSet, e.Target)
	if e.Table != "" {
		fmt.Fprintf(&b, " at table %s", e.Table)
	}
	if e.Partial {
		b.WriteString(" (schema left partially seeded)")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SeedFailure) Unwrap() error { return e.Err }

// PartialSeedError is returned when a target schema is not in a fully seeded
// state and must not be verified against.
type PartialSeedError struct {
	Target string
	Schema string
	Status map[string]string // fixture set -> manifest status
}

func (e *PartialSeedError) Error() string {
	if len(e.Status) == 0 {
		return fmt.Sprintf("target %s: schema %s has no seeded fixtures", e.Target, e.Schema)
	}
	parts := make([]string, 0, len(e.Status))
	for _, name := range sortedKeys(e.Status) {
		parts = append(parts, name+"="+e.Status[name])
	}
	return fmt.Sprintf("target %s: schema %s is not fully seeded (%s)", e.Target, e.Schema, strings.Join(parts, ", "))
}

// ExecutionError is returned when a compiled statement fails on a warehouse.
type ExecutionError struct {
	Target     string
	Spec       string
	Statement  int
	Operations []int
	Err        error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("target %s: spec %s: statement %d failed", e.Target, e.Spec, e.Statement)
	if len(e.Operations) > 0 {
		msg += fmt.Sprintf(" (operations %v)", e.Operations)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// MismatchKind classifies a row-level verification difference.
type MismatchKind string

// Mismatch kinds.
const (
	// MismatchMissing is an expected row that was not produced.
	MismatchMissing MismatchKind = "missing"
	// MismatchUnexpected is a produced row that was not expected.
	MismatchUnexpected MismatchKind = "unexpected"
)

// RowMismatch is one differing row (after normalization) and how many
// copies of it differ.
type RowMismatch struct {
	Kind  MismatchKind
	Row   map[string]string
	Count int
}

// VerificationMismatch is a data-level assertion failure. It is recorded and
// reported, never fatal to the surrounding run.
type VerificationMismatch struct {
	Target         string
	Spec           string
	MissingColumns []string
	ExtraColumns   []string
	Rows           []RowMismatch
}

func (e *VerificationMismatch) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "target %s: spec %s: result differs from expectation", e.Target, e.Spec)
	if len(e.MissingColumns) > 0 {
		fmt.Fprintf(&b, "\n  missing columns: %s", strings.Join(e.MissingColumns, ", "))
	}
	if len(e.ExtraColumns) > 0 {
		fmt.Fprintf(&b, "\n  extra columns: %s", strings.Join(e.ExtraColumns, ", "))
	}
	for _, m := range e.Rows {
		fmt.Fprintf(&b, "\n  %s x%d: %s", m.Kind, m.Count, FormatRow(m.Row))
	}
	return b.String()
}

// FormatRow renders a normalized row with its columns sorted by name.
func FormatRow(row map[string]string) string {
	parts := make([]string, 0, len(row))
	for _, k := range sortedKeys(row) {
		parts = append(parts, k+"="+row[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
