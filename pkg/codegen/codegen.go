// Package codegen compiles validated transformation specs into
// warehouse-specific SQL.
//
// Operations are fused greedily into query blocks. A block is one SELECT
// level; blocks chain as CTEs when the dialect has them and as materialized
// intermediate tables otherwise. The output of Compile is an Artifact: the
// ordered statements that materialize the spec's target relation.
package codegen

import (
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
)

// Dialect is the warehouse behavior the code generator consumes.
// *dialect.Dialect implements it.
type Dialect interface {
	GetName() string
	QuoteIdentifier(name string) string
	QualifySchema(schema string) string
	QualifyRef(ref core.TableRef) string
	MapType(t core.SemanticType) (string, error)
	Supports(kind core.OperationKind) bool
	Check(index int, kind core.OperationKind) error
	HasFeature(f core.Feature) bool
	Cast(expr string, from, to core.SemanticType) string
	JSONExtract(expr string, path []string, t core.SemanticType) string
	Literal(v any, t core.SemanticType) (string, error)
	CreateSchemaSQL(schema string) string
	CreateTableIfNotExistsSQL(ref core.TableRef, schema *core.Schema) (string, error)
	DropTableSQL(ref core.TableRef) string
	DropViewSQL(ref core.TableRef) string
}

// MergeStrategy selects how incremental materializations upsert rows.
type MergeStrategy string

// Merge strategies.
const (
	// MergeNative uses the dialect's row-level MERGE and fails with an
	// UnsupportedOperationError when there is none.
	MergeNative MergeStrategy = ""
	// MergeOverwrite rewrites the upsert as a full overwrite of the target.
	MergeOverwrite MergeStrategy = "overwrite"
)

// Options tune compilation.
type Options struct {
	Merge MergeStrategy
	// Intermediates materializes every non-final block as a table even when
	// the dialect can chain CTEs.
	Intermediates bool
}

// Compile generates the artifact for v on dialect d. Every operation is
// checked against the dialect first; an *core.UnsupportedOperationError
// names the first operation d cannot express.
func Compile(v *spec.Validated, d Dialect, opts Options) (*Artifact, error) {
	for _, st := range v.Steps {
		if err := d.Check(st.Index, st.Op.Kind()); err != nil {
			return nil, err
		}
	}

	kind := v.Target.Kind()
	if kind == core.MaterializationIncremental && opts.Merge != MergeOverwrite {
		if err := d.Check(-1, core.OpUpsert); err != nil {
			return nil, err
		}
		if !d.HasFeature(core.FeatureMerge) {
			return nil, &core.UnsupportedOperationError{
				Dialect: d.GetName(), Index: -1, Kind: core.OpUpsert, Reason: "MERGE is unavailable",
			}
		}
	}

	target := core.TableRef{Schema: v.Target.Schema, Table: v.Target.Table}
	blocks, err := plan(v, d)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Key:             KeyFor(v, d, opts),
		Spec:            v.Spec.Name,
		Dialect:         d.GetName(),
		Target:          target,
		Relation:        d.QualifyRef(target),
		Materialization: kind,
		Output:          v.Output,
		Blocks:          len(blocks),
	}
	if kind == core.MaterializationIncremental && opts.Merge == MergeOverwrite {
		a.Materialization = core.MaterializationTable
		a.Overwrite = true
	}

	r := &renderer{d: d, source: d.QualifyRef(v.Spec.Source), target: target}
	r.chain = d.HasFeature(core.FeatureCTE) && !opts.Intermediates
	if err := r.statements(a, blocks, v); err != nil {
		return nil, err
	}
	return a, nil
}
