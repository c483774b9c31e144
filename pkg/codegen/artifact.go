package codegen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
	"github.com/zeebo/xxh3"
)

// StatementKind classifies the statements of an artifact.
type StatementKind string

// Statement kinds, in execution order.
const (
	StatementSetup        StatementKind = "setup"
	StatementIntermediate StatementKind = "intermediate"
	StatementMaterialize  StatementKind = "materialize"
	StatementCleanup      StatementKind = "cleanup"
)

// Statement is one executable SQL statement.
type Statement struct {
	Kind StatementKind
	SQL  string
	// Operations lists the spec operation indexes the statement computes.
	Operations []int
}

// Key identifies an artifact: the spec (with its source schema, target and
// compile options) and the dialect it was compiled for.
type Key struct {
	SpecHash uint64
	Dialect  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%016x", k.Dialect, k.SpecHash)
}

// KeyFor returns the cache key of compiling v on d with opts.
func KeyFor(v *spec.Validated, d Dialect, opts Options) Key {
	h := xxh3.New()
	fmt.Fprintf(h, "%016x\x00%s\x00%s\x00%t", v.Fingerprint(),
		d.QualifyRef(core.TableRef{Schema: v.Target.Schema, Table: v.Target.Table}),
		opts.Merge, opts.Intermediates)
	return Key{SpecHash: h.Sum64(), Dialect: d.GetName()}
}

// Artifact is the compiled form of a spec for one dialect. It is immutable.
type Artifact struct {
	Key     Key
	Spec    string
	Dialect string

	// Statements run in order: setup, intermediates, materialize, cleanup.
	Statements []Statement
	// Query is the final SELECT producing the output rows.
	Query string

	Target   core.TableRef
	Relation string // Target, fully addressed
	Output   *core.Schema

	Materialization string
	// Overwrite is set when an incremental upsert was rewritten as a full
	// overwrite.
	Overwrite bool

	Blocks        int
	Intermediates int
}

// SQL returns every statement joined into one script.
func (a *Artifact) SQL() string {
	parts := make([]string, len(a.Statements))
	for i, st := range a.Statements {
		parts[i] = st.SQL + ";"
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// SelectSQL returns a query reading the materialized relation.
func (a *Artifact) SelectSQL() string {
	return "SELECT * FROM " + a.Relation
}
