package codegen

import (
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
)

// statements fills in the artifact's statements and final query.
func (r *renderer) statements(a *Artifact, blocks []*block, v *spec.Validated) error {
	a.Query = r.query(blocks, v)
	all := v.Spec.Operations
	ops := make([]int, len(all))
	for i := range all {
		ops[i] = i
	}

	if sql := r.d.CreateSchemaSQL(r.target.Schema); sql != "" {
		a.Statements = append(a.Statements, Statement{Kind: StatementSetup, SQL: sql})
	}

	last := len(blocks) - 1
	final := ops
	if !r.chain && len(v.Steps) > 0 {
		for i, b := range blocks[:last] {
			ref := r.intermediate(i)
			for _, sql := range r.createTableAs(ref, r.block(b, r.from(i))) {
				a.Statements = append(a.Statements, Statement{Kind: StatementIntermediate, SQL: sql, Operations: b.ops})
			}
			a.Intermediates++
		}
		final = blocks[last].ops
	}

	var materialize []string
	switch a.Materialization {
	case core.MaterializationView:
		rel := r.d.QualifyRef(r.target)
		if r.d.HasFeature(core.FeatureCreateOrReplace) {
			materialize = []string{"CREATE OR REPLACE VIEW " + rel + " AS\n" + a.Query}
		} else {
			materialize = []string{r.d.DropViewSQL(r.target), "CREATE VIEW " + rel + " AS\n" + a.Query}
		}
	case core.MaterializationIncremental:
		ensure, err := r.d.CreateTableIfNotExistsSQL(r.target, v.Output)
		if err != nil {
			return err
		}
		materialize = []string{ensure, r.merge(a.Query, v)}
	default:
		materialize = r.createTableAs(r.target, a.Query)
	}
	for _, sql := range materialize {
		a.Statements = append(a.Statements, Statement{Kind: StatementMaterialize, SQL: sql, Operations: final})
	}

	// Views keep reading their intermediates.
	if a.Materialization == core.MaterializationView {
		return nil
	}
	for i := 0; i < a.Intermediates; i++ {
		a.Statements = append(a.Statements, Statement{Kind: StatementCleanup, SQL: r.d.DropTableSQL(r.intermediate(i))})
	}
	return nil
}

// createTableAs replaces ref with the result of query.
func (r *renderer) createTableAs(ref core.TableRef, query string) []string {
	rel := r.d.QualifyRef(ref)
	if r.d.HasFeature(core.FeatureCreateOrReplace) {
		return []string{"CREATE OR REPLACE TABLE " + rel + " AS\n" + query}
	}
	return []string{r.d.DropTableSQL(ref), "CREATE TABLE " + rel + " AS\n" + query}
}

// merge renders the row-level upsert of query into the target on the
// unique key.
func (r *renderer) merge(query string, v *spec.Validated) string {
	q := r.d.QuoteIdentifier
	keys := make(map[string]bool, len(v.Target.UniqueKey))
	on := make([]string, len(v.Target.UniqueKey))
	for i, k := range v.Target.UniqueKey {
		keys[k] = true
		on[i] = "t." + q(k) + " = src." + q(k)
	}

	var set, cols, vals []string
	for _, name := range v.Output.Names() {
		cols = append(cols, q(name))
		vals = append(vals, "src."+q(name))
		if !keys[name] {
			set = append(set, q(name)+" = src."+q(name))
		}
	}

	var b strings.Builder
	b.WriteString("MERGE INTO " + r.d.QualifyRef(r.target) + " AS t")
	b.WriteString("\nUSING (\n" + query + "\n) AS src")
	b.WriteString("\nON " + strings.Join(on, " AND "))
	if len(set) > 0 {
		b.WriteString("\nWHEN MATCHED THEN\n  UPDATE SET " + strings.Join(set, ", "))
	}
	b.WriteString("\nWHEN NOT MATCHED THEN\n  INSERT (" + strings.Join(cols, ", ") + ")")
	b.WriteString("\n  VALUES (" + strings.Join(vals, ", ") + ")")
	return b.String()
}
