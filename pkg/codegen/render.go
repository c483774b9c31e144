package codegen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
)

type renderer struct {
	d      Dialect
	source string
	target core.TableRef
	// chain renders blocks as CTEs of one statement instead of
	// intermediate tables.
	chain bool
}

// stageName returns the CTE name of block i.
func stageName(i int) string {
	return fmt.Sprintf("stage_%d", i+1)
}

// intermediate returns the table holding block i when CTEs are not used.
func (r *renderer) intermediate(i int) core.TableRef {
	return core.TableRef{Schema: r.target.Schema, Table: fmt.Sprintf("%s__stage_%d", r.target.Table, i+1)}
}

// from returns the relation block i reads from.
func (r *renderer) from(i int) string {
	switch {
	case i == 0:
		return r.source
	case r.chain:
		return stageName(i - 1)
	default:
		return r.d.QualifyRef(r.intermediate(i - 1))
	}
}

// query renders the final SELECT of the artifact. Without CTE chaining it
// reads from the last intermediate table.
func (r *renderer) query(blocks []*block, v *spec.Validated) string {
	if len(v.Steps) == 0 {
		return "SELECT * FROM " + r.source
	}
	last := len(blocks) - 1
	if !r.chain || last == 0 {
		return r.block(blocks[last], r.from(last))
	}
	var b strings.Builder
	b.WriteString("WITH ")
	for i, blk := range blocks[:last] {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString(stageName(i) + " AS (\n" + r.block(blk, r.from(i)) + "\n)")
	}
	b.WriteString("\n" + r.block(blocks[last], r.from(last)))
	return b.String()
}

// block renders one SELECT level reading from the given relation.
func (r *renderer) block(b *block, from string) string {
	q := r.d.QuoteIdentifier
	proj := make([]string, 0, len(b.cols)+1)
	for _, c := range b.cols {
		if c.expr == sourceAlias+"."+q(c.name) {
			proj = append(proj, c.expr)
			continue
		}
		proj = append(proj, c.expr+" AS "+q(c.name))
	}

	var over string
	if b.dedupe != nil {
		over = "ROW_NUMBER() OVER (PARTITION BY " + strings.Join(b.dedupe.partition, ", ") +
			" ORDER BY " + b.dedupe.order + ")"
	}
	useQualify := b.dedupe != nil && r.d.HasFeature(core.FeatureQualify)
	if b.dedupe != nil && !useQualify {
		proj = append(proj, over+" AS "+q(rowNumber))
	}

	var s strings.Builder
	s.WriteString("SELECT\n  " + strings.Join(proj, ",\n  "))
	s.WriteString("\nFROM " + from + " AS " + sourceAlias)
	for _, j := range b.joins {
		s.WriteString("\n" + j.kind + " JOIN " + j.table + " AS " + j.alias)
		s.WriteString("\n  ON " + strings.Join(j.on, "\n  AND "))
	}
	where := b.where
	if useQualify && len(where) == 0 && len(b.groupBy) == 0 && len(b.having) == 0 {
		// QUALIFY needs a WHERE, GROUP BY or HAVING clause on some warehouses.
		where = []string{"TRUE"}
	}
	if len(where) > 0 {
		s.WriteString("\nWHERE " + strings.Join(where, "\n  AND "))
	}
	if len(b.groupBy) > 0 {
		s.WriteString("\nGROUP BY\n  " + strings.Join(b.groupBy, ",\n  "))
	}
	if len(b.having) > 0 {
		s.WriteString("\nHAVING " + strings.Join(b.having, "\n  AND "))
	}
	if useQualify {
		s.WriteString("\nQUALIFY " + strings.Join(append([]string{over + " = 1"}, b.qualify...), "\n  AND "))
	}
	if b.dedupe == nil || useQualify {
		return s.String()
	}

	names := make([]string, len(b.cols))
	for i, c := range b.cols {
		names[i] = q(c.name)
	}
	return "SELECT\n  " + strings.Join(names, ",\n  ") +
		"\nFROM (\n" + s.String() + "\n) AS deduped" +
		"\nWHERE " + q(rowNumber) + " = 1"
}
