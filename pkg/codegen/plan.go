package codegen

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/spec"
)

// Aliases used inside a block.
const (
	sourceAlias = "s"
	joinAlias   = "j"
	rowNumber   = "__ui4t_rn"
)

// column is one projected column of a block. expr is written against the
// block's FROM and JOIN relations.
type column struct {
	name string
	expr string
	typ  core.SemanticType
}

type joinClause struct {
	kind  string
	table string
	alias string
	on    []string
}

type window struct {
	partition []string
	order     string
}

// block is one SELECT level.
type block struct {
	joins      []joinClause
	cols       []column
	where      []string
	groupBy    []string
	aggregated bool
	having     []string
	dedupe     *window
	qualify    []string
	// closed blocks accept no further operations.
	closed bool
	ops    []int
}

func newBlock(d Dialect, schema *core.Schema) *block {
	b := &block{}
	for _, c := range schema.Columns() {
		b.cols = append(b.cols, column{name: c.Name, expr: sourceAlias + "." + d.QuoteIdentifier(c.Name), typ: c.Type})
	}
	return b
}

func (b *block) col(name string) (*column, error) {
	for i := range b.cols {
		if b.cols[i].name == name {
			return &b.cols[i], nil
		}
	}
	return nil, fmt.Errorf("column %s is not projected", name)
}

// plan fuses the validated operations into blocks, left to right. A new
// block starts whenever the next operation cannot fuse into the current one.
func plan(v *spec.Validated, d Dialect) ([]*block, error) {
	qualify := d.HasFeature(core.FeatureQualify)
	cur := newBlock(d, v.SourceSchema)
	blocks := []*block{cur}
	for _, st := range v.Steps {
		if !fits(cur, st.Op, qualify) {
			cur = newBlock(d, st.Input)
			blocks = append(blocks, cur)
		}
		if err := apply(d, cur, st, qualify); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", st.Index, st.Op.Kind(), err)
		}
		cur.ops = append(cur.ops, st.Index)
	}
	return blocks, nil
}

// fits reports whether op can fuse into b.
func fits(b *block, op spec.Operation, qualify bool) bool {
	if b.closed {
		return false
	}
	switch op.(type) {
	case *spec.Rename, *spec.Cast, *spec.Flatten:
		return true
	case *spec.Filter:
		return b.dedupe == nil || qualify
	case *spec.Dedupe:
		return b.dedupe == nil
	case *spec.Join, *spec.Aggregate:
		return !b.aggregated && b.dedupe == nil
	}
	return false
}

func apply(d Dialect, b *block, st spec.Step, qualify bool) error {
	switch o := st.Op.(type) {
	case *spec.Rename:
		for _, p := range o.Columns {
			c, err := b.col(p.From)
			if err != nil {
				return err
			}
			c.name = p.To
		}

	case *spec.Cast:
		c, err := b.col(o.Column)
		if err != nil {
			return err
		}
		c.expr = d.Cast(c.expr, c.typ, o.Type)
		c.typ = o.Type

	case *spec.Flatten:
		var cols []column
		for _, c := range b.cols {
			if c.name != o.Column {
				cols = append(cols, c)
				continue
			}
			if o.KeepSource {
				cols = append(cols, c)
			}
			for _, f := range o.Fields {
				cols = append(cols, column{name: f.Name(), expr: d.JSONExtract(c.expr, f.Segments(), f.Type), typ: f.Type})
			}
		}
		b.cols = cols

	case *spec.Filter:
		preds := make([]string, 0, len(o.Conditions))
		for _, cond := range o.Conditions {
			c, err := b.col(cond.Column)
			if err != nil {
				return err
			}
			p, err := predicate(d, c, cond)
			if err != nil {
				return err
			}
			preds = append(preds, p)
		}
		switch {
		case b.dedupe != nil:
			b.qualify = append(b.qualify, preds...)
		case b.aggregated:
			b.having = append(b.having, preds...)
		default:
			b.where = append(b.where, preds...)
		}

	case *spec.Dedupe:
		w := &window{}
		for _, k := range o.Keys {
			c, err := b.col(k)
			if err != nil {
				return err
			}
			w.partition = append(w.partition, c.expr)
		}
		c, err := b.col(o.OrderBy.Column)
		if err != nil {
			return err
		}
		w.order = c.expr + " " + strings.ToUpper(o.OrderBy.Dir()) + " NULLS LAST"
		b.dedupe = w
		if !qualify {
			b.closed = true
		}

	case *spec.Join:
		alias := fmt.Sprintf("%s%d", joinAlias, len(b.joins)+1)
		jc := joinClause{kind: strings.ToUpper(o.JoinType()), table: d.QualifyRef(o.Table), alias: alias}
		for _, k := range o.On {
			c, err := b.col(k.Left)
			if err != nil {
				return err
			}
			jc.on = append(jc.on, c.expr+" = "+alias+"."+d.QuoteIdentifier(k.Right))
		}
		b.joins = append(b.joins, jc)
		right := st.Output.Columns()[len(b.cols):]
		for _, rc := range right {
			src := rc.Name
			for _, sel := range o.Select {
				if sel.Name() == rc.Name {
					src = sel.Column
				}
			}
			b.cols = append(b.cols, column{name: rc.Name, expr: alias + "." + d.QuoteIdentifier(src), typ: rc.Type})
		}

	case *spec.Aggregate:
		cols := make([]column, 0, len(o.GroupBy)+len(o.Aggregations))
		var groupBy []string
		for _, g := range o.GroupBy {
			c, err := b.col(g)
			if err != nil {
				return err
			}
			cols = append(cols, *c)
			groupBy = append(groupBy, c.expr)
		}
		for _, a := range o.Aggregations {
			out, _ := st.Output.Lookup(a.Name())
			expr, err := aggregate(d, b, a, out.Type)
			if err != nil {
				return err
			}
			cols = append(cols, column{name: out.Name, expr: expr, typ: out.Type})
		}
		b.cols = cols
		b.groupBy = groupBy
		b.aggregated = true

	default:
		return fmt.Errorf("unsupported operation %T", st.Op)
	}
	return nil
}

var comparisons = map[string]string{
	spec.OpEq:  "=",
	spec.OpNe:  "<>",
	spec.OpLt:  "<",
	spec.OpLte: "<=",
	spec.OpGt:  ">",
	spec.OpGte: ">=",
}

func predicate(d Dialect, c *column, cond spec.Condition) (string, error) {
	switch cond.Op {
	case spec.OpIsNull:
		return c.expr + " IS NULL", nil
	case spec.OpNotNull:
		return c.expr + " IS NOT NULL", nil
	case spec.OpIn:
		lits := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			lit, err := d.Literal(v, c.typ)
			if err != nil {
				return "", err
			}
			lits[i] = lit
		}
		return c.expr + " IN (" + strings.Join(lits, ", ") + ")", nil
	}
	op, ok := comparisons[cond.Op]
	if !ok {
		return "", fmt.Errorf("unknown filter op %q", cond.Op)
	}
	lit, err := d.Literal(cond.Value, c.typ)
	if err != nil {
		return "", err
	}
	return c.expr + " " + op + " " + lit, nil
}

// aggregate renders an aggregation wrapped in a CAST to its output type, so
// every warehouse returns the same type.
func aggregate(d Dialect, b *block, a spec.Aggregation, out core.SemanticType) (string, error) {
	var inner string
	if a.Column == "" {
		inner = "COUNT(*)"
	} else {
		c, err := b.col(a.Column)
		if err != nil {
			return "", err
		}
		switch a.Func {
		case spec.AggCount:
			inner = "COUNT(" + c.expr + ")"
		case spec.AggCountDistinct:
			inner = "COUNT(DISTINCT " + c.expr + ")"
		case spec.AggSum:
			inner = "SUM(" + c.expr + ")"
		case spec.AggAvg:
			inner = "AVG(" + d.Cast(c.expr, c.typ, core.TypeDecimal) + ")"
		case spec.AggMin:
			inner = "MIN(" + c.expr + ")"
		case spec.AggMax:
			inner = "MAX(" + c.expr + ")"
		default:
			return "", fmt.Errorf("unknown aggregate function %q", a.Func)
		}
	}
	typ, err := d.MapType(out)
	if err != nil {
		return "", err
	}
	return "CAST(" + inner + " AS " + typ + ")", nil
}
