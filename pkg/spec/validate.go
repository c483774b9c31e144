package spec

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// Step is one validated operation with the schemas around it.
type Step struct {
	Index  int
	Op     Operation
	Input  *core.Schema
	Output *core.Schema
}

// Validated is a spec whose every column reference has been resolved. It is
// immutable and is the only input the code generator accepts.
type Validated struct {
	Spec         *Spec
	SourceSchema *core.Schema
	Steps        []Step
	Output       *core.Schema
	// Target is the resolved materialization target. An empty Schema means
	// the warehouse target's default schema.
	Target Target

	fingerprint uint64
}

// Fingerprint identifies the spec and its source schema.
func (v *Validated) Fingerprint() uint64 {
	return v.fingerprint
}

// Validate checks s against the source schema and returns the validated
// spec. source may be nil when the spec declares its columns; when both are
// present they must agree. The first invalid operation fails validation with
// a *core.SchemaError (or *core.AmbiguousDedupeError for a dedupe without
// an ordering). Validate is pure: identical inputs give identical results.
func Validate(s *Spec, source *core.Schema) (*Validated, error) {
	if s == nil {
		return nil, &core.SchemaError{Index: -1, Reason: "spec is nil"}
	}
	if !core.ValidIdentifier(s.Name) {
		return nil, &core.SchemaError{Index: -1, Reason: fmt.Sprintf("spec name %q is not a valid identifier", s.Name)}
	}
	if err := checkRef(s.Source, "source"); err != nil {
		return nil, err
	}

	declared, err := s.DeclaredSchema()
	if err != nil {
		return nil, &core.SchemaError{Index: -1, Reason: "source columns: " + err.Error()}
	}
	switch {
	case source == nil && declared == nil:
		return nil, &core.SchemaError{Index: -1, Reason: fmt.Sprintf("source %s has no known schema", s.Source)}
	case source == nil:
		source = declared
	case declared != nil && !declared.Equal(source):
		return nil, &core.SchemaError{Index: -1, Reason: fmt.Sprintf("declared source columns %s do not match %s", declared, source)}
	}

	v := &Validated{Spec: s, SourceSchema: source}
	cur := source
	for i, op := range s.Operations {
		if op == nil {
			return nil, &core.SchemaError{Index: i, Reason: "operation is empty"}
		}
		next, err := apply(i, op, cur)
		if err != nil {
			return nil, err
		}
		v.Steps = append(v.Steps, Step{Index: i, Op: op, Input: cur, Output: next})
		cur = next
	}
	v.Output = cur

	target, err := resolveTarget(s, cur)
	if err != nil {
		return nil, err
	}
	v.Target = target

	fp, err := fingerprint(s, source)
	if err != nil {
		return nil, fmt.Errorf("fingerprint spec %s: %w", s.Name, err)
	}
	v.fingerprint = fp
	return v, nil
}

func checkRef(ref core.TableRef, what string) error {
	if reason := refProblem(ref, what); reason != "" {
		return &core.SchemaError{Index: -1, Reason: reason}
	}
	return nil
}

func refProblem(ref core.TableRef, what string) string {
	if !core.ValidIdentifier(ref.Table) {
		return fmt.Sprintf("%s table %q is not a valid identifier", what, ref.Table)
	}
	if ref.Schema != "" && !core.ValidIdentifier(ref.Schema) {
		return fmt.Sprintf("%s schema %q is not a valid identifier", what, ref.Schema)
	}
	return ""
}

func resolveTarget(s *Spec, out *core.Schema) (Target, error) {
	t := Target{Table: s.Name}
	if s.Target != nil {
		t = *s.Target
		if t.Table == "" {
			t.Table = s.Name
		}
	}
	if err := checkRef(core.TableRef{Schema: t.Schema, Table: t.Table}, "target"); err != nil {
		return t, err
	}
	switch t.Kind() {
	case core.MaterializationTable, core.MaterializationView:
		if len(t.UniqueKey) > 0 {
			return t, &core.SchemaError{Index: -1, Reason: fmt.Sprintf("unique_key only applies to %s materializations", core.MaterializationIncremental)}
		}
	case core.MaterializationIncremental:
		if len(t.UniqueKey) == 0 {
			return t, &core.SchemaError{Index: -1, Reason: "incremental materialization needs a unique_key"}
		}
		for _, k := range t.UniqueKey {
			col, ok := out.Lookup(k)
			if !ok {
				return t, &core.SchemaError{Index: -1, Column: k, Reason: "unique_key column does not exist in the output"}
			}
			if !col.Type.Keyable() {
				return t, &core.SchemaError{Index: -1, Column: k, Reason: fmt.Sprintf("%s columns cannot be used as keys", col.Type)}
			}
		}
	default:
		return t, &core.SchemaError{Index: -1, Reason: fmt.Sprintf("unknown materialization %q (expected table, view or incremental)", t.Type)}
	}
	return t, nil
}

// apply validates one operation against in and returns the schema it produces.
func apply(i int, op Operation, in *core.Schema) (*core.Schema, error) {
	switch o := op.(type) {
	case *Rename:
		return applyRename(i, o, in)
	case *Cast:
		return applyCast(i, o, in)
	case *Dedupe:
		return applyDedupe(i, o, in)
	case *Flatten:
		return applyFlatten(i, o, in)
	case *Join:
		return applyJoin(i, o, in)
	case *Aggregate:
		return applyAggregate(i, o, in)
	case *Filter:
		return applyFilter(i, o, in)
	}
	return nil, &core.SchemaError{Index: i, Kind: op.Kind(), Reason: fmt.Sprintf("unknown operation type %T", op)}
}

// errf builds a SchemaError for operation i.
func errf(i int, kind core.OperationKind, column, format string, args ...any) error {
	return &core.SchemaError{Index: i, Kind: kind, Column: column, Reason: fmt.Sprintf(format, args...)}
}

func lookup(i int, kind core.OperationKind, in *core.Schema, name string) (core.Column, error) {
	col, ok := in.Lookup(name)
	if !ok {
		return col, errf(i, kind, name, "column does not exist (available: %s)", strings.Join(in.Names(), ", "))
	}
	return col, nil
}

// build assembles an output schema, reporting duplicate or invalid names.
func build(i int, kind core.OperationKind, cols []core.Column) (*core.Schema, error) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if !core.ValidIdentifier(c.Name) {
			return nil, errf(i, kind, c.Name, "output name is not a valid identifier")
		}
		if seen[c.Name] {
			return nil, errf(i, kind, c.Name, "duplicate output column")
		}
		seen[c.Name] = true
	}
	s, err := core.NewSchema(cols...)
	if err != nil {
		return nil, errf(i, kind, "", "%v", err)
	}
	return s, nil
}

func applyRename(i int, o *Rename, in *core.Schema) (*core.Schema, error) {
	if len(o.Columns) == 0 {
		return nil, errf(i, core.OpRename, "", "rename needs at least one column")
	}
	cols := in.Columns()
	for _, p := range o.Columns {
		if p.From == "" || p.To == "" {
			return nil, errf(i, core.OpRename, p.From, "rename needs both from and to")
		}
		idx := slices.IndexFunc(cols, func(c core.Column) bool { return c.Name == p.From })
		if idx < 0 {
			return nil, errf(i, core.OpRename, p.From, "column does not exist")
		}
		cols[idx].Name = p.To
		if _, err := build(i, core.OpRename, cols); err != nil {
			return nil, err
		}
	}
	return build(i, core.OpRename, cols)
}

func applyCast(i int, o *Cast, in *core.Schema) (*core.Schema, error) {
	if o.Column == "" {
		return nil, errf(i, core.OpCast, "", "cast needs a column")
	}
	if !o.Type.Valid() {
		return nil, errf(i, core.OpCast, o.Column, "unknown type %q", o.Type)
	}
	col, err := lookup(i, core.OpCast, in, o.Column)
	if err != nil {
		return nil, err
	}
	if !core.CanCast(col.Type, o.Type) {
		return nil, errf(i, core.OpCast, o.Column, "cannot cast %s to %s", col.Type, o.Type)
	}
	cols := in.Columns()
	for j := range cols {
		if cols[j].Name == o.Column {
			cols[j].Type = o.Type
		}
	}
	return build(i, core.OpCast, cols)
}

func checkKeys(i int, kind core.OperationKind, in *core.Schema, keys []string) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		col, err := lookup(i, kind, in, k)
		if err != nil {
			return err
		}
		if !col.Type.Keyable() {
			return errf(i, kind, k, "%s columns cannot be used as keys", col.Type)
		}
		if seen[k] {
			return errf(i, kind, k, "key listed twice")
		}
		seen[k] = true
	}
	return nil
}

func applyDedupe(i int, o *Dedupe, in *core.Schema) (*core.Schema, error) {
	// A missing ordering is reported whatever else is wrong with the keys.
	if o.OrderBy == nil || o.OrderBy.Column == "" {
		return nil, &core.AmbiguousDedupeError{Index: i, Keys: slices.Clone(o.Keys)}
	}
	if len(o.Keys) == 0 {
		return nil, errf(i, core.OpDedupe, "", "dedupe needs at least one key")
	}
	if o.OrderBy.Direction != "" && o.OrderBy.Direction != Asc && o.OrderBy.Direction != Desc {
		return nil, errf(i, core.OpDedupe, o.OrderBy.Column, "unknown direction %q (expected asc or desc)", o.OrderBy.Direction)
	}
	if err := checkKeys(i, core.OpDedupe, in, o.Keys); err != nil {
		return nil, err
	}
	col, err := lookup(i, core.OpDedupe, in, o.OrderBy.Column)
	if err != nil {
		return nil, err
	}
	if !col.Type.Orderable() {
		return nil, errf(i, core.OpDedupe, col.Name, "%s columns cannot be used for ordering", col.Type)
	}
	return in, nil
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

func applyFlatten(i int, o *Flatten, in *core.Schema) (*core.Schema, error) {
	if o.Column == "" {
		return nil, errf(i, core.OpFlatten, "", "flatten needs a column")
	}
	if len(o.Fields) == 0 {
		return nil, errf(i, core.OpFlatten, o.Column, "flatten needs at least one field")
	}
	src, err := lookup(i, core.OpFlatten, in, o.Column)
	if err != nil {
		return nil, err
	}
	if src.Type != core.TypeJSON {
		return nil, errf(i, core.OpFlatten, o.Column, "flatten needs a json column, got %s", src.Type)
	}

	extracted := make([]core.Column, 0, len(o.Fields))
	for _, f := range o.Fields {
		for _, seg := range f.Segments() {
			if !core.ValidIdentifier(seg) {
				return nil, errf(i, core.OpFlatten, o.Column, "path %q: segment %q is not a valid identifier", f.Path, seg)
			}
		}
		if !f.Type.Valid() {
			return nil, errf(i, core.OpFlatten, o.Column, "path %q: unknown type %q", f.Path, f.Type)
		}
		extracted = append(extracted, core.Column{Name: f.Name(), Type: f.Type})
	}

	var cols []core.Column
	for _, c := range in.Columns() {
		if c.Name == o.Column {
			if o.KeepSource {
				cols = append(cols, c)
			}
			cols = append(cols, extracted...)
			continue
		}
		cols = append(cols, c)
	}
	return build(i, core.OpFlatten, cols)
}

func applyJoin(i int, o *Join, in *core.Schema) (*core.Schema, error) {
	if reason := refProblem(o.Table, "join"); reason != "" {
		return nil, errf(i, core.OpJoin, "", "%s", reason)
	}
	if t := o.JoinType(); t != JoinInner && t != JoinLeft {
		return nil, errf(i, core.OpJoin, "", "unknown join type %q (expected inner or left)", o.Type)
	}
	if len(o.On) == 0 {
		return nil, errf(i, core.OpJoin, "", "join needs at least one key")
	}
	if len(o.Columns) == 0 {
		return nil, errf(i, core.OpJoin, "", "join needs the columns of %s", o.Table)
	}
	right, err := core.NewSchema(o.Columns...)
	if err != nil {
		return nil, errf(i, core.OpJoin, "", "columns of %s: %v", o.Table, err)
	}

	rightKeys := make(map[string]bool, len(o.On))
	for _, k := range o.On {
		lc, err := lookup(i, core.OpJoin, in, k.Left)
		if err != nil {
			return nil, err
		}
		rc, ok := right.Lookup(k.Right)
		if !ok {
			return nil, errf(i, core.OpJoin, k.Right, "join key does not exist in %s", o.Table)
		}
		if !lc.Type.Keyable() {
			return nil, errf(i, core.OpJoin, k.Left, "%s columns cannot be used as keys", lc.Type)
		}
		if lc.Type != rc.Type {
			return nil, errf(i, core.OpJoin, k.Left, "join key type mismatch: %s vs %s.%s %s", lc.Type, o.Table, rc.Name, rc.Type)
		}
		rightKeys[k.Right] = true
	}

	cols := in.Columns()
	if len(o.Select) == 0 {
		for _, c := range right.Columns() {
			if !rightKeys[c.Name] {
				cols = append(cols, c)
			}
		}
	} else {
		for _, sel := range o.Select {
			rc, ok := right.Lookup(sel.Column)
			if !ok {
				return nil, errf(i, core.OpJoin, sel.Column, "column does not exist in %s", o.Table)
			}
			cols = append(cols, core.Column{Name: sel.Name(), Type: rc.Type})
		}
	}
	return build(i, core.OpJoin, cols)
}

func applyAggregate(i int, o *Aggregate, in *core.Schema) (*core.Schema, error) {
	if len(o.Aggregations) == 0 {
		return nil, errf(i, core.OpAggregate, "", "aggregate needs at least one aggregation")
	}
	if err := checkKeys(i, core.OpAggregate, in, o.GroupBy); err != nil {
		return nil, err
	}
	cols := make([]core.Column, 0, len(o.GroupBy)+len(o.Aggregations))
	for _, g := range o.GroupBy {
		c, _ := in.Lookup(g)
		cols = append(cols, c)
	}
	for _, a := range o.Aggregations {
		t, err := aggregateType(i, a, in)
		if err != nil {
			return nil, err
		}
		cols = append(cols, core.Column{Name: a.Name(), Type: t})
	}
	return build(i, core.OpAggregate, cols)
}

// aggregateType returns the result type of an aggregation.
func aggregateType(i int, a Aggregation, in *core.Schema) (core.SemanticType, error) {
	if a.Func == AggCount && a.Column == "" {
		return core.TypeInteger, nil
	}
	switch a.Func {
	case AggCount, AggCountDistinct, AggSum, AggAvg, AggMin, AggMax:
	default:
		return "", errf(i, core.OpAggregate, a.Column, "unknown aggregate function %q", a.Func)
	}
	if a.Column == "" {
		return "", errf(i, core.OpAggregate, "", "%s needs a column", a.Func)
	}
	col, err := lookup(i, core.OpAggregate, in, a.Column)
	if err != nil {
		return "", err
	}
	switch a.Func {
	case AggCount:
		return core.TypeInteger, nil
	case AggCountDistinct:
		if !col.Type.Keyable() {
			return "", errf(i, core.OpAggregate, a.Column, "cannot count distinct %s values", col.Type)
		}
		return core.TypeInteger, nil
	case AggSum:
		if !col.Type.Numeric() {
			return "", errf(i, core.OpAggregate, a.Column, "sum needs a numeric column, got %s", col.Type)
		}
		return col.Type, nil
	case AggAvg:
		if !col.Type.Numeric() {
			return "", errf(i, core.OpAggregate, a.Column, "avg needs a numeric column, got %s", col.Type)
		}
		return core.TypeDecimal, nil
	default: // min, max
		if !col.Type.Orderable() {
			return "", errf(i, core.OpAggregate, a.Column, "%s needs an orderable column, got %s", a.Func, col.Type)
		}
		return col.Type, nil
	}
}

func applyFilter(i int, o *Filter, in *core.Schema) (*core.Schema, error) {
	if len(o.Conditions) == 0 {
		return nil, errf(i, core.OpFilter, "", "filter needs at least one condition")
	}
	for _, c := range o.Conditions {
		col, err := lookup(i, core.OpFilter, in, c.Column)
		if err != nil {
			return nil, err
		}
		switch c.Op {
		case OpIsNull, OpNotNull:
			if c.Value != nil || len(c.Values) > 0 {
				return nil, errf(i, core.OpFilter, c.Column, "%s takes no value", c.Op)
			}
			continue
		case OpEq, OpNe:
			if !col.Type.Keyable() {
				return nil, errf(i, core.OpFilter, c.Column, "cannot compare %s values", col.Type)
			}
		case OpLt, OpLte, OpGt, OpGte:
			if !col.Type.Orderable() {
				return nil, errf(i, core.OpFilter, c.Column, "%s columns are not orderable", col.Type)
			}
		case OpIn:
			if !col.Type.Keyable() {
				return nil, errf(i, core.OpFilter, c.Column, "cannot compare %s values", col.Type)
			}
			if len(c.Values) == 0 {
				return nil, errf(i, core.OpFilter, c.Column, "in needs at least one value")
			}
			for _, v := range c.Values {
				if err := checkLiteral(i, c, col, v); err != nil {
					return nil, err
				}
			}
			continue
		default:
			return nil, errf(i, core.OpFilter, c.Column, "unknown filter op %q", c.Op)
		}
		if len(c.Values) > 0 {
			return nil, errf(i, core.OpFilter, c.Column, "%s takes a single value", c.Op)
		}
		if err := checkLiteral(i, c, col, c.Value); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func checkLiteral(i int, c Condition, col core.Column, v any) error {
	if v == nil {
		return errf(i, core.OpFilter, c.Column, "%s needs a value (use is_null for NULL)", c.Op)
	}
	if _, err := core.Coerce(v, col.Type); err != nil {
		return errf(i, core.OpFilter, c.Column, "bad %s literal: %v", col.Type, err)
	}
	return nil
}
