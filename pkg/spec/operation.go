package spec

import (
	"github.com/leapstack-labs/ui4t/pkg/core"
)

// Operation is one step of a transformation spec. The concrete types are
// *Rename, *Cast, *Dedupe, *Flatten, *Join, *Aggregate and *Filter.
type Operation interface {
	Kind() core.OperationKind
}

// RenamePair renames one column.
type RenamePair struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Rename renames columns. Pairs apply in order.
type Rename struct {
	Columns []RenamePair `json:"columns"`
}

// Cast converts a column to another semantic type.
type Cast struct {
	Column string            `json:"column" yaml:"column"`
	Type   core.SemanticType `json:"type" yaml:"type"`
}

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// OrderBy picks the surviving row of a dedupe group.
type OrderBy struct {
	Column    string `json:"column" yaml:"column"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// Dir returns the sort direction, defaulting to ascending.
func (o OrderBy) Dir() string {
	if o.Direction == "" {
		return Asc
	}
	return o.Direction
}

// Dedupe keeps one row per distinct key, the first by OrderBy.
type Dedupe struct {
	Keys    []string `json:"keys" yaml:"keys"`
	OrderBy *OrderBy `json:"order_by,omitempty" yaml:"order_by,omitempty"`
}

// FlattenField extracts one value from a JSON column.
type FlattenField struct {
	Path string            `json:"path" yaml:"path"` // dotted path, e.g. customer.id
	As   string            `json:"as,omitempty" yaml:"as,omitempty"`
	Type core.SemanticType `json:"type" yaml:"type"`
}

// Segments returns the path split on dots.
func (f FlattenField) Segments() []string {
	return splitPath(f.Path)
}

// Name returns the output column name, defaulting to the last path segment.
func (f FlattenField) Name() string {
	if f.As != "" {
		return f.As
	}
	segs := f.Segments()
	return segs[len(segs)-1]
}

// Flatten extracts fields of a JSON column into typed columns.
type Flatten struct {
	Column     string         `json:"column" yaml:"column"`
	Fields     []FlattenField `json:"fields" yaml:"fields"`
	KeepSource bool           `json:"keep_source,omitempty" yaml:"keep_source,omitempty"`
}

// Join types.
const (
	JoinInner = "inner"
	JoinLeft  = "left"
)

// JoinKey equates a left column with a right column.
type JoinKey struct {
	Left  string `json:"left" yaml:"left"`
	Right string `json:"right" yaml:"right"`
}

// JoinSelect picks a right-hand column into the output.
type JoinSelect struct {
	Column string `json:"column" yaml:"column"`
	As     string `json:"as,omitempty" yaml:"as,omitempty"`
}

// Name returns the output column name.
func (s JoinSelect) Name() string {
	if s.As != "" {
		return s.As
	}
	return s.Column
}

// Join joins another table on equality keys.
type Join struct {
	Table   core.TableRef `json:"table" yaml:"table"`
	Columns []core.Column `json:"columns" yaml:"columns"`
	Type    string        `json:"type,omitempty" yaml:"type,omitempty"`
	On      []JoinKey     `json:"on" yaml:"on"`
	Select  []JoinSelect  `json:"select,omitempty" yaml:"select,omitempty"`
}

// JoinType returns the join type, defaulting to inner.
func (j *Join) JoinType() string {
	if j.Type == "" {
		return JoinInner
	}
	return j.Type
}

// Aggregate functions.
const (
	AggCount         = "count"
	AggCountDistinct = "count_distinct"
	AggSum           = "sum"
	AggAvg           = "avg"
	AggMin           = "min"
	AggMax           = "max"
)

// Aggregation computes one aggregate column.
type Aggregation struct {
	Func   string `json:"func" yaml:"func"`
	Column string `json:"column,omitempty" yaml:"column,omitempty"` // empty for count(*)
	As     string `json:"as,omitempty" yaml:"as,omitempty"`
}

// Name returns the output column name, defaulting to func_column.
func (a Aggregation) Name() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return a.Func
	}
	return a.Func + "_" + a.Column
}

// Aggregate groups rows and computes aggregations.
type Aggregate struct {
	GroupBy      []string      `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	Aggregations []Aggregation `json:"aggregations" yaml:"aggregations"`
}

// Filter comparison operators.
const (
	OpEq      = "eq"
	OpNe      = "ne"
	OpLt      = "lt"
	OpLte     = "lte"
	OpGt      = "gt"
	OpGte     = "gte"
	OpIsNull  = "is_null"
	OpNotNull = "not_null"
	OpIn      = "in"
)

// Condition is one predicate of a filter.
type Condition struct {
	Column string `json:"column" yaml:"column"`
	Op     string `json:"op" yaml:"op"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Values []any  `json:"values,omitempty" yaml:"values,omitempty"`
}

// Filter keeps rows matching every condition.
type Filter struct {
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}

// Kind implementations.

func (*Rename) Kind() core.OperationKind    { return core.OpRename }
func (*Cast) Kind() core.OperationKind      { return core.OpCast }
func (*Dedupe) Kind() core.OperationKind    { return core.OpDedupe }
func (*Flatten) Kind() core.OperationKind   { return core.OpFlatten }
func (*Join) Kind() core.OperationKind      { return core.OpJoin }
func (*Aggregate) Kind() core.OperationKind { return core.OpAggregate }
func (*Filter) Kind() core.OperationKind    { return core.OpFilter }

// newOperation returns an empty operation of the given kind.
func newOperation(kind core.OperationKind) Operation {
	switch kind {
	case core.OpRename:
		return &Rename{}
	case core.OpCast:
		return &Cast{}
	case core.OpDedupe:
		return &Dedupe{}
	case core.OpFlatten:
		return &Flatten{}
	case core.OpJoin:
		return &Join{}
	case core.OpAggregate:
		return &Aggregate{}
	case core.OpFilter:
		return &Filter{}
	}
	return nil
}
