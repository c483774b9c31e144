package core

// OperationKind identifies an operation of a transformation spec, or a
// warehouse-level construct (such as upsert) that a dialect may not support.
type OperationKind string

// Operation kinds.
const (
	OpRename    OperationKind = "rename"
	OpCast      OperationKind = "cast"
	OpDedupe    OperationKind = "dedupe"
	OpFlatten   OperationKind = "flatten"
	OpJoin      OperationKind = "join"
	OpAggregate OperationKind = "aggregate"
	OpFilter    OperationKind = "filter"

	// OpUpsert is the row-level merge used by incremental materializations.
	OpUpsert OperationKind = "upsert"
)

// OperationKinds lists the spec operation kinds in a stable order.
var OperationKinds = []OperationKind{
	OpRename, OpCast, OpDedupe, OpFlatten, OpJoin, OpAggregate, OpFilter,
}

// Valid reports whether k is a known spec operation kind.
func (k OperationKind) Valid() bool {
	switch k {
	case OpRename, OpCast, OpDedupe, OpFlatten, OpJoin, OpAggregate, OpFilter:
		return true
	}
	return false
}

func (k OperationKind) String() string { return string(k) }
