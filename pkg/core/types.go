package core

import (
	"fmt"
	"strings"
)

// SemanticType is the warehouse-independent type of a column.
type SemanticType string

// Semantic types understood by every dialect.
const (
	TypeString    SemanticType = "string"
	TypeInteger   SemanticType = "integer"
	TypeDecimal   SemanticType = "decimal"
	TypeTimestamp SemanticType = "timestamp"
	TypeBoolean   SemanticType = "boolean"
	TypeJSON      SemanticType = "json"
)

// SemanticTypes lists every semantic type in a stable order.
var SemanticTypes = []SemanticType{
	TypeString, TypeInteger, TypeDecimal, TypeTimestamp, TypeBoolean, TypeJSON,
}

// ParseSemanticType converts a type name (case-insensitive) to a SemanticType.
func ParseSemanticType(s string) (SemanticType, error) {
	t := SemanticType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown semantic type %q (expected one of %s)", s, joinTypes(SemanticTypes))
}

// Valid reports whether t is a known semantic type.
func (t SemanticType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeDecimal, TypeTimestamp, TypeBoolean, TypeJSON:
		return true
	}
	return false
}

// Numeric reports whether t is integer or decimal.
func (t SemanticType) Numeric() bool {
	return t == TypeInteger || t == TypeDecimal
}

// Orderable reports whether values of t have a total order usable in
// comparisons, sort keys and min/max.
func (t SemanticType) Orderable() bool {
	return t != TypeJSON && t != TypeBoolean
}

// Keyable reports whether t can be used as a partition, join or group key.
func (t SemanticType) Keyable() bool {
	return t != TypeJSON
}

func (t SemanticType) String() string { return string(t) }

func joinTypes(ts []SemanticType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// CanCast reports whether a value of type from can be cast to type to with
// identical results on every supported warehouse. Decimal and JSON values
// have no portable text rendering, so they cannot be cast to string.
func CanCast(from, to SemanticType) bool {
	switch {
	case from == to:
		return true
	case from == TypeString:
		return true
	case to == TypeString:
		return from != TypeDecimal && from != TypeJSON
	case from.Numeric() && to.Numeric():
		return true
	}
	return false
}
