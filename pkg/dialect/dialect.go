// Package dialect provides warehouse dialect behavior for the code generator.
//
// A Dialect is built once per warehouse target from a core.DialectConfig and
// a small set of rendering hooks. It is immutable after Build and safe to
// share between goroutines. Concrete dialects live in
// pkg/adapters/*/dialect packages.
package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
)

// CastFunc renders a conversion of expr from one semantic type to another.
// It is only called when from and to differ.
type CastFunc func(d *Dialect, expr string, from, to core.SemanticType) string

// JSONExtractFunc renders the extraction of the value at path from the JSON
// expression expr. When asJSON is false the result is text (or NULL);
// otherwise it is a JSON value.
type JSONExtractFunc func(d *Dialect, expr string, path []string, asJSON bool) string

// JSONKind is the kind of a JSON value as seen by a scalar extraction.
type JSONKind string

// JSON kinds a scalar field may be extracted from.
const (
	JSONString  JSONKind = "string"
	JSONNumber  JSONKind = "number"
	JSONBoolean JSONKind = "boolean"
)

// JSONKindFunc renders a boolean condition that holds when the value at
// path inside expr is one of kinds.
type JSONKindFunc func(d *Dialect, expr string, path []string, kinds []JSONKind) string

// Dialect represents a warehouse SQL dialect. Its state is only reachable
// through methods; use Config for a copy of the underlying data.
type Dialect struct {
	name         string
	identifiers  core.IdentifierConfig
	stringEscape core.StringEscapeStyle
	addressing   core.AddressingStyle

	// catalog is the top-level namespace (BigQuery project). Optional.
	catalog string

	// defaultSchema is used when a table reference has no schema.
	defaultSchema string

	typeNames  map[core.SemanticType]string
	typeLookup map[string]core.SemanticType // normalized dialect type -> semantic type
	operations map[core.OperationKind]struct{}
	features   map[core.Feature]struct{}

	cast        CastFunc
	jsonExtract JSONExtractFunc
	jsonKind    JSONKindFunc
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	typeNames := make(map[core.SemanticType]string, len(d.typeNames))
	for t, name := range d.typeNames {
		typeNames[t] = name
	}

	ops := make([]core.OperationKind, 0, len(d.operations))
	kinds := append(append([]core.OperationKind{}, core.OperationKinds...), core.OpUpsert)
	for _, k := range kinds {
		if _, ok := d.operations[k]; ok {
			ops = append(ops, k)
		}
	}

	features := make([]core.Feature, 0, len(d.features))
	for f := range d.features {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })

	return &core.DialectConfig{
		Name:          d.name,
		Identifiers:   d.identifiers,
		Strings:       d.stringEscape,
		Addressing:    d.addressing,
		Catalog:       d.catalog,
		DefaultSchema: d.defaultSchema,
		TypeNames:     typeNames,
		Operations:    ops,
		Features:      features,
	}
}

// Name returns the dialect name.
func (d *Dialect) Name() string {
	return d.name
}

// GetName returns the dialect name.
// This method allows Dialect to satisfy interfaces that require a name accessor.
func (d *Dialect) GetName() string {
	return d.name
}

// DefaultSchema returns the schema unqualified tables resolve to.
func (d *Dialect) DefaultSchema() string {
	return d.defaultSchema
}

// Catalog returns the top-level namespace, empty when the dialect has none.
func (d *Dialect) Catalog() string {
	return d.catalog
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.identifiers.QuoteEnd, d.identifiers.Escape)
	return d.identifiers.Quote + escaped + d.identifiers.QuoteEnd
}

// QuoteString renders s as a string literal.
func (d *Dialect) QuoteString(s string) string {
	switch d.stringEscape {
	case core.EscapeBackslash:
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `'`, `\'`)
		s = strings.ReplaceAll(s, "\n", `\n`)
		s = strings.ReplaceAll(s, "\r", `\r`)
	default:
		s = strings.ReplaceAll(s, `'`, `''`)
	}
	return "'" + s + "'"
}

// QualifySchema renders a fully addressed schema (dataset) name.
func (d *Dialect) QualifySchema(schema string) string {
	if schema == "" {
		schema = d.defaultSchema
	}
	if d.addressing == core.AddressCatalogDatasetTable && d.catalog != "" {
		return d.QuoteIdentifier(d.catalog) + "." + d.QuoteIdentifier(schema)
	}
	return d.QuoteIdentifier(schema)
}

// QualifyTable renders a fully addressed table name. An empty schema falls
// back to the dialect's default schema.
func (d *Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		schema = d.defaultSchema
	}
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QualifySchema(schema) + "." + d.QuoteIdentifier(table)
}

// QualifyRef is QualifyTable for a core.TableRef.
func (d *Dialect) QualifyRef(ref core.TableRef) string {
	return d.QualifyTable(ref.Schema, ref.Table)
}

// MapType returns the dialect's type name for a semantic type.
func (d *Dialect) MapType(t core.SemanticType) (string, error) {
	name, ok := d.typeNames[t]
	if !ok {
		return "", fmt.Errorf("dialect %s has no type for %s", d.name, t)
	}
	return name, nil
}

// SemanticTypeOf maps a dialect type name (as reported by the warehouse
// catalog) back to a semantic type. Type parameters such as DECIMAL(38,9)
// are ignored.
func (d *Dialect) SemanticTypeOf(dialectType string) (core.SemanticType, bool) {
	t, ok := d.typeLookup[normalizeTypeName(dialectType)]
	return t, ok
}

func normalizeTypeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return strings.Join(strings.Fields(name), " ")
}

// HasFeature reports whether the dialect has an optional SQL capability.
func (d *Dialect) HasFeature(f core.Feature) bool {
	_, ok := d.features[f]
	return ok
}

// Supports reports whether the dialect can express an operation kind.
// Deduplication additionally needs window functions.
func (d *Dialect) Supports(kind core.OperationKind) bool {
	if _, ok := d.operations[kind]; !ok {
		return false
	}
	if kind == core.OpDedupe && !d.HasFeature(core.FeatureWindowFunctions) {
		return false
	}
	return true
}

// Check returns an *core.UnsupportedOperationError when the dialect cannot
// express kind. index is the operation's position in its spec (-1 for
// constructs outside the operation list).
func (d *Dialect) Check(index int, kind core.OperationKind) error {
	if d.Supports(kind) {
		return nil
	}
	err := &core.UnsupportedOperationError{Dialect: d.name, Index: index, Kind: kind}
	switch {
	case kind == core.OpDedupe && !d.HasFeature(core.FeatureWindowFunctions):
		err.Reason = "window functions are unavailable"
	case kind == core.OpUpsert:
		err.Reason = "row-level merge is unavailable"
	}
	return err
}

// Cast renders a conversion of expr between semantic types. Equal types
// return expr unchanged.
func (d *Dialect) Cast(expr string, from, to core.SemanticType) string {
	if from == to {
		return expr
	}
	if d.cast != nil {
		return d.cast(d, expr, from, to)
	}
	return StandardCast(d, expr, from, to)
}

// JSONExtract renders the value at path inside the JSON expression expr,
// typed as t. Scalars are extracted as text and cast; json values stay JSON.
//
// When the dialect can test JSON kinds, a scalar is NULL unless the value
// has a kind the target type reads the same way on every warehouse (see
// ScalarKinds). Objects, arrays and JSON null are always NULL.
func (d *Dialect) JSONExtract(expr string, path []string, t core.SemanticType) string {
	fn := d.jsonExtract
	if fn == nil {
		fn = StandardJSONValue
	}
	if t == core.TypeJSON {
		return fn(d, expr, path, true)
	}
	value := d.Cast(fn(d, expr, path, false), core.TypeString, t)
	if d.jsonKind == nil {
		return value
	}
	return "CASE WHEN " + d.jsonKind(d, expr, path, ScalarKinds(t)) + " THEN " + value + " END"
}

// ScalarKinds returns the JSON kinds a field of type t is extracted from.
// Strings only come from JSON strings, since warehouses render numbers and
// booleans as text differently.
func ScalarKinds(t core.SemanticType) []JSONKind {
	switch t {
	case core.TypeInteger, core.TypeDecimal:
		return []JSONKind{JSONNumber, JSONString}
	case core.TypeBoolean:
		return []JSONKind{JSONBoolean, JSONString}
	}
	return []JSONKind{JSONString}
}

// InList renders the string literals of names as an SQL IN list.
func (d *Dialect) InList(names ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteString(n)
	}
	return "IN (" + strings.Join(quoted, ", ") + ")"
}
