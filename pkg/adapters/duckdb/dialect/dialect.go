// Package dialect provides the DuckDB dialect definition.
// This package is lightweight and has no database driver dependencies.
package dialect

import (
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// Name is the dialect and adapter name.
const Name = "duckdb"

// Config is the DuckDB dialect configuration. DuckDB is an in-process
// columnar engine with QUALIFY and CREATE OR REPLACE TABLE. Its MERGE
// support is too recent to rely on, so upserts use the overwrite rewrite.
var Config = core.DialectConfig{
	Name:          Name,
	Identifiers:   core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
	Strings:       core.EscapeDoubledQuote,
	Addressing:    core.AddressSchemaTable,
	DefaultSchema: "main",
	TypeNames: map[core.SemanticType]string{
		core.TypeString:    "VARCHAR",
		core.TypeInteger:   "BIGINT",
		core.TypeDecimal:   "DECIMAL(38,9)",
		core.TypeTimestamp: "TIMESTAMPTZ",
		core.TypeBoolean:   "BOOLEAN",
		core.TypeJSON:      "JSON",
	},
	Operations: []core.OperationKind{
		core.OpRename, core.OpCast, core.OpDedupe, core.OpFlatten,
		core.OpJoin, core.OpAggregate, core.OpFilter,
	},
	Features: []core.Feature{
		core.FeatureWindowFunctions,
		core.FeatureQualify,
		core.FeatureCTE,
		core.FeatureCreateOrReplace,
	},
}

// New builds a DuckDB dialect whose unqualified tables resolve to
// defaultSchema ("main" when empty).
func New(defaultSchema string) *dialect.Dialect {
	cfg := Config
	if defaultSchema != "" {
		cfg.DefaultSchema = defaultSchema
	}
	return dialect.New(&cfg).
		TypeAliases(core.TypeString, "VARCHAR", "TEXT", "STRING", "UUID").
		TypeAliases(core.TypeInteger, "BIGINT", "INTEGER", "SMALLINT", "TINYINT", "HUGEINT", "UBIGINT", "UINTEGER").
		TypeAliases(core.TypeDecimal, "DECIMAL", "NUMERIC", "DOUBLE", "FLOAT", "REAL").
		TypeAliases(core.TypeTimestamp, "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ", "TIMESTAMP").
		TypeAliases(core.TypeBoolean, "BOOLEAN", "BOOL").
		TypeAliases(core.TypeJSON, "JSON").
		JSONExtractHook(jsonExtract).
		JSONKindHook(jsonKind).
		Build()
}

// jsonExtract renders json_extract_string for text and json_extract for
// JSON values.
func jsonExtract(d *dialect.Dialect, expr string, path []string, asJSON bool) string {
	fn := "json_extract_string"
	if asJSON {
		fn = "json_extract"
	}
	return fn + "(" + expr + ", " + d.QuoteString(dialect.JSONPath(path)) + ")"
}

// jsonTypes maps JSON kinds to the names json_type reports.
var jsonTypes = map[dialect.JSONKind][]string{
	dialect.JSONString:  {"VARCHAR"},
	dialect.JSONNumber:  {"BIGINT", "UBIGINT", "HUGEINT", "DOUBLE"},
	dialect.JSONBoolean: {"BOOLEAN"},
}

func jsonKind(d *dialect.Dialect, expr string, path []string, kinds []dialect.JSONKind) string {
	var names []string
	for _, k := range kinds {
		names = append(names, jsonTypes[k]...)
	}
	return "json_type(" + expr + ", " + d.QuoteString(dialect.JSONPath(path)) + ") " + d.InList(names...)
}
