// Package dialect provides the PostgreSQL dialect definition.
// This package is lightweight and has no database driver dependencies,
// so the code generator can use it without a warehouse connection.
package dialect

import (
	"strings"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// Name is the dialect and adapter name.
const Name = "postgres"

// Config is the PostgreSQL dialect configuration. PostgreSQL is a row-store
// with window functions, CTEs and native MERGE (15+) but neither QUALIFY nor
// CREATE OR REPLACE TABLE.
var Config = core.DialectConfig{
	Name:          Name,
	Identifiers:   core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
	Strings:       core.EscapeDoubledQuote,
	Addressing:    core.AddressSchemaTable,
	DefaultSchema: "public",
	TypeNames: map[core.SemanticType]string{
		core.TypeString:    "TEXT",
		core.TypeInteger:   "BIGINT",
		core.TypeDecimal:   "NUMERIC",
		core.TypeTimestamp: "TIMESTAMPTZ",
		core.TypeBoolean:   "BOOLEAN",
		core.TypeJSON:      "JSONB",
	},
	Operations: []core.OperationKind{
		core.OpRename, core.OpCast, core.OpDedupe, core.OpFlatten,
		core.OpJoin, core.OpAggregate, core.OpFilter, core.OpUpsert,
	},
	Features: []core.Feature{
		core.FeatureWindowFunctions,
		core.FeatureCTE,
		core.FeatureMerge,
	},
}

// New builds a PostgreSQL dialect whose unqualified tables resolve to
// defaultSchema ("public" when empty).
func New(defaultSchema string) *dialect.Dialect {
	cfg := Config
	if defaultSchema != "" {
		cfg.DefaultSchema = defaultSchema
	}
	return dialect.New(&cfg).
		// information_schema.columns.data_type spellings
		TypeAliases(core.TypeString, "text", "character varying", "varchar", "character", "char", "name", "uuid").
		TypeAliases(core.TypeInteger, "bigint", "int8", "integer", "int4", "int", "smallint", "int2").
		TypeAliases(core.TypeDecimal, "numeric", "decimal", "double precision", "float8", "real", "float4").
		TypeAliases(core.TypeTimestamp, "timestamp with time zone", "timestamp without time zone", "timestamp").
		TypeAliases(core.TypeBoolean, "boolean", "bool").
		TypeAliases(core.TypeJSON, "jsonb", "json").
		JSONExtractHook(jsonExtract).
		JSONKindHook(jsonKind).
		Build()
}

// jsonExtract renders the path operators: expr #>> '{a,b}' for text and
// expr #> '{a,b}' for JSON.
func jsonExtract(d *dialect.Dialect, expr string, path []string, asJSON bool) string {
	op := "#>>"
	if asJSON {
		op = "#>"
	}
	return "(" + expr + " " + op + " " + d.QuoteString("{"+strings.Join(path, ",")+"}") + ")"
}

// jsonKind tests jsonb_typeof, whose names match dialect.JSONKind.
func jsonKind(d *dialect.Dialect, expr string, path []string, kinds []dialect.JSONKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return "jsonb_typeof(" + jsonExtract(d, expr, path, true) + ") " + d.InList(names...)
}
