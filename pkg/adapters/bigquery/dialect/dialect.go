// Package dialect provides the BigQuery dialect definition.
// This package has no client library dependencies, so the code generator
// can use it without credentials.
package dialect

import (
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/leapstack-labs/ui4t/pkg/dialect"
)

// Name is the dialect and adapter name.
const Name = "bigquery"

// Config is the BigQuery dialect configuration. BigQuery is columnar: it has
// QUALIFY and CREATE OR REPLACE TABLE, but row-level upserts are not
// available to the code generator.
var Config = core.DialectConfig{
	Name:        Name,
	Identifiers: core.IdentifierConfig{Quote: "`", QuoteEnd: "`", Escape: "\\`"},
	Strings:     core.EscapeBackslash,
	Addressing:  core.AddressCatalogDatasetTable,
	TypeNames: map[core.SemanticType]string{
		core.TypeString:    "STRING",
		core.TypeInteger:   "INT64",
		core.TypeDecimal:   "NUMERIC",
		core.TypeTimestamp: "TIMESTAMP",
		core.TypeBoolean:   "BOOL",
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

// New builds a BigQuery dialect addressing tables as
// `project`.`dataset`.`table`, with dataset as the default dataset.
func New(project, dataset string) *dialect.Dialect {
	cfg := Config
	cfg.Catalog = project
	cfg.DefaultSchema = dataset
	return dialect.New(&cfg).
		// bigquery.FieldType spellings and legacy names
		TypeAliases(core.TypeString, "STRING").
		TypeAliases(core.TypeInteger, "INTEGER", "INT64").
		TypeAliases(core.TypeDecimal, "NUMERIC", "BIGNUMERIC", "FLOAT", "FLOAT64").
		TypeAliases(core.TypeTimestamp, "TIMESTAMP").
		TypeAliases(core.TypeBoolean, "BOOLEAN", "BOOL").
		TypeAliases(core.TypeJSON, "JSON").
		CastHook(cast).
		JSONKindHook(jsonKind).
		Build()
}

// cast renders conversions. Text becomes JSON through PARSE_JSON, which
// validates the document; everything else is a standard CAST.
func cast(d *dialect.Dialect, expr string, from, to core.SemanticType) string {
	if to == core.TypeJSON && from == core.TypeString {
		return "PARSE_JSON(" + expr + ")"
	}
	return dialect.StandardCast(d, expr, from, to)
}

// jsonKind tests JSON_TYPE, whose names match dialect.JSONKind.
func jsonKind(d *dialect.Dialect, expr string, path []string, kinds []dialect.JSONKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return "JSON_TYPE(" + dialect.StandardJSONValue(d, expr, path, true) + ") " + d.InList(names...)
}
