package dialect

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDialect() *Dialect {
	return NewDialect("test").
		DefaultSchema("main").
		TypeName(core.TypeString, "TEXT").
		TypeName(core.TypeInteger, "BIGINT").
		TypeName(core.TypeDecimal, "NUMERIC").
		TypeName(core.TypeTimestamp, "TIMESTAMPTZ").
		TypeName(core.TypeBoolean, "BOOLEAN").
		TypeName(core.TypeJSON, "JSON").
		TypeAliases(core.TypeTimestamp, "timestamp with time zone").
		Operations(core.OpRename, core.OpCast, core.OpDedupe, core.OpFilter).
		Build()
}

func TestQuoteIdentifier(t *testing.T) {
	d := testDialect()
	assert.Equal(t, `"id"`, d.QuoteIdentifier("id"))
	assert.Equal(t, `"a""b"`, d.QuoteIdentifier(`a"b`))

	bq := NewDialect("bq").Identifiers("`", "`", "\\`").Build()
	assert.Equal(t, "`a\\`b`", bq.QuoteIdentifier("a`b"))
}

func TestQuoteString(t *testing.T) {
	d := testDialect()
	assert.Equal(t, `'it''s'`, d.QuoteString("it's"))

	bq := NewDialect("bq").StringEscape(core.EscapeBackslash).Build()
	assert.Equal(t, `'it\'s \\ ok'`, bq.QuoteString(`it's \ ok`))
}

func TestQualifyTable(t *testing.T) {
	d := testDialect()
	assert.Equal(t, `"raw"."orders"`, d.QualifyTable("raw", "orders"))
	assert.Equal(t, `"main"."orders"`, d.QualifyTable("", "orders"))

	bq := NewDialect("bq").
		Identifiers("`", "`", "\\`").
		Addressing(core.AddressCatalogDatasetTable).
		Catalog("proj").
		Build()
	assert.Equal(t, "`proj`.`ds`.`orders`", bq.QualifyTable("ds", "orders"))
	assert.Equal(t, "`proj`.`ds`", bq.QualifySchema("ds"))
}

func TestMapType(t *testing.T) {
	d := testDialect()
	got, err := d.MapType(core.TypeDecimal)
	require.NoError(t, err)
	assert.Equal(t, "NUMERIC", got)

	_, err = NewDialect("empty").Build().MapType(core.TypeJSON)
	assert.Error(t, err)
}

func TestSemanticTypeOf(t *testing.T) {
	d := testDialect()
	tests := []struct {
		in   string
		want core.SemanticType
		ok   bool
	}{
		{"text", core.TypeString, true},
		{"NUMERIC(18,2)", core.TypeDecimal, true},
		{"timestamp  with time zone", core.TypeTimestamp, true},
		{"money", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := d.SemanticTypeOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	d := testDialect()
	assert.NoError(t, d.Check(0, core.OpRename))

	err := d.Check(4, core.OpJoin)
	var unsupported *core.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 4, unsupported.Index)
	assert.Equal(t, core.OpJoin, unsupported.Kind)
	assert.Equal(t, "test", unsupported.Dialect)

	// dedupe is listed but the dialect has no window functions
	err = d.Check(1, core.OpDedupe)
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, err.Error(), "window functions")
}

func TestCast(t *testing.T) {
	d := testDialect()
	assert.Equal(t, `"a"`, d.Cast(`"a"`, core.TypeInteger, core.TypeInteger))
	assert.Equal(t, `CAST("a" AS BIGINT)`, d.Cast(`"a"`, core.TypeString, core.TypeInteger))

	hooked := NewDialect("hooked").
		CastHook(func(_ *Dialect, expr string, _, _ core.SemanticType) string { return "CONVERT(" + expr + ")" }).
		Build()
	assert.Equal(t, `CONVERT(x)`, hooked.Cast("x", core.TypeString, core.TypeJSON))
}

func TestJSONExtract(t *testing.T) {
	d := testDialect()
	assert.Equal(t, `CAST(JSON_VALUE("p", '$.a.b') AS BIGINT)`, d.JSONExtract(`"p"`, []string{"a", "b"}, core.TypeInteger))
	assert.Equal(t, `JSON_VALUE("p", '$.a')`, d.JSONExtract(`"p"`, []string{"a"}, core.TypeString))
	assert.Equal(t, `JSON_QUERY("p", '$.a')`, d.JSONExtract(`"p"`, []string{"a"}, core.TypeJSON))
}

func TestLiteral(t *testing.T) {
	d := testDialect()
	tests := []struct {
		name string
		v    any
		typ  core.SemanticType
		want string
	}{
		{"null", nil, core.TypeInteger, "NULL"},
		{"string", "o'k", core.TypeString, `'o''k'`},
		{"integer", 42, core.TypeInteger, "42"},
		{"decimal", "10.50", core.TypeDecimal, `CAST('10.5' AS NUMERIC)`},
		{"timestamp", time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC), core.TypeTimestamp,
			`CAST('2024-01-02 03:04:05.000006+00:00' AS TIMESTAMPTZ)`},
		{"boolean", true, core.TypeBoolean, "TRUE"},
		{"json", json.RawMessage(`{"a": 1}`), core.TypeJSON, `CAST('{"a":1}' AS JSON)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Literal(tt.v, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := d.Literal("abc", core.TypeInteger)
	assert.Error(t, err)
}

func TestInsertSQL(t *testing.T) {
	d := testDialect()
	schema := core.MustSchema(
		core.Column{Name: "id", Type: core.TypeInteger},
		core.Column{Name: "name", Type: core.TypeString},
	)
	got, err := d.InsertSQL(core.TableRef{Schema: "raw", Table: "t"}, schema, [][]any{{1, "a"}, {2, nil}})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO \"raw\".\"t\" (\"id\", \"name\") VALUES\n  (1, 'a'),\n  (2, NULL)", got)

	_, err = d.InsertSQL(core.TableRef{Table: "t"}, schema, [][]any{{1}})
	assert.Error(t, err)
}

func TestDDL(t *testing.T) {
	d := testDialect()
	ref := core.TableRef{Schema: "raw", Table: "t"}
	schema := core.MustSchema(
		core.Column{Name: "id", Type: core.TypeInteger},
		core.Column{Name: "payload", Type: core.TypeJSON},
	)

	got, err := d.CreateTableSQL(ref, schema)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"raw\".\"t\" (\n  \"id\" BIGINT,\n  \"payload\" JSON\n)", got)
	got, err = d.CreateTableIfNotExistsSQL(ref, schema)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"raw\".\"t\" (\n  \"id\" BIGINT,\n  \"payload\" JSON\n)", got)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "raw"`, d.CreateSchemaSQL("raw"))
	assert.Equal(t, `DROP TABLE IF EXISTS "raw"."t"`, d.DropTableSQL(ref))
	assert.Equal(t, `DROP VIEW IF EXISTS "raw"."t"`, d.DropViewSQL(ref))
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := &core.DialectConfig{
		Name:          "cfg",
		DefaultSchema: "public",
		TypeNames:     map[core.SemanticType]string{core.TypeString: "TEXT"},
		Operations:    []core.OperationKind{core.OpFilter, core.OpRename},
		Features:      []core.Feature{core.FeatureCTE},
	}
	d := New(cfg).Build()
	assert.True(t, d.HasFeature(core.FeatureCTE))
	assert.True(t, d.Supports(core.OpFilter))

	out := d.Config()
	assert.Equal(t, []core.OperationKind{core.OpRename, core.OpFilter}, out.Operations)
	assert.Equal(t, "TEXT", out.TypeNames[core.TypeString])
	assert.Equal(t, `"x"`, d.QuoteIdentifier("x"))
}

func TestDialect_StateIsReadOnly(t *testing.T) {
	d := NewDialect("bq").
		Identifiers("`", "`", "\\`").
		Addressing(core.AddressCatalogDatasetTable).
		Catalog("proj").
		DefaultSchema("ds").
		TypeName(core.TypeString, "STRING").
		Build()
	assert.Equal(t, "bq", d.Name())
	assert.Equal(t, "proj", d.Catalog())
	assert.Equal(t, "ds", d.DefaultSchema())

	cfg := d.Config()
	cfg.Name = "changed"
	cfg.DefaultSchema = "other"
	cfg.TypeNames[core.TypeString] = "TEXT"

	assert.Equal(t, "bq", d.Name())
	assert.Equal(t, "`proj`.`ds`.`t`", d.QualifyTable("", "t"))
	got, err := d.MapType(core.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "STRING", got)
}

func kindsOf(_ *Dialect, expr string, path []string, kinds []JSONKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return "kind(" + expr + ", " + JSONPath(path) + ") in " + strings.Join(names, "|")
}

func TestJSONExtract_KindGuard(t *testing.T) {
	d := NewDialect("guarded").
		TypeName(core.TypeInteger, "BIGINT").
		TypeName(core.TypeBoolean, "BOOLEAN").
		JSONKindHook(kindsOf).
		Build()
	assert.Equal(t, `CASE WHEN kind("p", $.a) in string THEN JSON_VALUE("p", '$.a') END`,
		d.JSONExtract(`"p"`, []string{"a"}, core.TypeString))
	assert.Equal(t, `CASE WHEN kind("p", $.a) in number|string THEN CAST(JSON_VALUE("p", '$.a') AS BIGINT) END`,
		d.JSONExtract(`"p"`, []string{"a"}, core.TypeInteger))
	assert.Equal(t, `CASE WHEN kind("p", $.a) in boolean|string THEN CAST(JSON_VALUE("p", '$.a') AS BOOLEAN) END`,
		d.JSONExtract(`"p"`, []string{"a"}, core.TypeBoolean))
	assert.Equal(t, `JSON_QUERY("p", '$.a')`, d.JSONExtract(`"p"`, []string{"a"}, core.TypeJSON), "json values are not guarded")
	assert.Equal(t, `IN ('a', 'b')`, d.InList("a", "b"))
}
