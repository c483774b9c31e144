package dialect

import (
	"testing"

	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDialect(t *testing.T) {
	d := New("analytics")

	assert.Equal(t, "postgres", d.GetName())
	assert.Equal(t, `"analytics"."orders"`, d.QualifyTable("", "orders"))
	assert.True(t, d.Supports(core.OpDedupe))
	assert.True(t, d.Supports(core.OpUpsert))
	assert.True(t, d.HasFeature(core.FeatureMerge))
	assert.False(t, d.HasFeature(core.FeatureQualify))
	assert.False(t, d.HasFeature(core.FeatureCreateOrReplace))

	typ, err := d.MapType(core.TypeJSON)
	require.NoError(t, err)
	assert.Equal(t, "JSONB", typ)
}

func TestPostgresDialect_DefaultSchema(t *testing.T) {
	assert.Equal(t, "public", New("").DefaultSchema())
	// constructing a dialect never mutates the shared config
	_ = New("other")
	assert.Equal(t, "public", Config.DefaultSchema)
}

func TestPostgresJSONExtract(t *testing.T) {
	d := New("")
	assert.Equal(t,
		`CASE WHEN jsonb_typeof(("payload" #> '{customer,id}')) IN ('string') THEN ("payload" #>> '{customer,id}') END`,
		d.JSONExtract(`"payload"`, []string{"customer", "id"}, core.TypeString))
	assert.Equal(t,
		`CASE WHEN jsonb_typeof(("payload" #> '{total}')) IN ('number', 'string') THEN CAST(("payload" #>> '{total}') AS NUMERIC) END`,
		d.JSONExtract(`"payload"`, []string{"total"}, core.TypeDecimal))
	assert.Equal(t, `("payload" #> '{items}')`, d.JSONExtract(`"payload"`, []string{"items"}, core.TypeJSON))
}

func TestPostgresSemanticTypeOf(t *testing.T) {
	d := New("")
	for in, want := range map[string]core.SemanticType{
		"timestamp with time zone": core.TypeTimestamp,
		"character varying":        core.TypeString,
		"jsonb":                    core.TypeJSON,
		"NUMERIC":                  core.TypeDecimal,
		"integer":                  core.TypeInteger,
	} {
		got, ok := d.SemanticTypeOf(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
}
