package adapters

import (
	"testing"

	"github.com/leapstack-labs/ui4t/pkg/adapter"
	"github.com/leapstack-labs/ui4t/pkg/adapters/bigquery"
	"github.com/leapstack-labs/ui4t/pkg/adapters/duckdb"
	"github.com/leapstack-labs/ui4t/pkg/adapters/postgres"
	"github.com/leapstack-labs/ui4t/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		typ  string
		want any
	}{
		{"postgres", &postgres.Adapter{}},
		{"bigquery", &bigquery.Adapter{}},
		{"DuckDB", &duckdb.Adapter{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			adp, err := New(core.AdapterConfig{Type: tt.typ}, nil)
			require.NoError(t, err)
			assert.IsType(t, tt.want, adp)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(core.AdapterConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, "adapter type not specified", err.Error())

	_, err = New(core.AdapterConfig{Type: "snowflake"}, nil)
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "snowflake", unknown.Type)
	assert.Equal(t, []string{"bigquery", "duckdb", "postgres"}, unknown.Available)
}

func TestNewDialect(t *testing.T) {
	d, err := NewDialect(core.AdapterConfig{Type: "bigquery", Project: "p", Dataset: "ds"})
	require.NoError(t, err)
	assert.Equal(t, "`p`.`ds`.`t`", d.QualifyTable("", "t"))

	d, err = NewDialect(core.AdapterConfig{Type: "postgres", Schema: "it"})
	require.NoError(t, err)
	assert.Equal(t, `"it"."t"`, d.QualifyTable("", "t"))

	_, err = NewDialect(core.AdapterConfig{Type: "oracle"})
	assert.Error(t, err)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("duckdb"))
	assert.False(t, Known("mysql"))
}
