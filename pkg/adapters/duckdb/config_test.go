package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name:  "extensions only",
			input: map[string]any{"extensions": []any{"json", "icu"}},
			want:  &Params{Extensions: []string{"json", "icu"}},
		},
		{
			name:  "settings are weakly typed",
			input: map[string]any{"settings": map[string]any{"threads": 4}},
			want:  &Params{Settings: map[string]string{"threads": "4"}},
		},
		{
			name:    "unknown key",
			input:   map[string]any{"secrets": []any{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupStatements(t *testing.T) {
	p := &Params{
		Extensions: []string{"json"},
		Settings:   map[string]string{"threads": "2"},
	}
	assert.Equal(t, []string{
		"INSTALL json",
		"LOAD json",
		"SET TimeZone = 'UTC'",
		"SET threads = '2'",
	}, p.setupStatements())
}
