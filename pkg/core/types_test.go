package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSemanticType(t *testing.T) {
	got, err := ParseSemanticType(" Integer ")
	require.NoError(t, err)
	assert.Equal(t, TypeInteger, got)

	_, err = ParseSemanticType("float")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
	assert.Contains(t, err.Error(), "timestamp")
}

func TestCanCast(t *testing.T) {
	tests := []struct {
		from, to SemanticType
		want     bool
	}{
		{TypeInteger, TypeInteger, true},
		{TypeString, TypeInteger, true},
		{TypeString, TypeJSON, true},
		{TypeInteger, TypeString, true},
		{TypeTimestamp, TypeString, true},
		{TypeBoolean, TypeString, true},
		{TypeDecimal, TypeString, false},
		{TypeJSON, TypeString, false},
		{TypeInteger, TypeDecimal, true},
		{TypeDecimal, TypeInteger, true},
		{TypeInteger, TypeBoolean, false},
		{TypeTimestamp, TypeInteger, false},
		{TypeJSON, TypeInteger, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanCast(tt.from, tt.to))
		})
	}
}

func TestSemanticTypePredicates(t *testing.T) {
	assert.True(t, TypeDecimal.Numeric())
	assert.False(t, TypeString.Numeric())
	assert.True(t, TypeTimestamp.Orderable())
	assert.False(t, TypeBoolean.Orderable())
	assert.False(t, TypeJSON.Keyable())
	assert.True(t, TypeBoolean.Keyable())
	assert.False(t, SemanticType("float").Valid())
}
