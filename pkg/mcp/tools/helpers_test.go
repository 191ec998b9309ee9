package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"tabs and newlines", "\t How many orders?\n", "How many orders?"},
		{"no whitespace", "orders", "orders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trimString(tt.input))
		})
	}
}

func TestJSONResult(t *testing.T) {
	t.Run("marshals value as text content", func(t *testing.T) {
		result, err := jsonResult(map[string]int{"row_count": 3})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.JSONEq(t, `{"row_count":3}`, getTextContent(result))
	})

	t.Run("unencodable value", func(t *testing.T) {
		_, err := jsonResult(make(chan int))
		assert.Error(t, err)
	})
}
