package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

func TestGetSchema_Formats(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		wantContains []string
	}{
		{"default is text", map[string]any{}, []string{"orders", "customer_id", "INTEGER"}},
		{"text", map[string]any{"format": "text"}, []string{"orders", "total"}},
		{"json", map[string]any{"format": "json"}, []string{`"dialect":"sqlite"`, `"name":"orders"`}},
		{"yaml", map[string]any{"format": "yaml"}, []string{"dialect: sqlite", "name: orders"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newToolTestContext(t, nil)

			result, err := tc.callTool("get_schema", tt.args)
			require.NoError(t, err)
			require.False(t, result.IsError)

			text := getTextContent(result)
			for _, want := range tt.wantContains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestGetSchema_JSONRoundTrips(t *testing.T) {
	tc := newToolTestContext(t, nil)

	result, err := tc.callTool("get_schema", map[string]any{"format": "json"})
	require.NoError(t, err)

	got := decodeText[models.SchemaDescription](t, result)
	assert.Equal(t, []string{"orders"}, got.TableNames())
	assert.Equal(t, []string{"id", "customer_id", "total"}, got.Tables[0].ColumnNames())
}

func TestGetSchema_Failure(t *testing.T) {
	tc := newToolTestContext(t, nil)
	tc.schema.err = errors.New("no such file")

	_, err := tc.callTool("get_schema", map[string]any{})

	require.Error(t, err)
}

func TestGetTableInfo(t *testing.T) {
	t.Run("known table has live row count", func(t *testing.T) {
		tc := newToolTestContext(t, nil)

		result, err := tc.callTool("get_table_info", map[string]any{"table": " Orders "})
		require.NoError(t, err)
		require.False(t, result.IsError)

		got := decodeText[models.TableInfo](t, result)
		assert.Equal(t, "orders", got.Name)
		require.NotNil(t, got.RowCount)
		assert.Equal(t, int64(6), *got.RowCount)
	})

	t.Run("unknown table", func(t *testing.T) {
		tc := newToolTestContext(t, nil)

		result, err := tc.callTool("get_table_info", map[string]any{"table": "order"})
		require.NoError(t, err)
		require.True(t, result.IsError)
		assert.Equal(t, "TABLE_NOT_FOUND", decodeText[ErrorResponse](t, result).Code)
	})

	t.Run("empty table name", func(t *testing.T) {
		tc := newToolTestContext(t, nil)

		result, err := tc.callTool("get_table_info", map[string]any{"table": ""})
		require.NoError(t, err)
		require.True(t, result.IsError)
		assert.Equal(t, "invalid_parameters", decodeText[ErrorResponse](t, result).Code)
	})
}
