//go:build duckdb || all_adapters

package duckdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdb/pkg/testhelpers"
)

func newCommerceAdapter(t *testing.T) *Adapter {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "commerce.duckdb")
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	require.NoError(t, testhelpers.SeedCommerce(ctx, db))
	require.NoError(t, db.Close())

	adapter, err := NewAdapter(ctx, &Config{Path: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	require.NoError(t, adapter.TestConnection(ctx))
	return adapter
}

func TestRegistered(t *testing.T) {
	assert.True(t, datasource.IsRegistered("duckdb"))
}

func TestDiscoverSchema(t *testing.T) {
	adapter := newCommerceAdapter(t)
	ctx := context.Background()

	tables, err := adapter.DiscoverTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 4)
	assert.Equal(t, "main", tables[0].SchemaName)

	columns, err := adapter.DiscoverColumns(ctx, "main", "orders")
	require.NoError(t, err)
	require.Len(t, columns, 5)
	assert.Equal(t, "order_id", columns[0].ColumnName)
	assert.True(t, columns[0].IsPrimaryKey)
	assert.False(t, columns[0].IsNullable)
	assert.Equal(t, "DECIMAL(10,2)", columns[3].DataType)

	count, err := adapter.CountRows(ctx, "main", "customers")
	require.NoError(t, err)
	assert.Equal(t, int64(testhelpers.CommerceCustomerCount), count)
}

func TestQuery_DecimalsAndRowCap(t *testing.T) {
	adapter := newCommerceAdapter(t)

	result, err := adapter.Query(context.Background(),
		"SELECT order_id, total_amount FROM orders ORDER BY order_id", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	assert.True(t, result.HasMore)
	assert.InDelta(t, 1329.98, result.Rows[0][1], 0.001)
}

func TestQuery_ReadOnly(t *testing.T) {
	adapter := newCommerceAdapter(t)

	_, err := adapter.Query(context.Background(), "DELETE FROM orders", 10)
	require.Error(t, err)
}

func TestQuery_ExternalAccessDisabled(t *testing.T) {
	adapter := newCommerceAdapter(t)

	_, err := adapter.Query(context.Background(), "SELECT * FROM read_csv('/etc/passwd')", 10)
	require.Error(t, err)
}
