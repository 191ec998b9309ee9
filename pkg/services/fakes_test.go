package services

import (
	"context"
	dbsql "database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// mockAdapter is a datasource.Adapter over a sqlmock connection. Catalog
// methods are served from fields; Query goes through the mocked driver.
type mockAdapter struct {
	db            *dbsql.DB
	tables        []datasource.TableMetadata
	columns       map[string][]datasource.ColumnMetadata
	samples       map[string][][]any
	sampleErr     error
	counts        map[string]int64
	maxConcurrent int
}

func newMockAdapter(t *testing.T) (*mockAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &mockAdapter{db: db, maxConcurrent: 2}, mock
}

func (a *mockAdapter) TestConnection(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *mockAdapter) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return a.tables, nil
}

func (a *mockAdapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	cols, ok := a.columns[tableName]
	if !ok {
		return nil, errors.New("no such table: " + tableName)
	}
	return cols, nil
}

func (a *mockAdapter) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([][]any, error) {
	if a.sampleErr != nil {
		return nil, a.sampleErr
	}
	rows := a.samples[tableName]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (a *mockAdapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	return a.counts[tableName], nil
}

func (a *mockAdapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return datasource.CollectRows(rows, maxRows)
}

func (a *mockAdapter) MaxConcurrentQueries() int { return a.maxConcurrent }

func (a *mockAdapter) Close() error { return a.db.Close() }

func (a *mockAdapter) Dialect() string { return "sqlite" }

var _ datasource.Adapter = (*mockAdapter)(nil)
