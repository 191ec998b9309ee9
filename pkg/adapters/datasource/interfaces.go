package datasource

import (
	"context"
	"errors"
)

// ErrConnection marks failures to obtain a connection from the store, as
// opposed to errors raised by the engine while running a statement.
var ErrConnection = errors.New("datasource connection unavailable")

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// SchemaDiscoverer reads table and column metadata plus sample data.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas) in catalog order.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// SampleRows returns up to limit rows of the table, values in column order.
	SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([][]any, error)

	// CountRows returns the exact number of rows in the table.
	CountRows(ctx context.Context, schemaName, tableName string) (int64, error)

	// Close releases the database connection.
	Close() error
}

// MaxQueryLimit is the default cap on rows returned by Query.
const MaxQueryLimit = 1000

// QueryExecutor runs validated, read-only statements.
//
// Implementations never rewrite the statement. They read at most maxRows rows,
// set HasMore when the engine had at least one more, and stop the cursor there.
// Each call uses a connection scoped to that call, in read-only mode wherever
// the engine supports one.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns bounded results.
	// maxRows <= 0 uses MaxQueryLimit.
	Query(ctx context.Context, sqlQuery string, maxRows int) (*QueryExecutionResult, error)

	// MaxConcurrentQueries is how many Query calls the store should serve at once.
	MaxConcurrentQueries() int

	// Close releases any resources held by the executor.
	Close() error
}

// Adapter is one open data store supporting every capability.
type Adapter interface {
	ConnectionTester
	SchemaDiscoverer
	QueryExecutor

	// Dialect names the SQL dialect: "sqlite", "postgres", "sqlserver" or "duckdb".
	Dialect() string
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo `json:"columns"`
	Rows     [][]any      `json:"rows"`
	RowCount int          `json:"row_count"`
	HasMore  bool         `json:"has_more"`
}

// EffectiveLimit applies the MaxQueryLimit default.
func EffectiveLimit(maxRows int) int {
	if maxRows <= 0 {
		return MaxQueryLimit
	}
	return maxRows
}
