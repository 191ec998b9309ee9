package duckdb

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// Query runs a validated SELECT on a connection reserved for this call.
// Cancelling ctx interrupts the running statement.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datasource.ErrConnection, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.CollectRowsFunc(rows, maxRows, convertValue)
}
