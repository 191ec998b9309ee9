package mssql

import (
	"context"
	"fmt"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// Query runs a validated SELECT on a connection reserved for this call.
// Cancelling ctx sends an attention packet that aborts the batch.
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

// convertValue renders UNIQUEIDENTIFIER columns in their canonical string
// form; the driver returns them as mixed-endian bytes.
func convertValue(col datasource.ColumnInfo, v any) any {
	if b, ok := v.([]byte); ok && col.Type == "UNIQUEIDENTIFIER" {
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
	}
	return v
}
