package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ValueConverter turns a scanned driver value into its result form.
type ValueConverter func(col ColumnInfo, v any) any

// CollectRows drains a database/sql result set into a QueryExecutionResult.
// It reads at most maxRows rows plus one lookahead row to set HasMore, then
// stops; the caller's deferred rows.Close() abandons the rest of the cursor.
// []byte values are returned as strings so results serialize as text.
func CollectRows(rows *sql.Rows, maxRows int) (*QueryExecutionResult, error) {
	return CollectRowsFunc(rows, maxRows, nil)
}

// CollectRowsFunc is CollectRows with a driver-specific converter that runs
// before NormalizeValue. A nil convert behaves like CollectRows.
func CollectRowsFunc(rows *sql.Rows, maxRows int, convert ValueConverter) (*QueryExecutionResult, error) {
	limit := EffectiveLimit(maxRows)

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ColumnInfo{
			Name: ct.Name(),
			Type: strings.ToUpper(ct.DatabaseTypeName()),
		}
	}

	resultRows := make([][]any, 0)
	hasMore := false
	for rows.Next() {
		if len(resultRows) == limit {
			hasMore = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		for i, v := range values {
			if convert != nil {
				v = convert(columns[i], v)
			}
			values[i] = NormalizeValue(v)
		}
		resultRows = append(resultRows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		HasMore:  hasMore,
	}, nil
}

// NormalizeValue converts driver values into JSON-friendly forms.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return val
	}
}

// QuerySampleRows runs a sample query through database/sql and returns the
// normalized row values. Shared by the database/sql based adapters.
func QuerySampleRows(ctx context.Context, db *sql.DB, query string, limit int) ([][]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	result, err := CollectRows(rows, limit)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}
