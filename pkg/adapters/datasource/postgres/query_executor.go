package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

const cursorName = "askdb_result"

// Query runs a validated SELECT inside a READ ONLY transaction on a
// connection acquired for this call. The statement is opened as a cursor and
// at most maxRows+1 rows are fetched, so the server never produces more than
// that. The transaction is always rolled back.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	limit := datasource.EffectiveLimit(maxRows)

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datasource.ErrConnection, err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("%w: begin read-only transaction: %w", datasource.ErrConnection, err)
	}
	defer func() {
		// The rollback must run even when ctx is already cancelled.
		if err := tx.Rollback(context.Background()); err != nil && err != pgx.ErrTxClosed {
			a.logger.Debug("Rollback after query failed", zap.Error(err))
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		ms := time.Until(deadline).Milliseconds()
		if ms < 1 {
			ms = 1
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)); err != nil {
			return nil, fmt.Errorf("set statement timeout: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, "DECLARE "+cursorName+" NO SCROLL CURSOR FOR "+sqlQuery+"\n"); err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	rows, err := tx.Query(ctx, fmt.Sprintf("FETCH FORWARD %d FROM %s", limit+1, cursorName))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	typeMap := conn.Conn().TypeMap()
	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeName(typeMap, fd),
		}
	}

	resultRows := make([][]any, 0)
	hasMore := false
	for rows.Next() {
		if len(resultRows) == limit {
			hasMore = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		resultRows = append(resultRows, normalizeRow(values))
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		HasMore:  hasMore,
	}, nil
}

// pgTypeName maps a result column's type OID to an upper-case type name.
func pgTypeName(typeMap *pgtype.Map, fd pgconn.FieldDescription) string {
	if t, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
		return strings.ToUpper(t.Name)
	}
	return "UNKNOWN"
}

// normalizeRow converts pgx values into JSON-friendly forms.
func normalizeRow(values []any) []any {
	for i, v := range values {
		switch val := v.(type) {
		case pgtype.Numeric:
			if f, err := val.Float64Value(); err == nil && f.Valid {
				values[i] = f.Float64
			} else {
				values[i] = nil
			}
		case [16]byte:
			values[i] = uuid.UUID(val).String()
		default:
			values[i] = datasource.NormalizeValue(v)
		}
	}
	return values
}
