package duckdb

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// DiscoverTables returns all user tables.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('information_schema', 'pg_catalog')
		ORDER BY table_schema, table_name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a table, with primary keys taken from
// duckdb_constraints().
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			EXISTS (
				SELECT 1 FROM duckdb_constraints() k
				WHERE k.schema_name = c.table_schema
				  AND k.table_name = c.table_name
				  AND k.constraint_type = 'PRIMARY KEY'
				  AND list_contains(k.constraint_column_names, c.column_name)
			) AS is_primary_key,
			c.ordinal_position
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if c.IsPrimaryKey {
			c.IsNullable = false
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// SampleRows returns the first limit rows of a table.
func (a *Adapter) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([][]any, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualifiedTableName(schemaName, tableName), limit)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	result, err := datasource.CollectRowsFunc(rows, limit, convertValue)
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// CountRows returns the exact row count of a table.
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM " + qualifiedTableName(schemaName, tableName)
	if err := a.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", tableName, err)
	}
	return count, nil
}
