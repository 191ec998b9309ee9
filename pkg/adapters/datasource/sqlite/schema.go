package sqlite

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// DiscoverTables returns user tables in creation order. SQLite has no schema
// namespaces for a single file, so SchemaName is always empty.
func (a *Adapter) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.TableName); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a table in declaration order.
// INTEGER PRIMARY KEY columns report notnull = 0 but can never hold NULL, so
// primary key columns are treated as not nullable.
func (a *Adapter) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT cid, name, type, "notnull", pk
		FROM pragma_table_info(?)
		ORDER BY cid
	`

	rows, err := a.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var (
			cid     int
			c       datasource.ColumnMetadata
			notNull int
			pk      int
		)
		if err := rows.Scan(&cid, &c.ColumnName, &c.DataType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.OrdinalPosition = cid + 1
		c.IsPrimaryKey = pk > 0
		c.IsNullable = notNull == 0 && !c.IsPrimaryKey
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found", tableName)
	}

	return columns, nil
}

// SampleRows returns the first limit rows of a table.
func (a *Adapter) SampleRows(ctx context.Context, schemaName, tableName string, limit int) ([][]any, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(tableName), limit)
	return datasource.QuerySampleRows(ctx, a.db, query, limit)
}

// CountRows returns the exact row count of a table.
func (a *Adapter) CountRows(ctx context.Context, schemaName, tableName string) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM " + quoteIdent(tableName)
	if err := a.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", tableName, err)
	}
	return count, nil
}
