package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the "duckdb" driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
)

// Adapter provides read-only access to a DuckDB database file.
// DuckDB runs in process, so queries are serialized through one slot.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

// NewAdapter opens the database file read-only.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("open duckdb database %q: %w", cfg.Path, err)
	}

	db, err := sql.Open("duckdb", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	return &Adapter{
		config: cfg,
		db:     db,
		logger: logger.Named("duckdb"),
	}, nil
}

// TestConnection verifies the database file can be read.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.tables").Scan(&n); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Dialect returns "duckdb".
func (a *Adapter) Dialect() string {
	return "duckdb"
}

// MaxConcurrentQueries returns 1.
func (a *Adapter) MaxConcurrentQueries() int {
	return 1
}

// Close closes the database.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func qualifiedTableName(schemaName, tableName string) string {
	if schemaName == "" {
		return quoteIdent(tableName)
	}
	return quoteIdent(schemaName) + "." + quoteIdent(tableName)
}

// convertValue flattens DuckDB's DECIMAL and HUGEINT values.
func convertValue(_ datasource.ColumnInfo, v any) any {
	switch val := v.(type) {
	case interface{ Float64() float64 }:
		return val.Float64()
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return val.String()
	}
	return v
}

// Ensure Adapter implements datasource.Adapter at compile time.
var _ datasource.Adapter = (*Adapter)(nil)
