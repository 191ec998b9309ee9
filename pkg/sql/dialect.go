package sql

import (
	"fmt"
	"strings"
)

// Dialect selects lexical and function rules for one database engine.
type Dialect string

const (
	DialectSQLite    Dialect = "sqlite"
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "sqlserver"
	DialectDuckDB    Dialect = "duckdb"
)

// ParseDialect maps a datasource type name to its dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlserver", "mssql":
		return DialectSQLServer, nil
	case "duckdb":
		return DialectDuckDB, nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", s)
	}
}

// DisplayName is the human-readable engine name used in prompts.
func (d Dialect) DisplayName() string {
	switch d {
	case DialectSQLite:
		return "SQLite"
	case DialectPostgres:
		return "PostgreSQL"
	case DialectSQLServer:
		return "Microsoft SQL Server"
	case DialectDuckDB:
		return "DuckDB"
	default:
		return string(d)
	}
}

// forbiddenKeywords may not appear anywhere outside literals and quoted
// identifiers. REPLACE is handled separately because replace() is a common
// string function.
var forbiddenKeywords = toSet(
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "PRAGMA",
	"ATTACH", "DETACH", "TRUNCATE", "MERGE", "UPSERT", "GRANT", "REVOKE", "DENY",
	"EXEC", "EXECUTE", "CALL", "COPY", "VACUUM", "REINDEX", "INSTALL", "LOAD",
	"SET", "INTO", "DECLARE", "BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT",
	"LOCK", "KILL", "SHUTDOWN", "DBCC", "BULK", "BACKUP", "RESTORE", "USE",
	"WAITFOR", "PREPARE", "DEALLOCATE", "LISTEN", "NOTIFY", "UNLISTEN", "DISCARD",
)

// lockingClauseWords follow FOR in row-locking clauses (FOR UPDATE, FOR SHARE,
// FOR NO KEY UPDATE, FOR KEY SHARE).
var lockingClauseWords = toSet("UPDATE", "SHARE", "NO", "KEY")

// dangerousFunctions lists per-dialect functions that touch the filesystem,
// the network, server state or the clock. A trailing * matches any suffix.
var dangerousFunctions = map[Dialect][]string{
	DialectSQLite: {
		"load_extension", "readfile", "writefile", "edit", "fts3_tokenizer",
		"zipfile", "fsdir", "sqlar_compress", "sqlar_uncompress",
	},
	DialectPostgres: {
		"pg_read_file", "pg_read_binary_file", "pg_ls_*", "pg_stat_file",
		"lo_*", "dblink*", "pg_sleep*", "pg_terminate_backend", "pg_cancel_backend",
		"pg_reload_conf", "pg_rotate_logfile", "pg_promote", "set_config",
		"current_setting", "pg_advisory_*", "pg_try_advisory_*", "query_to_xml*",
		"pg_logical_emit_message", "pg_file_write", "pg_notify",
	},
	DialectSQLServer: {
		"xp_*", "sp_*", "openrowset", "opendatasource", "openquery",
		"fn_xe_file_target_read_file", "fn_get_audit_file", "fn_trace_gettable",
	},
	DialectDuckDB: {
		"read_csv*", "read_parquet", "parquet_*", "read_json*", "read_ndjson*",
		"read_text", "read_blob", "read_xlsx", "glob", "sniff_csv", "getenv",
		"st_read", "iceberg_*", "delta_scan", "sqlite_scan", "postgres_scan",
		"mysql_scan", "query", "query_table",
	},
}

func isDangerousFunction(dialect Dialect, name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range dangerousFunctions[dialect] {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(lower, prefix) {
				return true
			}
			continue
		}
		if lower == pattern {
			return true
		}
	}
	return false
}

// nonTableFromFunctions take FROM as an argument separator, e.g.
// EXTRACT(YEAR FROM created_at) or TRIM(BOTH ' ' FROM name).
var nonTableFromFunctions = toSet("EXTRACT", "SUBSTRING", "SUBSTR", "TRIM", "POSITION", "OVERLAY")

// castFunctions take a type name after AS.
var castFunctions = toSet("CAST", "TRY_CAST", "SAFE_CAST")

// keywords are words that never name a column: SQL keywords, literals, type
// names and date parts across the supported dialects.
var keywords = toSet(
	// clauses and operators
	"SELECT", "FROM", "WHERE", "GROUP", "BY", "HAVING", "ORDER", "LIMIT", "OFFSET",
	"FETCH", "NEXT", "FIRST", "LAST", "ROWS", "ROW", "ONLY", "TIES", "PERCENT", "TOP",
	"WITH", "RECURSIVE", "MATERIALIZED", "AS", "ON", "USING", "JOIN", "INNER", "LEFT",
	"RIGHT", "FULL", "OUTER", "CROSS", "NATURAL", "LATERAL", "APPLY", "ASOF",
	"POSITIONAL", "SEMI", "ANTI", "UNION", "EXCEPT", "INTERSECT", "MINUS", "ALL",
	"DISTINCT", "AND", "OR", "NOT", "IN", "IS", "NULL", "LIKE", "ILIKE", "GLOB",
	"REGEXP", "MATCH", "SIMILAR", "ESCAPE", "BETWEEN", "EXISTS", "ANY", "SOME",
	"CASE", "WHEN", "THEN", "ELSE", "END", "CAST", "TRY_CAST", "COLLATE", "ASC",
	"DESC", "NULLS", "OVER", "PARTITION", "WINDOW", "RANGE", "GROUPS", "PRECEDING",
	"FOLLOWING", "UNBOUNDED", "CURRENT", "EXCLUDE", "OTHERS", "NO", "FILTER",
	"WITHIN", "QUALIFY", "TABLESAMPLE", "PIVOT", "UNPIVOT", "VALUES", "FOR", "XML",
	"JSON", "PATH", "AUTO", "RAW", "ROOT", "NOLOCK", "READUNCOMMITTED",
	"PERCENTILE_CONT", "PERCENTILE_DISC", "ROLLUP", "CUBE", "GROUPING", "SETS",
	"ESCAPE", "BOTH", "LEADING", "TRAILING", "AT", "TIME", "ZONE", "LOCAL", "TO",
	"SYMMETRIC", "ASYMMETRIC", "UNKNOWN", "ORDINALITY", "OF", "NOCASE", "RTRIM",
	"BINARY", "DEFAULT", "ARRAY", "MAP", "STRUCT", "LIST", "ROWID", "OID",
	// literals and niladic functions
	"TRUE", "FALSE", "CURRENT_DATE", "CURRENT_TIME", "CURRENT_TIMESTAMP",
	"CURRENT_USER", "SESSION_USER", "LOCALTIME", "LOCALTIMESTAMP",
	// types
	"INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "HUGEINT", "REAL", "FLOAT",
	"DOUBLE", "PRECISION", "NUMERIC", "DECIMAL", "MONEY", "TEXT", "VARCHAR", "CHAR",
	"CHARACTER", "VARYING", "NVARCHAR", "NCHAR", "NTEXT", "STRING", "BOOLEAN", "BOOL",
	"BIT", "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET",
	"TIMESTAMP", "TIMESTAMPTZ", "TIMETZ", "INTERVAL", "BLOB", "BYTEA", "VARBINARY",
	"UUID", "UNIQUEIDENTIFIER", "JSONB", "WITHOUT", "UNSIGNED", "SIGNED", "MAX",
	// date parts
	"YEAR", "YEARS", "QUARTER", "MONTH", "MONTHS", "WEEK", "WEEKS", "DAY", "DAYS",
	"HOUR", "HOURS", "MINUTE", "MINUTES", "SECOND", "SECONDS", "MILLISECOND",
	"MILLISECONDS", "MICROSECOND", "MICROSECONDS", "DOW", "DOY", "ISODOW",
	"ISOYEAR", "EPOCH", "DECADE", "CENTURY", "MILLENNIUM", "TIMEZONE", "DAYOFWEEK",
	"DAYOFYEAR", "WEEKDAY", "DW", "DY", "YY", "YYYY", "QQ", "MM", "DD", "HH", "MI",
	"SS", "WK", "WW",
)

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
