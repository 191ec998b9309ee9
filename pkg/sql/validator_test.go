package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/testhelpers"
)

func newCommerceValidator(dialect Dialect) *Validator {
	return NewValidator(testhelpers.CommerceSchema(), dialect)
}

func requireRejected(t *testing.T, err error) *apperrors.RejectedQueryError {
	t.Helper()
	var rejected *apperrors.RejectedQueryError
	require.True(t, errors.As(err, &rejected), "expected RejectedQueryError, got %v", err)
	return rejected
}

func TestValidate_AcceptsReadOnlyQueries(t *testing.T) {
	v := newCommerceValidator(DialectSQLite)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "count",
			input:    "SELECT COUNT(*) FROM customers",
			expected: "SELECT COUNT(*) FROM customers",
		},
		{
			name:     "trailing semicolon and whitespace",
			input:    "  SELECT COUNT(*) FROM customers;  ",
			expected: "SELECT COUNT(*) FROM customers",
		},
		{
			name:     "trailing comment after semicolon",
			input:    "SELECT first_name FROM customers; -- done",
			expected: "SELECT first_name FROM customers",
		},
		{
			name:     "semicolon inside string",
			input:    "SELECT first_name FROM customers WHERE city = 'a;b'",
			expected: "SELECT first_name FROM customers WHERE city = 'a;b'",
		},
		{
			name:     "doubled quote escape",
			input:    "SELECT email FROM customers WHERE last_name = 'O''Brien'",
			expected: "SELECT email FROM customers WHERE last_name = 'O''Brien'",
		},
		{
			name: "join with aliases",
			input: `SELECT c.first_name, c.last_name, SUM(o.total_amount) AS total_spent
				FROM customers c
				JOIN orders o ON c.customer_id = o.customer_id
				GROUP BY c.customer_id
				ORDER BY total_spent DESC
				LIMIT 5`,
		},
		{
			name: "comma join with AS aliases",
			input: `SELECT p.product_name, oi.quantity FROM products AS p, order_items AS oi
				WHERE p.product_id = oi.product_id`,
		},
		{
			name: "cte",
			input: `WITH monthly AS (
					SELECT substr(order_date, 1, 7) AS month_key, SUM(total_amount) AS revenue
					FROM orders GROUP BY month_key
				)
				SELECT month_key, revenue FROM monthly ORDER BY month_key`,
		},
		{
			name: "cte with column list",
			input: `WITH spend(cid, amount) AS (SELECT customer_id, total_amount FROM orders)
				SELECT cid, SUM(amount) FROM spend GROUP BY cid`,
		},
		{
			name:  "subquery in where",
			input: "SELECT first_name FROM customers WHERE customer_id IN (SELECT customer_id FROM orders WHERE status = 'shipped')",
		},
		{
			name:  "derived table",
			input: "SELECT t.status, t.n FROM (SELECT status, COUNT(*) AS n FROM orders GROUP BY status) t WHERE t.n > 1",
		},
		{
			name:  "case expression with implicit alias",
			input: "SELECT CASE WHEN price > 100 THEN 'premium' ELSE 'standard' END tier, product_name FROM products",
		},
		{
			name:  "window function",
			input: "SELECT order_id, ROW_NUMBER() OVER (PARTITION BY customer_id ORDER BY order_date) rn FROM orders",
		},
		{
			name:  "named window",
			input: "SELECT order_id, SUM(total_amount) OVER w FROM orders WINDOW w AS (ORDER BY order_date)",
		},
		{
			name:  "cast",
			input: "SELECT CAST(total_amount AS INTEGER) FROM orders",
		},
		{
			name:  "replace function",
			input: "SELECT REPLACE(email, '@', ' at ') FROM customers",
		},
		{
			name:  "schema qualified main",
			input: "SELECT main.customers.email FROM main.customers",
		},
		{
			name:  "bracket quoted identifiers",
			input: "SELECT [first_name] FROM [customers]",
		},
		{
			name:  "double quoted identifiers",
			input: `SELECT "first_name" FROM "customers"`,
		},
		{
			name:  "union of plain selects",
			input: "SELECT city FROM customers UNION SELECT category FROM products",
		},
		{
			name:  "case-insensitive names",
			input: "SELECT First_Name FROM CUSTOMERS",
		},
		{
			name:  "backslash is a plain character",
			input: `SELECT first_name FROM customers WHERE city = 'a\'`,
		},
		{
			name:  "keywords inside comments",
			input: "SELECT first_name /* not a DELETE */ FROM customers -- DROP TABLE x",
		},
		{
			name:  "is distinct from",
			input: "SELECT order_id FROM orders WHERE status IS NOT DISTINCT FROM 'shipped'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := v.Validate(tt.input)
			require.NoError(t, err)
			assert.False(t, q.IsZero())
			if tt.expected != "" {
				assert.Equal(t, tt.expected, q.Text())
			}
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	v := newCommerceValidator(DialectSQLite)

	tests := []struct {
		name  string
		input string
		rule  string
	}{
		{name: "empty", input: "   ", rule: RuleEmpty},
		{name: "only comment", input: "-- nothing here", rule: RuleEmpty},
		{name: "only semicolon", input: ";", rule: RuleEmpty},
		{name: "unterminated string", input: "SELECT first_name FROM customers WHERE city = 'x", rule: RuleLexical},
		{name: "unterminated comment", input: "SELECT 1 /* open", rule: RuleLexical},
		{name: "nested comment", input: "SELECT 1 /* a /* b */ c */", rule: RuleLexical},
		{name: "escape string", input: "SELECT first_name FROM customers WHERE city = E'x'", rule: RuleLexical},
		{name: "unbalanced parens", input: "SELECT COUNT(* FROM customers", rule: RuleLexical},
		{name: "stacked drop", input: "SELECT 1; DROP TABLE customers", rule: RuleMultipleStatements},
		{name: "two selects", input: "SELECT 1; SELECT 2;", rule: RuleMultipleStatements},
		{name: "double trailing semicolon", input: "SELECT 1;;", rule: RuleMultipleStatements},
		{
			name:  "backslash quote cannot hide a second statement",
			input: `SELECT first_name FROM customers WHERE city = 'a\'; DROP TABLE customers; --'`,
			rule:  RuleMultipleStatements,
		},
		{name: "delete", input: "DELETE FROM orders", rule: RuleNotSelect},
		{name: "update", input: "UPDATE orders SET status = 'x'", rule: RuleNotSelect},
		{name: "drop", input: "DROP TABLE orders", rule: RuleNotSelect},
		{name: "pragma", input: "PRAGMA table_info(orders)", rule: RuleNotSelect},
		{name: "attach", input: "ATTACH DATABASE 'x.db' AS x", rule: RuleNotSelect},
		{name: "values", input: "VALUES (1)", rule: RuleNotSelect},
		{
			name:  "data-modifying cte",
			input: "WITH gone AS (DELETE FROM orders RETURNING order_id) SELECT order_id FROM gone",
			rule:  RuleForbiddenKeyword,
		},
		{name: "with resolving to delete", input: "WITH x AS (SELECT 1) DELETE FROM orders", rule: RuleNotSelect},
		{name: "select into", input: "SELECT * INTO backup FROM orders", rule: RuleForbiddenKeyword},
		{name: "for update", input: "SELECT order_id FROM orders FOR UPDATE", rule: RuleForbiddenKeyword},
		{name: "for share", input: "SELECT order_id FROM orders FOR SHARE", rule: RuleForbiddenKeyword},
		{name: "replace statement keyword", input: "SELECT 1 FROM customers WHERE 1 = 1 REPLACE", rule: RuleForbiddenKeyword},
		{name: "load_extension", input: "SELECT load_extension('evil.so')", rule: RuleDangerousFunction},
		{name: "readfile", input: "SELECT readfile('/etc/passwd')", rule: RuleDangerousFunction},
		{name: "unknown table", input: "SELECT * FROM users", rule: RuleUnknownTable},
		{name: "system catalog", input: "SELECT name FROM sqlite_master", rule: RuleUnknownTable},
		{name: "quoted catalog as string", input: "SELECT * FROM 'sqlite_master'", rule: RuleUnknownTable},
		{name: "parameter as table", input: "SELECT * FROM ?", rule: RuleUnknownTable},
		{name: "parenthesized select", input: "(SELECT * FROM customers)", rule: RuleNotSelect},
		{name: "doubly parenthesized select", input: "((SELECT COUNT(*) FROM orders))", rule: RuleNotSelect},
		{name: "union in parentheses", input: "(SELECT city FROM customers) UNION (SELECT category FROM products)", rule: RuleNotSelect},
		{name: "unknown join table", input: "SELECT c.email FROM customers c JOIN payments p ON p.customer_id = c.customer_id", rule: RuleUnknownTable},
		{name: "table function", input: "SELECT * FROM json_each('[1,2]')", rule: RuleUnknownTable},
		{name: "undefined qualifier", input: "SELECT x.email FROM customers c", rule: RuleUnknownTable},
		{name: "unknown column", input: "SELECT salary FROM customers", rule: RuleUnknownColumn},
		{name: "unknown qualified column", input: "SELECT c.salary FROM customers c", rule: RuleUnknownColumn},
		{name: "column from wrong table", input: "SELECT o.email FROM orders o", rule: RuleUnknownColumn},
		{name: "column without table", input: "SELECT salary", rule: RuleUnknownColumn},
		{
			name:  "smuggled injection literal",
			input: "SELECT email FROM customers WHERE first_name = ''' OR ''1''=''1'",
			rule:  RuleInjectionPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := v.Validate(tt.input)
			require.Error(t, err)
			assert.True(t, q.IsZero())

			rejected := requireRejected(t, err)
			assert.Equal(t, tt.rule, rejected.Rule, "reason: %s", rejected.Reason)
			assert.Equal(t, tt.input, rejected.OriginalText)
			assert.NotEmpty(t, rejected.Reason)
		})
	}
}

func TestValidate_UnknownTableSuggestsInflectedName(t *testing.T) {
	v := newCommerceValidator(DialectSQLite)

	_, err := v.Validate("SELECT COUNT(*) FROM customer")
	rejected := requireRejected(t, err)

	assert.Equal(t, RuleUnknownTable, rejected.Rule)
	assert.Contains(t, rejected.Reason, "customer")
	assert.Contains(t, rejected.Reason, "did you mean customers?")
}

func TestValidate_IsIdempotent(t *testing.T) {
	v := newCommerceValidator(DialectSQLite)

	inputs := []string{
		"SELECT COUNT(*) FROM customers;",
		"  SELECT c.email FROM customers c WHERE c.country = 'USA' ; ",
		"WITH t AS (SELECT status FROM orders) SELECT status FROM t;",
	}

	for _, input := range inputs {
		first, err := v.Validate(input)
		require.NoError(t, err)

		second, err := v.Validate(first.Text())
		require.NoError(t, err)
		assert.Equal(t, first.Text(), second.Text())
		assert.Equal(t, first.Tables(), second.Tables())
	}
}

func TestValidate_ReportsReferencedTables(t *testing.T) {
	v := newCommerceValidator(DialectSQLite)

	q, err := v.Validate("SELECT o.order_id FROM orders o JOIN customers c ON c.customer_id = o.customer_id")
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, q.Tables())
}

func TestValidate_DialectSpecificRules(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		input   string
		rule    string // empty means accepted
	}{
		{name: "postgres sleep", dialect: DialectPostgres, input: "SELECT pg_sleep(10)", rule: RuleDangerousFunction},
		{name: "postgres read file", dialect: DialectPostgres, input: "SELECT pg_read_file('/etc/passwd')", rule: RuleDangerousFunction},
		{name: "postgres dollar quote", dialect: DialectPostgres, input: "SELECT $$x$$", rule: RuleLexical},
		{name: "postgres cast", dialect: DialectPostgres, input: "SELECT order_date::date, total_amount::numeric(10,2) FROM orders"},
		{name: "postgres extract", dialect: DialectPostgres, input: "SELECT EXTRACT(YEAR FROM order_date) AS yr, COUNT(*) FROM orders GROUP BY yr"},
		{name: "postgres interval", dialect: DialectPostgres, input: "SELECT order_id FROM orders WHERE order_date > NOW() - INTERVAL '30 days'"},
		{name: "postgres positional param", dialect: DialectPostgres, input: "SELECT order_id FROM orders WHERE customer_id = $1"},
		{name: "sqlserver top", dialect: DialectSQLServer, input: "SELECT TOP 5 first_name FROM customers ORDER BY created_at DESC"},
		{name: "sqlserver xp_cmdshell", dialect: DialectSQLServer, input: "SELECT * FROM customers WHERE 1 = xp_cmdshell('dir')", rule: RuleDangerousFunction},
		{name: "sqlserver openrowset", dialect: DialectSQLServer, input: "SELECT openrowset('x')", rule: RuleDangerousFunction},
		{name: "sqlserver waitfor", dialect: DialectSQLServer, input: "SELECT 1 WAITFOR DELAY '0:0:5'", rule: RuleForbiddenKeyword},
		{name: "sqlserver exec", dialect: DialectSQLServer, input: "EXEC sp_who", rule: RuleNotSelect},
		{name: "duckdb read_csv", dialect: DialectDuckDB, input: "SELECT * FROM read_csv_auto('/etc/passwd')", rule: RuleDangerousFunction},
		{name: "duckdb glob", dialect: DialectDuckDB, input: "SELECT glob('/home/*')", rule: RuleDangerousFunction},
		{name: "duckdb file path as table", dialect: DialectDuckDB, input: "SELECT * FROM '/tmp/data.csv'", rule: RuleUnknownTable},
		{name: "duckdb joined file path", dialect: DialectDuckDB, input: "SELECT c.email FROM customers c JOIN 'orders.parquet' o ON o.customer_id = c.customer_id", rule: RuleUnknownTable},
		{name: "duckdb install", dialect: DialectDuckDB, input: "SELECT 1 FROM customers; INSTALL httpfs", rule: RuleMultipleStatements},
		{name: "sqlite glob is an operator", dialect: DialectSQLite, input: "SELECT email FROM customers WHERE first_name GLOB 'J*'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newCommerceValidator(tt.dialect)
			_, err := v.Validate(tt.input)
			if tt.rule == "" {
				require.NoError(t, err)
				return
			}
			rejected := requireRejected(t, err)
			assert.Equal(t, tt.rule, rejected.Rule, "reason: %s", rejected.Reason)
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		input   string
		want    Dialect
		wantErr bool
	}{
		{"sqlite", DialectSQLite, false},
		{"SQLite3", DialectSQLite, false},
		{"postgres", DialectPostgres, false},
		{"postgresql", DialectPostgres, false},
		{"mssql", DialectSQLServer, false},
		{"sqlserver", DialectSQLServer, false},
		{"duckdb", DialectDuckDB, false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDialect(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
