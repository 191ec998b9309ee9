package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "json object",
			response: `{"sql": "SELECT COUNT(*) FROM customers"}`,
			want:     "SELECT COUNT(*) FROM customers",
		},
		{
			name:     "json with think block",
			response: "<think>customers table has the rows</think>\n{\"sql\": \"SELECT * FROM customers\"}",
			want:     "SELECT * FROM customers",
		},
		{
			name:     "json inside fence",
			response: "```json\n{\"sql\": \"SELECT name FROM products\"}\n```",
			want:     "SELECT name FROM products",
		},
		{
			name:     "json keeps escaped quotes",
			response: `{"sql": "SELECT * FROM customers WHERE last_name = 'O''Brien'"}`,
			want:     "SELECT * FROM customers WHERE last_name = 'O''Brien'",
		},
		{
			name:     "sql fence",
			response: "Here you go:\n```sql\nSELECT city, COUNT(*) FROM customers GROUP BY city;\n```\nThis groups by city.",
			want:     "SELECT city, COUNT(*) FROM customers GROUP BY city;",
		},
		{
			name:     "bare fence",
			response: "```\nSELECT 1\n```",
			want:     "SELECT 1",
		},
		{
			name:     "prose to semicolon",
			response: "The query is SELECT * FROM orders WHERE status = 'a;b'; it returns pending orders.",
			want:     "SELECT * FROM orders WHERE status = 'a;b';",
		},
		{
			name:     "prose ends at blank line",
			response: "SELECT *\nFROM orders\n\nThis lists every order.",
			want:     "SELECT *\nFROM orders",
		},
		{
			name:     "lower case keyword at line start",
			response: "Answer:\nselect count(*) from orders;",
			want:     "select count(*) from orders;",
		},
		{
			name:     "lower case keyword mid sentence is prose",
			response: "I will select the right rows.\nSELECT * FROM products;",
			want:     "SELECT * FROM products;",
		},
		{
			name:     "lower case keyword after colon",
			response: "Here is the query: select count(*) from customers;",
			want:     "select count(*) from customers;",
		},
		{
			name:     "lower case cte after colon",
			response: "You can use: with t as (select 1) select * from t;",
			want:     "with t as (select 1) select * from t;",
		},
		{
			name:     "lower case keyword followed by from",
			response: "Try running select email from customers where city = 'Boston'; it lists Boston customers.",
			want:     "select email from customers where city = 'Boston';",
		},
		{
			name:     "cte",
			response: "WITH big AS (SELECT * FROM orders WHERE total_amount > 100) SELECT COUNT(*) FROM big;",
			want:     "WITH big AS (SELECT * FROM orders WHERE total_amount > 100) SELECT COUNT(*) FROM big;",
		},
		{
			name:     "with that is not a cte is skipped",
			response: "Start WITH this: SELECT 1;",
			want:     "SELECT 1;",
		},
		{
			name:     "stacked statements are kept",
			response: "SELECT * FROM customers; DROP TABLE customers; and that is all",
			want:     "SELECT * FROM customers; DROP TABLE customers;",
		},
		{
			name:     "write statement reaches validator",
			response: "Sure.\nDELETE FROM orders;",
			want:     "DELETE FROM orders;",
		},
		{
			name:     "semicolon in comment is ignored",
			response: "SELECT 1 -- one; two\nFROM customers;",
			want:     "SELECT 1 -- one; two\nFROM customers;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSQL(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractSQL_Failures(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty", "   "},
		{"think only", "<think>hmm</think>"},
		{"empty sql field", `{"sql": ""}`},
		{"no statement", "I cannot answer that question with the available tables."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractSQL(tt.response)
			require.Error(t, err)

			var genErr *apperrors.GenerationError
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, apperrors.GenerationExtraction, genErr.Reason)
			assert.Equal(t, apperrors.KindGeneration, apperrors.KindOf(err))
		})
	}
}
