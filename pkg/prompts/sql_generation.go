// Package prompts builds the text sent to the language model.
package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// SQLGenerationSystemMessage is the system message for every SQL request.
const SQLGenerationSystemMessage = "You are an expert SQL query generator. " +
	"You write exactly one read-only SELECT statement per answer. " +
	"Always respond with valid JSON of the form {\"sql\": \"...\"} and nothing else."

// SQLGenerationInput is everything the SQL prompt is built from.
type SQLGenerationInput struct {
	// DialectName is the engine's display name, e.g. "SQLite".
	DialectName string
	Schema      *models.SchemaDescription
	// History is oldest first. Only the last MaxHistory turns are rendered.
	History    []models.ConversationTurn
	MaxHistory int
	Question   string
}

// BuildSQLGenerationPrompt returns the system message and the user prompt for
// one question. Result rows never appear in the prompt; history contributes
// question, SQL and outcome only.
func BuildSQLGenerationPrompt(in SQLGenerationInput) (system, prompt string) {
	var b strings.Builder

	dialect := in.DialectName
	if dialect == "" {
		dialect = "SQL"
	}

	b.WriteString("Based on the user's natural language question and the database schema provided, ")
	b.WriteString("generate a precise SQL query.\n\n")

	fmt.Fprintf(&b, "SQL dialect: %s\n\n", dialect)

	b.WriteString("Database Schema:\n")
	if in.Schema != nil && len(in.Schema.Tables) > 0 {
		b.WriteString(in.Schema.Describe())
	} else {
		b.WriteString("(no tables)\n")
	}

	if history := recentTurns(in.History, in.MaxHistory); len(history) > 0 {
		b.WriteString("\nPrevious conversation context:\n")
		for _, turn := range history {
			writeTurn(&b, turn)
		}
	}

	fmt.Fprintf(&b, "\nUser Question: %s\n\n", strings.TrimSpace(in.Question))

	b.WriteString("Instructions:\n")
	fmt.Fprintf(&b, "1. Generate a single %s SELECT statement that answers the question. WITH clauses are allowed if the final statement is a SELECT.\n", dialect)
	b.WriteString("2. Never modify data or schema: no INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, PRAGMA, ATTACH or similar.\n")
	b.WriteString("3. Only use the tables and columns listed in the schema above.\n")
	b.WriteString("4. Consider the conversation context for follow-up questions.\n")
	b.WriteString("5. Use JOINs when data spans multiple tables and aggregation functions when appropriate.\n")
	b.WriteString("6. Do not include any explanation, just the SQL query.\n\n")

	b.WriteString("Respond with a JSON object containing only the SQL query:\n")
	b.WriteString(`{"sql": "your_sql_query_here"}`)
	b.WriteString("\n")

	return SQLGenerationSystemMessage, b.String()
}

func recentTurns(turns []models.ConversationTurn, n int) []models.ConversationTurn {
	if n > 0 && len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

func writeTurn(b *strings.Builder, turn models.ConversationTurn) {
	fmt.Fprintf(b, "Q: %s\n", turn.Question)
	if turn.SQL != "" {
		fmt.Fprintf(b, "SQL: %s\n", turn.SQL)
	} else {
		b.WriteString("SQL: (none)\n")
	}

	switch turn.Status {
	case models.TurnStatusSuccess:
		if turn.RowCount != nil {
			fmt.Fprintf(b, "Result: Success (%d rows)\n", *turn.RowCount)
		} else {
			b.WriteString("Result: Success\n")
		}
	case models.TurnStatusRejected:
		fmt.Fprintf(b, "Result: Rejected - %s\n", turn.Reason)
	default:
		fmt.Fprintf(b, "Result: Error - %s\n", turn.Reason)
	}
	b.WriteString("\n")
}

// SampleQuestions are starter questions for the sample commerce database.
var SampleQuestions = []string{
	"Show me all customers from New York",
	"What are the top 5 products by total sales?",
	"How many orders were placed in the last month?",
	"Show me the average order value by customer city",
	"Which products have never been ordered?",
}
