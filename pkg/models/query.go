package models

// ResultColumn is one column of a query result, in engine order.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// QueryResult is the tabular output of an executed query. It is built fresh for
// every execution and never mutated afterwards.
type QueryResult struct {
	Columns   []ResultColumn `json:"columns"`
	Rows      [][]any        `json:"rows"`
	RowCount  int            `json:"row_count"`
	Truncated bool           `json:"truncated,omitempty"`
}

// ColumnNames returns the result column names in order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// AskResponse is what a caller gets back for one natural-language question.
type AskResponse struct {
	Status TurnStatus   `json:"status"`
	SQL    string       `json:"sql,omitempty"`
	Result *QueryResult `json:"result,omitempty"`
	Reason string       `json:"reason,omitempty"`
	// Rule is the validator rule code for rejected queries.
	Rule string `json:"rule,omitempty"`
}
