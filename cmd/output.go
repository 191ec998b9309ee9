package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// maxCellWidth bounds a single rendered value in the result table.
const maxCellWidth = 60

// printAnswer writes the outcome of one question: the generated SQL, then
// either the result table or the failure reason.
func printAnswer(w io.Writer, resp *models.AskResponse) {
	if resp.SQL != "" {
		fmt.Fprintf(w, "SQL:\n  %s\n\n", strings.ReplaceAll(strings.TrimSpace(resp.SQL), "\n", "\n  "))
	}

	if resp.Status != models.TurnStatusSuccess {
		status := string(resp.Status)
		if resp.Rule != "" {
			status += " (" + resp.Rule + ")"
		}
		fmt.Fprintf(w, "Status: %s\n", status)
		fmt.Fprintf(w, "Reason: %s\n", resp.Reason)
		return
	}

	if resp.Result == nil {
		fmt.Fprintln(w, "(no result)")
		return
	}
	printResult(w, resp.Result)
}

// printResult renders a result as an aligned table followed by the row count.
func printResult(w io.Writer, r *models.QueryResult) {
	if len(r.Columns) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		names := r.ColumnNames()
		fmt.Fprintln(tw, strings.Join(names, "\t"))

		rules := make([]string, len(names))
		for i, n := range names {
			rules[i] = strings.Repeat("-", max(len(n), 3))
		}
		fmt.Fprintln(tw, strings.Join(rules, "\t"))

		for _, row := range r.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatCell(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		_ = tw.Flush()
	}

	noun := "rows"
	if r.RowCount == 1 {
		noun = "row"
	}
	fmt.Fprintf(w, "\n(%d %s", r.RowCount, noun)
	if r.Truncated {
		fmt.Fprint(w, ", truncated")
	}
	fmt.Fprintln(w, ")")
}

func formatCell(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = "NULL"
	case []byte:
		s = string(val)
	case time.Time:
		s = val.Format(time.RFC3339)
	default:
		s = fmt.Sprint(val)
	}
	s = strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
	return logging.TruncateString(s, maxCellWidth)
}
