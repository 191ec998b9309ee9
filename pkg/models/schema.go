package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaDescription is the introspected shape of the data store.
// It is rebuilt only when the store is (re)initialized or explicitly refreshed.
type SchemaDescription struct {
	Dialect string      `json:"dialect" yaml:"dialect"`
	Tables  []TableInfo `json:"tables" yaml:"tables"`
}

// TableInfo describes one table with its ordered columns and optional sample rows.
type TableInfo struct {
	Schema     string       `json:"schema,omitempty" yaml:"schema,omitempty"`
	Name       string       `json:"name" yaml:"name"`
	Columns    []ColumnInfo `json:"columns" yaml:"columns"`
	SampleRows [][]any      `json:"sample_rows,omitempty" yaml:"sample_rows,omitempty"`
	RowCount   *int64       `json:"row_count,omitempty" yaml:"row_count,omitempty"` // populated on demand
}

// ColumnInfo describes a table column.
type ColumnInfo struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Nullable   bool   `json:"nullable" yaml:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// QualifiedName returns schema.name, or just name when no schema is set.
func (t *TableInfo) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Column returns the column with the given name, compared case-insensitively.
func (t *TableInfo) Column(name string) (*ColumnInfo, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in declaration order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table finds a table by name. The name may be schema-qualified ("sales.orders");
// an unqualified name matches any schema. Comparison is case-insensitive.
func (s *SchemaDescription) Table(name string) (*TableInfo, bool) {
	schema, table := splitQualified(name)
	for i := range s.Tables {
		t := &s.Tables[i]
		if !strings.EqualFold(t.Name, table) {
			continue
		}
		if schema != "" && !strings.EqualFold(t.Schema, schema) {
			continue
		}
		return t, true
	}
	return nil, false
}

// TableNames returns the qualified names of all tables in catalog order.
func (s *SchemaDescription) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i := range s.Tables {
		names[i] = s.Tables[i].QualifiedName()
	}
	return names
}

// Describe renders the schema as plain text for prompts and the CLI.
//
//	Table: orders
//	Columns:
//	  - id: INTEGER (PRIMARY KEY) (NOT NULL)
//	Sample data:
//	  (1, 'Alice', ...)
func (s *SchemaDescription) Describe() string {
	var b strings.Builder
	for i := range s.Tables {
		t := &s.Tables[i]
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table: %s\n", t.QualifiedName())
		b.WriteString("Columns:\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s: %s", c.Name, c.Type)
			if c.PrimaryKey {
				b.WriteString(" (PRIMARY KEY)")
			}
			if !c.Nullable {
				b.WriteString(" (NOT NULL)")
			}
			b.WriteString("\n")
		}
		if len(t.SampleRows) > 0 {
			b.WriteString("Sample data:\n")
			for _, row := range t.SampleRows {
				fmt.Fprintf(&b, "  (%s)\n", formatSampleRow(row))
			}
		}
	}
	return b.String()
}

// YAML renders the schema as a YAML document.
func (s *SchemaDescription) YAML() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(out), nil
}

func formatSampleRow(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		switch val := v.(type) {
		case nil:
			parts[i] = "NULL"
		case string:
			parts[i] = "'" + truncateSample(val) + "'"
		default:
			parts[i] = fmt.Sprintf("%v", val)
		}
	}
	return strings.Join(parts, ", ")
}

// Long text samples only waste prompt tokens.
const maxSampleValueLen = 60

func truncateSample(s string) string {
	if len(s) <= maxSampleValueLen {
		return s
	}
	return s[:maxSampleValueLen] + "..."
}

func splitQualified(name string) (schema, table string) {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
