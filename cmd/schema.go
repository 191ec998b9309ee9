package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

var (
	schemaFormat string
	schemaTable  string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the introspected database schema",
	Long: `Print the schema description the model is given: tables, columns, types,
key and nullability markers, and sample rows.

Examples:
  askdb schema
  askdb schema --format yaml
  askdb schema --table orders --format json`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "text", "Output format (text, yaml, json)")
	schemaCmd.Flags().StringVarP(&schemaTable, "table", "t", "", "Show a single table with its row count")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := checkSchemaFormat(schemaFormat); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if schemaTable != "" {
		return writeTable(ctx, cmd.OutOrStdout(), a.schemas, schemaTable, schemaFormat)
	}
	return writeSchema(ctx, cmd.OutOrStdout(), a.schemas, schemaFormat)
}

func checkSchemaFormat(format string) error {
	switch format {
	case "text", "yaml", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q: use text, yaml or json", format)
	}
}

// writeSchema renders the full schema description in format.
func writeSchema(ctx context.Context, w io.Writer, schemas services.SchemaService, format string) error {
	schema, err := schemas.Schema(ctx)
	if err != nil {
		return err
	}

	switch format {
	case "yaml":
		out, err := schema.YAML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "json":
		return writeJSON(w, schema)
	default:
		_, err = io.WriteString(w, schema.Describe())
		return err
	}
}

// writeTable renders one table, including its live row count.
func writeTable(ctx context.Context, w io.Writer, schemas services.SchemaService, name, format string) error {
	table, err := schemas.TableInfo(ctx, name)
	if err != nil {
		return fmt.Errorf("table %s: %w", name, err)
	}

	switch format {
	case "yaml":
		out, err := yaml.Marshal(table)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "json":
		return writeJSON(w, table)
	default:
		fmt.Fprintf(w, "Table: %s\n", table.QualifiedName())
		if table.RowCount != nil {
			fmt.Fprintf(w, "Rows: %d\n", *table.RowCount)
		}
		fmt.Fprintln(w, "Columns:")
		for _, c := range table.Columns {
			fmt.Fprintf(w, "  - %s: %s", c.Name, c.Type)
			if c.PrimaryKey {
				fmt.Fprint(w, " (PRIMARY KEY)")
			}
			if !c.Nullable {
				fmt.Fprint(w, " (NOT NULL)")
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
