package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
)

// Schema output formats.
const (
	schemaFormatText = "text"
	schemaFormatJSON = "json"
	schemaFormatYAML = "yaml"
)

// RegisterSchemaTools adds get_schema and get_table_info to the MCP server.
func RegisterSchemaTools(s *server.MCPServer, deps *ToolDeps) {
	registerGetSchemaTool(s, deps)
	registerGetTableInfoTool(s, deps)
}

func registerGetSchemaTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription("Describe every table and column of the database, with sample rows. "+
			"This is the same description the question answering model sees."),
		mcp.WithString(
			"format",
			mcp.Description("Output format: text (default), json or yaml"),
			mcp.Enum(schemaFormatText, schemaFormatJSON, schemaFormatYAML),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		format := trimString(req.GetString("format", schemaFormatText))

		schema, err := deps.SchemaService.Schema(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}

		switch format {
		case schemaFormatText, "":
			return mcp.NewToolResultText(schema.Describe()), nil
		case schemaFormatJSON:
			return jsonResult(schema)
		case schemaFormatYAML:
			out, err := schema.YAML()
			if err != nil {
				return nil, fmt.Errorf("failed to render schema: %w", err)
			}
			return mcp.NewToolResultText(out), nil
		default:
			return NewErrorResult("invalid_parameters",
				fmt.Sprintf("unknown format %q; use text, json or yaml", format)), nil
		}
	})
}

func registerGetTableInfoTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_table_info",
		mcp.WithDescription("Describe one table: columns, sample rows and a live row count."),
		mcp.WithString(
			"table",
			mcp.Required(),
			mcp.Description("Table name, optionally schema-qualified (e.g. \"orders\" or \"sales.orders\")"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return nil, err
		}
		table = trimString(table)
		if table == "" {
			return NewErrorResult("invalid_parameters", "parameter 'table' cannot be empty"), nil
		}

		info, err := deps.SchemaService.TableInfo(ctx, table)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return NewErrorResult("TABLE_NOT_FOUND", fmt.Sprintf("table %q not found in schema", table)), nil
			}
			return nil, fmt.Errorf("failed to load table info: %w", err)
		}
		return jsonResult(info)
	})
}
