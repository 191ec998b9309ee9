package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// Pinger verifies the data store is reachable.
type Pinger interface {
	TestConnection(ctx context.Context) error
}

// ToolDeps holds what the askdb tools need.
type ToolDeps struct {
	AskService    services.AskService
	SchemaService services.SchemaService
	Sessions      *services.SessionStore
	Store         Pinger
	Dialect       string
	Version       string
	Logger        *zap.Logger
}

// RegisterAll adds every askdb tool to s.
func RegisterAll(s *server.MCPServer, deps *ToolDeps) {
	RegisterAskTool(s, deps)
	RegisterSchemaTools(s, deps)
	RegisterHealthTool(s, deps)
}

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// jsonResult marshals v as the tool's text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
