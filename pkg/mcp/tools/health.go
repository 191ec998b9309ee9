package tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
)

const healthPingTimeout = 5 * time.Second

type healthResult struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Dialect    string `json:"dialect"`
	Datasource string `json:"datasource"`
	Error      string `json:"error,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and whether the data store answers.
func RegisterHealthTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and datasource connectivity"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{
			Status:     "ok",
			Version:    deps.Version,
			Dialect:    deps.Dialect,
			Datasource: "unchecked",
		}

		if deps.Store != nil {
			pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
			defer cancel()

			if err := deps.Store.TestConnection(pingCtx); err != nil {
				deps.Logger.Warn("Datasource health check failed", zap.String("error", logging.SanitizeError(err)))
				result.Status = "degraded"
				result.Datasource = "unreachable"
				result.Error = logging.SanitizeForUser(err)
			} else {
				result.Datasource = "ok"
			}
		}

		return jsonResult(result)
	})
}
