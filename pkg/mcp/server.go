package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/mcp/tools"
)

// ServerName is advertised to MCP clients during initialization.
const ServerName = "askdb"

// Server wraps the mcp-go MCPServer with the askdb tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with every askdb tool registered. Tool
// calls are audited through auditLogger when it is non-nil.
func NewServer(version string, deps *tools.ToolDeps, auditLogger *AuditLogger, logger *zap.Logger) *Server {
	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Ask questions about the connected " + deps.Dialect + " database in plain language with ask_database. " +
			"Only read-only queries are ever run. Use get_schema to see the available tables."),
	}
	if auditLogger != nil {
		opts = append(opts, server.WithHooks(auditLogger.Hooks()))
	}

	mcpServer := server.NewMCPServer(ServerName, version, opts...)
	tools.RegisterAll(mcpServer, deps)

	return &Server{
		mcp:    mcpServer,
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
// Conversation state lives in askdb sessions, so the transport is stateless.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering an additional tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
