package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// mockAskService answers every question with response and appends the turn.
type mockAskService struct {
	response      *models.AskResponse
	err           error
	calls         int
	lastSessionID string
}

func (m *mockAskService) Ask(ctx context.Context, conv *services.Conversation, question string) (*models.AskResponse, error) {
	m.calls++
	m.lastSessionID = audit.SessionIDFromContext(ctx)
	if m.err != nil {
		return nil, m.err
	}
	conv.Append(models.ConversationTurn{Question: question, SQL: m.response.SQL, Status: m.response.Status})
	return m.response, nil
}

type mockSchemaService struct {
	schema *models.SchemaDescription
	err    error
}

func (m *mockSchemaService) Schema(ctx context.Context) (*models.SchemaDescription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.schema, nil
}

func (m *mockSchemaService) Refresh(ctx context.Context) (*models.SchemaDescription, error) {
	return m.Schema(ctx)
}

func (m *mockSchemaService) TableInfo(ctx context.Context, name string) (*models.TableInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, apperrors.ErrNotFound)
	}
	info := *t
	count := int64(6)
	info.RowCount = &count
	return &info, nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) TestConnection(ctx context.Context) error {
	return m.err
}

func commerceSchema() *models.SchemaDescription {
	return &models.SchemaDescription{
		Dialect: "sqlite",
		Tables: []models.TableInfo{
			{
				Name: "orders",
				Columns: []models.ColumnInfo{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "customer_id", Type: "INTEGER"},
					{Name: "total", Type: "REAL", Nullable: true},
				},
				SampleRows: [][]any{{1, 1, 99.5}},
			},
		},
	}
}

// toolTestContext is an MCP server with every askdb tool registered.
type toolTestContext struct {
	t         *testing.T
	mcpServer *server.MCPServer
	deps      *ToolDeps
	ask       *mockAskService
	schema    *mockSchemaService
}

func newToolTestContext(t *testing.T, resp *models.AskResponse) *toolTestContext {
	t.Helper()
	tc := &toolTestContext{
		t:         t,
		mcpServer: server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true)),
		ask:       &mockAskService{response: resp},
		schema:    &mockSchemaService{schema: commerceSchema()},
	}
	tc.deps = &ToolDeps{
		AskService:    tc.ask,
		SchemaService: tc.schema,
		Sessions:      services.NewSessionStore(5, time.Hour, nil, zap.NewNop()),
		Store:         &mockPinger{},
		Dialect:       "SQLite",
		Version:       "test-version",
		Logger:        zap.NewNop(),
	}
	RegisterAll(tc.mcpServer, tc.deps)
	return tc
}

// callTool executes an MCP tool via the server's HandleMessage method.
func (tc *toolTestContext) callTool(toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	tc.t.Helper()

	reqBytes, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	})
	require.NoError(tc.t, err)

	result := tc.mcpServer.HandleMessage(context.Background(), reqBytes)

	resultBytes, err := json.Marshal(result)
	require.NoError(tc.t, err)

	var response struct {
		Result *mcp.CallToolResult `json:"result,omitempty"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	require.NoError(tc.t, json.Unmarshal(resultBytes, &response))

	if response.Error != nil {
		return nil, &mcpError{Code: response.Error.Code, Message: response.Error.Message}
	}
	return response.Result, nil
}

// listTools returns the registered tool names.
func (tc *toolTestContext) listTools() []string {
	tc.t.Helper()
	result := tc.mcpServer.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))

	resultBytes, err := json.Marshal(result)
	require.NoError(tc.t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(tc.t, json.Unmarshal(resultBytes, &response))

	names := make([]string, len(response.Result.Tools))
	for i, tool := range response.Result.Tools {
		names[i] = tool.Name
	}
	return names
}

// mcpError represents an MCP JSON-RPC error.
type mcpError struct {
	Code    int
	Message string
}

func (e *mcpError) Error() string {
	return e.Message
}

// getTextContent extracts the text string from the first text content item.
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func decodeText[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &v))
	return v
}
