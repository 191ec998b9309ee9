package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
)

// Tool call outcomes.
const (
	outcomeOK          = "ok"
	outcomeErrorResult = "error_result"
	outcomeFailed      = "failed"
)

// AuditLogger records every MCP tool call as a structured log entry and a
// metric sample.
type AuditLogger struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger. m may be nil.
func NewAuditLogger(m *metrics.Metrics, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger:  logger.Named("mcp-audit"),
		metrics: m,
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	elapsed := a.elapsedSince(id)
	summary := summarizeResult(result)

	outcome := outcomeOK
	if result != nil && result.IsError {
		outcome = outcomeErrorResult
	}
	a.metrics.ObserveToolCall(req.Params.Name, outcome, elapsed)

	a.logger.Info("MCP tool call",
		zap.String("tool", req.Params.Name),
		zap.String("outcome", outcome),
		zap.Any("params", sanitizeParams(req.GetArguments())),
		zap.Any("result", summary),
		zap.String("client_ip", audit.ClientIPFromContext(ctx)),
		zap.Duration("duration", elapsed),
	)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	elapsed := a.elapsedSince(id)
	a.metrics.ObserveToolCall(req.Params.Name, outcomeFailed, elapsed)

	a.logger.Warn("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.String("outcome", outcomeFailed),
		zap.Any("params", sanitizeParams(req.GetArguments())),
		zap.String("client_ip", audit.ClientIPFromContext(ctx)),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
}

func (a *AuditLogger) elapsedSince(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// maxParamSize is the maximum size of string parameters kept in audit entries.
const maxParamSize = 10240 // 10KB

// sqlStringLiteralPattern matches SQL string literals: 'value', 'it''s escaped', etc.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']*(?:'')?)*[^']*'`)

var sensitiveParamKeywords = []string{"password", "secret", "token", "api_key", "apikey", "credential"}

// sanitizeParams sanitizes request parameters before they are logged.
// Applies: truncation, SQL string literal redaction, sensitive value hashing.
func sanitizeParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if isSensitiveParam(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return sanitizeStringParam(key, val)
	case map[string]any:
		return sanitizeParams(val)
	default:
		return value
	}
}

func sanitizeStringParam(key string, val string) string {
	if len(val) > maxParamSize {
		val = val[:maxParamSize] + "...[truncated]"
	}
	if isSQLParam(key) {
		val = redactSQLStringLiterals(val)
	}
	return val
}

func isSensitiveParam(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveParamKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// isSQLParam returns true if a parameter key likely contains SQL.
func isSQLParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "sql" || lower == "query" || strings.HasSuffix(lower, "_sql") || strings.HasSuffix(lower, "_query")
}

// redactSQLStringLiterals replaces string literal values in SQL with '***',
// preserving the query structure while hiding user-provided values.
func redactSQLStringLiterals(sql string) string {
	return sqlStringLiteralPattern.ReplaceAllString(sql, "'***'")
}

// hashSensitiveValue returns a SHA-256 hash prefix for sensitive values,
// allowing correlation across audit entries without storing the actual value.
func hashSensitiveValue(value any) string {
	var str string
	switch v := value.(type) {
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result: the error
// flag plus the status, error code, row count and SQL of ask_database
// payloads. Row data is never logged.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{
		"is_error": result.IsError,
	}

	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractAskFields(tc.Text, summary)
		break
	}
	return summary
}

func extractAskFields(text string, summary map[string]any) {
	var partial struct {
		Status   string `json:"status"`
		Code     string `json:"code"`
		RowCount *int   `json:"row_count"`
		SQL      string `json:"sql"`
		Details  struct {
			SQL  string `json:"sql"`
			Rule string `json:"rule"`
		} `json:"details"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil {
		return
	}

	set := func(key, value string) {
		if value != "" {
			summary[key] = value
		}
	}
	set("status", partial.Status)
	set("code", partial.Code)
	set("rule", partial.Details.Rule)
	if partial.SQL != "" {
		summary["sql"] = redactSQLStringLiterals(partial.SQL)
	} else if partial.Details.SQL != "" {
		summary["sql"] = redactSQLStringLiterals(partial.Details.SQL)
	}
	if partial.RowCount != nil {
		summary["row_count"] = *partial.RowCount
	}
}
