package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// askResult is the success payload of ask_database.
type askResult struct {
	SessionID string                `json:"session_id"`
	Status    models.TurnStatus     `json:"status"`
	SQL       string                `json:"sql"`
	Columns   []models.ResultColumn `json:"columns"`
	Rows      [][]any               `json:"rows"`
	RowCount  int                   `json:"row_count"`
	Truncated bool                  `json:"truncated,omitempty"`
}

// askFailureDetails accompanies non-success outcomes.
type askFailureDetails struct {
	SessionID string `json:"session_id"`
	SQL       string `json:"sql,omitempty"`
	Rule      string `json:"rule,omitempty"`
}

// RegisterAskTool adds ask_database to the MCP server.
// Omitting session_id starts a new conversation; the returned session_id
// continues it.
func RegisterAskTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Answer a natural-language question about the "+deps.Dialect+" database. "+
				"A read-only SELECT is generated, validated against the schema and executed. "+
				"Pass the returned session_id on follow-up questions so earlier turns are taken into account.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. \"How many orders did each customer place?\""),
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Conversation to continue. Omit to start a new one."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}
		question = trimString(question)
		if question == "" {
			return NewErrorResult("invalid_parameters", "parameter 'question' cannot be empty"), nil
		}

		sessionID := trimString(req.GetString("session_id", ""))
		if sessionID == "" {
			sessionID = deps.Sessions.Create()
		}
		conv, err := deps.Sessions.Get(sessionID)
		if err != nil {
			if errors.Is(err, apperrors.ErrSessionNotFound) {
				return NewErrorResult("session_not_found",
					fmt.Sprintf("session %q not found or expired; omit session_id to start a new conversation", sessionID)), nil
			}
			return nil, fmt.Errorf("failed to load session: %w", err)
		}

		resp, err := deps.AskService.Ask(audit.WithSessionID(ctx, sessionID), conv, question)
		if err != nil {
			if errors.Is(err, apperrors.ErrEmptyQuestion) {
				return NewErrorResult("invalid_parameters", err.Error()), nil
			}
			deps.Logger.Error("ask_database failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		if resp.Status != models.TurnStatusSuccess {
			return NewErrorResultWithDetails(string(resp.Status), resp.Reason, askFailureDetails{
				SessionID: sessionID,
				SQL:       resp.SQL,
				Rule:      resp.Rule,
			}), nil
		}

		return jsonResult(askResult{
			SessionID: sessionID,
			Status:    resp.Status,
			SQL:       resp.SQL,
			Columns:   resp.Result.Columns,
			Rows:      resp.Result.Rows,
			RowCount:  resp.Result.RowCount,
			Truncated: resp.Result.Truncated,
		})
	})
}
