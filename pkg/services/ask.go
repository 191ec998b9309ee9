package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

// AskService answers one natural-language question against the store.
type AskService interface {
	// Ask runs generate → validate → execute and records the outcome in conv.
	// Pipeline failures are reported through AskResponse.Status, never as an
	// error. The error return is for misuse (empty question) and for a schema
	// that cannot be read.
	Ask(ctx context.Context, conv *Conversation, question string) (*models.AskResponse, error)
}

type askService struct {
	schemas   SchemaService
	generator SQLGenerator
	executor  QueryExecutor
	dialect   sql.Dialect
	auditor   *audit.SecurityAuditor
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.Logger
}

// NewAskService wires the pipeline components.
func NewAskService(
	schemas SchemaService,
	generator SQLGenerator,
	executor QueryExecutor,
	dialect sql.Dialect,
	auditor *audit.SecurityAuditor,
	m *metrics.Metrics,
	logger *zap.Logger,
) AskService {
	if auditor == nil {
		auditor = audit.NewSecurityAuditor(logger)
	}
	return &askService{
		schemas:   schemas,
		generator: generator,
		executor:  executor,
		dialect:   dialect,
		auditor:   auditor,
		metrics:   m,
		now:       time.Now,
		logger:    logger.Named("ask"),
	}
}

func (s *askService) Ask(ctx context.Context, conv *Conversation, question string) (*models.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrEmptyQuestion
	}

	schema, err := s.schemas.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	turn := models.ConversationTurn{Question: question}
	resp := s.answer(ctx, schema, conv.Recent(0), question, &turn)

	turn.Status = resp.Status
	turn.SQL = resp.SQL
	turn.Reason = resp.Reason
	turn.At = s.now()
	conv.Append(turn)

	s.metrics.ObserveAsk(string(resp.Status))
	s.logger.Info("Question answered",
		zap.String("session_id", audit.SessionIDFromContext(ctx)),
		zap.String("status", string(resp.Status)),
		zap.String("rule", resp.Rule),
		zap.Int("history_len", conv.Len()))
	return resp, nil
}

func (s *askService) answer(ctx context.Context, schema *models.SchemaDescription, history []models.ConversationTurn, question string, turn *models.ConversationTurn) *models.AskResponse {
	candidate, err := s.generator.Generate(ctx, question, schema, history)
	if err != nil {
		return &models.AskResponse{Status: models.TurnStatusGenerationError, Reason: failureReason(err)}
	}

	validated, err := sql.NewValidator(schema, s.dialect).Validate(candidate)
	if err != nil {
		resp := &models.AskResponse{Status: models.TurnStatusRejected, SQL: candidate, Reason: failureReason(err)}
		var rejected *apperrors.RejectedQueryError
		if errors.As(err, &rejected) {
			resp.Rule = rejected.Rule
			s.metrics.ObserveRejection(rejected.Rule)
			s.auditor.LogRejection(ctx, audit.SessionIDFromContext(ctx), audit.RejectionDetails{
				Rule:     rejected.Rule,
				Reason:   rejected.Reason,
				SQL:      rejected.OriginalText,
				Question: question,
			})
		}
		return resp
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, validated)
	if err != nil {
		return &models.AskResponse{Status: models.TurnStatusExecutionError, SQL: validated.Text(), Reason: failureReason(err)}
	}

	s.auditor.LogQueryExecution(ctx, audit.SessionIDFromContext(ctx), audit.ExecutionDetails{
		SQL:        validated.Text(),
		Tables:     validated.Tables(),
		RowCount:   result.RowCount,
		DurationMs: time.Since(start).Milliseconds(),
	})

	rows := result.RowCount
	turn.RowCount = &rows
	return &models.AskResponse{Status: models.TurnStatusSuccess, SQL: validated.Text(), Result: result}
}

// failureReason is the user-visible text for a pipeline failure. The typed
// errors already carry their kind prefix and a sanitized message.
func failureReason(err error) string {
	if apperrors.KindOf(err) == apperrors.KindNone {
		return "query could not be run: unexpected error"
	}
	return err.Error()
}

var _ AskService = (*askService)(nil)
