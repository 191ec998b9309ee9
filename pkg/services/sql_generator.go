package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/prompts"
	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

// DefaultTemperature keeps answers close to deterministic.
const DefaultTemperature = 0.1

// SQLGenerator turns a question into a candidate statement.
type SQLGenerator interface {
	// Generate returns the untrusted candidate SQL for question. Failures are
	// always *apperrors.GenerationError.
	Generate(ctx context.Context, question string, schema *models.SchemaDescription, history []models.ConversationTurn) (string, error)
}

// SQLGeneratorConfig tunes prompt construction and sampling.
type SQLGeneratorConfig struct {
	Dialect     sql.Dialect
	MaxHistory  int
	Temperature float64
}

type sqlGenerator struct {
	client  llm.LLMClient
	config  SQLGeneratorConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSQLGenerator creates a generator over client. Wrap client in an
// llm.GuardedClient to get the call timeout and circuit breaker.
func NewSQLGenerator(client llm.LLMClient, config SQLGeneratorConfig, m *metrics.Metrics, logger *zap.Logger) SQLGenerator {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultHistoryLength
	}
	return &sqlGenerator{
		client:  client,
		config:  config,
		metrics: m,
		logger:  logger.Named("sql-generator"),
	}
}

func (g *sqlGenerator) Generate(ctx context.Context, question string, schema *models.SchemaDescription, history []models.ConversationTurn) (string, error) {
	system, prompt := prompts.BuildSQLGenerationPrompt(prompts.SQLGenerationInput{
		DialectName: g.config.Dialect.DisplayName(),
		Schema:      schema,
		History:     history,
		MaxHistory:  g.config.MaxHistory,
		Question:    question,
	})

	start := time.Now()
	result, err := g.client.GenerateResponse(ctx, prompt, system, g.config.Temperature)
	g.metrics.ObserveLLMCall(g.client.GetModel(), time.Since(start), err)
	if err != nil {
		genErr := classifyGenerationError(err)
		g.logger.Warn("SQL generation failed",
			zap.String("reason", string(genErr.Reason)),
			zap.String("error", logging.SanitizeError(err)))
		return "", genErr
	}
	g.metrics.AddLLMTokens(g.client.GetModel(), result.PromptTokens, result.CompletionTokens)

	candidate, err := ExtractSQL(result.Content)
	if err != nil {
		g.logger.Warn("No SQL in model response",
			zap.Int("response_len", len(result.Content)),
			zap.Error(err))
		return "", err
	}

	g.logger.Debug("Generated candidate SQL",
		zap.String("sql", logging.SanitizeQuery(candidate)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("thinking_len", len(llm.ExtractThinking(result.Content))))
	return candidate, nil
}

// classifyGenerationError maps a provider failure onto the generation taxonomy.
func classifyGenerationError(err error) *apperrors.GenerationError {
	if errors.Is(err, llm.ErrCircuitOpen) {
		return apperrors.NewGenerationError(apperrors.GenerationCircuitOpen,
			"language model temporarily unavailable", err)
	}
	llmErr := llm.ClassifyError(err)
	if llmErr.Type == llm.ErrorTypeTimeout {
		return apperrors.NewGenerationError(apperrors.GenerationTimeout, llmErr.Message, err)
	}
	return apperrors.NewGenerationError(apperrors.GenerationProvider, string(llmErr.Type)+": "+llmErr.Message, err)
}
