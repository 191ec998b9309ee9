package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource/all"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/config"
	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdb/pkg/retry"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

// app holds the wired pipeline shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	adapter  datasource.Adapter
	dialect  sql.Dialect
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	schemas  services.SchemaService
	ask      services.AskService
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newApp connects to the datasource and wires the pipeline. The model client
// is only built when withLLM is set, so commands that never generate SQL do
// not need credentials.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, withLLM bool) (*app, error) {
	factory := datasource.NewDatasourceAdapterFactory(retry.DefaultConfig(), logger)
	if !datasource.IsRegistered(cfg.Datasource.Type) {
		var types []string
		for _, info := range factory.ListTypes() {
			types = append(types, info.Type)
		}
		return nil, fmt.Errorf("unsupported datasource type %q (available: %s)", cfg.Datasource.Type, strings.Join(types, ", "))
	}

	dialect, err := sql.ParseDialect(cfg.Datasource.Type)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	adapter, err := factory.Open(ctx, cfg.Datasource.Type, cfg.Datasource.AdapterConfig())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		adapter:  adapter,
		dialect:  dialect,
		registry: registry,
		metrics:  m,
		schemas: services.NewSchemaService(adapter, services.SchemaConfig{
			SampleRows: cfg.Schema.SampleRows,
			Workers:    cfg.Schema.Workers,
		}, logger),
	}

	if !withLLM {
		return a, nil
	}

	client, err := llm.NewClientFromSettings(cfg.LLM.Settings(), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.wirePipeline(client)
	return a, nil
}

// wirePipeline builds the ask pipeline around client.
func (a *app) wirePipeline(client llm.LLMClient) {
	cfg := a.cfg
	generator := services.NewSQLGenerator(client, services.SQLGeneratorConfig{
		Dialect:     a.dialect,
		MaxHistory:  cfg.History.Length,
		Temperature: cfg.LLM.Temperature,
	}, a.metrics, a.logger)
	executor := services.NewQueryExecutor(a.adapter, services.ExecutorConfig{
		MaxRows:         cfg.Query.MaxRows,
		Timeout:         cfg.Query.Timeout(),
		TruncateResults: cfg.Query.TruncateResults,
		MaxConcurrent:   cfg.Query.MaxConcurrent,
	}, a.metrics, a.logger)

	a.ask = services.NewAskService(a.schemas, generator, executor, a.dialect, audit.NewSecurityAuditor(a.logger), a.metrics, a.logger)

	a.logger.Info("Pipeline ready",
		zap.String("dialect", a.dialect.DisplayName()),
		zap.String("llm_model", client.GetModel()),
		zap.Int("max_rows", cfg.Query.MaxRows),
		zap.Duration("query_timeout", cfg.Query.Timeout()))
}

// newSessionStore builds the session store for the configured history bounds.
func (a *app) newSessionStore() *services.SessionStore {
	return services.NewSessionStore(a.cfg.History.Length, a.cfg.History.SessionTTL(), a.metrics, a.logger)
}

// Close releases the datasource and flushes the logger.
func (a *app) Close() {
	if err := a.adapter.Close(); err != nil {
		a.logger.Warn("Failed to close datasource", zap.Error(err))
	}
	_ = a.logger.Sync()
}
