package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

// Execution defaults.
const (
	DefaultMaxRows      = 1000
	DefaultQueryTimeout = 10 * time.Second
)

// QueryExecutor runs statements that passed validation.
type QueryExecutor interface {
	// Execute runs q and returns its rows. Failures are always
	// *apperrors.ExecutionError with a message safe to show to users.
	Execute(ctx context.Context, q sql.ValidatedQuery) (*models.QueryResult, error)
}

// ExecutorConfig bounds each execution.
type ExecutorConfig struct {
	MaxRows int
	Timeout time.Duration
	// TruncateResults returns the first MaxRows rows instead of failing
	// with row_limit when a query produces more.
	TruncateResults bool
	// MaxConcurrent overrides the adapter's MaxConcurrentQueries when > 0.
	MaxConcurrent int
}

type queryExecutor struct {
	adapter datasource.QueryExecutor
	config  ExecutorConfig
	slots   *semaphore.Weighted
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewQueryExecutor creates an executor for one store. Concurrent executions
// beyond the store's slot count wait for a free slot within their timeout.
func NewQueryExecutor(adapter datasource.QueryExecutor, config ExecutorConfig, m *metrics.Metrics, logger *zap.Logger) QueryExecutor {
	if config.MaxRows <= 0 {
		config.MaxRows = DefaultMaxRows
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultQueryTimeout
	}

	slots := config.MaxConcurrent
	if slots <= 0 {
		slots = adapter.MaxConcurrentQueries()
	}
	if slots <= 0 {
		slots = 1
	}

	return &queryExecutor{
		adapter: adapter,
		config:  config,
		slots:   semaphore.NewWeighted(int64(slots)),
		metrics: m,
		logger:  logger.Named("executor"),
	}
}

func (e *queryExecutor) Execute(ctx context.Context, q sql.ValidatedQuery) (*models.QueryResult, error) {
	if q.IsZero() {
		return nil, apperrors.NewExecutionError(apperrors.ExecutionInvalidQuery,
			"statement was not validated", nil)
	}

	start := time.Now()
	result, err := e.execute(ctx, q)
	e.metrics.ObserveQuery(time.Since(start), rowCount(result), err)

	if err != nil {
		e.logger.Warn("Query execution failed",
			zap.String("sql", logging.SanitizeQuery(q.Text())),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	e.logger.Debug("Query executed",
		zap.String("sql", logging.SanitizeQuery(q.Text())),
		zap.Int("row_count", result.RowCount),
		zap.Bool("truncated", result.Truncated),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (e *queryExecutor) execute(ctx context.Context, q sql.ValidatedQuery) (*models.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	if err := e.slots.Acquire(ctx, 1); err != nil {
		return nil, e.timeoutError(ctx, "waiting for a free connection", err)
	}
	defer e.slots.Release(1)

	res, err := e.adapter.Query(ctx, q.Text(), e.config.MaxRows)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, e.timeoutError(ctx, "running the query", err)
		}
		if errors.Is(err, datasource.ErrConnection) {
			return nil, apperrors.NewExecutionError(apperrors.ExecutionConnection,
				logging.SanitizeForUser(err), err)
		}
		return nil, apperrors.NewExecutionError(apperrors.ExecutionEngine,
			logging.SanitizeForUser(err), err)
	}

	if res.HasMore && !e.config.TruncateResults {
		return nil, apperrors.NewExecutionError(apperrors.ExecutionRowLimit,
			fmt.Sprintf("result has more than %d rows; narrow the question or ask for fewer rows", e.config.MaxRows), nil)
	}

	rows := res.Rows
	if len(rows) > e.config.MaxRows {
		rows = rows[:e.config.MaxRows]
	}

	result := &models.QueryResult{
		Columns:   make([]models.ResultColumn, len(res.Columns)),
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: res.HasMore,
	}
	for i, c := range res.Columns {
		result.Columns[i] = models.ResultColumn{Name: c.Name, Type: c.Type}
	}
	return result, nil
}

func (e *queryExecutor) timeoutError(ctx context.Context, during string, cause error) *apperrors.ExecutionError {
	if errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.NewExecutionError(apperrors.ExecutionTimeout, "query cancelled while "+during, cause)
	}
	return apperrors.NewExecutionError(apperrors.ExecutionTimeout,
		fmt.Sprintf("query exceeded %s while %s", e.config.Timeout, during), cause)
}

func rowCount(r *models.QueryResult) int {
	if r == nil {
		return 0
	}
	return r.RowCount
}

var _ QueryExecutor = (*queryExecutor)(nil)
