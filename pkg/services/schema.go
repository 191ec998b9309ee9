package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/workerpool"
)

// DefaultSampleRows is how many example rows each table contributes to the prompt.
const DefaultSampleRows = 3

// SchemaService introspects the data store and caches the result. The cached
// description only changes on Refresh.
type SchemaService interface {
	// Schema returns the cached description, introspecting on first use.
	Schema(ctx context.Context) (*models.SchemaDescription, error)

	// Refresh re-reads the catalog and replaces the cached description.
	Refresh(ctx context.Context) (*models.SchemaDescription, error)

	// TableInfo returns one table with a live row count.
	// Returns apperrors.ErrNotFound for unknown tables.
	TableInfo(ctx context.Context, name string) (*models.TableInfo, error)
}

// SchemaConfig tunes introspection.
type SchemaConfig struct {
	SampleRows int // rows per table; 0 disables samples
	Workers    int // tables introspected in parallel
}

type schemaService struct {
	discoverer datasource.SchemaDiscoverer
	dialect    string
	config     SchemaConfig
	pool       *workerpool.Pool
	logger     *zap.Logger

	mu     sync.RWMutex
	schema *models.SchemaDescription
}

// NewSchemaService creates a schema service reading through adapter.
func NewSchemaService(adapter datasource.Adapter, config SchemaConfig, logger *zap.Logger) SchemaService {
	if config.SampleRows < 0 {
		config.SampleRows = 0
	}
	return &schemaService{
		discoverer: adapter,
		dialect:    adapter.Dialect(),
		config:     config,
		pool:       workerpool.New(workerpool.Config{MaxConcurrent: config.Workers}, logger),
		logger:     logger.Named("schema"),
	}
}

func (s *schemaService) Schema(ctx context.Context) (*models.SchemaDescription, error) {
	s.mu.RLock()
	schema := s.schema
	s.mu.RUnlock()
	if schema != nil {
		return schema, nil
	}
	return s.Refresh(ctx)
}

func (s *schemaService) Refresh(ctx context.Context) (*models.SchemaDescription, error) {
	schema, err := s.introspect(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.schema = schema
	s.mu.Unlock()
	return schema, nil
}

func (s *schemaService) introspect(ctx context.Context) (*models.SchemaDescription, error) {
	tables, err := s.discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tables: %w", err)
	}

	items := make([]workerpool.WorkItem[models.TableInfo], len(tables))
	for i, t := range tables {
		items[i] = workerpool.WorkItem[models.TableInfo]{
			ID: strings.TrimPrefix(t.SchemaName+"."+t.TableName, "."),
			Execute: func(ctx context.Context) (models.TableInfo, error) {
				return s.describeTable(ctx, t)
			},
		}
	}

	results := workerpool.Process(ctx, s.pool, items, nil)
	if err := workerpool.FirstError(results); err != nil {
		return nil, err
	}

	schema := &models.SchemaDescription{
		Dialect: s.dialect,
		Tables:  make([]models.TableInfo, len(results)),
	}
	for i, r := range results {
		schema.Tables[i] = r.Result
	}

	s.logger.Info("Schema introspected",
		zap.String("dialect", s.dialect),
		zap.Int("tables", len(schema.Tables)))
	return schema, nil
}

func (s *schemaService) describeTable(ctx context.Context, t datasource.TableMetadata) (models.TableInfo, error) {
	info := models.TableInfo{Schema: t.SchemaName, Name: t.TableName}

	columns, err := s.discoverer.DiscoverColumns(ctx, t.SchemaName, t.TableName)
	if err != nil {
		return info, fmt.Errorf("failed to discover columns for %s: %w", info.QualifiedName(), err)
	}
	info.Columns = make([]models.ColumnInfo, len(columns))
	for i, c := range columns {
		info.Columns[i] = models.ColumnInfo{
			Name:       c.ColumnName,
			Type:       c.DataType,
			Nullable:   c.IsNullable,
			PrimaryKey: c.IsPrimaryKey,
		}
	}

	if s.config.SampleRows > 0 {
		rows, err := s.discoverer.SampleRows(ctx, t.SchemaName, t.TableName, s.config.SampleRows)
		if err != nil {
			// Samples only enrich the prompt.
			s.logger.Warn("Failed to sample rows",
				zap.String("table", info.QualifiedName()),
				zap.Error(err))
		} else {
			info.SampleRows = rows
		}
	}

	return info, nil
}

func (s *schemaService) TableInfo(ctx context.Context, name string) (*models.TableInfo, error) {
	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}

	table, ok := schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, apperrors.ErrNotFound)
	}

	info := *table
	count, err := s.discoverer.CountRows(ctx, info.Schema, info.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows for %s: %w", info.QualifiedName(), err)
	}
	info.RowCount = &count
	return &info, nil
}

var _ SchemaService = (*schemaService)(nil)
