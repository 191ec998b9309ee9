package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/retry"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// Open creates an adapter for the given type and verifies it can connect.
	Open(ctx context.Context, dsType string, config map[string]any) (Adapter, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry.
// Connection attempts are retried with backoff while the error looks transient.
func NewDatasourceAdapterFactory(retryConfig *retry.Config, logger *zap.Logger) DatasourceAdapterFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{
		retryConfig: retryConfig,
		logger:      logger.Named("datasource"),
	}
}

func (f *registryFactory) Open(ctx context.Context, dsType string, config map[string]any) (Adapter, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}

	adapter, err := factory(ctx, config, f.logger)
	if err != nil {
		return nil, err
	}

	attempt := 0
	err = retry.DoIfRetryable(ctx, f.retryConfig, func() error {
		attempt++
		if err := adapter.TestConnection(ctx); err != nil {
			f.logger.Warn("Datasource connection attempt failed",
				zap.String("type", dsType),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		adapter.Close()
		return nil, fmt.Errorf("connect to %s datasource: %w", dsType, err)
	}

	f.logger.Info("Datasource connected",
		zap.String("type", dsType),
		zap.Int("max_concurrent_queries", adapter.MaxConcurrentQueries()))
	return adapter, nil
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
