// Package workerpool runs independent work items with bounded parallelism.
package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int // Maximum items in flight (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool bounds how many work items run at once. It holds no per-run state and
// may be shared.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a Pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the parallelism bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items and returns their results in submission order.
// A failing item does not stop the others. Items that never got a slot
// because ctx ended report ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	sem := semaphore.NewWeighted(int64(pool.config.MaxConcurrent))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	done := func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		completed++
		n := completed
		mu.Unlock()
		onProgress(n, len(items))
	}

	for i, item := range items {
		results[i].ID = item.ID

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			done()
			continue
		}

		wg.Add(1)
		go func(i int, item WorkItem[T]) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := item.Execute(ctx)
			if err != nil {
				pool.logger.Debug("Work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			results[i].Result = result
			results[i].Err = err
			done()
		}(i, item)
	}

	wg.Wait()
	return results
}

// FirstError returns the first failed result's error in submission order.
func FirstError[T any](results []WorkResult[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
