package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_PreservesSubmissionOrder(t *testing.T) {
	pool := New(Config{MaxConcurrent: 3}, zap.NewNop())

	var items []WorkItem[int]
	for i := 0; i < 10; i++ {
		items = append(items, WorkItem[int]{
			ID: fmt.Sprintf("table-%d", i),
			Execute: func(ctx context.Context) (int, error) {
				// Later items finish first.
				time.Sleep(time.Duration(10-i) * time.Millisecond)
				return i * i, nil
			},
		})
	}

	results := Process(context.Background(), pool, items, nil)

	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("table-%d", i), r.ID)
		assert.Equal(t, i*i, r.Result)
		assert.NoError(t, r.Err)
	}
}

func TestProcess_ContinuesAfterFailure(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	boom := errors.New("table dropped")

	items := []WorkItem[string]{
		{ID: "a", Execute: func(context.Context) (string, error) { return "a", nil }},
		{ID: "b", Execute: func(context.Context) (string, error) { return "", boom }},
		{ID: "c", Execute: func(context.Context) (string, error) { return "c", nil }},
	}

	results := Process(context.Background(), pool, items, nil)

	assert.Equal(t, "a", results[0].Result)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "c", results[2].Result)
	assert.ErrorIs(t, FirstError(results), boom)
}

func TestProcess_RespectsConcurrencyLimit(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	var inFlight, peak atomic.Int32
	var items []WorkItem[struct{}]
	for i := 0; i < 8; i++ {
		items = append(items, WorkItem[struct{}]{
			ID: fmt.Sprint(i),
			Execute: func(context.Context) (struct{}, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return struct{}{}, nil
			},
		})
	}

	var progress atomic.Int32
	Process(context.Background(), pool, items, func(completed, total int) {
		progress.Add(1)
		assert.Equal(t, 8, total)
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int32(8), progress.Load())
}

func TestProcess_CancelledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Process(ctx, pool, []WorkItem[int]{
		{ID: "x", Execute: func(context.Context) (int, error) { return 1, nil }},
	}, nil)

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestProcess_Empty(t *testing.T) {
	assert.Nil(t, Process[int](context.Background(), New(DefaultConfig(), zap.NewNop()), nil, nil))
}

func TestNew_DefaultsConcurrency(t *testing.T) {
	assert.Equal(t, 4, New(Config{}, zap.NewNop()).MaxConcurrent())
}
