package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// GuardedClient bounds every call to the wrapped client with a timeout and a
// circuit breaker. Failed calls are reported once; nothing is retried.
type GuardedClient struct {
	inner   LLMClient
	breaker *CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewGuardedClient wraps inner. A zero timeout leaves the caller's deadline
// as the only bound.
func NewGuardedClient(inner LLMClient, breaker *CircuitBreaker, timeout time.Duration, logger *zap.Logger) *GuardedClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	return &GuardedClient{
		inner:   inner,
		breaker: breaker,
		timeout: timeout,
		logger:  logger.Named("llm-guard"),
	}
}

// GenerateResponse implements LLMClient.
func (g *GuardedClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	if ok, err := g.breaker.Allow(); !ok {
		g.logger.Warn("LLM call blocked by circuit breaker",
			zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()))
		return nil, err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.inner.GenerateResponse(callCtx, prompt, systemMessage, temperature)
	if err == nil {
		g.breaker.RecordSuccess()
		return result, nil
	}

	// The caller gave up; that says nothing about the provider.
	if errors.Is(ctx.Err(), context.Canceled) {
		g.breaker.Abandon()
		return nil, err
	}

	g.breaker.RecordFailure()
	if g.breaker.State() == CircuitOpen {
		g.logger.Warn("LLM circuit breaker open",
			zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()),
			zap.Error(err))
	}

	// A deadline hit by our own timer is reported as a timeout even when the
	// SDK wraps it in something else.
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && GetErrorType(err) != ErrorTypeTimeout {
		return nil, NewErrorWithContext(ErrorTypeTimeout, "request timeout", true, err, g.inner.GetModel(), g.inner.GetEndpoint(), 0)
	}
	return nil, err
}

// GetModel implements LLMClient.
func (g *GuardedClient) GetModel() string {
	return g.inner.GetModel()
}

// GetEndpoint implements LLMClient.
func (g *GuardedClient) GetEndpoint() string {
	return g.inner.GetEndpoint()
}

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedClient) Breaker() *CircuitBreaker {
	return g.breaker
}
