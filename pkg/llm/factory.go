package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Providers lists the provider names NewClientFromSettings accepts.
var Providers = []string{ProviderOpenAI, ProviderAnthropic}

// Settings is everything needed to build a ready-to-use client.
type Settings struct {
	Provider       string
	Client         Config
	Timeout        time.Duration
	CircuitBreaker CircuitBreakerConfig
}

// NewProviderClient creates the bare client for a provider.
func NewProviderClient(provider string, cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderOpenAI:
		return NewClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q (supported: %s)", provider, strings.Join(Providers, ", "))
	}
}

// NewClientFromSettings creates a provider client wrapped with the call
// timeout and circuit breaker.
func NewClientFromSettings(settings Settings, logger *zap.Logger) (*GuardedClient, error) {
	client, err := NewProviderClient(settings.Provider, &settings.Client, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", settings.Provider, err)
	}

	logger.Info("LLM client configured",
		zap.String("provider", settings.Provider),
		zap.String("model", client.GetModel()),
		zap.String("endpoint_host", endpointHost(client.GetEndpoint())),
		zap.Duration("timeout", settings.Timeout))

	return NewGuardedClient(client, NewCircuitBreaker(settings.CircuitBreaker), settings.Timeout, logger), nil
}
