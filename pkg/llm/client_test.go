package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(&Config{Model: "gpt-4o"}, zap.NewNop())
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewClient(&Config{Endpoint: "http://localhost"}, zap.NewNop())
	assert.ErrorContains(t, err, "model is required")
}

func TestClient_GenerateResponse(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"sql\": \"SELECT 1\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`)
	}))
	defer server.Close()

	client, err := NewClient(&Config{
		Endpoint:  server.URL + "/v1/",
		Model:     "gpt-4o",
		APIKey:    "sk-test",
		MaxTokens: 256,
		JSONMode:  true,
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "How many customers?", "You write SQL.", 0.1)
	require.NoError(t, err)

	assert.Equal(t, `{"sql": "SELECT 1"}`, result.Content)
	assert.Equal(t, 12, result.PromptTokens)
	assert.Equal(t, 7, result.CompletionTokens)
	assert.Equal(t, 19, result.TotalTokens)

	assert.Equal(t, "gpt-4o", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "How many customers?", messages[1].(map[string]any)["content"])
}

func TestClient_GenerateResponse_NoJSONMode(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "SELECT 1"}}]}`)
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "local"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0)
	require.NoError(t, err)
	assert.NotContains(t, body, "response_format")
	assert.NotContains(t, body, "max_tokens")
}

func TestClient_GenerateResponse_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`)
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "gpt-4o", APIKey: "bad"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorTypeAuth, llmErr.Type)
	assert.Equal(t, http.StatusUnauthorized, llmErr.StatusCode)
	assert.Equal(t, "gpt-4o", llmErr.Model)
	assert.False(t, llmErr.Retryable)
}

func TestClient_GenerateResponse_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices": []}`)
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "gpt-4o"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "q", "s", 0)
	assert.ErrorContains(t, err, "no choices in response")
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "SELECT COUNT(*) FROM customers"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 9}
		}`)
	}))
	defer server.Close()

	client, err := NewAnthropicClient(&Config{
		Endpoint: server.URL + "/v1",
		Model:    "claude-test",
		APIKey:   "sk-ant-test",
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "How many customers?", "You write SQL.", 0.1)
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM customers", result.Content)
	assert.Equal(t, 29, result.TotalTokens)
	assert.Equal(t, "You write SQL.", body["system"])
	assert.EqualValues(t, DefaultAnthropicMaxTokens, body["max_tokens"])
	assert.Equal(t, "claude-test", body["model"])
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(&Config{Model: "claude-test"}, zap.NewNop())
	assert.ErrorContains(t, err, "api key is required")
}

func TestNewProviderClient(t *testing.T) {
	cfg := &Config{Endpoint: "http://localhost:8000/v1", Model: "m", APIKey: "k"}

	c, err := NewProviderClient("openai", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Client{}, c)

	c, err = NewProviderClient("Anthropic", cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = NewProviderClient("cohere", cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported LLM provider")
}
