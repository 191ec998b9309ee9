// Package metrics exposes Prometheus instrumentation for the ask pipeline.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
)

const namespace = "askdb"

// Metrics holds every collector. A nil *Metrics is valid and records nothing,
// so components can be built without instrumentation in tests.
type Metrics struct {
	asksTotal          *prometheus.CounterVec
	rejectionsTotal    *prometheus.CounterVec
	llmRequestsTotal   *prometheus.CounterVec
	llmDuration        *prometheus.HistogramVec
	llmTokensTotal     *prometheus.CounterVec
	queriesTotal       *prometheus.CounterVec
	queryDuration      prometheus.Histogram
	queryRows          prometheus.Histogram
	activeSessions     prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
	toolCallsTotal     *prometheus.CounterVec
	toolCallSeconds    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		asksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asks_total",
			Help:      "Questions answered, by terminal status.",
		}, []string{"status"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Generated statements refused by the validator, by rule.",
		}, []string{"rule"}),
		llmRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Language model calls, by model and outcome.",
		}, []string{"model", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"model"}),
		llmTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed, by model and kind (prompt or completion).",
		}, []string{"model", "kind"}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Validated statements executed, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Statement execution latency including the wait for a slot.",
			Buckets:   prometheus.DefBuckets,
		}),
		queryRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_result_rows",
			Help:      "Rows returned per successful statement.",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversations currently held in memory.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mcp_tool_calls_total",
			Help:      "MCP tool calls, by tool and outcome (ok, error_result, failed).",
		}, []string{"tool", "outcome"}),
		toolCallSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mcp_tool_call_duration_seconds",
			Help:      "MCP tool call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}

	reg.MustRegister(
		m.asksTotal,
		m.rejectionsTotal,
		m.llmRequestsTotal,
		m.llmDuration,
		m.llmTokensTotal,
		m.queriesTotal,
		m.queryDuration,
		m.queryRows,
		m.activeSessions,
		m.httpRequestsTotal,
		m.httpRequestSeconds,
		m.toolCallsTotal,
		m.toolCallSeconds,
	)
	return m
}

// ObserveAsk counts one answered question.
func (m *Metrics) ObserveAsk(status string) {
	if m == nil {
		return
	}
	m.asksTotal.WithLabelValues(status).Inc()
}

// ObserveRejection counts one validator refusal.
func (m *Metrics) ObserveRejection(rule string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(rule).Inc()
}

// ObserveLLMCall records one model call. err decides the outcome label.
func (m *Metrics) ObserveLLMCall(model string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.llmRequestsTotal.WithLabelValues(model, outcome).Inc()
	m.llmDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// AddLLMTokens adds token usage reported by the provider.
func (m *Metrics) AddLLMTokens(model string, prompt, completion int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.llmTokensTotal.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.llmTokensTotal.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// ObserveQuery records one execution. The outcome label is "success" or the
// execution error reason.
func (m *Metrics) ObserveQuery(elapsed time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(apperrors.ExecutionEngine)
		var execErr *apperrors.ExecutionError
		if errors.As(err, &execErr) {
			outcome = string(execErr.Reason)
		}
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.queryRows.Observe(float64(rows))
	}
}

// SetActiveSessions reports the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestSeconds.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}

// ObserveToolCall records one MCP tool invocation.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.toolCallSeconds.WithLabelValues(tool).Observe(elapsed.Seconds())
}
