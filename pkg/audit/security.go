// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventQueryRejected is logged whenever the validator refuses generated SQL.
	EventQueryRejected SecurityEventType = "query_rejected"
	// EventSQLInjectionAttempt is logged when libinjection fingerprints a literal.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventQueryExecution is logged for each executed query (can be high volume).
	EventQueryExecution SecurityEventType = "query_execution"
)

// Severity levels attached to events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	SessionID string            `json:"session_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"`
}

// RejectionDetails describes one refused statement.
type RejectionDetails struct {
	Rule     string `json:"rule"`
	Reason   string `json:"reason"`
	SQL      string `json:"sql"` // sanitized and truncated
	Question string `json:"question,omitempty"`
}

// ExecutionDetails describes one executed statement.
type ExecutionDetails struct {
	SQL        string   `json:"sql"`
	Tables     []string `json:"tables,omitempty"`
	RowCount   int      `json:"row_count"`
	DurationMs int64    `json:"duration_ms"`
}

// criticalRules are rejections that look like an attack rather than a
// model mistake.
var criticalRules = map[string]bool{
	"multiple_statements": true,
	"forbidden_keyword":   true,
	"dangerous_function":  true,
	"injection_pattern":   true,
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor logging under the
// "security_audit" namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogRejection records a statement the validator refused. Write attempts,
// stacked statements and injection fingerprints are critical; unknown tables
// or columns are warnings.
//
// Example usage:
//
//	auditor.LogRejection(ctx, sessionID, audit.RejectionDetails{
//	    Rule:   "forbidden_keyword",
//	    Reason: "DELETE is not allowed",
//	    SQL:    "DELETE FROM orders",
//	})
func (a *SecurityAuditor) LogRejection(ctx context.Context, sessionID string, details RejectionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)

	eventType := EventQueryRejected
	severity := SeverityWarning
	if criticalRules[details.Rule] {
		severity = SeverityCritical
	}
	if details.Rule == "injection_pattern" {
		eventType = EventSQLInjectionAttempt
	}

	event := a.event(ctx, eventType, sessionID, details, severity)
	fields := []zap.Field{
		zap.String("event_json", marshalEvent(event)),
		zap.String("session_id", sessionID),
		zap.String("rule", details.Rule),
		zap.String("reason", details.Reason),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", severity),
	}

	if severity == SeverityCritical {
		a.logger.Error("Generated query rejected", fields...)
		return
	}
	a.logger.Warn("Generated query rejected", fields...)
}

// LogQueryExecution records a successful query execution for the audit trail.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, sessionID string, details ExecutionDetails) {
	details.SQL = logging.SanitizeQuery(details.SQL)
	event := a.event(ctx, EventQueryExecution, sessionID, details, SeverityInfo)

	a.logger.Info("Query executed",
		zap.String("event_json", marshalEvent(event)),
		zap.String("session_id", sessionID),
		zap.Int("row_count", details.RowCount),
		zap.Int64("duration_ms", details.DurationMs),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", SeverityInfo),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, eventType SecurityEventType, sessionID string, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SessionID: sessionID,
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
}

func marshalEvent(event SecurityEvent) string {
	// Known types only; marshaling cannot fail.
	out, _ := json.Marshal(event)
	return string(out)
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address set by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

type sessionIDKey struct{}

// WithSessionID attaches the conversation's session id to ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the id set by WithSessionID, or "".
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}
