package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies which pipeline stage a failure belongs to.
type Kind string

const (
	KindNone       Kind = ""
	KindGeneration Kind = "generation_error"
	KindRejected   Kind = "rejected"
	KindExecution  Kind = "execution_error"
)

// GenerationReason classifies why the model failed to produce a candidate query.
type GenerationReason string

const (
	GenerationTimeout     GenerationReason = "timeout"
	GenerationProvider    GenerationReason = "provider"
	GenerationCircuitOpen GenerationReason = "circuit_open"
	GenerationExtraction  GenerationReason = "extraction"
)

// GenerationError means the model failed to answer.
type GenerationError struct {
	Reason  GenerationReason
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("model failed to answer: %s", e.Reason)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// NewGenerationError creates a GenerationError.
func NewGenerationError(reason GenerationReason, message string, cause error) *GenerationError {
	return &GenerationError{Reason: reason, Message: message, Cause: cause}
}

// RejectedQueryError means the generated query was unsafe or referenced something
// outside the schema. OriginalText is the candidate exactly as received.
type RejectedQueryError struct {
	Rule         string
	Reason       string
	OriginalText string
}

func (e *RejectedQueryError) Error() string {
	return fmt.Sprintf("generated query was unsafe: %s", e.Reason)
}

// ExecutionReason classifies why a validated query could not be run.
type ExecutionReason string

const (
	ExecutionTimeout      ExecutionReason = "timeout"
	ExecutionRowLimit     ExecutionReason = "row_limit"
	ExecutionEngine       ExecutionReason = "engine"
	ExecutionConnection   ExecutionReason = "connection"
	ExecutionInvalidQuery ExecutionReason = "invalid_query"
)

// ExecutionError means the query could not be run. Message is already sanitized
// and safe to show to a user.
type ExecutionError struct {
	Reason  ExecutionReason
	Message string
	Cause   error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("query could not be run: %s", e.Reason)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(reason ExecutionReason, message string, cause error) *ExecutionError {
	return &ExecutionError{Reason: reason, Message: message, Cause: cause}
}

// KindOf returns the pipeline failure kind of err, or KindNone.
func KindOf(err error) Kind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return KindGeneration
	}
	var rejErr *RejectedQueryError
	if errors.As(err, &rejErr) {
		return KindRejected
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return KindExecution
	}
	return KindNone
}
