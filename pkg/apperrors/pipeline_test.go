package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"plain", errors.New("boom"), KindNone},
		{"generation", NewGenerationError(GenerationTimeout, "", nil), KindGeneration},
		{"rejected", &RejectedQueryError{Rule: "not_select", Reason: "x"}, KindRejected},
		{"execution", NewExecutionError(ExecutionEngine, "", nil), KindExecution},
		{"wrapped execution", fmt.Errorf("ask: %w", NewExecutionError(ExecutionRowLimit, "", nil)), KindExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessagesCarryKindPrefix(t *testing.T) {
	assert.Equal(t, "model failed to answer: timeout", NewGenerationError(GenerationTimeout, "", nil).Error())
	assert.Equal(t, "generated query was unsafe: only SELECT allowed",
		(&RejectedQueryError{Reason: "only SELECT allowed"}).Error())
	assert.Equal(t, "query could not be run: row_limit: more than 10 rows",
		NewExecutionError(ExecutionRowLimit, "more than 10 rows", nil).Error())
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("driver exploded")
	err := NewExecutionError(ExecutionEngine, "engine error", cause)
	assert.ErrorIs(t, err, cause)

	genErr := NewGenerationError(GenerationProvider, "auth", cause)
	assert.ErrorIs(t, genErr, cause)
}
