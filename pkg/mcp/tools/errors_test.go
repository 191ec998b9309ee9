package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("session_not_found", "session expired")

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	assert.True(t, result.IsError)

	errResp := decodeText[ErrorResponse](t, result)
	assert.True(t, errResp.Error)
	assert.Equal(t, "session_not_found", errResp.Code)
	assert.Equal(t, "session expired", errResp.Message)
	assert.Nil(t, errResp.Details, "details should be omitted when not provided")
}

func TestNewErrorResultWithDetails(t *testing.T) {
	result := NewErrorResultWithDetails("rejected", "generated query was unsafe: multiple statements",
		askFailureDetails{SessionID: "s-1", SQL: "SELECT 1; DROP TABLE orders", Rule: "multiple_statements"})

	require.True(t, result.IsError)

	body := decodeText[failureBody](t, result)
	assert.Equal(t, "rejected", body.Code)
	assert.Equal(t, "multiple_statements", body.Details.Rule)
	assert.Equal(t, "SELECT 1; DROP TABLE orders", body.Details.SQL)
}
