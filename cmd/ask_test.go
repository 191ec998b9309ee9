package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

func TestAskOnce(t *testing.T) {
	t.Run("success prints table", func(t *testing.T) {
		var buf bytes.Buffer
		conv := services.NewConversation(5)

		err := askOnce(context.Background(), &buf, &fakeAskService{response: successResponse()}, conv, "Who are our customers?", false)

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "(2 rows)")
		assert.Equal(t, 1, conv.Len())
	})

	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer

		err := askOnce(context.Background(), &buf, &fakeAskService{response: successResponse()}, services.NewConversation(5), "Who are our customers?", true)
		require.NoError(t, err)

		var resp models.AskResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, models.TurnStatusSuccess, resp.Status)
		assert.Equal(t, 2, resp.Result.RowCount)
	})

	t.Run("pipeline failure is reported and returned", func(t *testing.T) {
		var buf bytes.Buffer
		ask := &fakeAskService{response: &models.AskResponse{
			Status: models.TurnStatusExecutionError,
			SQL:    "SELECT * FROM missing",
			Reason: "query could not be run: no such table: missing",
		}}

		err := askOnce(context.Background(), &buf, ask, services.NewConversation(5), "Show the missing table", false)

		require.ErrorIs(t, err, errNotAnswered)
		assert.Contains(t, err.Error(), "execution_error")
		assert.Contains(t, buf.String(), "Reason: query could not be run")
	})

	t.Run("service error", func(t *testing.T) {
		var buf bytes.Buffer
		ask := &fakeAskService{err: errors.New("failed to load schema")}

		err := askOnce(context.Background(), &buf, ask, services.NewConversation(5), "Anything", false)

		require.Error(t, err)
		assert.NotErrorIs(t, err, errNotAnswered)
		assert.Empty(t, buf.String())
	})
}
