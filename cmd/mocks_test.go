package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// fakeAskService answers every question with response and records the turn.
type fakeAskService struct {
	response  *models.AskResponse
	err       error
	questions []string
}

func (f *fakeAskService) Ask(ctx context.Context, conv *services.Conversation, question string) (*models.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.ErrEmptyQuestion
	}
	if f.err != nil {
		return nil, f.err
	}
	f.questions = append(f.questions, question)
	conv.Append(models.ConversationTurn{
		Question: question,
		SQL:      f.response.SQL,
		Status:   f.response.Status,
		Reason:   f.response.Reason,
		At:       time.Now(),
	})
	return f.response, nil
}

type fakeSchemaService struct {
	schema *models.SchemaDescription
	err    error
}

func (f *fakeSchemaService) Schema(ctx context.Context) (*models.SchemaDescription, error) {
	return f.schema, f.err
}

func (f *fakeSchemaService) Refresh(ctx context.Context) (*models.SchemaDescription, error) {
	return f.schema, f.err
}

func (f *fakeSchemaService) TableInfo(ctx context.Context, name string) (*models.TableInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.schema.Table(name)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *t
	count := int64(4)
	out.RowCount = &count
	return &out, nil
}

func customersSchema() *models.SchemaDescription {
	return &models.SchemaDescription{
		Dialect: "sqlite",
		Tables: []models.TableInfo{
			{
				Name: "customers",
				Columns: []models.ColumnInfo{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "name", Type: "TEXT"},
					{Name: "city", Type: "TEXT", Nullable: true},
				},
				SampleRows: [][]any{{int64(1), "Alice", "New York"}},
			},
		},
	}
}

func successResponse() *models.AskResponse {
	return &models.AskResponse{
		Status: models.TurnStatusSuccess,
		SQL:    "SELECT name, city FROM customers",
		Result: &models.QueryResult{
			Columns:  []models.ResultColumn{{Name: "name", Type: "TEXT"}, {Name: "city", Type: "TEXT"}},
			Rows:     [][]any{{"Alice", "New York"}, {"Bob", nil}},
			RowCount: 2,
		},
	}
}
