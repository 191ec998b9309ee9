package handlers

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/audit"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

// mockAskService answers with a fixed response and records the turn the way
// the real service does.
type mockAskService struct {
	response      *models.AskResponse
	err           error
	lastQuestion  string
	lastSessionID string
}

func (m *mockAskService) Ask(ctx context.Context, conv *services.Conversation, question string) (*models.AskResponse, error) {
	m.lastQuestion = question
	m.lastSessionID = audit.SessionIDFromContext(ctx)
	if m.err != nil {
		return nil, m.err
	}
	conv.Append(models.ConversationTurn{
		Question: question,
		SQL:      m.response.SQL,
		Status:   m.response.Status,
		Reason:   m.response.Reason,
	})
	return m.response, nil
}

// mockSchemaService serves a fixed description.
type mockSchemaService struct {
	schema    *models.SchemaDescription
	err       error
	refreshed int
	rowCount  int64
}

func (m *mockSchemaService) Schema(ctx context.Context) (*models.SchemaDescription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.schema, nil
}

func (m *mockSchemaService) Refresh(ctx context.Context) (*models.SchemaDescription, error) {
	m.refreshed++
	return m.Schema(ctx)
}

func (m *mockSchemaService) TableInfo(ctx context.Context, name string) (*models.TableInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.schema.Table(name)
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, apperrors.ErrNotFound)
	}
	info := *t
	count := m.rowCount
	info.RowCount = &count
	return &info, nil
}

// mockPinger reports a fixed connectivity result.
type mockPinger struct {
	err error
}

func (m *mockPinger) TestConnection(ctx context.Context) error {
	return m.err
}

func testSchema() *models.SchemaDescription {
	return &models.SchemaDescription{
		Dialect: "sqlite",
		Tables: []models.TableInfo{
			{
				Name: "customers",
				Columns: []models.ColumnInfo{
					{Name: "id", Type: "INTEGER", PrimaryKey: true},
					{Name: "name", Type: "TEXT"},
				},
			},
		},
	}
}
