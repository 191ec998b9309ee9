package models

import (
	"time"
)

// TurnStatus is the terminal outcome of one question.
type TurnStatus string

const (
	TurnStatusSuccess         TurnStatus = "success"
	TurnStatusRejected        TurnStatus = "rejected"
	TurnStatusGenerationError TurnStatus = "generation_error"
	TurnStatusExecutionError  TurnStatus = "execution_error"
)

// ConversationTurn records one question and what became of it.
// Result rows are never stored; only the count.
type ConversationTurn struct {
	Question string     `json:"question"`
	SQL      string     `json:"sql,omitempty"`
	Status   TurnStatus `json:"status"`
	RowCount *int       `json:"row_count,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	At       time.Time  `json:"at"`
}

// Succeeded reports whether the turn produced a result.
func (t ConversationTurn) Succeeded() bool {
	return t.Status == TurnStatusSuccess
}
