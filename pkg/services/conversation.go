package services

import (
	"sync"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

// DefaultHistoryLength is how many turns a conversation keeps.
const DefaultHistoryLength = 10

// Conversation is an ordered, bounded history of turns. Once full, the oldest
// turn is evicted first. Safe for concurrent use.
type Conversation struct {
	mu       sync.RWMutex
	turns    []models.ConversationTurn
	capacity int
}

// NewConversation creates an empty conversation holding at most capacity turns.
func NewConversation(capacity int) *Conversation {
	if capacity <= 0 {
		capacity = DefaultHistoryLength
	}
	return &Conversation{capacity: capacity}
}

// Append adds turn as the newest entry.
func (c *Conversation) Append(turn models.ConversationTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
	if over := len(c.turns) - c.capacity; over > 0 {
		c.turns = append(c.turns[:0:0], c.turns[over:]...)
	}
}

// Recent returns a copy of the last n turns, oldest first. n <= 0 returns all.
func (c *Conversation) Recent(n int) []models.ConversationTurn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if n > 0 && n < len(c.turns) {
		start = len(c.turns) - n
	}
	out := make([]models.ConversationTurn, len(c.turns)-start)
	copy(out, c.turns[start:])
	return out
}

// Len returns the number of turns held.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Capacity returns the maximum number of turns held.
func (c *Conversation) Capacity() int {
	return c.capacity
}

// Clear drops every turn.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}
