package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/metrics"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 60 * time.Minute

type session struct {
	conversation *Conversation
	lastUsed     time.Time
}

// SessionStore maps session ids to their conversations. Sessions live in
// memory only and expire after a period of inactivity.
type SessionStore struct {
	historyLength int
	ttl           time.Duration
	now           func() time.Time
	metrics       *metrics.Metrics
	logger        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionStore creates an empty store. Each session's conversation holds
// historyLength turns.
func NewSessionStore(historyLength int, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		historyLength: historyLength,
		ttl:           ttl,
		now:           time.Now,
		metrics:       m,
		logger:        logger.Named("sessions"),
		sessions:      make(map[string]*session),
	}
}

// Create starts a new session and returns its id.
func (s *SessionStore) Create() string {
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = &session{
		conversation: NewConversation(s.historyLength),
		lastUsed:     s.now(),
	}
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	s.logger.Debug("Session created", zap.String("session_id", id))
	return id
}

// Get returns the session's conversation and marks it as used.
func (s *SessionStore) Get(id string) (*Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, apperrors.ErrSessionNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	sess.lastUsed = s.now()
	return sess.conversation, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return apperrors.ErrSessionNotFound
	}
	s.metrics.SetActiveSessions(n)
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.metrics.SetActiveSessions(n)
		s.logger.Info("Expired idle sessions", zap.Int("removed", removed), zap.Int("remaining", n))
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
