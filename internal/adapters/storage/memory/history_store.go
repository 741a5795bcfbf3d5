package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/docchat/internal/domain"
)

// HistoryStore is an in-memory domain.HistoryStore.
// It is NOT persistent and is only suitable for development / local mode.
type HistoryStore struct {
	mu       sync.RWMutex
	messages map[domain.UserID][]*domain.ChatMessage
	now      func() time.Time
	last     time.Time
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		messages: make(map[domain.UserID][]*domain.ChatMessage),
		now:      time.Now,
	}
}

// SaveMessage assigns the id and the timestamp, like the server would.
func (s *HistoryStore) SaveMessage(_ context.Context, userID domain.UserID, msg *domain.ChatMessage) (domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Timestamps strictly increase per store even if the clock does not.
	ts := s.now().UTC()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts

	stored := &domain.ChatMessage{
		ID:        domain.MessageID(uuid.NewString()),
		Role:      msg.Role,
		Content:   msg.Content,
		Sources:   slices.Clone(msg.Sources),
		Timestamp: ts,
	}
	s.messages[userID] = append(s.messages[userID], stored)
	return stored.ID, nil
}

func (s *HistoryStore) ListMessages(_ context.Context, userID domain.UserID, limit int) ([]*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]*domain.ChatMessage, len(msgs))
	for i, m := range msgs {
		cp := *m
		cp.Sources = slices.Clone(m.Sources)
		out[i] = &cp
	}
	return out, nil
}

func (s *HistoryStore) DeleteMessages(_ context.Context, userID domain.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.messages[userID])
	delete(s.messages, userID)
	return n, nil
}
