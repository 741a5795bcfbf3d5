package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/docchat/internal/domain"
	"github.com/PabloGalante/docchat/internal/observability"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Service holds the logic around a user's chat transcript.
type Service struct {
	store domain.HistoryStore
}

// NewService creates a history service from a HistoryStore
func NewService(store domain.HistoryStore) *Service {
	return &Service{
		store: store,
	}
}

// Save appends one message. A nil sources slice means the record carries
// no sources field at all.
func (s *Service) Save(
	ctx context.Context,
	userID domain.UserID,
	role domain.Role,
	content string,
	sources []string,
) (domain.MessageID, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	msg := &domain.ChatMessage{
		Role:    role,
		Content: content,
		Sources: sources,
	}

	id, err := s.store.SaveMessage(ctx, userID, msg)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to save message",
			"user_id", userID, "role", role, "error", err)
		return "", err
	}
	return id, nil
}

// Fetch returns the newest `limit` messages, oldest first.
// If limit <= 0, DefaultLimit is used; values above MaxLimit are capped.
func (s *Service) Fetch(ctx context.Context, userID domain.UserID, limit int) ([]*domain.ChatMessage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	msgs, err := s.store.ListMessages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Debug("fetched history",
		"user_id", userID, "limit", limit, "message_count", len(msgs))
	return msgs, nil
}

// Clear deletes every message of the user and returns how many were removed.
// Messages written while a clear is in flight may survive it.
func (s *Service) Clear(ctx context.Context, userID domain.UserID) (int, error) {
	if strings.TrimSpace(string(userID)) == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}

	n, err := s.store.DeleteMessages(ctx, userID)
	if err != nil {
		return 0, err
	}

	observability.LoggerFromContext(ctx).Info("history cleared", "user_id", userID, "deleted", n)
	return n, nil
}
