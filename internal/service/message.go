package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// GetMessages returns the conversational messages of a session, oldest
// first. Turn boundaries and state markers are never exposed.
func (s *Service) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	ok, err := s.log.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	messages, err := s.log.Conversation(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}
