package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// GetTaskResults lists the stored results of a session, newest first.
func (s *Service) GetTaskResults(ctx context.Context, sessionID string, filter domain.TaskResultFilter) ([]domain.TaskResult, error) {
	ok, err := s.log.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	if filter.TaskType != "" && !filter.TaskType.Valid() {
		return nil, fmt.Errorf("unknown task type %q", filter.TaskType)
	}

	results, err := s.store.ListTaskResults(ctx, sessionID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list task results: %w", err)
	}
	if results == nil {
		results = []domain.TaskResult{}
	}
	return results, nil
}

// SearchRagDocs runs a document search. k <= 0 uses the store default.
func (s *Service) SearchRagDocs(ctx context.Context, query, category string, k int) ([]domain.RagDoc, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	docs, err := s.store.SearchRagDocs(ctx, query, strings.TrimSpace(category), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	if docs == nil {
		docs = []domain.RagDoc{}
	}
	return docs, nil
}

// OpenReport resolves a download reference to a report file path.
func (s *Service) OpenReport(filename string) (string, error) {
	return s.reports.Open(filename)
}
