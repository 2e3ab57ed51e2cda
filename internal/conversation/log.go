// Package conversation is the append-only per-session message log.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/repository"
)

// Log reads and writes the conversation of a session.
type Log struct {
	store store.Store
}

// New creates a Log backed by s.
func New(s store.Store) *Log {
	return &Log{store: s}
}

// EnsureSession returns sessionID when it names an existing session.
// An empty or unknown id gets a fresh session.
func (l *Log) EnsureSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		session, err := l.store.GetSession(ctx, sessionID)
		if err != nil {
			return "", &domain.PersistenceError{Op: "get session", Err: err}
		}
		if session != nil {
			return session.SessionID, nil
		}
	}

	session := &domain.Session{
		SessionID: uuid.New().String(),
		CreatedAt: time.Now(),
	}
	if err := l.store.CreateSession(ctx, session); err != nil {
		return "", &domain.PersistenceError{Op: "create session", Err: err}
	}
	return session.SessionID, nil
}

// Exists reports whether the session is known.
func (l *Log) Exists(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	session, err := l.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, &domain.PersistenceError{Op: "get session", Err: err}
	}
	return session != nil, nil
}

// Append persists entry at the end of the session log.
func (l *Log) Append(ctx context.Context, sessionID string, entry domain.Entry) (*domain.Message, error) {
	kind := entry.Kind
	if kind == "" {
		kind = domain.EntryMessage
	}
	msg := &domain.Message{
		SessionID: sessionID,
		Role:      entry.Role,
		Kind:      kind,
		MarkerKey: entry.MarkerKey,
		Content:   entry.Content,
		CreatedAt: time.Now(),
	}
	if err := l.store.AppendMessage(ctx, msg); err != nil {
		return nil, &domain.PersistenceError{Op: "append message", Err: err}
	}
	return msg, nil
}

// AppendMarker stores payload under key as a state marker.
func (l *Log) AppendMarker(ctx context.Context, sessionID, key string, payload interface{}) error {
	entry, err := domain.StateMarkerEntry(key, payload)
	if err != nil {
		return err
	}
	_, err = l.Append(ctx, sessionID, entry)
	return err
}

// History returns every entry of the session, oldest first.
func (l *Log) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	messages, err := l.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "get messages", Err: err}
	}
	return messages, nil
}

// CurrentTurn returns the entries after the last turn boundary, or the
// whole history when there is none.
func (l *Log) CurrentTurn(ctx context.Context, sessionID string) ([]domain.Message, error) {
	messages, err := l.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return currentTurn(messages), nil
}

func currentTurn(messages []domain.Message) []domain.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsTurnBoundary() {
			return messages[i+1:]
		}
	}
	return messages
}

// FindLastMarker decodes the newest state marker stored under key into out.
// Markers whose payload does not decode are skipped, as are markers rejected
// by out's Validate method when it has one.
func (l *Log) FindLastMarker(ctx context.Context, sessionID, key string, out interface{}) (bool, error) {
	messages, err := l.History(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return findLastMarker(messages, key, out), nil
}

// FindLastMarkerBefore is FindLastMarker restricted to entries preceding
// the current turn.
func (l *Log) FindLastMarkerBefore(ctx context.Context, sessionID, key string, out interface{}) (bool, error) {
	messages, err := l.History(ctx, sessionID)
	if err != nil {
		return false, err
	}
	turn := currentTurn(messages)
	return findLastMarker(messages[:len(messages)-len(turn)], key, out), nil
}

type validator interface {
	Validate() error
}

func findLastMarker(messages []domain.Message, key string, out interface{}) bool {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !m.IsStateMarker() || m.MarkerKey != key {
			continue
		}
		if err := json.Unmarshal([]byte(m.Content), out); err != nil {
			continue
		}
		if v, ok := out.(validator); ok && v.Validate() != nil {
			continue
		}
		return true
	}
	return false
}

// Conversation returns the history with turn boundaries and state markers removed.
func (l *Log) Conversation(ctx context.Context, sessionID string) ([]domain.Message, error) {
	messages, err := l.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ForLLM(messages), nil
}

// ForLLM drops entries that must never reach a model or an end user.
func ForLLM(messages []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.Conversational() {
			out = append(out, m)
		}
	}
	return out
}

// LastUserMessage returns the newest user message of the slice.
func LastUserMessage(messages []domain.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Conversational() && messages[i].Role == domain.RoleUser {
			return messages[i].Content, nil
		}
	}
	return "", fmt.Errorf("no user message in turn")
}
