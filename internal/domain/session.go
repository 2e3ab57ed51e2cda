package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is an opaque conversation container.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a persisted conversation log entry.
type Message struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Role      Role      `json:"role"`
	Kind      EntryKind `json:"kind"`
	MarkerKey string    `json:"marker_key,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// IsTurnBoundary reports whether m opens a new turn.
func (m Message) IsTurnBoundary() bool {
	return m.Kind == EntryTurnBoundary
}

// IsStateMarker reports whether m stores out-of-band state.
func (m Message) IsStateMarker() bool {
	return m.Kind == EntryStateMarker
}

// Conversational reports whether m may be shown to the end user or the LLM.
func (m Message) Conversational() bool {
	return !m.IsTurnBoundary() && !m.IsStateMarker()
}

// Entry is the tagged variant appended to the conversation log.
type Entry struct {
	Kind      EntryKind
	Role      Role
	Content   string
	MarkerKey string
}

// UserEntry builds a user message entry.
func UserEntry(text string) Entry {
	return Entry{Kind: EntryMessage, Role: RoleUser, Content: text}
}

// AssistantEntry builds an assistant message entry.
func AssistantEntry(text string) Entry {
	return Entry{Kind: EntryMessage, Role: RoleAssistant, Content: text}
}

// SystemEntry builds a plain system message entry.
func SystemEntry(text string) Entry {
	return Entry{Kind: EntryMessage, Role: RoleSystem, Content: text}
}

// TurnBoundaryEntry marks the start of a user-initiated pipeline run.
func TurnBoundaryEntry(label string) Entry {
	if label == "" {
		label = "--- new request started ---"
	}
	return Entry{Kind: EntryTurnBoundary, Role: RoleSystem, Content: label}
}

// StateMarkerEntry stores payload under key as a system entry.
func StateMarkerEntry(key string, payload interface{}) (Entry, error) {
	if key == "" {
		return Entry{}, fmt.Errorf("marker key is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode marker payload: %w", err)
	}
	return Entry{Kind: EntryStateMarker, Role: RoleSystem, Content: string(data), MarkerKey: key}, nil
}

// AgentMarker is the payload recorded after a successful pipeline run.
type AgentMarker struct {
	Task TaskID `json:"task"`
}

// Validate rejects markers naming a task this build does not know.
func (m AgentMarker) Validate() error {
	if !m.Task.Valid() {
		return fmt.Errorf("unknown task %q", m.Task)
	}
	return nil
}
