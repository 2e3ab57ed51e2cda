package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// ChatRequest is one user message.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply returned to chat clients.
type ChatResponse struct {
	SessionID   string        `json:"session_id"`
	ReplyText   string        `json:"reply_text"`
	ReportID    string        `json:"report_id,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Task        domain.TaskID `json:"task,omitempty"`
	Success     bool          `json:"success"`
	Errors      []string      `json:"errors"`
}

// NewChatResponse projects a routed result onto the response shape.
func NewChatResponse(res *domain.Result) *ChatResponse {
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	return &ChatResponse{
		SessionID:   res.SessionID,
		ReplyText:   res.ReplyText,
		ReportID:    res.ReportID,
		DownloadURL: res.DownloadURL,
		Task:        res.Task,
		Success:     res.Success,
		Errors:      errs,
	}
}

// Chat routes one message. A missing or unknown session id gets a new
// session before routing, so every result carries a usable id.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*domain.Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	start := time.Now()
	sessionID, err := s.log.EnsureSession(ctx, strings.TrimSpace(req.SessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get/create session: %w", err)
	}
	if req.SessionID != "" && req.SessionID != sessionID {
		s.obs.Log().Info().
			Str("requested", req.SessionID).
			Str("session", sessionID).
			Msg("unknown session id, started a new session")
	}

	res := s.router.Route(ctx, sessionID, req.Message)
	if res.SessionID == "" {
		res.SessionID = sessionID
	}
	if res.Errors == nil {
		res.Errors = []string{}
	}

	s.obs.Log().Info().
		Str("session", res.SessionID).
		Str("task", string(res.Task)).
		Str("outcome", outcome(res)).
		Int("elapsed_ms", int(time.Since(start).Milliseconds())).
		Msg("chat handled")
	return res, nil
}

func outcome(res *domain.Result) string {
	switch {
	case res.Success:
		return "success"
	case res.Fatal:
		return "error"
	case domain.IsRoutingOutcome(res.Errors):
		return "routing"
	default:
		return "guidance"
	}
}
