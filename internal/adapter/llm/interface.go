// Package llm provides an abstraction for LLM API clients.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// LLMClient defines the interface for LLM API operations.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatCompletionRequest represents a chat completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	// JSONMode asks the model for a single JSON object.
	JSONMode bool `json:"json_mode,omitempty"`
}

// ChatMessage represents a chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents a chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Content returns the text of the first choice.
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Prompt is a system + user prompt pair.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Complete runs a single-turn prompt and returns the trimmed reply text.
func Complete(ctx context.Context, client LLMClient, model string, p Prompt) (string, error) {
	req := &ChatCompletionRequest{Model: model, JSONMode: p.JSONMode}
	if p.System != "" {
		req.Messages = append(req.Messages, ChatMessage{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, ChatMessage{Role: "user", Content: p.User})
	if p.Temperature > 0 {
		req.Temperature = Float64(p.Temperature)
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = Int(p.MaxTokens)
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

// Ensure the implementations satisfy LLMClient.
var (
	_ LLMClient = (*OpenAIClient)(nil)
	_ LLMClient = (*MockClient)(nil)
	_ LLMClient = FuncClient(nil)
)
