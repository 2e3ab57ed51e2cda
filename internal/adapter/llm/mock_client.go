package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockPrefix starts every MockClient reply.
const MockPrefix = "[MOCK]"

// IsMockReply reports whether text came from the MockClient.
func IsMockReply(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), MockPrefix)
}

// MockClient is a mock implementation of LLMClient. Its replies are plain
// text, so structured decoding always falls back.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	responseContent := m.generateMockResponse(req)

	return &ChatCompletionResponse{
		ID:    fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Model: req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: responseContent,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(responseContent) / 4,
			TotalTokens:      m.estimateTokens(req) + len(responseContent)/4,
		},
	}, nil
}

// generateMockResponse generates a mock response based on the request.
func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return MockPrefix + " This is a mock response from the LLM client."
	}

	return fmt.Sprintf("%s Received your message: %q. This is a mock response.", MockPrefix, truncate(lastUserMessage, 100))
}

// estimateTokens provides a rough token count estimate.
func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to at most maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// FuncClient adapts a function into an LLMClient. Tests use it to script replies.
type FuncClient func(ctx context.Context, req *ChatCompletionRequest) (string, error)

// CreateChatCompletion calls f and wraps its text as the single choice.
func (f FuncClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	content, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ChatCompletionResponse{
		ID:    "func-chatcmpl",
		Model: req.Model,
		Choices: []Choice{
			{Message: &ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}, nil
}
