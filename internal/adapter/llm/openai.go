package llm

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls an OpenAI compatible chat completion API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client. An empty baseURL keeps the OpenAI default.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// CreateChatCompletion sends a chat completion request (non-streaming).
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	oreq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		oreq.Messages = append(oreq.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature != nil {
		oreq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		oreq.MaxTokens = *req.MaxTokens
	}
	if req.JSONMode {
		oreq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, err
	}

	out := &ChatCompletionResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        ch.Index,
			Message:      &ChatMessage{Role: ch.Message.Role, Content: ch.Message.Content},
			FinishReason: string(ch.FinishReason),
		})
	}
	return out, nil
}
