package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type briefOutput struct {
	ProductName string   `json:"product_name"`
	KeyFeatures []string `json:"key_features,omitempty"`
}

type copyItem struct {
	Copy string `json:"copy"`
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"fenced", "here:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`},
		{"bare object", `Sure! {"a": {"b": 2}} done`, `{"a": {"b": 2}}`},
		{"array first", `[{"copy":"x"}] trailing`, `[{"copy":"x"}]`},
		{"none", "no json here", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode[briefOutput]("```json\n{\"product_name\":\"텀블러\",\"key_features\":[\"보온\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "텀블러", got.ProductName)
	assert.Equal(t, []string{"보온"}, got.KeyFeatures)

	_, err = Decode[briefOutput](`{"key_features":["보온"]}`)
	assert.ErrorIs(t, err, ErrMalformedOutput, "product_name is required")

	_, err = Decode[briefOutput]("[MOCK] plain text")
	assert.ErrorIs(t, err, ErrMalformedOutput)

	copies, err := Decode[[]copyItem](`[{"copy":"하나"},{"copy":"둘"}]`)
	require.NoError(t, err)
	assert.Len(t, copies, 2)
}

func TestDecodeStructuredSendsSchema(t *testing.T) {
	var seen *ChatCompletionRequest
	client := FuncClient(func(ctx context.Context, req *ChatCompletionRequest) (string, error) {
		seen = req
		return `{"product_name":"캠핑 의자"}`, nil
	})

	got, err := DecodeStructured[briefOutput](context.Background(), client, "gpt-4o-mini", Prompt{
		System: "extract",
		User:   "캠핑 의자 광고 문구",
	})
	require.NoError(t, err)
	assert.Equal(t, "캠핑 의자", got.ProductName)
	require.NotNil(t, seen)
	assert.True(t, seen.JSONMode)
	assert.Contains(t, seen.Messages[0].Content, "product_name")
	assert.Equal(t, "user", seen.Messages[1].Role)
}

func TestCompleteErrors(t *testing.T) {
	empty := FuncClient(func(ctx context.Context, req *ChatCompletionRequest) (string, error) {
		return "   ", nil
	})
	_, err := Complete(context.Background(), empty, "m", Prompt{User: "hi"})
	assert.Error(t, err)

	failing := FuncClient(func(ctx context.Context, req *ChatCompletionRequest) (string, error) {
		return "", errors.New("rate limited")
	})
	_, err = Complete(context.Background(), failing, "m", Prompt{User: "hi"})
	assert.ErrorContains(t, err, "rate limited")
}

func TestMockClient(t *testing.T) {
	client := NewMockClient()
	text, err := Complete(context.Background(), client, "mock", Prompt{User: "트렌드 분석"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "[MOCK]"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.CreateChatCompletion(ctx, &ChatCompletionRequest{})
	assert.Error(t, err)
}

func TestNewLLMClient(t *testing.T) {
	logger := bolt.New(bolt.NewJSONHandler(io.Discard))
	_, ok := NewLLMClient(Options{Mock: true, APIKey: "k"}, logger).(*MockClient)
	assert.True(t, ok)
	_, ok = NewLLMClient(Options{}, logger).(*MockClient)
	assert.True(t, ok)
	_, ok = NewLLMClient(Options{APIKey: "k", Timeout: time.Second}, logger).(*OpenAIClient)
	assert.True(t, ok)
}

func TestOpenAIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "gpt-4o-mini", body["model"])
		format, _ := body["response_format"].(map[string]interface{})
		assert.Equal(t, "json_object", format["type"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"ok\":true}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", server.URL+"/v1", 5*time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}
