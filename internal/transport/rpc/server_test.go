package rpc

import (
	"context"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/service"
)

func startServer(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		DatabaseURL:    ":memory:",
		ReportDir:      t.TempDir(),
		Mode:           "MOCK",
		StatCounterURL: "off",
		FetchTimeout:   time.Second,
	}
	svc, err := service.Build(context.Background(), cfg, nil, llm.NewMockClient())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	srv, err := NewServer(svc, nil)
	require.NoError(t, err)

	addr, err := srv.Listen("127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return addr.String()
}

func TestChatOverJSONRPC(t *testing.T) {
	addr := startServer(t)
	client, err := jsonrpc.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	var resp service.ChatResponse
	require.NoError(t, client.Call("Marketing.Chat", &service.ChatRequest{Message: "안녕하세요"}, &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, []string{domain.ErrTokenUnknownTask}, resp.Errors)

	var trend service.ChatResponse
	require.NoError(t, client.Call("Marketing.Chat", &service.ChatRequest{Message: "에어팟 트렌드 분석해줘", SessionID: resp.SessionID}, &trend))
	assert.True(t, trend.Success, trend.Errors)
	assert.Equal(t, resp.SessionID, trend.SessionID)
	assert.Equal(t, domain.TaskTrend, trend.Task)

	err = client.Call("Marketing.Chat", &service.ChatRequest{Message: ""}, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), service.ErrEmptyMessage.Error())
}

func TestHealthOverJSONRPC(t *testing.T) {
	addr := startServer(t)
	client, err := jsonrpc.Dial("tcp", addr)
	require.NoError(t, err)
	defer client.Close()

	var h service.Health
	require.NoError(t, client.Call("Marketing.Health", &HealthRequest{}, &h))
	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.DBConnected)
	assert.Len(t, h.Agents, len(domain.AllTasks))
}
