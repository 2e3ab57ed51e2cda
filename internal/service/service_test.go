package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/router"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{
		DatabaseURL:    ":memory:",
		ReportDir:      t.TempDir(),
		Mode:           "MOCK",
		StatCounterURL: "off",
		FetchTimeout:   time.Second,
		Chains:         config.DefaultChains(),
		ForbiddenWords: config.DefaultForbiddenWords,
	}
	svc, err := Build(context.Background(), cfg, nil, llm.NewMockClient())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Chat(context.Background(), ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatUnknownTaskCreatesSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	res, err := svc.Chat(ctx, ChatRequest{Message: "안녕하세요", SessionID: "no-such-session"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Fatal)
	assert.Equal(t, []string{domain.ErrTokenUnknownTask}, res.Errors)
	assert.Contains(t, res.ReplyText, "사용 가능한 태스크")
	assert.NotEmpty(t, res.SessionID)
	assert.NotEqual(t, "no-such-session", res.SessionID)

	ok, err := svc.log.Exists(ctx, res.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChatRunsTrendAndServesReport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	res, err := svc.Chat(ctx, ChatRequest{Message: "에어팟 트렌드 분석해줘"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, domain.TaskTrend, res.Task)
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/report/trend_report_"))

	path, err := svc.OpenReport(res.ReportID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, res.ReportID))

	// The same session id is kept and the continuation cue reuses the task.
	next, err := svc.Chat(ctx, ChatRequest{Message: "더 보여줘", SessionID: res.SessionID})
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, next.SessionID)
	assert.Equal(t, domain.TaskTrend, next.Task)

	messages, err := svc.GetMessages(ctx, res.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "에어팟 트렌드 분석해줘", messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	for _, m := range messages {
		assert.True(t, m.Conversational())
	}

	last, err := svc.GetMessages(ctx, res.SessionID, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, domain.RoleAssistant, last[0].Role)

	results, err := svc.GetTaskResults(ctx, res.SessionID, domain.TaskResultFilter{TaskType: domain.TaskTrend})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "에어팟", results[len(results)-1].ProductName)
}

func TestReadsOfUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.GetMessages(ctx, "missing", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.GetTaskResults(ctx, "missing", domain.TaskResultFilter{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetTaskResultsRejectsUnknownTaskType(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	res, err := svc.Chat(ctx, ChatRequest{Message: "안녕하세요"})
	require.NoError(t, err)

	_, err = svc.GetTaskResults(ctx, res.SessionID, domain.TaskResultFilter{TaskType: "weather"})
	assert.Error(t, err)

	results, err := svc.GetTaskResults(ctx, res.SessionID, domain.TaskResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearchRagDocs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.SearchRagDocs(ctx, " ", "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	require.NoError(t, svc.store.AddRagDoc(ctx, &domain.RagDoc{
		DocID:     "doc-1",
		Category:  domain.RagCategoryAd,
		Title:     "텀블러 카피",
		Content:   "[텀블러] 따뜻함을 지키는 하루",
		CreatedAt: time.Now(),
	}))

	docs, err := svc.SearchRagDocs(ctx, "텀블러", domain.RagCategoryAd, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].DocID)

	none, err := svc.SearchRagDocs(ctx, "냉장고", "", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestListAgents(t *testing.T) {
	svc := newTestService(t)
	agents := svc.ListAgents()
	require.Len(t, agents, len(domain.AllTasks))
	assert.Equal(t, domain.TaskTrend, agents[0].Task)
	assert.Contains(t, agents[0].Keywords, "트렌드")
	for _, a := range agents {
		assert.Equal(t, router.Ready.String(), a.Status, a.Task)
	}
}

func TestHealth(t *testing.T) {
	svc := newTestService(t)
	h := svc.Health(context.Background())

	assert.Equal(t, "ok", h.Status)
	assert.True(t, h.DBConnected)
	require.NotNil(t, h.FTSEnabled)
	assert.Len(t, h.Agents, len(domain.AllTasks))
	assert.Equal(t, "ready", h.Agents[string(domain.TaskSynthesis)])
	assert.NotEmpty(t, h.Warnings)
	assert.False(t, h.Timestamp.IsZero())
}

func TestHealthDegradedWhenStoreClosed(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.store.Close())

	h := svc.Health(context.Background())
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.DBConnected)
}

func TestInvokeTool(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	assert.Contains(t, svc.ListTools(), "synthetic.trend")
	assert.NotContains(t, svc.ListTools(), "statcounter.share")

	resp, err := svc.InvokeTool(ctx, "synthetic.trend", json.RawMessage(`{"keywords":["에어팟"],"start_date":"2025-01-01","end_date":"2025-03-01","time_unit":"week"}`))
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", resp.Status)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Result, &data))
	assert.Equal(t, true, data["is_mock"])

	failed, err := svc.InvokeTool(ctx, "naver.datalab", json.RawMessage(`{"keywords":["에어팟"]}`))
	require.NoError(t, err)
	assert.Equal(t, "FAILED", failed.Status)
	assert.Contains(t, failed.Error, "not configured")

	_, err = svc.InvokeTool(ctx, "weather.today", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestNewChatResponse(t *testing.T) {
	resp := NewChatResponse(&domain.Result{SessionID: "s", ReplyText: "r", Task: domain.TaskTrend})
	assert.Equal(t, "s", resp.SessionID)
	assert.Equal(t, []string{}, resp.Errors)
}
