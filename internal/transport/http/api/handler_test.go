package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/conversation"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/observe"
	"github.com/xiaot623/gogo/marketing/internal/router"
	"github.com/xiaot623/gogo/marketing/internal/service"
	"github.com/xiaot623/gogo/marketing/tests/helpers"
)

func newTestServer(t *testing.T) *echo.Echo {
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
	svc, err := service.Build(context.Background(), cfg, nil, llm.NewMockClient())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestChatValidation(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/chat", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUnknownTaskIsInformational(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/chat", `{"message":"안녕하세요","session_id":"invalid"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.ChatResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, []string{domain.ErrTokenUnknownTask}, resp.Errors)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEqual(t, "invalid", resp.SessionID)
	assert.Empty(t, resp.DownloadURL)
}

func TestChatTrendAndDownload(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/chat", `{"message":"에어팟 트렌드 분석해줘"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp service.ChatResponse
	decode(t, rec, &resp)
	require.True(t, resp.Success, resp.Errors)
	assert.Equal(t, domain.TaskTrend, resp.Task)
	require.True(t, strings.HasPrefix(resp.DownloadURL, "/report/"))
	assert.Equal(t, "/report/"+resp.ReportID, resp.DownloadURL)

	dl := do(e, http.MethodGet, resp.DownloadURL, "")
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get(echo.HeaderContentDisposition), resp.ReportID)
	assert.Contains(t, dl.Body.String(), "에어팟")

	msgs := do(e, http.MethodGet, "/sessions/"+resp.SessionID+"/messages", "")
	require.Equal(t, http.StatusOK, msgs.Code)
	var history struct {
		Messages []domain.Message `json:"messages"`
	}
	decode(t, msgs, &history)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, domain.RoleUser, history.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, history.Messages[1].Role)

	results := do(e, http.MethodGet, "/sessions/"+resp.SessionID+"/results?task_type=trend", "")
	require.Equal(t, http.StatusOK, results.Code)
	var stored struct {
		Results []domain.TaskResult `json:"results"`
	}
	decode(t, results, &stored)
	require.Len(t, stored.Results, 1)
	assert.Equal(t, "에어팟", stored.Results[0].ProductName)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/sessions/"+resp.SessionID+"/results?task_type=weather", "").Code)
}

func TestDownloadReportErrors(t *testing.T) {
	e := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/report/..secret.html", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/report/a%5Cb.html", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/report/trend_report_missing.html", "").Code)
}

func TestSessionNotFound(t *testing.T) {
	e := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/sessions/missing/messages", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/sessions/missing/results", "").Code)
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/healthz", "/health"} {
		rec := do(e, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var h service.Health
		decode(t, rec, &h)
		assert.Equal(t, "ok", h.Status)
		assert.True(t, h.DBConnected)
		assert.NotNil(t, h.Warnings)
	}
}

func TestSearchRagDocs(t *testing.T) {
	e := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/rag/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/rag/search?q=x&k=abc", "").Code)

	rec := do(e, http.MethodGet, "/rag/search?q=%ED%85%80%EB%B8%94%EB%9F%AC&category=ad&k=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Docs []domain.RagDoc `json:"docs"`
	}
	decode(t, rec, &resp)
	assert.NotNil(t, resp.Docs)
	assert.Empty(t, resp.Docs)
}

func TestAgentsAndTools(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var agents struct {
		Agents []service.AgentInfo `json:"agents"`
	}
	decode(t, rec, &agents)
	assert.Len(t, agents.Agents, len(domain.AllTasks))

	rec = do(e, http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "synthetic.reviews")

	rec = do(e, http.MethodPost, "/tools/synthetic.reviews/invoke", `{"product":"에어팟","limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var invoked service.ToolInvokeResponse
	decode(t, rec, &invoked)
	assert.Equal(t, "SUCCEEDED", invoked.Status)
	assert.Contains(t, string(invoked.Result), "에어팟")

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/tools/weather.today/invoke", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/tools/synthetic.reviews/invoke", `{"product":`).Code)
}

func TestMetrics(t *testing.T) {
	e := newTestServer(t)
	do(e, http.MethodPost, "/chat", `{"message":"안녕하세요"}`)

	rec := do(e, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketing_routed_requests_total")
}

// newRoutingServer serves a hand-built registry: trend fails with a
// persistence error and every other task stays unimplemented.
func newRoutingServer(t *testing.T) *echo.Echo {
	t.Helper()
	s := helpers.NewTestStore(t)
	log := conversation.New(s)

	registry := router.NewRegistry()
	require.NoError(t, registry.Bind(domain.TaskTrend, router.HandlerFunc(func(ctx context.Context, sessionID, message string) (*domain.Result, error) {
		return nil, &domain.PersistenceError{Op: "save task result", Err: errors.New("disk full")}
	})))
	detector := router.NewDetector(nil)

	svc := service.New(service.Components{
		Store:    s,
		Log:      log,
		Router:   router.New(detector, registry, log, observe.Discard(), nil, nil),
		Registry: registry,
		Detector: detector,
	})
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e)
	return e
}

func TestChatStatusMapping(t *testing.T) {
	e := newRoutingServer(t)

	rec := do(e, http.MethodPost, "/chat", `{"message":"캠핑 트렌드"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var failed service.ChatResponse
	decode(t, rec, &failed)
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.SessionID)
	require.Len(t, failed.Errors, 1)
	assert.Contains(t, failed.Errors[0], "disk full")

	rec = do(e, http.MethodPost, "/chat", `{"message":"광고 문구 만들어줘"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	var pending service.ChatResponse
	decode(t, rec, &pending)
	assert.Equal(t, []string{"Agent not implemented: ad_copy"}, pending.Errors)

	var agents struct {
		Agents []service.AgentInfo `json:"agents"`
	}
	decode(t, do(e, http.MethodGet, "/agents", ""), &agents)
	require.Len(t, agents.Agents, len(domain.AllTasks))
	assert.Equal(t, "ready", agents.Agents[0].Status)
	assert.Equal(t, "unimplemented", agents.Agents[1].Status)
}
