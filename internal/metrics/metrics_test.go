package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("trend", "success")
	m.ObserveRequest("trend", "success")
	m.ObserveRequest("", "unknown_task")
	m.ObserveFallback("segment")
	m.ObserveProvider("naver.datalab", errors.New("down"))
	m.ObserveStage("trend", "fetch", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("trend", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("none", "unknown_task")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("segment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("naver.datalab", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("trend", "success")
	m.ObserveStage("trend", "fetch", time.Second)
	m.ObserveFallback("trend")
	m.ObserveProvider("x", nil)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("review", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "marketing_routed_requests_total")
}
