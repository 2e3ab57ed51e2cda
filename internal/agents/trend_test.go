package agents

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

func TestExtractTrendKeyword(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"에어팟 트렌드 분석해줘", "에어팟"},
		{"최근 3개월 캠핑 의자 트렌드 알려줘", "캠핑 의자"},
		{`"무선 청소기" 수요 전망 어때?`, "무선 청소기"},
		{"요즘 #러닝화 인기 어때", "러닝화"},
		{"트렌드 분석해줘", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ExtractTrendKeyword(c.msg), c.msg)
	}
}

func TestResolveTimeWindow(t *testing.T) {
	cases := []struct {
		msg   string
		start string
		unit  string
		days  int
	}{
		{"에어팟 트렌드", "2024-09-10", "week", 180},
		{"최근 3개월 캠핑 트렌드", "2024-12-09", "date", 90},
		{"2주 동안 트렌드", "2025-02-23", "date", 14},
		{"3일 트렌드", "2025-03-02", "date", 7},
		{"2년 트렌드", "2023-03-10", "week", 730},
		{"20년 트렌드", "2015-03-12", "month", 3650},
		{"분기 트렌드", "2024-12-09", "date", 90},
	}
	for _, c := range cases {
		w := ResolveTimeWindow(c.msg, fixedNow)
		assert.Equal(t, "2025-03-09", w.EndDate, c.msg)
		assert.Equal(t, c.start, w.StartDate, c.msg)
		assert.Equal(t, c.unit, w.TimeUnit, c.msg)
		assert.Equal(t, c.days, w.Days, c.msg)
	}
}

func TestComputeTrendMetrics(t *testing.T) {
	series := []provider.TrendPoint{
		{Date: "2025-01-03", Value: 60},
		{Date: "2025-01-01", Value: 40},
		{Date: "2025-01-02", Value: 50},
		{Date: "2025-01-04", Value: 70},
		{Date: "2025-01-05", Value: 80},
		{Date: "2025-01-06", Value: 90},
	}
	m := ComputeTrendMetrics(series)
	require.True(t, m.HasData)
	assert.Equal(t, 6, m.DataPoints)
	assert.InDelta(t, 65, *m.Average, 1e-9)
	assert.InDelta(t, 40, *m.FirstValue, 1e-9)
	assert.InDelta(t, 90, *m.LatestValue, 1e-9)
	assert.Equal(t, "2025-01-06", m.LatestDate)
	assert.InDelta(t, 125, *m.GrowthPct, 1e-9)
	assert.InDelta(t, 60, *m.MomentumPct, 1e-9)
	assert.Equal(t, "상승", m.MomentumLabel)
	assert.Equal(t, "2025-01-06", m.Peak.Date)
	assert.Len(t, m.SeriesTail, 5)
	assert.Equal(t, "2025-01-02", m.SeriesTail[0].Date)
	assert.Equal(t, "🚀 강한 상승세", TrendSignal(m))

	empty := ComputeTrendMetrics(nil)
	assert.False(t, empty.HasData)
	assert.Equal(t, "데이터 부족", TrendSignal(empty))
}

func TestTrendSignalBands(t *testing.T) {
	flat := TrendMetrics{HasData: true, GrowthPct: f64(1), MomentumPct: f64(-1), LatestValue: f64(40)}
	assert.Equal(t, "➖ 보합세", TrendSignal(flat))

	falling := TrendMetrics{HasData: true, GrowthPct: f64(-30), MomentumPct: f64(-30), LatestValue: f64(10)}
	assert.Equal(t, "📉 강한 하락", TrendSignal(falling))

	noRates := TrendMetrics{HasData: true}
	assert.Equal(t, "데이터 부족", TrendSignal(noRates))
}

func TestTrendPipelineWithMockLLM(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskTrend, "", "에어팟 트렌드 분석해줘")

	require.True(t, res.Success, res.Errors)
	assert.Equal(t, domain.TaskTrend, res.Task)
	assert.Contains(t, res.ReplyText, "'에어팟' 트렌드 분석 요약")
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/report/trend_report_"))
	assert.Equal(t, "/report/"+res.ReportID, res.DownloadURL)
	assert.Equal(t, 1, env.assistantMessages(t, res.SessionID))

	results, err := env.deps.Runner.Store.ListTaskResults(context.Background(), res.SessionID, domain.TaskResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "에어팟", results[0].ProductName)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(results[0].ResultData, &data))
	assert.Equal(t, "에어팟", data["keyword"])
	assert.Equal(t, "2024-09-10", data["start_date"])
	assert.Equal(t, "week", data["time_unit"])
	assert.Equal(t, true, data["is_mock"])
	assert.NotEmpty(t, data["insight"])
	assert.NotEmpty(t, data["signal"])
}

func TestTrendPipelineGuidanceWithoutKeyword(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskTrend, "", "트렌드 분석해줘")

	assert.False(t, res.Success)
	assert.Contains(t, res.ReplyText, "분석할 키워드를 찾지 못했습니다")
	assert.Equal(t, []string{"키워드를 추출하지 못했습니다."}, res.Errors)
	assert.Nil(t, res.ResultData)
	assert.Equal(t, 1, env.assistantMessages(t, res.SessionID))
}
