package agents

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

func TestExtractSynthesisProduct(t *testing.T) {
	cases := map[string]string{
		"에어팟 프로에 대한 종합 보고서 만들어줘":    "에어팟 프로",
		"그럼 갤럭시 버즈 종합 보고서 부탁해":      "갤럭시 버즈",
		"갤럭시 버즈 마케팅 전략 정리해줘":        "갤럭시 버즈",
		"종합 보고서 만들어줘":               "",
		"마지막으로 통합 마케팅 전략 보고서 작성해줘": "",
	}
	for msg, want := range cases {
		assert.Equal(t, want, ExtractSynthesisProduct(msg), msg)
	}
}

func TestDedupeTaskResults(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	results := []domain.TaskResult{
		{ResultID: "r5", TaskType: domain.TaskSynthesis, CreatedAt: base.Add(5 * time.Minute)},
		{ResultID: "r4", TaskType: domain.TaskTrend, ProductName: "에어팟", CreatedAt: base.Add(4 * time.Minute)},
		{ResultID: "r3", TaskType: domain.TaskReview, ProductName: "에어팟", CreatedAt: base.Add(3 * time.Minute)},
		{ResultID: "r2", TaskType: domain.TaskTrend, ProductName: "버즈", CreatedAt: base.Add(2 * time.Minute)},
		{ResultID: "r1", TaskType: domain.TaskTrend, ProductName: "에어팟", CreatedAt: base.Add(time.Minute)},
	}

	got := DedupeTaskResults(results)
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ResultID
	}
	assert.Equal(t, []string{"r2", "r3", "r4"}, ids)
	assert.Empty(t, DedupeTaskResults(nil))
}

func TestSynthesisDigest(t *testing.T) {
	digest := SynthesisDigest([]domain.TaskResult{
		{TaskType: domain.TaskTrend, ProductName: "에어팟", ResultData: json.RawMessage(`{"signal":"➖ 보합세"}`)},
		{TaskType: domain.TaskAdCopy, ProductName: "에어팟", ResultData: json.RawMessage(`{"total_variations":18}`)},
		{TaskType: domain.TaskCompetitor, ResultData: json.RawMessage(`{"price_comparison":{"position":"최저가"}}`)},
	})
	assert.Contains(t, digest, "- **트렌드 분석** (에어팟): 신호 ➖ 보합세")
	assert.Contains(t, digest, "- **광고 문구** (에어팟): 카피 18개 생성")
	assert.Contains(t, digest, "- **경쟁사 분석** (N/A): 가격 포지션 최저가")
}

func TestSynthesisWithoutResults(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())

	res := env.run(t, domain.TaskSynthesis, "", "종합 보고서 만들어줘")
	assert.False(t, res.Success)
	assert.True(t, res.HasError(domain.ErrTokenNoTaskResults))
	assert.True(t, strings.HasPrefix(res.ReplyText, "아직 실행된 태스크가 없습니다."))

	scoped := env.run(t, domain.TaskSynthesis, res.SessionID, "갤럭시 버즈에 대한 종합 보고서 만들어줘")
	assert.False(t, scoped.Success)
	assert.True(t, scoped.HasError(domain.ErrTokenNoTaskResults))
	assert.True(t, strings.HasPrefix(scoped.ReplyText, "'갤럭시 버즈'에 대한 실행된 태스크가 없습니다."))
}

func TestSynthesisAfterTrend(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	trend := env.run(t, domain.TaskTrend, "", "에어팟 트렌드 분석해줘")
	require.True(t, trend.Success, trend.Errors)

	res := env.run(t, domain.TaskSynthesis, trend.SessionID, "종합 보고서 만들어줘")
	require.True(t, res.Success, res.Errors)

	data, ok := res.ResultData.(*SynthesisResult)
	require.True(t, ok)
	assert.Equal(t, 1, data.NumTasks)
	assert.Equal(t, domain.TaskTrend, data.Tasks[0].TaskType)
	assert.Equal(t, "에어팟", data.Tasks[0].ProductName)
	assert.Contains(t, data.Synthesis, "- **트렌드 분석** (에어팟): 신호 ")

	assert.Contains(t, res.ReplyText, "✅ **마케팅 전략 종합 보고서 생성 완료**")
	assert.Contains(t, res.ReplyText, "**📊 분석 범위:** '에어팟' 단일 제품")
	assert.Contains(t, res.ReplyText, "- trend: 에어팟")
	assert.Contains(t, res.ReplyText, "※ 전략 생성에 실패하여 분석 결과 요약으로 대체했습니다.")
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/report/synthesis_report_"))

	// A second synthesis does not feed on the first one.
	again := env.run(t, domain.TaskSynthesis, trend.SessionID, "종합 보고서 만들어줘")
	require.True(t, again.Success, again.Errors)
	assert.Equal(t, 1, again.ResultData.(*SynthesisResult).NumTasks)
}

func TestSynthesisUsesStrategyText(t *testing.T) {
	env := newTestEnv(t, scripted(map[string]string{
		"데이터 기반의 구체적이고 실행 가능한 전략": "## 📊 Executive Summary\n에어팟 수요는 안정적입니다.",
	}))
	trend := env.run(t, domain.TaskTrend, "", "에어팟 트렌드 분석해줘")
	require.True(t, trend.Success, trend.Errors)

	res := env.run(t, domain.TaskSynthesis, trend.SessionID, "에어팟에 대한 종합 보고서 만들어줘")
	require.True(t, res.Success, res.Errors)

	data := res.ResultData.(*SynthesisResult)
	assert.Equal(t, "에어팟", data.ProductName)
	assert.Equal(t, "## 📊 Executive Summary\n에어팟 수요는 안정적입니다.", data.Synthesis)
	assert.NotContains(t, res.ReplyText, "요약으로 대체")
}
