package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

var sampleReviews = []string{
	"배송이 너무 늦게 도착했어요. 포장은 괜찮았습니다.",
	"가격이 비싸지만 품질은 만족스러워요.",
	"배터리가 빨리 닳아서 아쉬워요. 충전은 빠릅니다.",
	"디자인이 예쁘고 가성비도 좋아요.",
}

func TestReviewTopics(t *testing.T) {
	assert.Equal(t, []string{"가격", "배송", "품질"}, ReviewTopics(sampleReviews, 3))
	assert.Equal(t, []string{}, ReviewTopics([]string{"그냥 그래요"}, 5))
}

func TestLexiconImprovements(t *testing.T) {
	got := LexiconImprovements(sampleReviews)
	assert.Equal(t, []string{
		"가격 대비 가치 전달 또는 프로모션 검토",
		"배송 지연과 파손을 줄이기 위한 물류 관리 강화",
		"배터리 사용 시간 개선",
	}, got)

	assert.Equal(t, []string{"현재 리뷰에서 두드러진 불만은 없으므로 만족 요인을 마케팅 메시지로 활용"},
		LexiconImprovements([]string{"정말 좋아요 추천합니다"}))
}

func TestLexiconSummary(t *testing.T) {
	summary := lexiconSummary(sampleReviews)
	assert.True(t, strings.HasPrefix(summary, "리뷰 요약:\n"))
	assert.Contains(t, summary, "- 배송 언급 1건 (불만 1건)")
	assert.Equal(t, reviewSummaryFailed, lexiconSummary(nil))
}

func TestFallbackSegments(t *testing.T) {
	set := FallbackSegments("에어팟 프로")
	require.Len(t, set.Segments, 3)
	total := 0.0
	for _, s := range set.Segments {
		total += s.Percentage
	}
	assert.Equal(t, 100.0, total)
	assert.Contains(t, set.OverallInsights, "에어팟 프로")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "가나다", truncateRunes("가나다", 3))
	assert.Equal(t, "가나...", truncateRunes("가나다", 2))
}

func TestSegmentPipelineFallsBackWithMockLLM(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskSegment, "", "에어팟 프로 구매자를 세그먼트로 분류해줘")
	require.True(t, res.Success, res.Errors)

	data, ok := res.ResultData.(*SegmentResult)
	require.True(t, ok)
	assert.Equal(t, "에어팟 프로", data.ProductName)
	assert.Equal(t, 3, data.NumSegments)
	assert.Equal(t, 10, data.ReviewCount)
	assert.True(t, data.IsMock)
	assert.Equal(t, "가성비 추구형", data.Segments.Segments[0].Name)

	assert.Contains(t, res.ReplyText, "📊 **에어팟 프로 구매자 세그먼트 분석 완료**")
	assert.Contains(t, res.ReplyText, "총 10개의 리뷰를 분석하여 3개 세그먼트를 발견했습니다.")
	assert.Contains(t, res.ReplyText, "예시 데이터로 분석했습니다")
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/report/segment_report_"))
}

func TestSegmentPipelineUsesStructuredReply(t *testing.T) {
	env := newTestEnv(t, scripted(map[string]string{
		"마케팅 전문가": `{"segments":[` +
			`{"name":"출퇴근족","percentage":60,"characteristics":"대중교통 이용이 잦은 직장인"},` +
			`{"name":"운동족","percentage":40,"characteristics":"운동 중 착용을 중시"}],` +
			`"overall_insights":"이동 중 사용이 핵심"}`,
	}))
	res := env.run(t, domain.TaskSegment, "", "갤럭시 버즈 구매자를 세그먼트로 나눠줘")
	require.True(t, res.Success, res.Errors)

	data := res.ResultData.(*SegmentResult)
	assert.Equal(t, "갤럭시 버즈", data.ProductName)
	assert.Equal(t, 2, data.NumSegments)
	assert.Equal(t, 2, data.Segments.TotalSegments)
	assert.Contains(t, res.ReplyText, "1. **출퇴근족** (60%)")
	assert.Contains(t, res.ReplyText, "이동 중 사용이 핵심")
}

func TestSegmentPipelineGuidanceWithoutProduct(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskSegment, "", "오늘 날씨 어때")

	assert.False(t, res.Success)
	assert.Equal(t, "제품명을 명확히 지정해주세요. 예: '에어팟 프로 구매자를 세그먼트로 분류해줘'", res.ReplyText)
	assert.Equal(t, []string{"제품명을 찾을 수 없습니다."}, res.Errors)
}

func TestReviewPipelineFallsBackWithMockLLM(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskReview, "", "에어팟 프로 구매자들의 리뷰 감성 분석을 진행해줘")
	require.True(t, res.Success, res.Errors)

	data, ok := res.ResultData.(*ReviewResult)
	require.True(t, ok)
	assert.Equal(t, "에어팟 프로", data.ProductName)
	assert.Equal(t, 0, data.TotalReviews)
	assert.Equal(t, "에어팟 프로에 대한 리뷰 데이터가 충분하지 않아 감성 분석을 수행할 수 없습니다.", data.OverallInsights)
	assert.Equal(t, []string{"품질", "가격", "디자인", "배송", "내구성"}, data.Topics)
	assert.Equal(t, []string{"가격 대비 가치 전달 또는 프로모션 검토"}, data.Improvements)
	assert.Contains(t, data.Summary, "- 가격 언급 2건 (불만 1건)")
	assert.True(t, data.IsMock)

	assert.Contains(t, res.ReplyText, "✅ **에어팟 프로 구매자 리뷰 감성 분석 완료**")
	assert.Contains(t, res.ReplyText, "📄 [리뷰 분석 리포트 다운로드](/report/review_report_")
}

func TestReviewPipelineUsesStructuredReplies(t *testing.T) {
	env := newTestEnv(t, scripted(map[string]string{
		"감성 분석가": `{"total_reviews":10,"sentiment_distribution":{"positive":7,"negative":1,"neutral":2},` +
			`"average_score":0.78,"overall_insights":"전반적으로 만족도가 높습니다."}`,
		"주요 포인트로 요약":   "- 음질 호평\n- 가격 부담",
		"고객 경험 개선 전문가": `{"improvement_areas":["배터리 지속 시간 개선","가격 정책 재검토"]}`,
	}))
	res := env.run(t, domain.TaskReview, "", "에어팟 프로 리뷰 분석해줘")
	require.True(t, res.Success, res.Errors)

	data := res.ResultData.(*ReviewResult)
	assert.Equal(t, 10, data.TotalReviews)
	assert.Equal(t, SentimentDistribution{Positive: 7, Negative: 1, Neutral: 2}, data.SentimentDistribution)
	assert.InDelta(t, 0.78, data.AverageScore, 1e-9)
	assert.Equal(t, "- 음질 호평\n- 가격 부담", data.Summary)
	assert.Equal(t, []string{"배터리 지속 시간 개선", "가격 정책 재검토"}, data.Improvements)
	assert.Contains(t, res.ReplyText, "긍정 리뷰 수: 7")
	assert.Contains(t, res.ReplyText, "평균 점수: 0.78")
}

func TestReviewPipelineGuidanceWhenNoReviews(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	env.deps.Chains.Reviews = []string{"missing.tool"}

	res := env.run(t, domain.TaskReview, "", "에어팟 프로 리뷰 분석해줘")
	assert.False(t, res.Success)
	assert.Equal(t, "'에어팟 프로'에 대한 데이터를 찾을 수 없습니다. 다른 제품을 시도해보세요.", res.ReplyText)
	assert.Equal(t, []string{"리뷰 데이터를 수집할 수 없습니다."}, res.Errors)
}
