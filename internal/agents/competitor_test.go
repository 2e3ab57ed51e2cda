package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

func TestParseCompetitorRequest(t *testing.T) {
	cases := []struct {
		msg         string
		target      string
		competitors []string
	}{
		{"아이폰 15와 갤럭시 S24 비교 분석해줘", "아이폰 15", []string{"갤럭시 S24"}},
		{"갤럭시탭 vs 아이패드, 샤오미 패드 비교", "갤럭시탭", []string{"아이패드", "샤오미 패드"}},
		{"맥북 에어의 경쟁사 분석해줘", "맥북 에어", []string{}},
	}
	for _, c := range cases {
		p, ok := ParseCompetitorRequest(c.msg)
		require.True(t, ok, c.msg)
		assert.Equal(t, c.target, p.Target, c.msg)
		assert.Equal(t, c.competitors, p.Competitors, c.msg)
	}

	_, ok := ParseCompetitorRequest("안녕하세요")
	assert.False(t, ok)
}

func TestClassifyCategory(t *testing.T) {
	assert.Equal(t, "태블릿", ClassifyCategory("갤럭시탭 S9"))
	assert.Equal(t, "스마트폰", ClassifyCategory("갤럭시 S24"))
	assert.Equal(t, "노트북", ClassifyCategory("MacBook Air"))
	assert.Equal(t, "기타", ClassifyCategory("텀블러"))
}

func TestComparePrices(t *testing.T) {
	pc := ComparePrices([]provider.Product{{Price: 300000}, {Price: 250000}, {Price: 400000}})
	assert.Equal(t, 250000, pc.Min)
	assert.Equal(t, 400000, pc.Max)
	assert.Equal(t, 316667, pc.Average)
	assert.Equal(t, 325000, pc.CompetitorAvg)
	require.NotNil(t, pc.DiffPct)
	assert.InDelta(t, -7.7, *pc.DiffPct, 1e-9)
	assert.Equal(t, "경쟁사 평균 이하", pc.Position)

	assert.Equal(t, "최저가", ComparePrices([]provider.Product{{Price: 100}, {Price: 200}}).Position)
	assert.Equal(t, "최고가", ComparePrices([]provider.Product{{Price: 300}, {Price: 200}}).Position)

	solo := ComparePrices([]provider.Product{{Price: 100}})
	assert.Equal(t, "단독 분석", solo.Position)
	assert.Nil(t, solo.DiffPct)

	assert.Equal(t, "가격 정보 없음", ComparePrices([]provider.Product{{Price: 0}, {Price: 200}}).Position)
}

func TestBenchmarkScores(t *testing.T) {
	scores := BenchmarkScores([]provider.Product{
		{Name: "A", Brand: "Apple", Price: 100},
		{Name: "B", Brand: "무명", Price: 200},
	})
	assert.Equal(t, BenchmarkScore{PriceScore: 100, BrandScore: 95, TotalScore: 97.5}, scores["A"])
	assert.Equal(t, BenchmarkScore{PriceScore: 50, BrandScore: 50, TotalScore: 50}, scores["B"])
}

func TestMarketShares(t *testing.T) {
	solo, source := MarketShares([]provider.Product{{Name: "A"}}, nil)
	assert.Equal(t, map[string]float64{"A": 100}, solo)
	assert.Empty(t, source)

	products := []provider.Product{
		{Name: "아이폰", Brand: "Apple", Price: 1000000, Mall: []string{"쿠팡", "11번가"}, Reviews: provider.ProductReviews{Count: 400, Rating: 4.5}},
		{Name: "갤럭시", Brand: "Samsung", Price: 1100000, Mall: []string{"쿠팡", "11번가"}, Reviews: provider.ProductReviews{Count: 300, Rating: 4.6}},
	}

	composite, source := MarketShares(products, nil)
	assert.Equal(t, ShareSourceComposite, source)
	assert.InDelta(t, 100, composite["아이폰"]+composite["갤럭시"], 1e-6)
	assert.Greater(t, composite["아이폰"], composite["갤럭시"])

	anchored, source := MarketShares(products, &provider.ShareData{Shares: map[string]float64{"apple": 60, "Samsung": 40}})
	assert.Equal(t, ShareSourceStatCounter, source)
	assert.InDelta(t, 60, anchored["아이폰"], 1e-6)
	assert.InDelta(t, 40, anchored["갤럭시"], 1e-6)
}

func TestRuleSWOTAndStrategy(t *testing.T) {
	products := []provider.Product{
		{Name: "우리 제품", Price: 90000, Mall: []string{"쿠팡"}, Reviews: provider.ProductReviews{Count: 50, Rating: 4.8}},
		{Name: "경쟁 제품", Price: 110000, Mall: []string{"쿠팡", "11번가"}, Reviews: provider.ProductReviews{Count: 500, Rating: 4.2}},
	}
	pc := ComparePrices(products)
	swot := RuleSWOT(products, pc, map[string]float64{"우리 제품": 30, "경쟁 제품": 70})

	assert.Equal(t, []string{
		"경쟁사 평균 대비 18.2% 낮은 가격 (90,000원)",
		"비교 제품 중 가장 높은 평점 4.8",
	}, swot.Strengths)
	assert.Equal(t, []string{
		"경쟁사 대비 적은 유통 채널 1개",
		"경쟁 제품보다 적은 리뷰 50개",
		"추정 점유율 30.0%로 비교군 평균 미만",
	}, swot.Weaknesses)
	assert.Equal(t, "가격 경쟁력을 앞세운 가성비 캠페인 전개", swot.Opportunities[1])
	assert.Equal(t, "경쟁 제품의 가격 인하 가능성 (현재 110,000원)", swot.Threats[0])

	strategy := RuleStrategy("우리 제품", swot)
	assert.True(t, strings.HasPrefix(strategy, "## 우리 제품 차별화 전략"))
	assert.Contains(t, strategy, "**W-T 전략**")

	empty := RuleSWOT(nil, PriceComparison{}, nil)
	assert.Equal(t, []string{"분석 불가"}, empty.Threats)
}

func TestCompetitorPipelineWithMockLLM(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskCompetitor, "", "아이폰 15와 갤럭시 S24 비교 분석해줘")
	require.True(t, res.Success, res.Errors)

	data, ok := res.ResultData.(*CompetitorResult)
	require.True(t, ok)
	assert.Equal(t, "아이폰 15", data.ProductInfo.Target)
	assert.Equal(t, "스마트폰", data.ProductInfo.Category)
	assert.Equal(t, 1, data.CompetitorCount)
	assert.Equal(t, ShareSourceComposite, data.ShareSource)
	assert.Equal(t, 1000000, data.Price.Target)
	assert.Equal(t, "최저가", data.Price.Position)
	assert.Equal(t, "경쟁사 평균 대비 4.8% 낮은 가격 (1,000,000원)", data.SWOT.Strengths[0])
	assert.Contains(t, data.Strategy, "## 아이폰 15 차별화 전략")

	assert.Contains(t, res.ReplyText, "**아이폰 15 경쟁사 분석 완료**")
	assert.Contains(t, res.ReplyText, "경쟁사: 갤럭시 S24")
	assert.Contains(t, res.ReplyText, "**가격:** 1,000,000원 (최저가, 경쟁사 평균 대비 -4.8%)")
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/report/competitor_report_"))
}

func TestCompetitorPipelineGuidance(t *testing.T) {
	env := newTestEnv(t, llm.NewMockClient())
	res := env.run(t, domain.TaskCompetitor, "", "안녕하세요")
	assert.False(t, res.Success)
	assert.Equal(t, "제품명을 명확히 지정해주세요. 예: '아이폰 15와 갤럭시 S24 비교 분석해줘'", res.ReplyText)
	assert.Equal(t, []string{"제품명을 찾을 수 없습니다."}, res.Errors)

	env.deps.Chains.Product = []string{"missing.tool"}
	res = env.run(t, domain.TaskCompetitor, "", "아이폰 15와 갤럭시 S24 비교 분석해줘")
	assert.False(t, res.Success)
	assert.Equal(t, "'아이폰 15'에 대한 데이터를 찾을 수 없습니다.", res.ReplyText)
	assert.Equal(t, []string{"경쟁사 데이터를 수집할 수 없습니다."}, res.Errors)
	assert.Empty(t, res.DownloadURL)
}
