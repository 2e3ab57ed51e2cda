package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/report"
	"github.com/xiaot623/gogo/marketing/internal/router"
)

// SentimentDistribution counts reviews per polarity.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// ReviewSentiment is one scored review.
type ReviewSentiment struct {
	Review    string  `json:"review"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

// Sentiment is the sentiment analysis of a review set.
type Sentiment struct {
	TotalReviews          int                   `json:"total_reviews"`
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
	AverageScore          float64               `json:"average_score"`
	SentimentByReview     []ReviewSentiment     `json:"sentiment_by_review,omitempty"`
	OverallInsights       string                `json:"overall_insights,omitempty"`
}

type improvementReply struct {
	ImprovementAreas []string `json:"improvement_areas"`
}

// ReviewAnalysis is the analyzed review set.
type ReviewAnalysis struct {
	Sentiment    Sentiment `json:"sentiment"`
	Topics       []string  `json:"topics"`
	Summary      string    `json:"summary"`
	Improvements []string  `json:"improvements"`
}

// ReviewResult is the persisted result_data of a review run.
type ReviewResult struct {
	ProductName           string                `json:"product_name"`
	TotalReviews          int                   `json:"total_reviews"`
	SentimentDistribution SentimentDistribution `json:"sentiment_distribution"`
	AverageScore          float64               `json:"average_score"`
	OverallInsights       string                `json:"overall_insights"`
	Topics                []string              `json:"topics"`
	Summary               string                `json:"summary"`
	Improvements          []string              `json:"improvements"`
	IsMock                bool                  `json:"is_mock"`
}

type reviewAgent struct {
	*Deps
}

// NewReview builds the review pipeline.
func NewReview(d *Deps) (router.Handler, error) {
	a := &reviewAgent{Deps: d}
	return pipeline.New(d.Runner, pipeline.Definition[ProductParams, *provider.ReviewData, *ReviewAnalysis]{
		Task: domain.TaskReview,
		Name: "리뷰 감성 분석",
		Extract: func(ctx context.Context, in *pipeline.Input) (ProductParams, error) {
			return a.extractReviewProduct(ctx, in, "에어팟 프로 구매자들의 리뷰 감성 분석을 진행해줘")
		},
		Fetch:   a.collectReviews,
		Analyze: a.analyze,
		Render:  a.render,
		Outcome: func(p ProductParams, data *provider.ReviewData, an *ReviewAnalysis) pipeline.Outcome {
			return pipeline.Outcome{
				ProductName: p.ProductName,
				Data: &ReviewResult{
					ProductName:           p.ProductName,
					TotalReviews:          an.Sentiment.TotalReviews,
					SentimentDistribution: an.Sentiment.SentimentDistribution,
					AverageScore:          an.Sentiment.AverageScore,
					OverallInsights:       an.Sentiment.OverallInsights,
					Topics:                an.Topics,
					Summary:               an.Summary,
					Improvements:          an.Improvements,
					IsMock:                data.IsMock,
				},
			}
		},
		Compose: a.compose,
	})
}

const reviewSummaryFailed = "리뷰 요약을 생성하는 데 실패했습니다."

func (a *reviewAgent) analyze(ctx context.Context, in *pipeline.Input, p ProductParams, data *provider.ReviewData) (*ReviewAnalysis, error) {
	quoted := quoteReviews(data.Reviews)
	an := &ReviewAnalysis{Topics: ReviewTopics(data.Reviews, 5)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := llm.DecodeStructured[Sentiment](gctx, a.LLM, a.Model, llm.Prompt{
			System: "당신은 시장 분석 전문가이며, 그 중에서도 뛰어난 구매자 리뷰 감성 분석가입니다.\n" +
				"주어진 제품 리뷰 데이터를 통해 구매자의 리뷰 감성을 분석하세요.\n" +
				"리뷰별로 긍정, 부정, 중립으로 분류하고, 전체적인 감성 분포와 평균 점수를 계산하세요.\n" +
				"또한, 각 리뷰에 대한 감성 점수(0~1)도 계산하세요.",
			User: fmt.Sprintf("다음은 %s 제품에 대한 리뷰 데이터입니다:\n\n%s\n\n"+
				"위 리뷰를 분석하여 감성 분포와 평균 점수를 계산하고, 각 리뷰별 감성 및 점수를 평가하세요.", p.ProductName, quoted),
		})
		if err != nil {
			in.Fallback(domain.StageAnalyze, fmt.Errorf("sentiment: %w", err))
			an.Sentiment = FallbackSentiment(p.ProductName)
			return nil
		}
		an.Sentiment = s
		return nil
	})
	g.Go(func() error {
		summary, err := a.completeText(gctx, llm.Prompt{
			System: "다음은 특정 제품에 대한 구매자 리뷰 데이터입니다.\n" +
				"주어진 제품 리뷰 데이터를 3~5가지 주요 포인트로 요약하세요.\n간결하고 명확하게 작성하세요.\n" +
				"긍정적인 부분과 부정적인 부분, 전반적인 반응(긍정적/부정적)을 반드시 포함하세요.\n\n" +
				"리뷰 요약:\n- 전반적으로 긍정적인 평가\n- 배송 속도에 대한 칭찬 많음\n- 일부 품질 문제 지적\n- 가격 대비 만족도 높음",
			User: fmt.Sprintf("다음은 %s 제품에 대한 리뷰 데이터입니다:\n\n%s\n\n위 리뷰를 분석하여 주요 포인트로 요약하세요.", p.ProductName, quoted),
		})
		if err != nil {
			in.Fallback(domain.StageAnalyze, fmt.Errorf("summary: %w", err))
			an.Summary = lexiconSummary(data.Reviews)
			return nil
		}
		an.Summary = summary
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sentimentJSON, _ := json.MarshalIndent(an.Sentiment, "", "  ")
	imp, err := llm.DecodeStructured[improvementReply](ctx, a.LLM, a.Model, llm.Prompt{
		System: "당신은 고객 경험 개선 전문가입니다.\n" +
			"주어진 리뷰 감성 분석 결과를 바탕으로 제품 및 서비스의 개선이 필요한 영역을 도출하세요.\n" +
			"각 개선점은 구체적이고 실행 가능한 형태로 작성하세요.\n1~5개의 주요 개선점을 제안하세요.",
		User: "다음은 제품 리뷰 감성 분석 결과입니다:\n" + string(sentimentJSON) +
			"\n위 결과를 분석하여 제품 및 서비스의 개선이 필요한 영역을 도출하세요.",
	})
	if err != nil || len(imp.ImprovementAreas) == 0 {
		in.Fallback(domain.StageAnalyze, err)
		an.Improvements = LexiconImprovements(data.Reviews)
	} else {
		an.Improvements = imp.ImprovementAreas
	}
	return an, nil
}

// FallbackSentiment is the empty analysis used when the LLM answer is unusable.
func FallbackSentiment(product string) Sentiment {
	return Sentiment{
		OverallInsights: product + "에 대한 리뷰 데이터가 충분하지 않아 감성 분석을 수행할 수 없습니다.",
	}
}

type reviewTopic struct {
	name     string
	words    []string
	negative []string
	advice   string
}

var reviewLexicon = []reviewTopic{
	{"배송", []string{"배송", "택배", "도착"}, []string{"늦", "지연", "파손"}, "배송 지연과 파손을 줄이기 위한 물류 관리 강화"},
	{"품질", []string{"품질", "마감", "불량", "만듦새"}, []string{"불량", "별로", "아쉽", "문제"}, "품질 관리 및 불량 검수 강화"},
	{"가격", []string{"가격", "가성비", "비싸", "저렴", "할인"}, []string{"비싸", "부담"}, "가격 대비 가치 전달 또는 프로모션 검토"},
	{"디자인", []string{"디자인", "색상", "예쁘", "외관"}, []string{"투박", "촌스", "아쉽"}, "디자인 및 색상 옵션 다양화"},
	{"내구성", []string{"내구", "고장", "튼튼", "망가"}, []string{"고장", "망가", "약하"}, "내구성 개선과 보증 정책 안내"},
	{"배터리", []string{"배터리", "충전", "사용시간"}, []string{"빨리 닳", "부족", "짧"}, "배터리 사용 시간 개선"},
	{"음질", []string{"음질", "소리", "노이즈", "통화"}, []string{"잡음", "끊", "작"}, "음질과 연결 안정성 개선"},
	{"착용감", []string{"착용", "귀", "무게", "편하"}, []string{"아프", "불편", "무겁"}, "착용감 개선을 위한 사이즈 및 무게 조정"},
	{"서비스", []string{"서비스", "as", "a/s", "고객센터", "응대"}, []string{"불친절", "느리", "답답"}, "고객 서비스 응답 속도 개선"},
	{"포장", []string{"포장", "박스", "패키지"}, []string{"찌그", "허술", "파손"}, "포장 상태 점검"},
}

type topicCount struct {
	topic    reviewTopic
	mentions int
	negative int
}

func tallyTopics(reviews []string) []topicCount {
	counts := make([]topicCount, len(reviewLexicon))
	for i, t := range reviewLexicon {
		counts[i].topic = t
	}
	for _, r := range reviews {
		lower := strings.ToLower(r)
		for i, t := range reviewLexicon {
			if !containsAny(lower, t.words) {
				continue
			}
			counts[i].mentions++
			if containsAny(lower, t.negative) {
				counts[i].negative++
			}
		}
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].mentions > counts[j].mentions })
	return counts
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ReviewTopics returns up to n lexicon topics ordered by how many reviews mention them.
func ReviewTopics(reviews []string, n int) []string {
	topics := []string{}
	for _, c := range tallyTopics(reviews) {
		if c.mentions == 0 || len(topics) == n {
			break
		}
		topics = append(topics, c.topic.name)
	}
	return topics
}

// LexiconImprovements lists advice for topics that drew complaints.
func LexiconImprovements(reviews []string) []string {
	out := []string{}
	counts := tallyTopics(reviews)
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].negative > counts[j].negative })
	for _, c := range counts {
		if c.negative == 0 || len(out) == 5 {
			break
		}
		out = append(out, c.topic.advice)
	}
	if len(out) == 0 {
		out = append(out, "현재 리뷰에서 두드러진 불만은 없으므로 만족 요인을 마케팅 메시지로 활용")
	}
	return out
}

func lexiconSummary(reviews []string) string {
	counts := tallyTopics(reviews)
	var lines []string
	for _, c := range counts {
		if c.mentions == 0 || len(lines) == 4 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s 언급 %d건 (불만 %d건)", c.topic.name, c.mentions, c.negative))
	}
	if len(lines) == 0 {
		return reviewSummaryFailed
	}
	return "리뷰 요약:\n" + strings.Join(lines, "\n")
}

func (a *reviewAgent) render(ctx context.Context, in *pipeline.Input, p ProductParams, data *provider.ReviewData, an *ReviewAnalysis) (*report.Document, error) {
	s := an.Sentiment
	doc := &report.Document{
		Title:    p.ProductName + " 리뷰 감성 분석",
		Subtitle: "구매자 리뷰 기반 감성 및 토픽 분석",
		Summary: []report.KeyValue{
			{Label: "전체 리뷰 수", Value: fmt.Sprintf("%d", s.TotalReviews)},
			{Label: "긍정 / 부정 / 중립", Value: fmt.Sprintf("%d / %d / %d", s.SentimentDistribution.Positive, s.SentimentDistribution.Negative, s.SentimentDistribution.Neutral)},
			{Label: "평균 점수", Value: fmt.Sprintf("%.2f", s.AverageScore)},
			{Label: "데이터 출처", Value: data.Source},
		},
		Sections: []report.Section{
			{Heading: "주요 토픽", Bullets: an.Topics},
			{Heading: "리뷰 요약", Markdown: an.Summary},
			{Heading: "전체 인사이트", Text: s.OverallInsights},
			{Heading: "개선이 필요한 영역", Bullets: an.Improvements},
		},
		Notice: "본 결과는 온라인 리뷰 데이터 기반 분석이며, 참고용으로만 사용하세요.",
	}
	if len(s.SentimentByReview) > 0 {
		table := &report.Table{Columns: []string{"리뷰", "감성", "점수"}}
		for i, r := range s.SentimentByReview {
			if i == 10 {
				break
			}
			table.Rows = append(table.Rows, []string{truncateRunes(r.Review, 60), r.Sentiment, fmt.Sprintf("%.2f", r.Score)})
		}
		doc.Sections = append(doc.Sections, report.Section{Heading: "리뷰별 감성", Table: table})
	}
	return doc, nil
}

func (a *reviewAgent) compose(in *pipeline.Input, p ProductParams, data *provider.ReviewData, an *ReviewAnalysis, art *pipeline.Artifact) string {
	s := an.Sentiment
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ **%s 구매자 리뷰 감성 분석 완료**\n\n", p.ProductName)
	sb.WriteString("📊 **감성 분석 결과:**\n")
	fmt.Fprintf(&sb, "전체 리뷰 수: %d\n", s.TotalReviews)
	fmt.Fprintf(&sb, "긍정 리뷰 수: %d\n", s.SentimentDistribution.Positive)
	fmt.Fprintf(&sb, "부정 리뷰 수: %d\n", s.SentimentDistribution.Negative)
	fmt.Fprintf(&sb, "중립 리뷰 수: %d\n", s.SentimentDistribution.Neutral)
	fmt.Fprintf(&sb, "평균 점수: %.2f\n\n", s.AverageScore)
	fmt.Fprintf(&sb, "📖 **주요 토픽:**\n%s\n\n", strings.Join(an.Topics, ", "))
	fmt.Fprintf(&sb, "✒️ **리뷰 요약:**\n%s\n\n", an.Summary)
	fmt.Fprintf(&sb, "👁️ **전체 인사이트:**\n%s\n\n", s.OverallInsights)
	sb.WriteString("🛠️ **개선이 필요한 영역:**\n- ")
	sb.WriteString(strings.Join(an.Improvements, "\n- "))
	if art != nil {
		fmt.Fprintf(&sb, "\n\n📄 [리뷰 분석 리포트 다운로드](%s)", art.DownloadURL)
	}
	if data.IsMock {
		sb.WriteString("\n\n※ 실제 리뷰 데이터를 가져오지 못해 예시 데이터로 분석했습니다.")
	}
	return sb.String()
}
