package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/report"
	"github.com/xiaot623/gogo/marketing/internal/router"
)

// reviewFetchLimit caps the reviews collected for segment and review runs.
const reviewFetchLimit = 50

// promptReviewLimit caps the reviews quoted in one prompt.
const promptReviewLimit = 30

// ProductParams names the product of a segment or review run.
type ProductParams struct {
	ProductName string `json:"product_name"`
}

// Segment is one buyer group.
type Segment struct {
	Name              string  `json:"name"`
	Percentage        float64 `json:"percentage"`
	Characteristics   string  `json:"characteristics"`
	Demographics      string  `json:"demographics,omitempty"`
	Needs             string  `json:"needs,omitempty"`
	MarketingStrategy string  `json:"marketing_strategy,omitempty"`
}

// SegmentSet is the segmentation of a product's buyers.
type SegmentSet struct {
	TotalSegments   int       `json:"total_segments,omitempty"`
	Segments        []Segment `json:"segments"`
	OverallInsights string    `json:"overall_insights,omitempty"`
}

// SegmentResult is the persisted result_data of a segment run.
type SegmentResult struct {
	ProductName string      `json:"product_name"`
	NumSegments int         `json:"num_segments"`
	Segments    *SegmentSet `json:"segments"`
	ReviewCount int         `json:"review_count"`
	IsMock      bool        `json:"is_mock"`
}

type segmentAgent struct {
	*Deps
}

// NewSegment builds the segment pipeline.
func NewSegment(d *Deps) (router.Handler, error) {
	a := &segmentAgent{Deps: d}
	return pipeline.New(d.Runner, pipeline.Definition[ProductParams, *provider.ReviewData, *SegmentSet]{
		Task: domain.TaskSegment,
		Name: "세그먼트 분류",
		Extract: func(ctx context.Context, in *pipeline.Input) (ProductParams, error) {
			return a.extractReviewProduct(ctx, in, "에어팟 프로 구매자를 세그먼트로 분류해줘")
		},
		Fetch:   a.collectReviews,
		Analyze: a.analyze,
		Render:  a.render,
		Outcome: func(p ProductParams, data *provider.ReviewData, set *SegmentSet) pipeline.Outcome {
			return pipeline.Outcome{
				ProductName: p.ProductName,
				Data: &SegmentResult{
					ProductName: p.ProductName,
					NumSegments: len(set.Segments),
					Segments:    set,
					ReviewCount: len(data.Reviews),
					IsMock:      data.IsMock,
				},
			}
		},
		Compose: a.compose,
	})
}

// extractReviewProduct resolves the product for review-based tasks.
func (d *Deps) extractReviewProduct(ctx context.Context, in *pipeline.Input, example string) (ProductParams, error) {
	name := d.extractProduct(ctx, in)
	if name == "" {
		return ProductParams{}, domain.Guidance(
			fmt.Sprintf("제품명을 명확히 지정해주세요. 예: '%s'", example),
			"제품명을 찾을 수 없습니다.",
		)
	}
	return ProductParams{ProductName: name}, nil
}

// collectReviews fetches reviews, turning an exhausted chain into guidance.
func (d *Deps) collectReviews(ctx context.Context, in *pipeline.Input, p ProductParams) (*provider.ReviewData, error) {
	data, err := d.fetchReviews(ctx, in, p.ProductName, reviewFetchLimit)
	if errors.Is(err, domain.ErrNoData) {
		return nil, domain.Guidance(
			fmt.Sprintf("'%s'에 대한 데이터를 찾을 수 없습니다. 다른 제품을 시도해보세요.", p.ProductName),
			"리뷰 데이터를 수집할 수 없습니다.",
		)
	}
	return data, err
}

func quoteReviews(reviews []string) string {
	if len(reviews) > promptReviewLimit {
		reviews = reviews[:promptReviewLimit]
	}
	return strings.Join(reviews, "\n---\n")
}

func (a *segmentAgent) analyze(ctx context.Context, in *pipeline.Input, p ProductParams, data *provider.ReviewData) (*SegmentSet, error) {
	set, err := llm.DecodeStructured[SegmentSet](ctx, a.LLM, a.Model, llm.Prompt{
		System: "당신은 마케팅 전문가입니다.\n제품 리뷰 데이터를 분석하여 구매자를 의미 있는 세그먼트로 분류하세요.",
		User: fmt.Sprintf("다음은 '%s' 제품의 리뷰 데이터입니다:\n\n%s\n\n"+
			"위 리뷰를 분석하여 구매자를 3~5개의 세그먼트로 분류하고, 각 세그먼트의 특성과 마케팅 전략을 제안하세요.",
			p.ProductName, quoteReviews(data.Reviews)),
	})
	if err == nil && len(set.Segments) == 0 {
		err = fmt.Errorf("%w: no segments", domain.ErrAnalysisMalformed)
	}
	if err != nil {
		in.Fallback(domain.StageAnalyze, err)
		return FallbackSegments(p.ProductName), nil
	}
	set.TotalSegments = len(set.Segments)
	return &set, nil
}

// FallbackSegments is the fixed three-way split used when the LLM answer is unusable.
func FallbackSegments(product string) *SegmentSet {
	return &SegmentSet{
		TotalSegments: 3,
		Segments: []Segment{
			{
				Name:              "가성비 추구형",
				Percentage:        40,
				Characteristics:   "가격 대비 성능을 중시하는 실용주의 소비자",
				Demographics:      "20~30대, 학생 및 사회초년생",
				Needs:             "합리적인 가격, 기본 기능 충실",
				MarketingStrategy: "가성비 강조, 할인 프로모션 효과적",
			},
			{
				Name:              "프리미엄 지향형",
				Percentage:        35,
				Characteristics:   "브랜드 가치와 품질을 중시하는 소비자",
				Demographics:      "30~40대, 중산층 이상",
				Needs:             "브랜드 신뢰, 고급 기능, 디자인",
				MarketingStrategy: "프리미엄 이미지 강화, 차별화된 경험 제공",
			},
			{
				Name:              "얼리어답터형",
				Percentage:        25,
				Characteristics:   "신기술과 혁신을 추구하는 트렌드 세터",
				Demographics:      "20~30대, 기술 친화적",
				Needs:             "최신 기능, 독특한 경험",
				MarketingStrategy: "신제품 우선 공개, 커뮤니티 활용",
			},
		},
		OverallInsights: product + " 구매자는 크게 가성비, 프리미엄, 얼리어답터 세 그룹으로 나뉩니다.",
	}
}

func (a *segmentAgent) render(ctx context.Context, in *pipeline.Input, p ProductParams, data *provider.ReviewData, set *SegmentSet) (*report.Document, error) {
	doc := &report.Document{
		Title:    p.ProductName + " 구매자 세그먼트 분석",
		Subtitle: "온라인 리뷰 기반 고객 세그먼테이션",
		Summary: []report.KeyValue{
			{Label: "분석 리뷰 수", Value: fmt.Sprintf("%d개", len(data.Reviews))},
			{Label: "세그먼트 수", Value: fmt.Sprintf("%d개", len(set.Segments))},
			{Label: "데이터 출처", Value: data.Source},
		},
		Notice: "본 결과는 온라인 리뷰 데이터 기반 분석이며, 참고용으로만 사용하세요.",
	}
	table := &report.Table{Columns: []string{"세그먼트", "비중", "추정 인구통계"}}
	for _, s := range set.Segments {
		table.Rows = append(table.Rows, []string{s.Name, fmt.Sprintf("%.0f%%", s.Percentage), s.Demographics})
	}
	doc.Sections = append(doc.Sections, report.Section{Heading: "세그먼트 개요", Table: table})
	for i, s := range set.Segments {
		var bullets []string
		if s.Needs != "" {
			bullets = append(bullets, "니즈: "+s.Needs)
		}
		if s.MarketingStrategy != "" {
			bullets = append(bullets, "마케팅 전략: "+s.MarketingStrategy)
		}
		doc.Sections = append(doc.Sections, report.Section{
			Heading: fmt.Sprintf("%d. %s (%.0f%%)", i+1, s.Name, s.Percentage),
			Text:    s.Characteristics,
			Bullets: bullets,
		})
	}
	if set.OverallInsights != "" {
		doc.Sections = append(doc.Sections, report.Section{Heading: "전체 인사이트", Text: set.OverallInsights})
	}
	return doc, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (a *segmentAgent) compose(in *pipeline.Input, p ProductParams, data *provider.ReviewData, set *SegmentSet, art *pipeline.Artifact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 **%s 구매자 세그먼트 분석 완료**\n\n", p.ProductName)
	fmt.Fprintf(&sb, "총 %d개의 리뷰를 분석하여 %d개 세그먼트를 발견했습니다.\n\n", len(data.Reviews), len(set.Segments))
	sb.WriteString("**세그먼트 개요:**\n")
	for i, s := range set.Segments {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("세그먼트 %d", i+1)
		}
		chars := s.Characteristics
		if chars == "" {
			chars = "특성 없음"
		}
		fmt.Fprintf(&sb, "\n%d. **%s** (%.0f%%)\n", i+1, name, s.Percentage)
		fmt.Fprintf(&sb, "   - %s\n", truncateRunes(chars, 100))
	}
	if set.OverallInsights != "" {
		fmt.Fprintf(&sb, "\n**전체 인사이트:**\n%s\n", truncateRunes(set.OverallInsights, 200))
	}
	if art != nil {
		sb.WriteString("\n\n📄 **상세 분석 리포트**가 생성되었습니다.\n")
		sb.WriteString("리포트를 다운로드하여 세그먼트별 특성과 마케팅 전략을 확인하세요.\n")
		sb.WriteString(art.DownloadURL + "\n")
	}
	if data.IsMock {
		sb.WriteString("\n※ 실제 리뷰 데이터를 가져오지 못해 예시 데이터로 분석했습니다.")
	}
	sb.WriteString("\n\n⚠️ 본 결과는 온라인 리뷰 데이터 기반 분석이며, 참고용으로만 사용하세요.")
	return sb.String()
}
