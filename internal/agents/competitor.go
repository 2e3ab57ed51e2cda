package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
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

const maxCompetitors = 5

// CompetitorParams names the products under comparison.
type CompetitorParams struct {
	Target      string   `json:"target"`
	Competitors []string `json:"competitors"`
	Category    string   `json:"category,omitempty"`
}

// CompetitorData is the fetched listings, target first.
type CompetitorData struct {
	Products []provider.Product
	Share    *provider.ShareData
}

// PriceComparison places the target's price among the listings.
type PriceComparison struct {
	Target        int      `json:"target"`
	Min           int      `json:"min"`
	Max           int      `json:"max"`
	Average       int      `json:"average"`
	CompetitorAvg int      `json:"competitor_avg"`
	DiffPct       *float64 `json:"diff_pct"`
	Position      string   `json:"position"`
}

// BenchmarkScore is the 0-100 score of one product.
type BenchmarkScore struct {
	PriceScore float64 `json:"price_score"`
	BrandScore float64 `json:"brand_score"`
	TotalScore float64 `json:"total_score"`
}

// SWOT is a strengths/weaknesses/opportunities/threats analysis.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// CompetitorAnalysis is the analyzed comparison.
type CompetitorAnalysis struct {
	Price        PriceComparison           `json:"price_comparison"`
	MarketShares map[string]float64        `json:"market_shares"`
	ShareSource  string                    `json:"share_source"`
	Benchmark    map[string]BenchmarkScore `json:"benchmark"`
	SWOT         SWOT                      `json:"swot"`
	Strategy     string                    `json:"strategy"`
}

// CompetitorResult is the persisted result_data of a competitor run.
type CompetitorResult struct {
	ProductInfo     CompetitorParams   `json:"product_info"`
	Products        []provider.Product `json:"products"`
	CompetitorCount int                `json:"competitor_count"`
	*CompetitorAnalysis
}

type competitorAgent struct {
	*Deps
}

// NewCompetitor builds the competitor pipeline. Its report is the deliverable,
// so a render failure fails the run.
func NewCompetitor(d *Deps) (router.Handler, error) {
	a := &competitorAgent{Deps: d}
	return pipeline.New(d.Runner, pipeline.Definition[CompetitorParams, *CompetitorData, *CompetitorAnalysis]{
		Task:             domain.TaskCompetitor,
		Name:             "경쟁사 분석",
		Extract:          a.extract,
		Fetch:            a.fetch,
		Analyze:          a.analyze,
		Render:           a.render,
		ArtifactRequired: true,
		Outcome: func(p CompetitorParams, data *CompetitorData, an *CompetitorAnalysis) pipeline.Outcome {
			return pipeline.Outcome{
				ProductName: p.Target,
				Data: &CompetitorResult{
					ProductInfo:        p,
					Products:           data.Products,
					CompetitorCount:    len(data.Products) - 1,
					CompetitorAnalysis: an,
				},
			}
		},
		Compose: a.compose,
	})
}

var (
	vsRule      = regexp.MustCompile(`(?i)^(.+?)\s*(?:\bvs\.?|대)\s+(.+?)(?:\s*(?:비교|분석|경쟁).*)?$`)
	withRule    = regexp.MustCompile(`^(.+?)(?:와|과|하고|랑|이랑)\s+(.+?)\s*(?:을|를)?\s*(?:비교|대결|차이)`)
	rivalRule   = regexp.MustCompile(`^(.+?)\s*(?:의\s*)?경쟁(?:사|제품|상품)`)
	listSplit   = regexp.MustCompile(`(?i)\s*(?:,|\bvs\b\.?|그리고|및)\s*`)
	nameTrailer = regexp.MustCompile(`\s*(?:제품|상품)?\s*(?:을|를)?$`)
)

// ParseCompetitorRequest applies the comparison phrase rules. ok is false
// when no rule finds a target.
func ParseCompetitorRequest(message string) (CompetitorParams, bool) {
	text := strings.TrimSpace(message)
	var target string
	var rest string
	if m := vsRule.FindStringSubmatch(text); m != nil {
		target, rest = m[1], m[2]
	} else if m := withRule.FindStringSubmatch(text); m != nil {
		target, rest = m[1], m[2]
	} else if m := rivalRule.FindStringSubmatch(text); m != nil {
		target = m[1]
	}
	target = cleanProductName(target)
	if target == "" {
		return CompetitorParams{}, false
	}

	p := CompetitorParams{Target: target, Competitors: []string{}}
	for _, part := range listSplit.Split(rest, -1) {
		if name := cleanProductName(part); name != "" && name != target && !containsString(p.Competitors, name) {
			p.Competitors = append(p.Competitors, name)
		}
	}
	if len(p.Competitors) > maxCompetitors {
		p.Competitors = p.Competitors[:maxCompetitors]
	}
	return p, true
}

func cleanProductName(s string) string {
	s = nameTrailer.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Trim(s, ` "'“”‘’`)
	if len([]rune(s)) < 2 {
		return ""
	}
	return s
}

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"태블릿", []string{"아이패드", "ipad", "갤럭시탭", "galaxy tab", "탭", "tab", "태블릿", "tablet"}},
	{"스마트폰", []string{"아이폰", "iphone", "갤럭시", "galaxy", "샤오미", "xiaomi", "폰", "phone"}},
	{"노트북", []string{"맥북", "macbook", "그램", "gram", "노트북", "laptop", "프레스티지"}},
}

// ClassifyCategory is the keyword classifier used when no category is given.
// Tablets are checked first since their names overlap with phones.
func ClassifyCategory(name string) string {
	lower := strings.ToLower(name)
	for _, c := range categoryKeywords {
		if containsAny(lower, c.words) {
			return c.category
		}
	}
	return "기타"
}

func (a *competitorAgent) extract(ctx context.Context, in *pipeline.Input) (CompetitorParams, error) {
	p, ok := ParseCompetitorRequest(in.Message)
	if !ok {
		parsed, err := llm.DecodeStructured[CompetitorParams](ctx, a.LLM, a.Model, llm.Prompt{
			System: "당신은 제품명 추출 전문가입니다.\n사용자 메시지에서 다음을 추출하세요:\n" +
				"1. 우리 제품명 (첫 번째로 언급된 제품)\n2. 경쟁사 제품명 리스트 (나머지 제품들, 1~5개)\n3. 제품 카테고리 (추론)\n\n" +
				"예시:\n- 입력: \"아이폰 15 프로와 갤럭시 S24 울트라 비교\"\n" +
				"- 출력: {\"target\": \"아이폰 15 프로\", \"competitors\": [\"갤럭시 S24 울트라\"], \"category\": \"스마트폰\"}",
			User: in.Message,
		})
		if err != nil {
			in.Fallback(domain.StageExtract, err)
		} else if t := strings.TrimSpace(parsed.Target); t != "" {
			parsed.Target = t
			if parsed.Competitors == nil {
				parsed.Competitors = []string{}
			}
			if len(parsed.Competitors) > maxCompetitors {
				parsed.Competitors = parsed.Competitors[:maxCompetitors]
			}
			p, ok = parsed, true
		}
	}
	if !ok {
		return CompetitorParams{}, domain.Guidance(
			"제품명을 명확히 지정해주세요. 예: '아이폰 15와 갤럭시 S24 비교 분석해줘'",
			"제품명을 찾을 수 없습니다.",
		)
	}
	if p.Category == "" || p.Category == "일반" {
		p.Category = ClassifyCategory(p.Target)
	}
	return p, nil
}

// fetch looks up every product concurrently. A missing competitor is
// dropped; a missing target ends the run with guidance.
func (a *competitorAgent) fetch(ctx context.Context, in *pipeline.Input, p CompetitorParams) (*CompetitorData, error) {
	names := append([]string{p.Target}, p.Competitors...)
	found := make([]*provider.Product, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(slotConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			prod, err := a.fetchProduct(gctx, provider.ProductQuery{Name: name, Category: p.Category, Index: i})
			if err != nil {
				in.Logger().Warn().Str("product", name).Err(err).Msg("product lookup failed")
				return nil
			}
			if prod.Name == "" {
				prod.Name = name
			}
			found[i] = prod
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if found[0] == nil {
		return nil, domain.Guidance(
			fmt.Sprintf("'%s'에 대한 데이터를 찾을 수 없습니다.", p.Target),
			"경쟁사 데이터를 수집할 수 없습니다.",
		)
	}

	data := &CompetitorData{}
	for _, prod := range found {
		if prod != nil {
			data.Products = append(data.Products, *prod)
		}
	}
	data.Share = a.fetchShare(ctx, in)
	return data, nil
}

func (a *competitorAgent) analyze(ctx context.Context, in *pipeline.Input, p CompetitorParams, data *CompetitorData) (*CompetitorAnalysis, error) {
	an := &CompetitorAnalysis{
		Price:     ComparePrices(data.Products),
		Benchmark: BenchmarkScores(data.Products),
	}
	an.MarketShares, an.ShareSource = MarketShares(data.Products, data.Share)

	swot, err := llm.DecodeStructured[SWOT](ctx, a.LLM, a.Model, llm.Prompt{
		System: "당신은 전자상거래 제품의 마케팅 전략 컨설턴트입니다.\n아래에 [우리상품]과 [경쟁상품]의 데이터를 제공합니다.\n\n" +
			"위 데이터를 '근거로만' SWOT을 작성하세요.\n" +
			"- Strengths: 3개 (우리의 내부 강점만, 위 데이터에서 찾을 것)\n" +
			"- Weaknesses: 3개 (가격/트렌드/채널에서 경쟁사보다 불리한 점만)\n" +
			"- Opportunities: 2개 (시장/트렌드/채널 확장 근거로만)\n" +
			"- Threats: 2개 (경쟁사 활동이나 가격 인하 가능성으로만)\n" +
			"- 데이터에 없는 일반적 표현('브랜드 인지도 강화 필요')은 쓰지 말 것.",
		User: competitorBriefing(data.Products, an),
	})
	if err == nil && len(swot.Strengths)+len(swot.Weaknesses) == 0 {
		err = fmt.Errorf("%w: empty swot", domain.ErrAnalysisMalformed)
	}
	if err != nil {
		in.Fallback(domain.StageAnalyze, fmt.Errorf("swot: %w", err))
		swot = RuleSWOT(data.Products, an.Price, an.MarketShares)
	}
	an.SWOT = swot

	swotJSON, _ := json.MarshalIndent(swot, "", "  ")
	strategy, err := a.completeText(ctx, llm.Prompt{
		System: "당신은 마케팅 전략 컨설턴트입니다.\nSWOT 분석 결과를 기반으로 차별화 전략을 제안하세요.\n\n" +
			"전략 구조:\n1. S-O 전략: 강점으로 기회 활용\n2. W-O 전략: 약점 보완하여 기회 잡기\n" +
			"3. S-T 전략: 강점으로 위협 대응\n4. W-T 전략: 약점과 위협 최소화\n\n" +
			"각 전략당 최소 1개, 총 최소 3개의 구체적 액션 아이템 제안.\n\n" +
			"일반적인 표현(\"브랜드 인지도 강화\")보다는 구체적 액션(\"20~30대 여성층 타겟 인스타그램 광고 집행\") 선호.",
		User: "SWOT 분석 결과:\n" + string(swotJSON),
	})
	if err != nil {
		in.Fallback(domain.StageAnalyze, err)
		strategy = RuleStrategy(p.Target, swot)
	}
	an.Strategy = strategy
	return an, nil
}

func competitorBriefing(products []provider.Product, an *CompetitorAnalysis) string {
	var sb strings.Builder
	for i, prod := range products {
		if i == 0 {
			sb.WriteString("[우리상품]\n")
			fmt.Fprintf(&sb, "- 이름: %s\n", prod.Name)
		} else {
			fmt.Fprintf(&sb, "\n[경쟁상품 %d]\n- 이름: %s\n", i, prod.Name)
		}
		fmt.Fprintf(&sb, "- 브랜드: %s\n- 가격: %s\n- 유통채널: %s\n- 리뷰: %d개 (평점 %.1f)\n",
			prod.Brand, formatWon(prod.Price), strings.Join(prod.Mall, ", "), prod.Reviews.Count, prod.Reviews.Rating)
		if share, ok := an.MarketShares[prod.Name]; ok {
			fmt.Fprintf(&sb, "- 추정 점유율: %.1f%%\n", share)
		}
	}
	priceJSON, _ := json.MarshalIndent(an.Price, "", "  ")
	sb.WriteString("\n[비교 분석 결과]\n")
	sb.Write(priceJSON)
	return sb.String()
}

// ComparePrices computes the price spread. Listings without a price are ignored.
func ComparePrices(products []provider.Product) PriceComparison {
	var pc PriceComparison
	if len(products) == 0 {
		return pc
	}
	pc.Target = products[0].Price

	var all, rivals []float64
	for i, prod := range products {
		if prod.Price <= 0 {
			continue
		}
		all = append(all, float64(prod.Price))
		if i > 0 {
			rivals = append(rivals, float64(prod.Price))
		}
		if pc.Min == 0 || prod.Price < pc.Min {
			pc.Min = prod.Price
		}
		if prod.Price > pc.Max {
			pc.Max = prod.Price
		}
	}
	if len(all) > 0 {
		pc.Average = int(math.Round(mean(all)))
	}
	if len(rivals) > 0 {
		pc.CompetitorAvg = int(math.Round(mean(rivals)))
	}

	switch {
	case pc.Target <= 0:
		pc.Position = "가격 정보 없음"
	case len(rivals) == 0:
		pc.Position = "단독 분석"
	default:
		diff := math.Round((float64(pc.Target)-float64(pc.CompetitorAvg))/float64(pc.CompetitorAvg)*1000) / 10
		pc.DiffPct = &diff
		switch {
		case pc.Target == pc.Min:
			pc.Position = "최저가"
		case pc.Target == pc.Max:
			pc.Position = "최고가"
		case pc.Target < pc.CompetitorAvg:
			pc.Position = "경쟁사 평균 이하"
		default:
			pc.Position = "경쟁사 평균 이상"
		}
	}
	return pc
}

var brandWeights = map[string]float64{
	"apple": 95, "samsung": 90, "삼성": 90, "삼성전자": 90, "lg": 85,
	"xiaomi": 75, "샤오미": 75, "oppo": 70, "vivo": 70,
}

func brandWeight(brand string) float64 {
	if w, ok := brandWeights[strings.ToLower(brand)]; ok {
		return w
	}
	return 50
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// BenchmarkScores scores price competitiveness against the cheapest listing
// and brand power, averaging the two.
func BenchmarkScores(products []provider.Product) map[string]BenchmarkScore {
	out := make(map[string]BenchmarkScore, len(products))
	minPrice := 0
	for _, prod := range products {
		if prod.Price > 0 && (minPrice == 0 || prod.Price < minPrice) {
			minPrice = prod.Price
		}
	}
	for _, prod := range products {
		var s BenchmarkScore
		if prod.Price > 0 {
			s.PriceScore = round1(float64(minPrice) / float64(prod.Price) * 100)
		}
		s.BrandScore = brandWeight(prod.Brand)
		s.TotalScore = round1((s.PriceScore + s.BrandScore) / 2)
		out[prod.Name] = s
	}
	return out
}

// Share sources reported alongside MarketShares.
const (
	ShareSourceStatCounter = "statcounter"
	ShareSourceComposite   = "composite"
)

// MarketShares estimates each product's share in percent, summing to 100.
// With a vendor snapshot, the brand's share anchors the estimate and the
// listing's channels and rating adjust it by at most 2.5%; otherwise a
// composite of channels, brand, price and reviews is used.
func MarketShares(products []provider.Product, share *provider.ShareData) (map[string]float64, string) {
	out := make(map[string]float64, len(products))
	switch len(products) {
	case 0:
		return out, ""
	case 1:
		out[products[0].Name] = 100
		return out, ""
	}
	if share != nil && len(share.Shares) > 0 {
		return anchoredShares(products, share.Shares), ShareSourceStatCounter
	}
	return compositeShares(products), ShareSourceComposite
}

func lookupShare(brand string, shares map[string]float64) (float64, bool) {
	for k, v := range shares {
		if strings.EqualFold(k, brand) {
			return v, true
		}
	}
	return 0, false
}

func anchoredShares(products []provider.Product, shares map[string]float64) map[string]float64 {
	raw := make(map[string]float64, len(products))
	for _, prod := range products {
		base, ok := lookupShare(prod.Brand, shares)
		if !ok || base <= 0 {
			raw[prod.Name] = 1
			continue
		}
		mallScore := math.Min(float64(len(prod.Mall))/4, 1)
		ratingScore := 0.5
		if prod.Reviews.Rating > 0 {
			ratingScore = prod.Reviews.Rating / 5
		}
		adjustment := mallScore*0.5 + ratingScore*0.5 - 0.5
		raw[prod.Name] = math.Max(0.1, base*(1+adjustment*0.05))
	}
	return normalizeShares(products, raw)
}

func compositeShares(products []provider.Product) map[string]float64 {
	minPrice, maxPrice := 0, 0
	for _, prod := range products {
		if prod.Price <= 0 {
			continue
		}
		if minPrice == 0 || prod.Price < minPrice {
			minPrice = prod.Price
		}
		if prod.Price > maxPrice {
			maxPrice = prod.Price
		}
	}
	raw := make(map[string]float64, len(products))
	for _, prod := range products {
		malls := len(prod.Mall)
		if malls == 0 {
			malls = 1
		}
		mallWeight := math.Min(100, float64(malls)*25)
		priceScore := 0.0
		if prod.Price > 0 {
			if maxPrice > minPrice {
				priceScore = 100 * (1 - float64(prod.Price-minPrice)/float64(maxPrice-minPrice))
			} else {
				priceScore = 100
			}
		}
		position := math.Min(100, float64(prod.Reviews.Count)/10+prod.Reviews.Rating*10)
		raw[prod.Name] = mallWeight*0.3 + brandWeight(prod.Brand)*0.4 + priceScore*0.2 + position*0.1
	}
	return normalizeShares(products, raw)
}

// normalizeShares scales raw to 100, rounded to one decimal, putting the
// rounding remainder on the first product.
func normalizeShares(products []provider.Product, raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	total := 0.0
	for _, v := range raw {
		total += v
	}
	if total <= 0 {
		equal := round1(100 / float64(len(raw)))
		for k := range raw {
			out[k] = equal
		}
		return out
	}
	sum := 0.0
	for k, v := range raw {
		out[k] = round1(v / total * 100)
		sum += out[k]
	}
	first := products[0].Name
	out[first] = round1(out[first] + 100 - sum)
	return out
}

// RuleSWOT derives a SWOT from prices, ratings, channels and shares.
func RuleSWOT(products []provider.Product, pc PriceComparison, shares map[string]float64) SWOT {
	var s SWOT
	if len(products) == 0 {
		return SWOT{Strengths: []string{"분석 불가"}, Weaknesses: []string{"분석 불가"}, Opportunities: []string{"분석 불가"}, Threats: []string{"분석 불가"}}
	}
	target := products[0]
	rivals := products[1:]

	bestRating, mostMalls, mostReviews := true, true, true
	for _, r := range rivals {
		if r.Reviews.Rating > target.Reviews.Rating {
			bestRating = false
		}
		if len(r.Mall) > len(target.Mall) {
			mostMalls = false
		}
		if r.Reviews.Count > target.Reviews.Count {
			mostReviews = false
		}
	}

	if pc.DiffPct != nil && *pc.DiffPct < 0 {
		s.Strengths = append(s.Strengths, fmt.Sprintf("경쟁사 평균 대비 %.1f%% 낮은 가격 (%s)", -*pc.DiffPct, formatWon(pc.Target)))
	}
	if pc.DiffPct != nil && *pc.DiffPct > 0 {
		s.Weaknesses = append(s.Weaknesses, fmt.Sprintf("경쟁사 평균 대비 %.1f%% 높은 가격 (%s)", *pc.DiffPct, formatWon(pc.Target)))
	}
	if target.Reviews.Rating > 0 {
		if bestRating {
			s.Strengths = append(s.Strengths, fmt.Sprintf("비교 제품 중 가장 높은 평점 %.1f", target.Reviews.Rating))
		} else {
			s.Weaknesses = append(s.Weaknesses, fmt.Sprintf("경쟁 제품보다 낮은 평점 %.1f", target.Reviews.Rating))
		}
	}
	if len(target.Mall) > 0 {
		if mostMalls {
			s.Strengths = append(s.Strengths, fmt.Sprintf("%d개 유통 채널 확보 (%s)", len(target.Mall), strings.Join(target.Mall, ", ")))
		} else {
			s.Weaknesses = append(s.Weaknesses, fmt.Sprintf("경쟁사 대비 적은 유통 채널 %d개", len(target.Mall)))
		}
	}
	if target.Reviews.Count > 0 {
		if mostReviews {
			s.Strengths = append(s.Strengths, fmt.Sprintf("가장 많은 리뷰 %d개로 검증된 구매 후기", target.Reviews.Count))
		} else {
			s.Weaknesses = append(s.Weaknesses, fmt.Sprintf("경쟁 제품보다 적은 리뷰 %d개", target.Reviews.Count))
		}
	}
	if share, ok := shares[target.Name]; ok && len(products) > 1 {
		if share >= 100/float64(len(products)) {
			s.Strengths = append(s.Strengths, fmt.Sprintf("추정 점유율 %.1f%%로 비교군 평균 이상", share))
		} else {
			s.Weaknesses = append(s.Weaknesses, fmt.Sprintf("추정 점유율 %.1f%%로 비교군 평균 미만", share))
		}
	}

	s.Opportunities = append(s.Opportunities, "온라인 쇼핑 채널 확대를 통한 노출 증대")
	if pc.Position == "최고가" || pc.Position == "경쟁사 평균 이상" {
		s.Opportunities = append(s.Opportunities, "프리미엄 포지셔닝을 강화할 수 있는 기능·서비스 번들 구성")
	} else {
		s.Opportunities = append(s.Opportunities, "가격 경쟁력을 앞세운 가성비 캠페인 전개")
	}
	if len(rivals) > 0 {
		cheapest := rivals[0]
		for _, r := range rivals[1:] {
			if r.Price > 0 && (cheapest.Price <= 0 || r.Price < cheapest.Price) {
				cheapest = r
			}
		}
		s.Threats = append(s.Threats, fmt.Sprintf("%s의 가격 인하 가능성 (현재 %s)", cheapest.Name, formatWon(cheapest.Price)))
		s.Threats = append(s.Threats, "경쟁사의 프로모션 및 신제품 출시에 따른 수요 분산")
	} else {
		s.Threats = append(s.Threats, "비교 대상 미지정으로 경쟁 구도 파악이 제한적")
	}

	if len(s.Strengths) == 0 {
		s.Strengths = []string{"데이터상 뚜렷한 강점을 확인하지 못했습니다"}
	}
	if len(s.Weaknesses) == 0 {
		s.Weaknesses = []string{"데이터상 뚜렷한 약점을 확인하지 못했습니다"}
	}
	return s
}

// RuleStrategy pairs SWOT items into S-O, W-O, S-T and W-T actions.
func RuleStrategy(target string, s SWOT) string {
	first := func(items []string) string {
		if len(items) == 0 {
			return "-"
		}
		return items[0]
	}
	lines := []string{
		fmt.Sprintf("## %s 차별화 전략", target),
		"",
		fmt.Sprintf("1. **S-O 전략**: '%s' 강점을 '%s' 기회에 연결한 캠페인을 집행합니다.", first(s.Strengths), first(s.Opportunities)),
		fmt.Sprintf("2. **W-O 전략**: '%s' 약점을 보완하는 혜택을 설계해 '%s' 기회를 잡습니다.", first(s.Weaknesses), first(s.Opportunities)),
		fmt.Sprintf("3. **S-T 전략**: '%s' 강점을 앞세워 '%s' 위협에 대응합니다.", first(s.Strengths), first(s.Threats)),
		fmt.Sprintf("4. **W-T 전략**: '%s' 약점과 '%s' 위협을 최소화하도록 가격·채널 정책을 점검합니다.", first(s.Weaknesses), first(s.Threats)),
	}
	return strings.Join(lines, "\n")
}

func (a *competitorAgent) render(ctx context.Context, in *pipeline.Input, p CompetitorParams, data *CompetitorData, an *CompetitorAnalysis) (*report.Document, error) {
	doc := &report.Document{
		Title:    p.Target + " 경쟁사 분석",
		Subtitle: fmt.Sprintf("카테고리: %s", p.Category),
		Summary: []report.KeyValue{
			{Label: "비교 제품 수", Value: fmt.Sprintf("%d개", len(data.Products))},
			{Label: "가격 포지션", Value: an.Price.Position},
			{Label: "경쟁사 평균 대비", Value: formatPct(an.Price.DiffPct)},
		},
		Notice: "본 결과는 AI 기반 분석이며 참고용으로만 사용하세요.",
	}

	products := &report.Table{Columns: []string{"제품", "브랜드", "가격", "유통채널", "리뷰", "평점", "추정 점유율", "종합 점수", "출처"}}
	for _, prod := range data.Products {
		share := "-"
		if v, ok := an.MarketShares[prod.Name]; ok {
			share = fmt.Sprintf("%.1f%%", v)
		}
		products.Rows = append(products.Rows, []string{
			prod.Name,
			prod.Brand,
			formatWon(prod.Price),
			strings.Join(prod.Mall, ", "),
			fmt.Sprintf("%d", prod.Reviews.Count),
			fmt.Sprintf("%.1f", prod.Reviews.Rating),
			share,
			fmt.Sprintf("%.1f", an.Benchmark[prod.Name].TotalScore),
			prod.Source.Provider,
		})
	}
	doc.Sections = append(doc.Sections, report.Section{Heading: "제품 비교", Table: products})

	doc.Sections = append(doc.Sections, report.Section{
		Heading: "가격 비교",
		Bullets: []string{
			"우리 제품: " + formatWon(an.Price.Target),
			"최저가: " + formatWon(an.Price.Min),
			"최고가: " + formatWon(an.Price.Max),
			"경쟁사 평균: " + formatWon(an.Price.CompetitorAvg),
		},
	})
	if data.Share != nil {
		names := make([]string, 0, len(data.Share.Shares))
		for k := range data.Share.Shares {
			names = append(names, k)
		}
		sort.Slice(names, func(i, j int) bool { return data.Share.Shares[names[i]] > data.Share.Shares[names[j]] })
		table := &report.Table{Columns: []string{"브랜드", "점유율"}}
		for _, n := range names {
			table.Rows = append(table.Rows, []string{n, fmt.Sprintf("%.1f%%", data.Share.Shares[n])})
		}
		doc.Sections = append(doc.Sections, report.Section{
			Heading: "브랜드 점유율 (" + data.Share.Month + ")",
			Text:    "출처: " + data.Share.Source,
			Table:   table,
		})
	}
	doc.Sections = append(doc.Sections,
		report.Section{Heading: "강점 (Strengths)", Bullets: an.SWOT.Strengths},
		report.Section{Heading: "약점 (Weaknesses)", Bullets: an.SWOT.Weaknesses},
		report.Section{Heading: "기회 (Opportunities)", Bullets: an.SWOT.Opportunities},
		report.Section{Heading: "위협 (Threats)", Bullets: an.SWOT.Threats},
		report.Section{Heading: "차별화 전략", Markdown: an.Strategy},
	)
	return doc, nil
}

func (a *competitorAgent) compose(in *pipeline.Input, p CompetitorParams, data *CompetitorData, an *CompetitorAnalysis, art *pipeline.Artifact) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s 경쟁사 분석 완료**\n\n", p.Target)
	var rivals []string
	for _, prod := range data.Products[1:] {
		rivals = append(rivals, prod.Name)
	}
	if len(rivals) > 0 {
		fmt.Fprintf(&sb, "총 %d개 경쟁사를 비교 분석했습니다.\n경쟁사: %s\n\n", len(rivals), strings.Join(rivals, ", "))
	} else {
		sb.WriteString("제품 단독 분석을 수행했습니다.\n\n")
	}
	if an.Price.Target > 0 {
		fmt.Fprintf(&sb, "**가격:** %s (%s", formatWon(an.Price.Target), an.Price.Position)
		if an.Price.DiffPct != nil {
			fmt.Fprintf(&sb, ", 경쟁사 평균 대비 %s", formatPct(an.Price.DiffPct))
		}
		sb.WriteString(")\n\n")
	}
	sb.WriteString("**SWOT 분석 요약:**\n")
	fmt.Fprintf(&sb, "- 강점: %d개\n- 약점: %d개\n- 기회: %d개\n- 위협: %d개\n\n",
		len(an.SWOT.Strengths), len(an.SWOT.Weaknesses), len(an.SWOT.Opportunities), len(an.SWOT.Threats))
	if an.Strategy != "" {
		preview := strings.TrimSpace(strings.ReplaceAll(truncateRunes(an.Strategy, 200), "\n", " "))
		fmt.Fprintf(&sb, "**차별화 전략:** %s\n\n", preview)
	}
	if art != nil {
		sb.WriteString("**상세 분석 보고서**가 생성되었습니다.\n")
		sb.WriteString("HTML 보고서를 다운로드하여 비교 테이블과 전체 전략을 확인하세요.\n")
		sb.WriteString(art.DownloadURL + "\n")
	}
	sb.WriteString("\n본 결과는 AI 기반 분석이며 참고용으로만 사용하세요.")
	return sb.String()
}
