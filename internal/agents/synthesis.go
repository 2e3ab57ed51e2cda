package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/report"
	"github.com/xiaot623/gogo/marketing/internal/router"
)

// SynthesisParams optionally narrows the synthesis to one product.
type SynthesisParams struct {
	ProductName string `json:"product_name,omitempty"`
}

// SynthesisTask is one source result of a synthesis.
type SynthesisTask struct {
	TaskType    domain.TaskID `json:"task_type"`
	ProductName string        `json:"product_name,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SynthesisAnalysis is the combined strategy text.
type SynthesisAnalysis struct {
	Text     string `json:"synthesis"`
	Fallback bool   `json:"fallback"`
}

// SynthesisResult is the persisted result_data of a synthesis run.
type SynthesisResult struct {
	NumTasks    int             `json:"num_tasks"`
	Tasks       []SynthesisTask `json:"tasks"`
	Synthesis   string          `json:"synthesis"`
	ProductName string          `json:"product_name,omitempty"`
}

var taskLabels = map[domain.TaskID]string{
	domain.TaskTrend:      "트렌드 분석",
	domain.TaskAdCopy:     "광고 문구",
	domain.TaskSegment:    "세그먼트 분류",
	domain.TaskReview:     "리뷰 감성 분석",
	domain.TaskCompetitor: "경쟁사 분석",
}

type synthesisAgent struct {
	*Deps
}

// NewSynthesis builds the synthesis pipeline over the session's earlier results.
func NewSynthesis(d *Deps) (router.Handler, error) {
	a := &synthesisAgent{Deps: d}
	return pipeline.New(d.Runner, pipeline.Definition[SynthesisParams, []domain.TaskResult, *SynthesisAnalysis]{
		Task:    domain.TaskSynthesis,
		Name:    "종합 보고서 생성",
		Extract: a.extract,
		Fetch:   a.fetch,
		Analyze: a.analyze,
		Render:  a.render,
		Outcome: func(p SynthesisParams, results []domain.TaskResult, an *SynthesisAnalysis) pipeline.Outcome {
			return pipeline.Outcome{
				ProductName: p.ProductName,
				Data: &SynthesisResult{
					NumTasks:    len(results),
					Tasks:       synthesisTasks(results),
					Synthesis:   an.Text,
					ProductName: p.ProductName,
				},
			}
		},
		Compose: a.compose,
		ErrorReply: func(err error) string {
			return fmt.Sprintf("오류 발생: %v", err)
		},
	})
}

var (
	synthesisLeadIn = regexp.MustCompile(`^(?:마지막으로|이제|그럼|자|이번에는|다음으로)\s+`)
	synthesisRules  = []*regexp.Regexp{
		regexp.MustCompile(`(.+?)\s*(?:에\s*대한|의|에\s*관한)\s*종합`),
		regexp.MustCompile(`(.+?)\s*종합\s*보고서`),
		regexp.MustCompile(`(.+?)\s*(?:마케팅|종합|통합|전략)`),
	}
	synthesisParticle  = regexp.MustCompile(`\s*(?:에\s*대한|에\s*관한|의)$`)
	synthesisStopwords = map[string]bool{
		"그": true, "저": true, "이": true, "그것": true, "저것": true, "이것": true,
		"전체": true, "모든": true, "전체 제품": true, "통합": true, "종합": true, "마케팅": true, "전략": true,
	}
)

// ExtractSynthesisProduct finds the product a synthesis is limited to.
// It returns "" when the request covers every product.
func ExtractSynthesisProduct(message string) string {
	text := synthesisLeadIn.ReplaceAllString(strings.TrimSpace(message), "")
	for _, re := range synthesisRules {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(synthesisParticle.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if name != "" && !synthesisStopwords[name] {
			return name
		}
	}
	return ""
}

func (a *synthesisAgent) extract(ctx context.Context, in *pipeline.Input) (SynthesisParams, error) {
	if name := ExtractSynthesisProduct(in.Message); name != "" {
		return SynthesisParams{ProductName: name}, nil
	}
	reply, err := a.completeText(ctx, llm.Prompt{
		System: "당신은 제품명 추출 전문가입니다.\n사용자 메시지에서 종합 보고서를 작성할 제품명을 추출하세요.\n\n" +
			"규칙:\n1. 제품명만 추출 (다른 설명 제외)\n2. 제품명이 명확하지 않으면 \"NONE\" 반환\n3. 한 줄로만 응답",
		User: in.Message,
	})
	if err != nil {
		in.Logger().Debug().Str("session", in.SessionID).Err(err).Msg("synthesis product not extracted, covering all products")
		return SynthesisParams{}, nil
	}
	name := strings.Trim(strings.TrimSpace(strings.SplitN(reply, "\n", 2)[0]), `"'`)
	if strings.EqualFold(name, "NONE") || name == "없음" || len([]rune(name)) > 40 {
		name = ""
	}
	return SynthesisParams{ProductName: name}, nil
}

// fetch keeps the newest result per (task, product), oldest first.
func (a *synthesisAgent) fetch(ctx context.Context, in *pipeline.Input, p SynthesisParams) ([]domain.TaskResult, error) {
	results, err := a.Runner.Store.ListTaskResults(ctx, in.SessionID, domain.TaskResultFilter{ProductName: p.ProductName})
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list task results", Err: err}
	}
	out := DedupeTaskResults(results)
	if len(out) == 0 {
		return nil, domain.Guidance(noResultsReply(p.ProductName), domain.ErrTokenNoTaskResults)
	}
	return out, nil
}

// DedupeTaskResults drops synthesis results and all but the newest result
// per task type and product, returning the rest oldest first.
func DedupeTaskResults(results []domain.TaskResult) []domain.TaskResult {
	type key struct {
		task    domain.TaskID
		product string
	}
	latest := make(map[key]domain.TaskResult)
	for _, r := range results {
		if r.TaskType == domain.TaskSynthesis {
			continue
		}
		k := key{r.TaskType, r.ProductName}
		if cur, ok := latest[k]; !ok || r.CreatedAt.After(cur.CreatedAt) {
			latest[k] = r
		}
	}
	out := make([]domain.TaskResult, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ResultID < out[j].ResultID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func noResultsReply(product string) string {
	if product == "" {
		return "아직 실행된 태스크가 없습니다.\n\n먼저 다음 태스크들을 실행해주세요:\n" +
			"- 트렌드 분석\n- 광고 문구 생성\n- 세그먼트 분류\n- 리뷰 감성 분석\n- 경쟁사 분석\n\n" +
			"예시: \"에어팟 프로 트렌드 분석해줘\""
	}
	return fmt.Sprintf("'%[1]s'에 대한 실행된 태스크가 없습니다.\n\n먼저 '%[1]s'에 대한 다음 태스크들을 실행해주세요:\n"+
		"- 트렌드 분석: \"%[1]s 트렌드 분석해줘\"\n"+
		"- 광고 문구 생성: \"%[1]s 광고 문구 만들어줘\"\n"+
		"- 세그먼트 분류: \"%[1]s 세그먼트 분석해줘\"\n"+
		"- 리뷰 감성 분석: \"%[1]s 리뷰 분석해줘\"\n"+
		"- 경쟁사 분석: \"%[1]s 경쟁사 분석해줘\"\n\n"+
		"💡 여러 제품을 함께 종합하려면 제품명 없이 \"종합 보고서 만들어줘\"라고 요청하세요.", product)
}

const synthesisOutline = `# 작성 지침
1. 데이터를 심층적으로 분석하고 인사이트를 도출하세요
2. 각 섹션을 구체적이고 실행 가능한 내용으로 작성하세요
3. 수치와 데이터를 적극 활용하세요
4. 각 세그먼트별 맞춤 전략을 제시하세요
5. 실행 계획은 구체적인 기간과 KPI를 포함하세요

# 출력 형식
## 📊 Executive Summary
## 🌐 시장 환경 분석
## 👥 고객 인사이트
## 🎯 마케팅 전략 제안
## 📅 실행 계획
단기 (1-3개월), 중기 (3-6개월), 장기 (6-12개월)로 나누어 액션 아이템과 KPI를 제시하세요.`

func (a *synthesisAgent) analyze(ctx context.Context, in *pipeline.Input, p SynthesisParams, results []domain.TaskResult) (*SynthesisAnalysis, error) {
	var sb strings.Builder
	sb.WriteString("다음 분석 결과들을 종합하여 실행 가능한 통합 마케팅 전략 보고서를 작성하세요.\n\n# 입력 데이터\n")
	for i, task := range []domain.TaskID{domain.TaskTrend, domain.TaskAdCopy, domain.TaskSegment, domain.TaskReview, domain.TaskCompetitor} {
		fmt.Fprintf(&sb, "## %d. %s\n", i+1, taskLabels[task])
		found := false
		for _, r := range results {
			if r.TaskType != task {
				continue
			}
			found = true
			if r.ProductName != "" {
				fmt.Fprintf(&sb, "### %s\n", r.ProductName)
			}
			sb.Write(r.ResultData)
			sb.WriteString("\n")
		}
		if !found {
			sb.WriteString("{}\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(synthesisOutline)

	text, err := a.completeText(ctx, llm.Prompt{
		System:      "당신은 경험이 풍부한 마케팅 전략 컨설턴트입니다. 데이터 기반의 구체적이고 실행 가능한 전략을 제시합니다.",
		User:        sb.String(),
		Temperature: 0.7,
		MaxTokens:   8000,
	})
	if err != nil {
		in.Fallback(domain.StageAnalyze, err)
		return &SynthesisAnalysis{Text: SynthesisDigest(results), Fallback: true}, nil
	}
	return &SynthesisAnalysis{Text: text}, nil
}

// SynthesisDigest is the per-task bullet summary used when no strategy text
// can be generated.
func SynthesisDigest(results []domain.TaskResult) string {
	lines := []string{"## 📊 분석 결과 요약", ""}
	for _, r := range results {
		label := taskLabels[r.TaskType]
		if label == "" {
			label = string(r.TaskType)
		}
		product := r.ProductName
		if product == "" {
			product = "N/A"
		}
		line := fmt.Sprintf("- **%s** (%s)", label, product)
		if detail := digestDetail(r); detail != "" {
			line += ": " + detail
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", "각 분석 결과를 바탕으로 세부 전략을 수립하세요.")
	return strings.Join(lines, "\n")
}

func digestDetail(r domain.TaskResult) string {
	var data map[string]interface{}
	if err := json.Unmarshal(r.ResultData, &data); err != nil {
		return ""
	}
	str := func(k string) string {
		if v, ok := data[k].(string); ok {
			return v
		}
		return ""
	}
	num := func(k string) (float64, bool) {
		v, ok := data[k].(float64)
		return v, ok
	}

	switch r.TaskType {
	case domain.TaskTrend:
		if s := str("signal"); s != "" {
			return "신호 " + s
		}
	case domain.TaskAdCopy:
		if n, ok := num("total_variations"); ok {
			return fmt.Sprintf("카피 %.0f개 생성", n)
		}
	case domain.TaskSegment:
		if n, ok := num("num_segments"); ok {
			return fmt.Sprintf("세그먼트 %.0f개", n)
		}
	case domain.TaskReview:
		if dist, ok := data["sentiment_distribution"].(map[string]interface{}); ok {
			return fmt.Sprintf("긍정 %v / 부정 %v / 중립 %v", dist["positive"], dist["negative"], dist["neutral"])
		}
	case domain.TaskCompetitor:
		if pc, ok := data["price_comparison"].(map[string]interface{}); ok {
			if pos, ok := pc["position"].(string); ok && pos != "" {
				return "가격 포지션 " + pos
			}
		}
	}
	return ""
}

func synthesisTasks(results []domain.TaskResult) []SynthesisTask {
	tasks := make([]SynthesisTask, len(results))
	for i, r := range results {
		tasks[i] = SynthesisTask{TaskType: r.TaskType, ProductName: r.ProductName, CreatedAt: r.CreatedAt}
	}
	return tasks
}

func (a *synthesisAgent) render(ctx context.Context, in *pipeline.Input, p SynthesisParams, results []domain.TaskResult, an *SynthesisAnalysis) (*report.Document, error) {
	title := "마케팅 전략 종합 보고서"
	if p.ProductName != "" {
		title = p.ProductName + " " + title
	}
	table := &report.Table{Columns: []string{"태스크", "제품", "실행 시각"}}
	for _, r := range results {
		table.Rows = append(table.Rows, []string{taskLabels[r.TaskType], r.ProductName, r.CreatedAt.In(kst).Format("2006-01-02 15:04")})
	}
	return &report.Document{
		Title:    title,
		Subtitle: scopeText(p, results),
		Summary:  []report.KeyValue{{Label: "분석된 태스크", Value: fmt.Sprintf("%d개", len(results))}},
		Sections: []report.Section{
			{Heading: "분석 대상", Table: table},
			{Heading: "종합 전략", Markdown: an.Text},
		},
		Notice: "본 보고서는 세션에서 실행된 분석 결과를 종합한 참고 자료입니다.",
	}, nil
}

func scopeText(p SynthesisParams, results []domain.TaskResult) string {
	if p.ProductName != "" {
		return fmt.Sprintf("'%s' 단일 제품", p.ProductName)
	}
	var products []string
	for _, r := range results {
		if r.ProductName != "" && !containsString(products, r.ProductName) {
			products = append(products, r.ProductName)
		}
	}
	sort.Strings(products)
	if len(products) == 1 {
		return fmt.Sprintf("'%s' 단일 제품", products[0])
	}
	return fmt.Sprintf("총 %d개 제품 (%s)", len(products), strings.Join(products, ", "))
}

func (a *synthesisAgent) compose(in *pipeline.Input, p SynthesisParams, results []domain.TaskResult, an *SynthesisAnalysis, art *pipeline.Artifact) string {
	var summary []string
	for _, r := range results {
		product := r.ProductName
		if product == "" {
			product = "N/A"
		}
		summary = append(summary, fmt.Sprintf("- %s: %s", r.TaskType, product))
	}
	lines := []string{
		"✅ **마케팅 전략 종합 보고서 생성 완료**",
		"",
		"**📊 분석 범위:** " + scopeText(p, results),
		"",
		fmt.Sprintf("**분석된 태스크 (%d개):**", len(results)),
		strings.Join(summary, "\n"),
		"",
		"**📄 종합 보고서 구성:**",
		"1. Executive Summary (핵심 요약)",
		"2. 시장 환경 분석",
		"3. 고객 인사이트",
		"4. 마케팅 전략 제안",
		"5. 실행 계획",
	}
	if an.Fallback {
		lines = append(lines, "", "※ 전략 생성에 실패하여 분석 결과 요약으로 대체했습니다.", "", an.Text)
	}
	if art != nil {
		lines = append(lines, "", "💡 **다음 단계:**", "보고서를 다운로드하여 상세 분석 결과를 확인하세요.", art.DownloadURL)
	}
	return strings.Join(lines, "\n")
}
