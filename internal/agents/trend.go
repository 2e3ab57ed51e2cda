package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/report"
	"github.com/xiaot623/gogo/marketing/internal/router"
)

// TrendParams is the extracted keyword and period.
type TrendParams struct {
	Keyword string `json:"keyword"`
	TimeWindow
}

// TrendFetch is the series and the tool that produced it.
type TrendFetch struct {
	Data   *provider.TrendData
	Source string
}

// TrendMetrics summarizes one series.
type TrendMetrics struct {
	HasData       bool                  `json:"has_data"`
	DataPoints    int                   `json:"data_points"`
	Average       *float64              `json:"average"`
	FirstValue    *float64              `json:"first_value"`
	LatestValue   *float64              `json:"latest_value"`
	LatestDate    string                `json:"latest_date,omitempty"`
	GrowthPct     *float64              `json:"growth_pct"`
	MomentumPct   *float64              `json:"momentum_pct"`
	MomentumLabel string                `json:"momentum_label"`
	Peak          *provider.TrendPoint  `json:"peak"`
	Volatility    *float64              `json:"volatility"`
	SeriesTail    []provider.TrendPoint `json:"series_tail"`
}

// KeywordCluster is a group of related search terms.
type KeywordCluster struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	TrendLabel string   `json:"trend_label"`
	ChangePct  *float64 `json:"change_pct"`
	Insight    string   `json:"insight"`
}

// TrendAnalysis is the analyzed series.
type TrendAnalysis struct {
	Metrics    TrendMetrics          `json:"metrics"`
	Series     []provider.TrendPoint `json:"trend_series"`
	Summary    string                `json:"summary"`
	Insight    string                `json:"insight"`
	Signal     string                `json:"signal"`
	Confidence string                `json:"confidence"`
	Clusters   []KeywordCluster      `json:"clusters"`
	IsMock     bool                  `json:"is_mock"`
}

// TrendResult is the persisted result_data of a trend run.
type TrendResult struct {
	Keyword   string `json:"keyword"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TimeUnit  string `json:"time_unit"`
	*TrendAnalysis
}

type trendAgent struct {
	*Deps
}

// NewTrend builds the trend pipeline.
func NewTrend(d *Deps) (router.Handler, error) {
	a := &trendAgent{Deps: d}
	return pipeline.New(d.Runner, pipeline.Definition[TrendParams, *TrendFetch, *TrendAnalysis]{
		Task:    domain.TaskTrend,
		Name:    "트렌드 분석",
		Extract: a.extract,
		Fetch:   a.fetch,
		Analyze: a.analyze,
		Render:  a.render,
		Outcome: func(p TrendParams, _ *TrendFetch, an *TrendAnalysis) pipeline.Outcome {
			return pipeline.Outcome{
				ProductName: p.Keyword,
				Data: &TrendResult{
					Keyword:       p.Keyword,
					StartDate:     p.StartDate,
					EndDate:       p.EndDate,
					TimeUnit:      p.TimeUnit,
					TrendAnalysis: an,
				},
			}
		},
		Compose: a.compose,
	})
}

func (a *trendAgent) extract(ctx context.Context, in *pipeline.Input) (TrendParams, error) {
	kw := ExtractTrendKeyword(in.Message)
	if kw == "" && strings.TrimSpace(in.Message) != "" {
		reply, err := a.completeText(ctx, llm.Prompt{
			System: "당신은 마케팅 데이터 분석 보조 도구입니다. 사용자가 요청한 문장에서 분석할 핵심 키워드 또는 제품명을 한 줄로만 출력하세요. 불필요한 설명과 따옴표는 제거하세요.",
			User:   in.Message,
		})
		if err != nil {
			in.Fallback(domain.StageExtract, err)
		} else {
			kw = cleanKeyword(strings.SplitN(reply, "\n", 2)[0])
		}
	}
	if kw == "" {
		return TrendParams{}, domain.Guidance(
			"분석할 키워드를 찾지 못했습니다. 예: \"스마트워치 트렌드 알려줘\"처럼 제품이나 주제를 포함해 다시 요청해주세요.",
			"키워드를 추출하지 못했습니다.",
		)
	}
	return TrendParams{Keyword: kw, TimeWindow: ResolveTimeWindow(in.Message, a.now())}, nil
}

func (a *trendAgent) fetch(ctx context.Context, in *pipeline.Input, p TrendParams) (*TrendFetch, error) {
	data, used, err := a.fetchTrend(ctx, provider.TrendQuery{
		Keywords:  []string{p.Keyword},
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		TimeUnit:  p.TimeUnit,
	})
	if err != nil {
		in.Logger().Warn().Str("keyword", p.Keyword).Err(err).Msg("trend chain exhausted")
		return nil, domain.Guidance(
			fmt.Sprintf("'%s' 트렌드 데이터를 가져오지 못했습니다. 잠시 후 다시 시도해주세요.", p.Keyword),
			err.Error(),
		)
	}
	return &TrendFetch{Data: data, Source: used}, nil
}

func (a *trendAgent) analyze(ctx context.Context, in *pipeline.Input, p TrendParams, f *TrendFetch) (*TrendAnalysis, error) {
	series := f.Data.Series()
	metrics := ComputeTrendMetrics(series)
	an := &TrendAnalysis{
		Metrics: metrics,
		Series:  series,
		Signal:  TrendSignal(metrics),
		IsMock:  f.Data.IsMock,
	}

	var summary []string
	if metrics.HasData {
		summary = []string{
			fmt.Sprintf("- 검색 지수 %s 흐름 (최근 변화 %s)", metrics.MomentumLabel, formatPct(metrics.MomentumPct)),
			fmt.Sprintf("- 첫 시점 대비 변화율 %s", formatPct(metrics.GrowthPct)),
		}
	} else {
		summary = []string{"- 신뢰할 수 있는 데이터 포인트를 찾지 못했습니다."}
	}

	an.Clusters = a.clusters(ctx, in, p, metrics, summary, f.Data)
	if len(an.Clusters) > 0 {
		parts := make([]string, 0, 3)
		for _, c := range an.Clusters[:min(3, len(an.Clusters))] {
			parts = append(parts, fmt.Sprintf("%s %s", c.Name, formatPct(c.ChangePct)))
		}
		summary = append(summary, "- 연관 키워드 클러스터: "+strings.Join(parts, ", "))
	}
	an.Summary = strings.Join(summary, "\n")

	an.Insight = a.insight(ctx, in, p, metrics, an.Summary)

	switch {
	case metrics.HasData && !f.Data.IsMock:
		an.Confidence = "높음"
	case metrics.HasData:
		an.Confidence = "중간"
	default:
		an.Confidence = "낮음"
	}
	return an, nil
}

func (a *trendAgent) insight(ctx context.Context, in *pipeline.Input, p TrendParams, m TrendMetrics, summary string) string {
	brief, _ := json.Marshal(map[string]interface{}{
		"naver": map[string]interface{}{
			"average":      m.Average,
			"growth_pct":   m.GrowthPct,
			"momentum_pct": m.MomentumPct,
			"latest_value": m.LatestValue,
			"peak":         m.Peak,
		},
	})
	reply, err := a.completeText(ctx, llm.Prompt{
		System: "당신은 디지털 마케팅 전략가입니다. Naver 검색 지표를 바탕으로 핵심 인사이트와 대응 전략을 간결하게 제시하세요.",
		User: fmt.Sprintf("키워드: %s\n기간: %s ~ %s (단위: %s)\n요약: %s\n지표: %s\n증가/감소 원인과 대응 전략을 bullet 2-3개로 정리해주세요.",
			p.Keyword, p.StartDate, p.EndDate, p.TimeUnit, summary, brief),
	})
	if err == nil {
		return reply
	}
	in.Fallback(domain.StageAnalyze, err)
	return ruleBasedTrendInsight(p.Keyword, m)
}

func ruleBasedTrendInsight(keyword string, m TrendMetrics) string {
	if !m.HasData {
		return "유의미한 검색 데이터를 찾지 못했습니다. 기간을 넓혀 다시 시도하거나 다른 키워드를 입력해 보세요."
	}
	return strings.Join([]string{
		fmt.Sprintf("'%s' 검색 지수는 최근 %s 흐름이며 단기 변화율은 %s입니다.", keyword, m.MomentumLabel, formatPct(m.MomentumPct)),
		fmt.Sprintf("분석 시작 시점 대비 변화율은 %s로 나타났습니다. 검색 피크 시점과 최신 지수를 참고해 콘텐츠 타이밍을 조정하세요.", formatPct(m.GrowthPct)),
		"상승 구간에서는 캠페인을 확대하고, 하락 국면에서는 연관 키워드를 발굴해 관심을 유지하세요.",
	}, "\n")
}

func (a *trendAgent) clusters(ctx context.Context, in *pipeline.Input, p TrendParams, m TrendMetrics, summary []string, data *provider.TrendData) []KeywordCluster {
	if !m.HasData {
		return nil
	}
	var hints []string
	seen := map[string]bool{strings.ToLower(p.Keyword): true}
	for _, g := range data.Results {
		for _, kw := range g.Keywords {
			if kw != "" && !seen[strings.ToLower(kw)] {
				seen[strings.ToLower(kw)] = true
				hints = append(hints, kw)
			}
		}
	}
	hintText := "없음"
	if len(hints) > 0 {
		hintText = strings.Join(hints[:min(10, len(hints))], ", ")
	}
	brief, _ := json.Marshal(map[string]interface{}{
		"momentum_pct":   m.MomentumPct,
		"momentum_label": m.MomentumLabel,
		"growth_pct":     m.GrowthPct,
		"latest_value":   m.LatestValue,
	})

	reply, err := a.completeText(ctx, llm.Prompt{
		System: "당신은 마케팅 데이터 분석가입니다. 주어진 검색 키워드와 지표를 바탕으로 연관 키워드를 3~5개의 클러스터로 묶고 각각의 추세 변화를 분석하세요. " +
			"JSON 배열로만 답변하세요. 각 항목은 name, keywords, trend_label, change_pct, insight 필드를 가져야 합니다.",
		User: fmt.Sprintf("키워드: %s\n기간: %s ~ %s (단위: %s)\n요약: %s\n지표: %s\n연관 힌트: %s\n"+
			"연관 클러스터를 3~5개 제안하고, 각 클러스터의 최근 변화율(change_pct)을 %% 단위의 숫자로 제공하세요 (예: 12.5는 +12.5%%).",
			p.Keyword, p.StartDate, p.EndDate, p.TimeUnit, strings.Join(summary, "\n"), brief, hintText),
	})
	if err == nil {
		if clusters := parseClusters(reply); len(clusters) > 0 {
			return clusters
		}
		err = llm.ErrMalformedOutput
	}
	in.Fallback(domain.StageAnalyze, err)
	return fallbackClusters(p.Keyword, hints, m)
}

// parseClusters accepts a JSON array or an object holding it under
// "clusters" or "result", with loose field names.
func parseClusters(text string) []KeywordCluster {
	block := llm.ExtractJSON(text)
	if block == "" {
		return nil
	}
	var entries []map[string]interface{}
	if err := json.Unmarshal([]byte(block), &entries); err != nil {
		var wrapped map[string][]map[string]interface{}
		if err := json.Unmarshal([]byte(block), &wrapped); err != nil {
			return nil
		}
		entries = wrapped["clusters"]
		if entries == nil {
			entries = wrapped["result"]
		}
	}

	var out []KeywordCluster
	for _, e := range entries {
		name := firstString(e, "name", "cluster")
		if name == "" {
			continue
		}
		var keywords []string
		switch v := firstOf(e, "keywords", "terms").(type) {
		case []interface{}:
			for _, k := range v {
				if s, ok := k.(string); ok && strings.TrimSpace(s) != "" {
					keywords = append(keywords, strings.TrimSpace(s))
				}
			}
		case string:
			for _, k := range strings.Split(v, ",") {
				if k = strings.TrimSpace(k); k != "" {
					keywords = append(keywords, k)
				}
			}
		}
		label := firstString(e, "trend_label", "trend", "direction")
		if label == "" {
			label = "보합"
		}
		out = append(out, KeywordCluster{
			Name:       name,
			Keywords:   keywords,
			TrendLabel: label,
			ChangePct:  parseChange(firstOf(e, "change_pct", "change", "delta")),
			Insight:    strings.TrimSpace(firstString(e, "insight", "note", "summary")),
		})
	}
	return out
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	s, _ := firstOf(m, keys...).(string)
	return s
}

var signedNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func parseChange(v interface{}) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		if m := signedNumber.FindString(strings.ReplaceAll(x, ",", "")); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func fallbackClusters(keyword string, hints []string, m TrendMetrics) []KeywordCluster {
	terms := append([]string(nil), hints...)
	for _, suffix := range []string{"구매", "가격", "후기", "레시피", "기기", "이벤트"} {
		t := keyword + " " + suffix
		if !containsString(terms, t) {
			terms = append(terms, t)
		}
	}

	momentum := deref(m.MomentumPct)
	growth := deref(m.GrowthPct)
	latest := deref(m.LatestValue)

	consider := growth
	if consider == 0 {
		consider = momentum / 2
	}
	var lifestyle *float64
	lifestyleLabel := momentumLabel(f64(latest / 100))
	if momentum != 0 || growth != 0 {
		lifestyle = f64((momentum + growth) / 2)
		lifestyleLabel = momentumLabel(lifestyle)
	}

	return []KeywordCluster{
		{
			Name:       "핵심 수요",
			Keywords:   []string{keyword, terms[0], terms[1]},
			TrendLabel: momentumLabel(f64(momentum)),
			ChangePct:  f64(momentum),
			Insight:    "핵심 검색어와 직접적인 연관어에서 나타난 수요 흐름입니다.",
		},
		{
			Name:       "구매 고려 및 가격",
			Keywords:   []string{terms[2], terms[3]},
			TrendLabel: momentumLabel(f64(consider)),
			ChangePct:  f64(consider),
			Insight:    "구매 의도와 가격 탐색 키워드의 변화를 통해 전환 가능성을 파악하세요.",
		},
		{
			Name:       "관련 라이프스타일",
			Keywords:   []string{terms[4], terms[5]},
			TrendLabel: lifestyleLabel,
			ChangePct:  lifestyle,
			Insight:    "콘텐츠/라이프스타일 키워드의 변화를 활용해 캠페인 소재를 확장할 수 있습니다.",
		},
	}
}

// ComputeTrendMetrics orders the series by date and derives the summary
// statistics. Momentum compares the mean of the last three points with the
// first three.
func ComputeTrendMetrics(series []provider.TrendPoint) TrendMetrics {
	if len(series) == 0 {
		return TrendMetrics{MomentumLabel: "데이터 부족", SeriesTail: []provider.TrendPoint{}}
	}

	type sample struct {
		at    time.Time
		idx   int
		point provider.TrendPoint
	}
	samples := make([]sample, 0, len(series))
	for i, p := range series {
		at, ok := parseSeriesDate(p.Date)
		if !ok {
			at = time.Time{}.AddDate(0, 0, i)
		}
		samples = append(samples, sample{at: at, idx: i, point: p})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if !samples[i].at.Equal(samples[j].at) {
			return samples[i].at.Before(samples[j].at)
		}
		return samples[i].idx < samples[j].idx
	})

	n := len(samples)
	values := make([]float64, n)
	sum := 0.0
	peak := 0
	for i, s := range samples {
		values[i] = s.point.Value
		sum += values[i]
		if values[i] > values[peak] {
			peak = i
		}
	}

	m := TrendMetrics{
		HasData:     true,
		DataPoints:  n,
		Average:     f64(sum / float64(n)),
		FirstValue:  f64(values[0]),
		LatestValue: f64(values[n-1]),
		LatestDate:  samples[n-1].point.Date,
		Peak:        &provider.TrendPoint{Date: samples[peak].point.Date, Value: values[peak]},
	}
	if values[0] != 0 {
		m.GrowthPct = f64((values[n-1] - values[0]) / values[0] * 100)
	}

	window := min(3, n)
	early := mean(values[:window])
	recent := mean(values[n-window:])
	if early != 0 {
		m.MomentumPct = f64((recent - early) / early * 100)
	}
	m.MomentumLabel = momentumLabel(m.MomentumPct)

	vol := 0.0
	if n > 1 {
		avg := *m.Average
		ss := 0.0
		for _, v := range values {
			ss += (v - avg) * (v - avg)
		}
		vol = math.Sqrt(ss / float64(n-1))
	}
	m.Volatility = f64(vol)

	for i := max(0, n-5); i < n; i++ {
		m.SeriesTail = append(m.SeriesTail, provider.TrendPoint{Date: samples[i].point.Date, Value: values[i]})
	}
	return m
}

func parseSeriesDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func momentumLabel(pct *float64) string {
	switch {
	case pct == nil:
		return "데이터 부족"
	case *pct > 5:
		return "상승"
	case *pct < -5:
		return "하락"
	default:
		return "보합"
	}
}

// TrendSignal weighs growth (0.6) and momentum (0.4), with a bonus for a
// latest index of 70 or more.
func TrendSignal(m TrendMetrics) string {
	if !m.HasData {
		return "데이터 부족"
	}
	score, weight := 0.0, 0.0
	if m.GrowthPct != nil {
		score += *m.GrowthPct * 0.6
		weight += 0.6
	}
	if m.MomentumPct != nil {
		score += *m.MomentumPct * 0.4
		weight += 0.4
	}
	if m.LatestValue != nil && *m.LatestValue >= 70 {
		score += 5
	}
	if weight == 0 {
		return "데이터 부족"
	}
	switch normalized := score / weight; {
	case normalized >= 20:
		return "🚀 강한 상승세"
	case normalized >= 8:
		return "↗️ 완만한 상승"
	case normalized <= -20:
		return "📉 강한 하락"
	case normalized <= -8:
		return "↘️ 완만한 하락"
	default:
		return "➖ 보합세"
	}
}

func (a *trendAgent) render(ctx context.Context, in *pipeline.Input, p TrendParams, f *TrendFetch, an *TrendAnalysis) (*report.Document, error) {
	m := an.Metrics
	doc := &report.Document{
		Title:    fmt.Sprintf("'%s' 소비 트렌드 분석 리포트", p.Keyword),
		Subtitle: fmt.Sprintf("%s ~ %s (단위: %s)", p.StartDate, p.EndDate, p.TimeUnit),
		Summary: []report.KeyValue{
			{Label: "추세 해석", Value: an.Signal},
			{Label: "데이터 신뢰도", Value: an.Confidence},
			{Label: "데이터 출처", Value: trendSourceLabel(an)},
		},
		Sections: []report.Section{
			{Heading: "요약", Bullets: splitLines(an.Summary)},
		},
		Notice: "공개 데이터 기반 추정치이므로 의사결정 시 추가 검증이 필요합니다.",
	}
	if m.HasData {
		doc.Sections = append(doc.Sections, report.Section{
			Heading: "핵심 지표",
			Table: &report.Table{
				Columns: []string{"지표", "값"},
				Rows: [][]string{
					{"평균 지수", formatFloat(m.Average, "%.1f")},
					{"최신 지수", formatFloat(m.LatestValue, "%.0f")},
					{"최근 모멘텀", fmt.Sprintf("%s (%s)", m.MomentumLabel, formatPct(m.MomentumPct))},
					{"첫 시점 대비 변화", formatPct(m.GrowthPct)},
					{"최고 지점", fmt.Sprintf("%s (지수 %.0f)", m.Peak.Date, m.Peak.Value)},
					{"변동성", formatFloat(m.Volatility, "%.2f")},
				},
			},
		})
		rows := make([][]string, 0, len(m.SeriesTail))
		for _, pt := range m.SeriesTail {
			rows = append(rows, []string{pt.Date, fmt.Sprintf("%.1f", pt.Value)})
		}
		doc.Sections = append(doc.Sections, report.Section{
			Heading: "최근 추이",
			Table:   &report.Table{Columns: []string{"기간", "검색 지수"}, Rows: rows},
		})
	}
	doc.Sections = append(doc.Sections, report.Section{Heading: "추천 인사이트", Markdown: an.Insight})
	if len(an.Clusters) > 0 {
		rows := make([][]string, 0, len(an.Clusters))
		for _, c := range an.Clusters {
			rows = append(rows, []string{c.Name, c.TrendLabel, formatPct(c.ChangePct), strings.Join(c.Keywords, ", "), c.Insight})
		}
		doc.Sections = append(doc.Sections, report.Section{
			Heading: "연관 키워드 클러스터",
			Table:   &report.Table{Columns: []string{"클러스터", "추세", "변화율", "키워드", "인사이트"}, Rows: rows},
		})
	}
	return doc, nil
}

func trendSourceLabel(an *TrendAnalysis) string {
	if !an.Metrics.HasData {
		return "Naver DataLab (데이터 없음)"
	}
	if an.IsMock {
		return "Naver DataLab (모의)"
	}
	return "Naver DataLab"
}

func (a *trendAgent) compose(in *pipeline.Input, p TrendParams, f *TrendFetch, an *TrendAnalysis, art *pipeline.Artifact) string {
	m := an.Metrics
	var lines []string
	lines = append(lines,
		fmt.Sprintf("📈 **'%s' 트렌드 분석 요약**", p.Keyword),
		"",
		fmt.Sprintf("- 분석 기간: %s ~ %s (단위: %s)", p.StartDate, p.EndDate, p.TimeUnit),
		"- 데이터 신뢰도: "+an.Confidence,
		"- 추세 해석: "+an.Signal,
		"",
	)
	lines = append(lines, splitLines(an.Summary)...)
	lines = append(lines, "")

	if m.HasData {
		lines = append(lines,
			"**Naver DataLab**",
			"- 평균 지수: "+formatFloat(m.Average, "%.1f"),
			"- 최신 지수: "+formatFloat(m.LatestValue, "%.0f"),
			fmt.Sprintf("- 최근 모멘텀: %s (%s)", m.MomentumLabel, formatPct(m.MomentumPct)),
			"- 첫 시점 대비 변화: "+formatPct(m.GrowthPct),
		)
		if m.Peak != nil && m.Peak.Date != "" {
			lines = append(lines, fmt.Sprintf("- 최고 지점: %s (지수 %.0f)", m.Peak.Date, m.Peak.Value))
		}
	} else {
		lines = append(lines, "Naver DataLab 데이터가 충분하지 않습니다.")
	}
	lines = append(lines, "")

	if an.Insight != "" {
		lines = append(lines, "**추천 인사이트**")
		lines = append(lines, splitLines(an.Insight)...)
		lines = append(lines, "")
	}

	if len(an.Clusters) > 0 {
		lines = append(lines, "**연관 키워드 클러스터**")
		for _, c := range an.Clusters {
			bullet := fmt.Sprintf("• %s: %s (%s)", c.Name, c.TrendLabel, formatPct(c.ChangePct))
			if len(c.Keywords) > 0 {
				bullet += " | 키워드: " + strings.Join(c.Keywords[:min(4, len(c.Keywords))], ", ")
			}
			if c.Insight != "" {
				bullet += " · " + c.Insight
			}
			lines = append(lines, bullet)
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"🔗 데이터 출처: "+trendSourceLabel(an),
		"⚠️ 공개 데이터 기반 추정치이므로 의사결정 시 추가 검증이 필요합니다.",
	)
	if art != nil {
		lines = append(lines, "", "📄 **트렌드 리포트가 생성되었습니다.**", "다운로드: "+art.DownloadURL)
	}
	return strings.Join(lines, "\n")
}

func f64(v float64) *float64 { return &v }

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func formatFloat(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
