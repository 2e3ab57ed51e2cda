package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/router"
	"github.com/xiaot623/gogo/marketing/policy"
)

var (
	// DefaultTones and DefaultLengths span the copy matrix when the brief names none.
	DefaultTones   = []string{"friendly", "formal", "humor"}
	DefaultLengths = []string{"short", "medium", "long"}

	toneLabels   = map[string]string{"formal": "공식적", "friendly": "친근함", "humor": "유머러스", "casual": "편안함"}
	lengthLabels = map[string]string{"short": "짧게", "medium": "중간", "long": "길게"}

	additionalCues = []string{"추가", "더", "또", "extra", "another"}
)

// AdBrief describes the product an ad copy is written for. It is also the
// payload of the __ad_brief__ marker.
type AdBrief struct {
	ProductName        string   `json:"product_name"`
	ProductDescription string   `json:"product_description,omitempty"`
	KeyFeatures        []string `json:"key_features,omitempty"`
	TargetAudience     string   `json:"target_audience,omitempty"`
	CampaignGoal       string   `json:"campaign_goal,omitempty"`
	TonePreferences    []string `json:"tone_preferences,omitempty"`
	LengthPreferences  []string `json:"length_preferences,omitempty"`
}

// AdParams is the resolved brief plus the request shape.
type AdParams struct {
	Brief      AdBrief
	Tones      []string
	Lengths    []string
	Additional bool
}

// AdContext is the retrieved reference material.
type AdContext struct {
	References []domain.RagDoc
}

// Text renders the references for a prompt.
func (c *AdContext) Text() string {
	if c == nil || len(c.References) == 0 {
		return "관련된 과거 데이터가 없습니다."
	}
	var sb strings.Builder
	for i, doc := range c.References {
		fmt.Fprintf(&sb, "[참고 %d] %s\n%s\n", i+1, doc.Title, doc.Content)
	}
	return strings.TrimSpace(sb.String())
}

// AdCopy is one generated copy.
type AdCopy struct {
	Text      string `json:"text"`
	Tone      string `json:"tone"`
	Length    string `json:"length"`
	Template  bool   `json:"template,omitempty"`
	Compliant bool   `json:"compliant"`
}

// ComplianceSummary counts checked copies.
type ComplianceSummary struct {
	Decision string         `json:"decision"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Issues   []policy.Issue `json:"issues"`
}

// AdAnalysis is the copy matrix with its compliance check.
type AdAnalysis struct {
	Matrix     map[string]map[string][]string `json:"-"`
	Copies     []AdCopy                       `json:"ad_copies"`
	Compliance ComplianceSummary              `json:"compliance"`
}

// AdResult is the persisted result_data of an ad_copy run.
type AdResult struct {
	ProductName      string            `json:"product_name"`
	TargetAudience   string            `json:"target_audience,omitempty"`
	AdCopies         []AdCopy          `json:"ad_copies"`
	TotalVariations  int               `json:"total_variations"`
	Tones            []string          `json:"tones"`
	CompliancePassed bool              `json:"compliance_passed"`
	Compliance       ComplianceSummary `json:"compliance"`
}

type adCopyAgent struct {
	*Deps
}

// NewAdCopy builds the ad_copy pipeline.
func NewAdCopy(d *Deps) (router.Handler, error) {
	a := &adCopyAgent{Deps: d}
	return pipeline.New(d.Runner, pipeline.Definition[AdParams, *AdContext, *AdAnalysis]{
		Task:    domain.TaskAdCopy,
		Name:    "광고 문구 생성",
		Extract: a.extract,
		Fetch:   a.fetch,
		Analyze: a.analyze,
		Outcome: func(p AdParams, _ *AdContext, an *AdAnalysis) pipeline.Outcome {
			return pipeline.Outcome{
				ProductName: p.Brief.ProductName,
				Data: &AdResult{
					ProductName:      p.Brief.ProductName,
					TargetAudience:   p.Brief.TargetAudience,
					AdCopies:         an.Copies,
					TotalVariations:  len(an.Copies),
					Tones:            p.Tones,
					CompliancePassed: an.Compliance.Failed == 0,
					Compliance:       an.Compliance,
				},
			}
		},
		AfterPersist: a.index,
		Compose:      a.compose,
		ErrorReply: func(err error) string {
			return fmt.Sprintf("광고 문구 생성 중 오류가 발생했습니다: %v", err)
		},
	})
}

var (
	adQuoted  = regexp.MustCompile(`["“'‘]([^"”'’]{2,})["”'’]`)
	adSubject = regexp.MustCompile(`^(.+?)\s*(?:에\s*대한|을\s*위한|를\s*위한|의)?\s*(?:광고|문구|카피|헤드라인|슬로건)`)
	adFiller  = map[string]bool{"광고": true, "문구": true, "카피": true, "더": true, "추가": true, "또": true, "새로운": true, "다른": true, "새": true}
	adTrim    = regexp.MustCompile(`[을를은는이가]$`)
)

// ParseAdBrief reads a brief from the message without the LLM: a quoted
// product or the text before the ad keywords, plus tone and length hints.
func ParseAdBrief(message string) (AdBrief, bool) {
	text := strings.TrimSpace(message)
	name := ""
	if m := adQuoted.FindStringSubmatch(text); m != nil {
		name = strings.TrimSpace(m[1])
	} else if m := adSubject.FindStringSubmatch(text); m != nil {
		var kept []string
		for _, tok := range strings.Fields(m[1]) {
			if !adFiller[tok] {
				kept = append(kept, tok)
			}
		}
		name = adTrim.ReplaceAllString(strings.Join(kept, " "), "")
	}
	if len([]rune(name)) < 2 {
		return AdBrief{}, false
	}

	brief := AdBrief{ProductName: name}
	lower := strings.ToLower(text)
	for _, hint := range []struct{ word, tone string }{
		{"친근", "friendly"}, {"공식", "formal"}, {"격식", "formal"}, {"유머", "humor"}, {"재미", "humor"}, {"편안", "casual"},
	} {
		if strings.Contains(lower, hint.word) && !containsString(brief.TonePreferences, hint.tone) {
			brief.TonePreferences = append(brief.TonePreferences, hint.tone)
		}
	}
	for _, hint := range []struct{ word, length string }{
		{"짧", "short"}, {"중간", "medium"}, {"길게", "long"}, {"긴 ", "long"},
	} {
		if strings.Contains(lower, hint.word) && !containsString(brief.LengthPreferences, hint.length) {
			brief.LengthPreferences = append(brief.LengthPreferences, hint.length)
		}
	}
	return brief, true
}

func isAdditionalRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, cue := range additionalCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

const adSystemPrompt = "당신은 한국어 마케팅 카피라이터입니다. 사용자가 제공하는 제품 정보를 바탕으로 광고 문구를 작성합니다. " +
	"한국 광고 규제를 고려하여 과장된 표현은 피하고, 사용자 요청에 맞춰 톤과 길이를 조절하세요."

func (a *adCopyAgent) extract(ctx context.Context, in *pipeline.Input) (AdParams, error) {
	brief, ok := ParseAdBrief(in.Message)
	if !ok {
		parsed, err := llm.DecodeStructured[AdBrief](ctx, a.LLM, a.Model, llm.Prompt{
			System: adSystemPrompt,
			User: "아래 사용자의 요구사항에서 제품/서비스 광고를 작성하는 데 필요한 정보를 JSON으로 정리하세요. " +
				"톤은 friendly, formal, humor, casual 중에서, 길이는 short, medium, long 중에서 고르세요. " +
				"가능한 경우 영어보다 한국어를 사용하세요.\n\n사용자 입력:\n" + in.Message,
		})
		switch {
		case err != nil:
			in.Fallback(domain.StageExtract, err)
		case strings.TrimSpace(parsed.ProductName) != "":
			parsed.ProductName = strings.TrimSpace(parsed.ProductName)
			brief, ok = parsed, true
		}
	}
	if !ok {
		var previous AdBrief
		found, err := in.Log().FindLastMarkerBefore(ctx, in.SessionID, domain.MarkerAdBrief, &previous)
		if err != nil {
			return AdParams{}, err
		}
		if found && previous.ProductName != "" {
			in.Logger().Info().Str("session", in.SessionID).Str("product", previous.ProductName).Msg("reusing previous ad brief")
			brief, ok = previous, true
		}
	}
	if !ok {
		return AdParams{}, domain.Guidance(
			"제품이나 서비스 정보를 찾을 수 없습니다. 예시) '친환경 세제에 대한 광고 문구를 친근한 톤으로 3개 만들어줘'처럼 "+
				"제품명, 특징, 원하는 톤을 함께 알려주시면 도움이 됩니다.",
			"제품명을 식별하지 못했습니다.",
		)
	}

	return AdParams{
		Brief:      brief,
		Tones:      normalizePreferences(brief.TonePreferences, DefaultTones),
		Lengths:    normalizePreferences(brief.LengthPreferences, DefaultLengths),
		Additional: isAdditionalRequest(in.Message),
	}, nil
}

func normalizePreferences(values, fallback []string) []string {
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" && !containsString(out, v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

// fetch loads past copies for the product and records the brief for
// follow-up requests.
func (a *adCopyAgent) fetch(ctx context.Context, in *pipeline.Input, p AdParams) (*AdContext, error) {
	docs, err := a.Runner.Store.SearchRagDocs(ctx, p.Brief.ProductName, domain.RagCategoryAd, 3)
	if err != nil {
		in.Fallback(domain.StageFetch, err)
		docs = nil
	}
	if err := in.Log().AppendMarker(ctx, in.SessionID, domain.MarkerAdBrief, p.Brief); err != nil {
		return nil, err
	}
	return &AdContext{References: docs}, nil
}

// slotConcurrency bounds parallel LLM calls for one copy matrix.
const slotConcurrency = 3

func (a *adCopyAgent) analyze(ctx context.Context, in *pipeline.Input, p AdParams, rag *AdContext) (*AdAnalysis, error) {
	perSlot := 2
	extra := ""
	if p.Additional {
		perSlot = 3
		extra = "- 추가 지시: 이전에 제공한 문구와 겹치지 않도록 새로운 관점과 표현을 사용하세요."
	}
	summary := summarizeBrief(p.Brief)
	refs := rag.Text()

	var (
		mu     sync.Mutex
		matrix = make(map[string]map[string][]string, len(p.Tones))
	)
	for _, tone := range p.Tones {
		matrix[tone] = make(map[string][]string, len(p.Lengths))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(slotConcurrency)
	for _, tone := range p.Tones {
		for _, length := range p.Lengths {
			tone, length := tone, length
			g.Go(func() error {
				reply, err := a.complete(gctx, llm.Prompt{
					System: adSystemPrompt,
					User: fmt.Sprintf("제품 정보:\n%s\n\n과거 레퍼런스:\n%s\n\n요구사항:\n- 톤: %s\n- 길이: %s\n- 제안 개수: %d\n%s\n\n"+
						"조건:\n- 한국어로 작성\n- 과장 표현, 법적 문제가 될 수 있는 표현 피하기\n- 마지막에 해시태그 금지\n- 각 문구는 한 문장으로 작성\n\n"+
						"출력 형식:\nJSON 배열. 각 요소는 {\"copy\": \"<문구>\"} 형태여야 합니다.",
						summary, refs, tone, length, perSlot, extra),
					Temperature: 0.8,
				})
				var copies []string
				if err != nil {
					in.Logger().Warn().Str("tone", tone).Str("length", length).Err(err).Msg("copy generation failed")
				} else {
					copies = ExtractCopies(reply)
				}
				if len(copies) > perSlot {
					copies = copies[:perSlot]
				}
				mu.Lock()
				matrix[tone][length] = copies
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	an := &AdAnalysis{Matrix: matrix}
	templated := 0
	for _, tone := range p.Tones {
		for _, length := range p.Lengths {
			copies := matrix[tone][length]
			template := false
			if len(copies) == 0 {
				copies = templateCopies(p.Brief, tone, length, perSlot)
				matrix[tone][length] = copies
				template = true
				templated++
			}
			for _, text := range copies {
				an.Copies = append(an.Copies, AdCopy{Text: text, Tone: tone, Length: length, Template: template, Compliant: true})
			}
		}
	}
	if templated > 0 {
		in.Fallback(domain.StageAnalyze, fmt.Errorf("%d copy slots used templates", templated))
	}

	compliance, err := a.checkCompliance(ctx, an.Copies)
	if err != nil {
		in.Fallback(domain.StageAnalyze, err)
		compliance = localCompliance(an.Copies, a.ForbiddenWords)
	}
	for _, issue := range compliance.Issues {
		if issue.Index >= 0 && issue.Index < len(an.Copies) {
			an.Copies[issue.Index].Compliant = false
		}
	}
	compliance.Failed = 0
	for _, c := range an.Copies {
		if !c.Compliant {
			compliance.Failed++
		}
	}
	compliance.Passed = len(an.Copies) - compliance.Failed
	an.Compliance = compliance
	return an, nil
}

func (a *adCopyAgent) checkCompliance(ctx context.Context, copies []AdCopy) (ComplianceSummary, error) {
	if a.Policy == nil {
		return localCompliance(copies, a.ForbiddenWords), nil
	}
	inputs := make([]policy.CopyInput, len(copies))
	for i, c := range copies {
		inputs[i] = policy.CopyInput{Index: i, Tone: c.Tone, Length: c.Length, Text: c.Text}
	}
	rep, err := a.Policy.CheckAdCopy(ctx, inputs, a.ForbiddenWords)
	if err != nil {
		return ComplianceSummary{}, err
	}
	return ComplianceSummary{Decision: rep.Decision, Issues: rep.Issues}, nil
}

// localCompliance is the plain substring check used when no policy engine is wired.
func localCompliance(copies []AdCopy, forbidden []string) ComplianceSummary {
	out := ComplianceSummary{Decision: policy.DecisionPass, Issues: []policy.Issue{}}
	for i, c := range copies {
		lower := strings.ToLower(c.Text)
		for _, w := range forbidden {
			if strings.Contains(lower, strings.ToLower(w)) {
				out.Issues = append(out.Issues, policy.Issue{Index: i, Tone: c.Tone, Length: c.Length, Word: w})
			}
		}
	}
	if len(out.Issues) > 0 {
		out.Decision = policy.DecisionReview
	}
	return out
}

var copyField = regexp.MustCompile(`"copy"\s*:\s*"([^"]+)"`)
var listItem = regexp.MustCompile(`^(?:[-•*]|\d+[.)])\s*(.+)$`)

// ExtractCopies pulls copies out of an LLM reply: a JSON array of
// {"copy": ...}, an object holding one under "copies" or "items", loose
// "copy" fields, or list items.
func ExtractCopies(reply string) []string {
	if block := llm.ExtractJSON(reply); block != "" {
		var list []map[string]interface{}
		if err := json.Unmarshal([]byte(block), &list); err == nil {
			return copyValues(list)
		}
		var obj map[string][]map[string]interface{}
		if err := json.Unmarshal([]byte(block), &obj); err == nil {
			if items := obj["copies"]; items != nil {
				return copyValues(items)
			}
			return copyValues(obj["items"])
		}
	}
	var out []string
	for _, m := range copyField.FindAllStringSubmatch(reply, -1) {
		if s := strings.TrimSpace(m[1]); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, line := range strings.Split(reply, "\n") {
		if m := listItem.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if s := strings.Trim(strings.TrimSpace(m[1]), `"`); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func copyValues(items []map[string]interface{}) []string {
	var out []string
	for _, item := range items {
		if s, ok := item["copy"].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func summarizeBrief(b AdBrief) string {
	desc := b.ProductDescription
	if desc == "" {
		desc = "세부 설명 없음"
	}
	lines := []string{"제품명: " + b.ProductName, "설명: " + desc}
	if len(b.KeyFeatures) > 0 {
		lines = append(lines, "핵심 특징:")
		for _, f := range b.KeyFeatures {
			lines = append(lines, "- "+f)
		}
	}
	if b.TargetAudience != "" {
		lines = append(lines, "타겟 고객: "+b.TargetAudience)
	}
	if b.CampaignGoal != "" {
		lines = append(lines, "캠페인 목표: "+b.CampaignGoal)
	}
	return strings.Join(lines, "\n")
}

var copyTemplates = map[string]map[string][]string{
	"friendly": {
		"short":  {"%s, 오늘부터 함께해요.", "매일이 가벼워지는 %s."},
		"medium": {"매일 쓰는 %s, 더 편하고 즐겁게 바꿔보세요.", "%s와 함께라면 평범한 하루도 조금 더 특별해져요."},
		"long":   {"%s와 함께라면 일상이 조금 더 가벼워져요. 지금 만나보고 차이를 직접 느껴보세요.", "고민은 줄이고 만족은 늘리는 방법, %s에서 시작해 보세요. 한 번 써보시면 이유를 아실 거예요."},
	},
	"formal": {
		"short":  {"%s, 신뢰할 수 있는 선택.", "품질로 증명하는 %s."},
		"medium": {"%s는 검증된 품질로 고객의 일상을 지원합니다.", "꼼꼼한 설계로 완성한 %s를 소개합니다."},
		"long":   {"%s는 세심한 품질 관리와 설계로 고객 여러분께 한결같은 만족을 드리고자 합니다.", "오랜 연구 끝에 선보이는 %s, 고객 여러분의 일상에 든든한 동반자가 되겠습니다."},
	},
	"humor": {
		"short":  {"%s 없이는 못 살아, 진짜로.", "%s, 한 번 쓰면 자꾸 생각나요."},
		"medium": {"%s 써본 사람만 아는 그 맛, 이제 당신 차례예요.", "어제의 나에게 %s를 소개해주고 싶을 정도예요."},
		"long":   {"주변에서 요즘 왜 이렇게 여유롭냐고 묻는다면, 살짝 %s 이야기를 꺼내보세요. 비밀은 오래 못 가니까요.", "%s를 만나고 나서 생긴 고민은 단 하나, 왜 이제야 알았냐는 거예요."},
	},
}

var genericTemplates = map[string][]string{
	"short":  {"%s, 지금 만나보세요.", "새로운 일상, %s."},
	"medium": {"%s로 더 나은 하루를 시작해 보세요.", "지금 필요한 선택, %s를 경험해 보세요."},
	"long":   {"%s는 당신의 일상을 세심하게 생각해 만든 제품입니다. 지금 직접 경험해 보세요.", "작은 변화가 큰 차이를 만듭니다. %s와 함께 그 변화를 시작해 보세요."},
}

// templateCopies fills an empty slot deterministically.
func templateCopies(b AdBrief, tone, length string, n int) []string {
	templates := genericTemplates[length]
	if byTone, ok := copyTemplates[tone]; ok && byTone[length] != nil {
		templates = byTone[length]
	}
	if templates == nil {
		templates = genericTemplates["medium"]
	}
	out := make([]string, 0, n)
	for i := 0; i < n && i < len(templates); i++ {
		out = append(out, fmt.Sprintf(templates[i], b.ProductName))
	}
	if n > len(templates) && len(b.KeyFeatures) > 0 {
		out = append(out, fmt.Sprintf("%s, %s까지 챙겼습니다.", b.ProductName, b.KeyFeatures[0]))
	}
	return out
}

// index writes one RagDoc per non-empty tone/length slot.
func (a *adCopyAgent) index(ctx context.Context, in *pipeline.Input, p AdParams, an *AdAnalysis) error {
	generatedAt := a.now().UTC().Format(time.RFC3339)
	var firstErr error
	for _, tone := range p.Tones {
		for _, length := range p.Lengths {
			copies := an.Matrix[tone][length]
			if len(copies) == 0 {
				continue
			}
			lines := []string{fmt.Sprintf("[%s] 톤=%s, 길이=%s", p.Brief.ProductName, tone, length)}
			for _, c := range copies {
				lines = append(lines, "- "+c)
			}
			meta, _ := json.Marshal(map[string]interface{}{
				"product_name":  p.Brief.ProductName,
				"tone":          tone,
				"length":        length,
				"generated_at":  generatedAt,
				"key_features":  p.Brief.KeyFeatures,
				"campaign_goal": p.Brief.CampaignGoal,
			})
			doc := &domain.RagDoc{
				Category: domain.RagCategoryAd,
				Content:  strings.Join(lines, "\n"),
				Metadata: meta,
			}
			if err := a.Runner.Store.AddRagDoc(ctx, doc); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to index ad copies: %w", err)
			}
		}
	}
	return firstErr
}

func (a *adCopyAgent) compose(in *pipeline.Input, p AdParams, _ *AdContext, an *AdAnalysis, _ *pipeline.Artifact) string {
	label := func(m map[string]string, k string) string {
		if v, ok := m[k]; ok {
			return v
		}
		return k
	}

	lines := []string{fmt.Sprintf("✍️ **%s 광고 문구 제안**", p.Brief.ProductName)}
	if p.Brief.TargetAudience != "" {
		lines = append(lines, "- 타깃: "+p.Brief.TargetAudience)
	}
	if p.Brief.CampaignGoal != "" {
		lines = append(lines, "- 캠페인 목표: "+p.Brief.CampaignGoal)
	}
	if p.Additional {
		lines = append(lines, "", "🔁 추가 요청을 반영해 새로운 문구를 제안합니다.")
	}
	lines = append(lines, "", fmt.Sprintf("총 %d개의 카피를 길이·톤 조합으로 구성했습니다:", len(an.Copies)))

	for _, tone := range p.Tones {
		byLength := an.Matrix[tone]
		if len(byLength) == 0 {
			continue
		}
		lines = append(lines, "", fmt.Sprintf("**톤: %s**", label(toneLabels, tone)))
		for _, length := range p.Lengths {
			if copies := byLength[length]; len(copies) > 0 {
				lines = append(lines, fmt.Sprintf("- %s: %s", label(lengthLabels, length), copies[0]))
			}
		}
	}

	c := an.Compliance
	lines = append(lines, "", fmt.Sprintf("✅ 규제 검수 통과: %d개 / ⚠️ 보완 필요: %d개", c.Passed, c.Failed))
	if len(c.Issues) > 0 {
		lines = append(lines, "보완이 필요한 카피는 금지어 또는 표현 제한과 충돌합니다. 아래 항목을 수정하세요:")
		type slot struct{ tone, length string }
		words := map[slot][]string{}
		var order []slot
		for _, issue := range c.Issues {
			s := slot{issue.Tone, issue.Length}
			if _, ok := words[s]; !ok {
				order = append(order, s)
			}
			if !containsString(words[s], issue.Word) {
				words[s] = append(words[s], issue.Word)
			}
		}
		for i, s := range order {
			if i == 3 {
				lines = append(lines, fmt.Sprintf("  · 추가 보완 필요 항목 %d개", len(order)-3))
				break
			}
			lines = append(lines, fmt.Sprintf("- %s / %s: %s", label(toneLabels, s.tone), label(lengthLabels, s.length), strings.Join(words[s], ", ")))
		}
	}

	lines = append(lines,
		"",
		"필요하면 특정 톤이나 길이만 다시 요청하거나, 제품 특징을 더 알려주시면 카피를 미세 조정할 수 있습니다.",
		"",
		"⚠️ 본 결과는 마케팅 참고용 초안입니다. 최종 사용 전 관련 법규와 브랜드 가이드를 다시 확인하세요.",
	)
	return strings.Join(lines, "\n")
}
