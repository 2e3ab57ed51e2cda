// Package agents defines the six task pipelines and binds them to the router.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/router"
	"github.com/xiaot623/gogo/marketing/internal/tools"
	"github.com/xiaot623/gogo/marketing/policy"
)

// Deps are the collaborators shared by every agent.
type Deps struct {
	Runner *pipeline.Runner
	LLM    llm.LLMClient
	Model  string
	Tools  *tools.Registry
	Chains config.Chains

	// Policy checks generated ad copies. Nil skips the check.
	Policy         *policy.Engine
	ForbiddenWords []string

	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Register builds every pipeline and binds it in reg.
func Register(reg *router.Registry, d *Deps) error {
	if d.Runner == nil || d.LLM == nil || d.Tools == nil {
		return errors.New("agents: runner, llm and tools are required")
	}
	if len(d.Chains.Trend) == 0 && len(d.Chains.Product) == 0 && len(d.Chains.Reviews) == 0 {
		d.Chains = config.DefaultChains()
	}

	builders := []struct {
		task  domain.TaskID
		build func(*Deps) (router.Handler, error)
	}{
		{domain.TaskTrend, NewTrend},
		{domain.TaskAdCopy, NewAdCopy},
		{domain.TaskSegment, NewSegment},
		{domain.TaskReview, NewReview},
		{domain.TaskCompetitor, NewCompetitor},
		{domain.TaskSynthesis, NewSynthesis},
	}
	for _, b := range builders {
		h, err := b.build(d)
		if err != nil {
			return fmt.Errorf("failed to build %s pipeline: %w", b.task, err)
		}
		if err := reg.Bind(b.task, h); err != nil {
			return err
		}
	}
	return nil
}

// complete runs one prompt against the configured model.
func (d *Deps) complete(ctx context.Context, p llm.Prompt) (string, error) {
	return llm.Complete(ctx, d.LLM, d.Model, p)
}

var errMockReply = errors.New("mock llm reply")

// completeText is complete for free-text stages. A mock echo is not usable
// text, so it is reported as an error and the stage falls back.
func (d *Deps) completeText(ctx context.Context, p llm.Prompt) (string, error) {
	reply, err := d.complete(ctx, p)
	if err != nil {
		return "", err
	}
	if llm.IsMockReply(reply) {
		return "", errMockReply
	}
	return reply, nil
}

func (d *Deps) fetchTrend(ctx context.Context, q provider.TrendQuery) (*provider.TrendData, string, error) {
	raw, used, err := d.Tools.ExecuteChain(ctx, d.Chains.Trend, mustJSON(q))
	if err != nil {
		return nil, "", err
	}
	var data provider.TrendData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, used, fmt.Errorf("failed to decode %s response: %w", used, err)
	}
	return &data, used, nil
}

func (d *Deps) fetchProduct(ctx context.Context, q provider.ProductQuery) (*provider.Product, error) {
	raw, used, err := d.Tools.ExecuteChain(ctx, d.Chains.Product, mustJSON(q))
	if err != nil {
		return nil, err
	}
	var p provider.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", used, err)
	}
	return &p, nil
}

// minReviews is the count at which review collection stops asking further tiers.
const minReviews = 10

// fetchReviews walks the review chain, accumulating deduplicated texts
// until minReviews is reached or the chain ends.
func (d *Deps) fetchReviews(ctx context.Context, in *pipeline.Input, product string, limit int) (*provider.ReviewData, error) {
	args := mustJSON(provider.ReviewQuery{Product: product, Limit: limit})
	var (
		collected []string
		sources   []string
		mock      bool
	)
	for _, name := range d.Chains.Reviews {
		raw, err := d.Tools.Execute(ctx, name, args)
		if err != nil {
			in.Logger().Debug().Str("tool", name).Err(err).Msg("review source failed")
			continue
		}
		var data provider.ReviewData
		if err := json.Unmarshal(raw, &data); err != nil {
			in.Logger().Warn().Str("tool", name).Err(err).Msg("review source returned malformed data")
			continue
		}
		before := len(collected)
		collected = provider.DedupeReviews(append(collected, data.Reviews...))
		if len(collected) > before {
			sources = append(sources, data.Source)
			mock = mock || data.IsMock
		}
		if len(collected) >= minReviews {
			break
		}
	}
	if len(collected) == 0 {
		return nil, domain.ErrNoData
	}
	if limit > 0 && len(collected) > limit {
		collected = collected[:limit]
	}
	return &provider.ReviewData{Reviews: collected, Source: strings.Join(sources, ", "), IsMock: mock}, nil
}

// fetchShare returns the latest vendor share, or nil when unavailable.
func (d *Deps) fetchShare(ctx context.Context, in *pipeline.Input) *provider.ShareData {
	raw, err := d.Tools.Execute(ctx, provider.ToolStatCounter, nil)
	if err != nil {
		in.Logger().Debug().Err(err).Msg("market share unavailable")
		return nil
	}
	var share provider.ShareData
	if err := json.Unmarshal(raw, &share); err != nil || len(share.Shares) == 0 {
		return nil
	}
	return &share
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("agents: marshal %T: %v", v, err))
	}
	return b
}

var (
	productCleanup = regexp.MustCompile(`(구매자들?의|에\s*대한|관련)\s*$`)
	productRules   = []*regexp.Regexp{
		regexp.MustCompile(`(.+?)\s*구매자`),
		regexp.MustCompile(`(.+?)[을를]\s*세그먼트`),
		regexp.MustCompile(`(.+?)\s*타겟`),
		regexp.MustCompile(`^([가-힣A-Za-z0-9\s]+?)의\s*리뷰`),
		regexp.MustCompile(`^([가-힣A-Za-z0-9\s]+?)\s*리뷰`),
		regexp.MustCompile(`^([가-힣A-Za-z0-9\s]+?)\s*감성\s*분석`),
		regexp.MustCompile(`^([가-힣A-Za-z0-9\s]+?)\s*후기`),
		regexp.MustCompile(`^([가-힣A-Za-z0-9\s]+?)\s*평가`),
		regexp.MustCompile(`^([가-힣A-Za-z0-9\s]+?)[을를]\s*분석`),
	}
)

// ExtractProductName applies the product-name rules used by the segment and
// review pipelines. It returns "" when no rule matches.
func ExtractProductName(message string) string {
	message = strings.TrimSpace(message)
	for _, re := range productRules {
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(productCleanup.ReplaceAllString(strings.TrimSpace(m[1]), ""))
		if name != "" {
			return name
		}
	}
	return ""
}

// extractProduct runs the rules, then asks the LLM for a single product name.
func (d *Deps) extractProduct(ctx context.Context, in *pipeline.Input) string {
	if name := ExtractProductName(in.Message); name != "" {
		return name
	}
	reply, err := d.completeText(ctx, llm.Prompt{
		System: "사용자 요청에서 분석 대상 제품명만 한 줄로 출력하세요. 제품명이 없으면 '없음'이라고만 출력하세요.",
		User:   in.Message,
	})
	if err != nil {
		in.Fallback(domain.StageExtract, err)
		return ""
	}
	name := strings.Trim(strings.TrimSpace(strings.SplitN(reply, "\n", 2)[0]), `"'`)
	if name == "" || name == "없음" || len([]rune(name)) > 40 {
		return ""
	}
	return name
}

// stripMarkdown flattens LLM markdown for the plain-text reply.
var (
	mdFence   = regexp.MustCompile("(?s)```.*?```")
	mdHeading = regexp.MustCompile(`(?m)^#+\s*`)
	mdBold    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	mdCode    = regexp.MustCompile("`([^`]*)`")
	mdBullet  = regexp.MustCompile(`(?m)^-\s+`)
	mdQuote   = regexp.MustCompile(`(?m)^>\s*`)
	mdBlank   = regexp.MustCompile(`\n{3,}`)
)

func stripMarkdown(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = mdFence.ReplaceAllString(s, "")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdCode.ReplaceAllString(s, "$1")
	s = mdBullet.ReplaceAllString(s, "• ")
	s = mdQuote.ReplaceAllString(s, "")
	s = mdBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(stripMarkdown(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func formatPct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func formatWon(v int) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String() + "원"
	}
	return sb.String() + "원"
}
