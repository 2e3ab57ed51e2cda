package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"display_link"`
}

// GoogleConfig configures the Custom Search client.
type GoogleConfig struct {
	APIKey   string
	EngineID string
	// Endpoint overrides the API base path, for tests.
	Endpoint string
}

// Google queries the Custom Search JSON API with Korean locale hints.
type Google struct {
	svc      *customsearch.Service
	engineID string
	now      func() time.Time
}

// NewGoogle creates a Google search client. Without credentials the
// client is returned unconfigured and every call yields ErrNotConfigured.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	g := &Google{engineID: cfg.EngineID, now: time.Now}
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return g, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom search service: %w", err)
	}
	g.svc = svc
	return g, nil
}

// Configured reports whether searches can be issued.
func (g *Google) Configured() bool {
	return g.svc != nil
}

// Search returns up to num results (capped at 10 by the API).
func (g *Google) Search(ctx context.Context, query string, num int) ([]SearchResult, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	if num <= 0 || num > 10 {
		num = 10
	}
	res, err := g.svc.Cse.List().
		Cx(g.engineID).
		Q(query).
		Num(int64(num)).
		Hl("ko").
		Gl("kr").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("custom search failed: %w", err)
	}
	out := make([]SearchResult, 0, len(res.Items))
	for _, item := range res.Items {
		out = append(out, SearchResult{
			Title:       item.Title,
			URL:         item.Link,
			Snippet:     item.Snippet,
			DisplayLink: item.DisplayLink,
		})
	}
	return out, nil
}

// Product searches product pages and extracts brand and price from snippets.
func (g *Google) Product(ctx context.Context, q ProductQuery) (*Product, error) {
	results, err := g.Search(ctx, q.Name+" 가격 스펙", 3)
	if err != nil {
		return nil, err
	}
	return productFromResults(q, results, g.now())
}

// Reviews collects snippets from review searches.
func (g *Google) Reviews(ctx context.Context, q ReviewQuery) (*ReviewData, error) {
	results, err := g.Search(ctx, q.Product+" 리뷰 후기", 10)
	if err != nil {
		return nil, err
	}
	out := &ReviewData{Source: "Google Search"}
	for _, r := range results {
		if len([]rune(r.Snippet)) > 20 {
			out.Reviews = append(out.Reviews, StripTags(r.Snippet))
		}
	}
	out.Reviews = DedupeReviews(out.Reviews)
	if len(out.Reviews) == 0 {
		return nil, fmt.Errorf("no review snippets for %q", q.Product)
	}
	return out, nil
}

var wonPrice = regexp.MustCompile(`([0-9][0-9,]{3,})\s*원`)

// productFromResults takes the first snippet carrying a won price.
func productFromResults(q ProductQuery, results []SearchResult, now time.Time) (*Product, error) {
	for _, r := range results {
		m := wonPrice.FindStringSubmatch(r.Title + " " + r.Snippet)
		if m == nil {
			continue
		}
		price, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil || price <= 0 {
			continue
		}
		mall := r.DisplayLink
		if mall == "" {
			mall = "웹"
		}
		return &Product{
			Name:     q.Name,
			Brand:    InferBrand(q.Name + " " + r.Title),
			Price:    price,
			Mall:     []string{mall},
			Category: q.Category,
			Source: ProductSource{
				Provider:    "Google Search",
				URL:         r.URL,
				CrawledAt:   now.Format(time.RFC3339),
				Reliability: ReliabilityWebSearch,
			},
		}, nil
	}
	return nil, fmt.Errorf("no priced search result for %q", q.Name)
}
