package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultDataLabURL = "https://openapi.naver.com/v1/datalab/search"
	defaultSearchBase = "https://openapi.naver.com/v1/search"
)

// NaverConfig holds credentials and endpoints for the Naver Open APIs.
// DataLab and the search APIs use separate application keys.
type NaverConfig struct {
	DataLabClientID     string
	DataLabClientSecret string
	DataLabURL          string
	SearchClientID      string
	SearchClientSecret  string
	SearchBaseURL       string
	RatePerSec          int
	Timeout             time.Duration
}

// Naver calls the DataLab trend API and the shopping and blog search APIs
// through one shared rate limiter.
type Naver struct {
	cfg        NaverConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewNaver creates a Naver client.
func NewNaver(cfg NaverConfig) *Naver {
	if cfg.DataLabURL == "" {
		cfg.DataLabURL = defaultDataLabURL
	}
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = defaultSearchBase
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Naver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		now:        time.Now,
	}
}

// TrendConfigured reports whether DataLab credentials are present.
func (n *Naver) TrendConfigured() bool {
	return n.cfg.DataLabClientID != "" && n.cfg.DataLabClientSecret != ""
}

// SearchConfigured reports whether search API credentials are present.
func (n *Naver) SearchConfigured() bool {
	return n.cfg.SearchClientID != "" && n.cfg.SearchClientSecret != ""
}

type dataLabGroup struct {
	GroupName string   `json:"groupName"`
	Keywords  []string `json:"keywords"`
}

type dataLabRequest struct {
	StartDate     string         `json:"startDate"`
	EndDate       string         `json:"endDate"`
	TimeUnit      string         `json:"timeUnit"`
	KeywordGroups []dataLabGroup `json:"keywordGroups"`
	Device        string         `json:"device"`
	Gender        string         `json:"gender"`
	Ages          []string       `json:"ages"`
}

type dataLabResponse struct {
	Results []struct {
		Title     string   `json:"title"`
		GroupName string   `json:"groupName"`
		Keywords  []string `json:"keywords"`
		Data      []struct {
			Period string   `json:"period"`
			Ratio  *float64 `json:"ratio"`
		} `json:"data"`
	} `json:"results"`
}

// Trend queries DataLab. At most five keyword groups are sent.
func (n *Naver) Trend(ctx context.Context, q TrendQuery) (*TrendData, error) {
	if !n.TrendConfigured() {
		return nil, ErrNotConfigured
	}
	if len(q.Keywords) == 0 {
		return nil, fmt.Errorf("keywords are required")
	}
	keywords := q.Keywords
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	body := dataLabRequest{
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		TimeUnit:  q.TimeUnit,
		Ages:      []string{},
	}
	for _, kw := range keywords {
		body.KeywordGroups = append(body.KeywordGroups, dataLabGroup{GroupName: kw, Keywords: []string{kw}})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.DataLabURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	n.authorize(req, n.cfg.DataLabClientID, n.cfg.DataLabClientSecret)

	var resp dataLabResponse
	if err := n.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("datalab response has no results")
	}

	out := &TrendData{
		Keywords: keywords,
		Period:   Period{Start: q.StartDate, End: q.EndDate},
		TimeUnit: q.TimeUnit,
	}
	for _, entry := range resp.Results {
		group := TrendGroup{Group: entry.Title, Keywords: entry.Keywords}
		if group.Group == "" {
			group.Group = entry.GroupName
		}
		if group.Group == "" {
			group.Group = keywords[0]
		}
		for _, p := range entry.Data {
			if p.Ratio == nil {
				continue
			}
			group.Series = append(group.Series, TrendPoint{Date: p.Period, Value: *p.Ratio})
		}
		out.Results = append(out.Results, group)
	}
	return out, nil
}

type searchResponse struct {
	Total int `json:"total"`
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
		LPrice      string `json:"lprice"`
		Brand       string `json:"brand"`
		MallName    string `json:"mallName"`
		Category1   string `json:"category1"`
	} `json:"items"`
}

// Shopping looks up the best matching listing on Naver Shopping.
func (n *Naver) Shopping(ctx context.Context, q ProductQuery) (*Product, error) {
	if !n.SearchConfigured() {
		return nil, ErrNotConfigured
	}
	var resp searchResponse
	if err := n.search(ctx, "shop.json", url.Values{
		"query":   {q.Name},
		"display": {"5"},
		"sort":    {"sim"},
	}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("no shopping results for %q", q.Name)
	}

	item := resp.Items[0]
	price, err := strconv.Atoi(strings.TrimSpace(item.LPrice))
	if err != nil {
		return nil, fmt.Errorf("invalid lprice %q: %w", item.LPrice, err)
	}
	brand := strings.TrimSpace(item.Brand)
	if brand == "" {
		brand = "Unknown"
	}
	category := item.Category1
	if category == "" {
		category = q.Category
	}
	return &Product{
		Name:     StripTags(item.Title),
		Brand:    brand,
		Price:    price,
		Mall:     []string{item.MallName},
		Category: category,
		Source: ProductSource{
			Provider:    "네이버 쇼핑 API",
			URL:         item.Link,
			CrawledAt:   n.now().Format(time.RFC3339),
			Reliability: ReliabilityOfficialAPI,
		},
	}, nil
}

// Blog collects blog post snippets that mention the product as review texts.
func (n *Naver) Blog(ctx context.Context, q ReviewQuery) (*ReviewData, error) {
	if !n.SearchConfigured() {
		return nil, ErrNotConfigured
	}
	display := q.Limit
	if display <= 0 || display > 100 {
		display = 30
	}
	var resp searchResponse
	if err := n.search(ctx, "blog.json", url.Values{
		"query":   {q.Product + " 후기"},
		"display": {strconv.Itoa(display)},
		"sort":    {"sim"},
	}, &resp); err != nil {
		return nil, err
	}
	out := &ReviewData{Source: "네이버 블로그 검색"}
	for _, item := range resp.Items {
		if text := StripTags(item.Description); text != "" {
			out.Reviews = append(out.Reviews, text)
		}
	}
	out.Reviews = DedupeReviews(out.Reviews)
	if len(out.Reviews) == 0 {
		return nil, fmt.Errorf("no blog results for %q", q.Product)
	}
	return out, nil
}

func (n *Naver) search(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := strings.TrimRight(n.cfg.SearchBaseURL, "/") + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	n.authorize(req, n.cfg.SearchClientID, n.cfg.SearchClientSecret)
	return n.do(ctx, req, out)
}

func (n *Naver) authorize(req *http.Request, id, secret string) {
	req.Header.Set("X-Naver-Client-Id", id)
	req.Header.Set("X-Naver-Client-Secret", secret)
}

func (n *Naver) do(ctx context.Context, req *http.Request, out interface{}) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("naver api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
