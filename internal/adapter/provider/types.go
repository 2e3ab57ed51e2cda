// Package provider implements the external data sources behind the tool
// registry: Naver DataLab and search APIs, Google Custom Search, StatCounter
// and the synthetic fallbacks.
package provider

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNotConfigured is returned when a provider has no credentials.
// The fallback chain moves on to the next tier.
var ErrNotConfigured = errors.New("provider not configured")

// Reliability labels on ProductSource.
const (
	ReliabilityOfficialAPI = "official_api"
	ReliabilityWebSearch   = "web_search"
	ReliabilityMock        = "mock"
)

// TrendQuery asks for a search-interest series.
type TrendQuery struct {
	Keywords  []string `json:"keywords"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	TimeUnit  string   `json:"time_unit"`
}

// TrendPoint is one sample of a series.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// TrendGroup is the series for one keyword group.
type TrendGroup struct {
	Group    string       `json:"group"`
	Keywords []string     `json:"keywords"`
	Series   []TrendPoint `json:"series"`
}

// Period is an inclusive date range.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TrendData is the normalized trend response.
type TrendData struct {
	Keywords []string     `json:"keywords"`
	Period   Period       `json:"period"`
	TimeUnit string       `json:"time_unit"`
	Results  []TrendGroup `json:"results"`
	IsMock   bool         `json:"is_mock"`
}

// Series flattens all groups into one list.
func (d *TrendData) Series() []TrendPoint {
	var out []TrendPoint
	for _, g := range d.Results {
		out = append(out, g.Series...)
	}
	return out
}

// ProductQuery asks for one product listing. Index orders the product
// within a comparison and shapes synthetic data.
type ProductQuery struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Index    int    `json:"index"`
}

// ProductReviews summarizes review volume.
type ProductReviews struct {
	Count  int     `json:"count"`
	Rating float64 `json:"rating"`
}

// ProductSource records where a listing came from.
type ProductSource struct {
	Provider    string `json:"provider"`
	URL         string `json:"url,omitempty"`
	CrawledAt   string `json:"crawled_at"`
	Reliability string `json:"reliability"`
}

// Product is a normalized product listing.
type Product struct {
	Name     string         `json:"name"`
	Brand    string         `json:"brand"`
	Price    int            `json:"price"`
	Mall     []string       `json:"mall"`
	Category string         `json:"category,omitempty"`
	Reviews  ProductReviews `json:"reviews"`
	Source   ProductSource  `json:"source"`
}

// ReviewQuery asks for review texts about a product.
type ReviewQuery struct {
	Product string `json:"product"`
	Limit   int    `json:"limit"`
}

// ReviewData carries collected review texts.
type ReviewData struct {
	Reviews []string `json:"reviews"`
	Source  string   `json:"source"`
	IsMock  bool     `json:"is_mock"`
}

// ShareData is a vendor market-share snapshot in percent.
type ShareData struct {
	Month  string             `json:"month"`
	Shares map[string]float64 `json:"shares"`
	Source string             `json:"source"`
}

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// StripTags removes HTML markup such as the <b> highlights of search APIs.
func StripTags(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.NewReplacer("&quot;", `"`, "&amp;", "&", "&lt;", "<", "&gt;", ">", "&#39;", "'").Replace(s)
	return strings.TrimSpace(s)
}

var brandHints = []struct {
	brand    string
	keywords []string
}{
	{"Apple", []string{"아이폰", "맥북", "에어팟", "아이패드", "iphone", "macbook", "airpods", "ipad", "apple", "애플"}},
	{"Samsung", []string{"갤럭시", "galaxy", "삼성", "samsung"}},
	{"LG", []string{"lg 그램", "그램", "엘지", "lg"}},
	{"Dyson", []string{"다이슨", "dyson"}},
	{"Xiaomi", []string{"샤오미", "xiaomi", "redmi", "poco"}},
	{"Google", []string{"픽셀", "pixel", "구글", "google"}},
	{"Sony", []string{"소니", "sony"}},
}

// InferBrand guesses the brand from a product name. Unknown when no hint matches.
func InferBrand(name string) string {
	lower := strings.ToLower(name)
	for _, h := range brandHints {
		for _, kw := range h.keywords {
			if strings.Contains(lower, kw) {
				return h.brand
			}
		}
	}
	return "Unknown"
}

// DedupeReviews trims, drops texts shorter than ten characters and removes
// exact duplicates, keeping first occurrence order.
func DedupeReviews(reviews []string) []string {
	seen := make(map[string]struct{}, len(reviews))
	out := make([]string, 0, len(reviews))
	for _, r := range reviews {
		r = strings.TrimSpace(r)
		if len([]rune(r)) < 10 {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
