package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Synthetic produces deterministic, clearly labeled mock data. It is the
// last tier of every chain so the pipelines keep working offline.
type Synthetic struct {
	now func() time.Time
}

// NewSynthetic creates the synthetic provider.
func NewSynthetic() *Synthetic {
	return &Synthetic{now: time.Now}
}

func hashOf(parts ...interface{}) int {
	h := fnv.New32a()
	for _, p := range parts {
		_, _ = fmt.Fprintf(h, "%v\x00", p)
	}
	return int(h.Sum32() & 0x7fffffff)
}

// Trend builds a gently sloped series per keyword that is stable across
// runs for the same input.
func (s *Synthetic) Trend(_ context.Context, q TrendQuery) (*TrendData, error) {
	if len(q.Keywords) == 0 {
		return nil, fmt.Errorf("keywords are required")
	}
	keywords := q.Keywords
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	start, err := time.Parse("2006-01-02", q.StartDate)
	if err != nil {
		start = s.now().AddDate(0, 0, -90)
	}
	end, err := time.Parse("2006-01-02", q.EndDate)
	if err != nil {
		end = s.now()
	}
	if !end.After(start) {
		end = start.AddDate(0, 0, 30)
	}

	totalDays := int(end.Sub(start).Hours() / 24)
	if totalDays < 1 {
		totalDays = 1
	}
	var steps, stepDays int
	switch q.TimeUnit {
	case "date":
		steps = clampInt(orDefault(totalDays/5, 8), 8, 20)
		stepDays = max(1, totalDays/max(steps-1, 1))
	case "week":
		steps = clampInt(orDefault(totalDays/7, 8), 8, 20)
		stepDays = 7
	default:
		steps = clampInt(orDefault(totalDays/30, 6), 6, 20)
		stepDays = 30
	}

	out := &TrendData{
		Keywords: keywords,
		Period:   Period{Start: q.StartDate, End: q.EndDate},
		TimeUnit: q.TimeUnit,
		IsMock:   true,
	}
	for idx, kw := range keywords {
		baseline := 40 + hashOf(kw, idx)%40
		slope := hashOf(kw, "trend")%5 - 2
		group := TrendGroup{Group: kw, Keywords: []string{kw}}
		for i := 0; i < steps; i++ {
			dt := start.AddDate(0, 0, i*stepDays)
			if dt.After(end) {
				dt = end
			}
			jitter := hashOf(kw, i)%10 - 5
			value := clampInt(baseline+slope*(i-steps/2)+jitter, 5, 100)
			group.Series = append(group.Series, TrendPoint{Date: dt.Format("2006-01-02"), Value: float64(value)})
		}
		out.Results = append(out.Results, group)
	}
	return out, nil
}

var priceRanges = []struct {
	hint     string
	low, top int
}{
	{"스마트폰", 1000000, 1500000},
	{"노트북", 1500000, 2500000},
	{"가전", 300000, 1000000},
	{"화장품", 30000, 100000},
	{"패션", 50000, 300000},
}

// Product returns a mock listing. The price steps by index so compared
// products differ.
func (s *Synthetic) Product(_ context.Context, q ProductQuery) (*Product, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, fmt.Errorf("product name is required")
	}
	low, top := 100000, 500000
	for _, r := range priceRanges {
		if strings.Contains(q.Category, r.hint) {
			low, top = r.low, r.top
			break
		}
	}
	price := low + q.Index*50000
	if price > top {
		price = top
	}
	mall := []string{"오픈마켓", "자사몰"}
	if q.Index == 0 {
		mall = []string{"네이버스토어", "쿠팡"}
	}
	count := 420 - 100*q.Index
	if count < 10 {
		count = 10
	}
	rating := 4.5 + 0.1*float64(q.Index)
	if rating > 5 {
		rating = 5
	}
	return &Product{
		Name:     q.Name,
		Brand:    InferBrand(q.Name),
		Price:    price,
		Mall:     mall,
		Category: q.Category,
		Reviews:  ProductReviews{Count: count, Rating: rating},
		Source: ProductSource{
			Provider:    "Mock 데이터",
			CrawledAt:   s.now().Format(time.RFC3339),
			Reliability: ReliabilityMock,
		},
	}, nil
}

var mockReviewTemplates = []string{
	"%s 정말 좋아요! 출퇴근할 때 쓰는데 최고입니다.",
	"가격이 좀 비싸긴 한데 그만한 가치가 있어요. 품질도 좋고 디자인도 깔끔합니다.",
	"운동할 때 사용하려고 샀는데 딱 맞네요. 튼튼하고 사용감이 편해요.",
	"재택근무 때문에 샀는데 정말 유용해요. 기능이 기대 이상입니다.",
	"같은 브랜드 제품을 쓰는 사람은 필수템인 것 같아요. 연결도 쉽고 호환성 좋습니다.",
	"학생인데 공부할 때 쓰기 좋아요. 배터리도 오래가서 만족합니다.",
	"브랜드 가치 때문에 샀는데 실용성도 좋네요. 마감이 특히 인상적이었어요.",
	"디자인이 너무 예쁘고 세련되어서 선물용으로도 좋아요.",
	"기능은 좋은데 가격 대비 조금 아쉬운 점도 있어요. 그래도 만족합니다.",
	"처음 써보는 제품인데 편의성이 정말 좋네요. 배송도 빨랐어요.",
}

// Reviews returns the fixed mock review set for a product.
func (s *Synthetic) Reviews(_ context.Context, q ReviewQuery) (*ReviewData, error) {
	reviews := make([]string, 0, len(mockReviewTemplates))
	for i, tmpl := range mockReviewTemplates {
		if i == 0 {
			reviews = append(reviews, fmt.Sprintf(tmpl, q.Product))
			continue
		}
		reviews = append(reviews, tmpl)
	}
	return &ReviewData{Reviews: reviews, Source: "Mock 데이터", IsMock: true}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
