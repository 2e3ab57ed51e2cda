package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/gogo/marketing/internal/tools"
)

// Tool names.
const (
	ToolNaverDataLab     = "naver.datalab"
	ToolNaverShopping    = "naver.shopping"
	ToolNaverBlog        = "naver.blog"
	ToolGoogleSearch     = "google.search"
	ToolStatCounter      = "statcounter.share"
	ToolSyntheticTrend   = "synthetic.trend"
	ToolSyntheticProduct = "synthetic.product"
	ToolSyntheticReviews = "synthetic.reviews"
)

// Set bundles the constructed providers. A nil member leaves its tools
// unregistered, which a chain reports as a failed tier.
type Set struct {
	Naver       *Naver
	Google      *Google
	StatCounter *StatCounter
	Synthetic   *Synthetic
}

// Register adds every provider in s to reg.
func Register(reg *tools.Registry, s Set) error {
	entries := map[string]tools.ExecutorFunc{}
	if s.Naver != nil {
		entries[ToolNaverDataLab] = typed(s.Naver.Trend)
		entries[ToolNaverShopping] = typed(s.Naver.Shopping)
		entries[ToolNaverBlog] = typed(s.Naver.Blog)
	}
	if s.Google != nil {
		entries[ToolGoogleSearch] = googleExecutor(s.Google)
	}
	if s.StatCounter != nil {
		entries[ToolStatCounter] = func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			data, err := s.StatCounter.Share(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(data)
		}
	}
	if s.Synthetic != nil {
		entries[ToolSyntheticTrend] = typed(s.Synthetic.Trend)
		entries[ToolSyntheticProduct] = typed(s.Synthetic.Product)
		entries[ToolSyntheticReviews] = typed(s.Synthetic.Reviews)
	}
	for name, exec := range entries {
		if err := reg.Register(name, exec); err != nil {
			return err
		}
	}
	return nil
}

// typed adapts a typed provider call to the registry's JSON signature.
func typed[A any, R any](fn func(context.Context, A) (*R, error)) tools.ExecutorFunc {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var in A
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
}

type googleArgs struct {
	// Name selects a product lookup (ProductQuery shape).
	Name     string `json:"name"`
	Category string `json:"category"`
	Index    int    `json:"index"`
	// Product selects a review lookup (ReviewQuery shape).
	Product string `json:"product"`
	Limit   int    `json:"limit"`
	// Query runs a plain search.
	Query string `json:"query"`
	Num   int    `json:"num"`
}

// googleExecutor serves the product and review chains and plain searches
// under one tool name, keyed by the shape of the arguments.
func googleExecutor(g *Google) tools.ExecutorFunc {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var in googleArgs
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		var (
			out interface{}
			err error
		)
		switch {
		case in.Name != "":
			out, err = g.Product(ctx, ProductQuery{Name: in.Name, Category: in.Category, Index: in.Index})
		case in.Product != "":
			out, err = g.Reviews(ctx, ReviewQuery{Product: in.Product, Limit: in.Limit})
		case in.Query != "":
			out, err = g.Search(ctx, in.Query, in.Num)
		default:
			return nil, fmt.Errorf("google.search needs name, product or query")
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
}
