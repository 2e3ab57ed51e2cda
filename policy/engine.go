// Package policy evaluates ad-copy compliance rules with OPA.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the compliance policy.
const (
	DecisionPass   = "pass"
	DecisionReview = "review"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
// The module must define data.ad_compliance.result.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.ad_compliance.result"),
		rego.Module("ad_compliance.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// CopyInput is one generated copy to check.
type CopyInput struct {
	Index  int    `json:"index"`
	Tone   string `json:"tone"`
	Length string `json:"length"`
	Text   string `json:"text"`
}

// Issue is one flagged forbidden expression.
type Issue struct {
	Index  int    `json:"index"`
	Tone   string `json:"tone"`
	Length string `json:"length"`
	Word   string `json:"word"`
}

// Report is the outcome of a compliance check.
type Report struct {
	Decision string  `json:"decision"`
	Issues   []Issue `json:"issues"`
}

// CheckAdCopy flags every copy containing one of the forbidden words.
func (e *Engine) CheckAdCopy(ctx context.Context, copies []CopyInput, forbidden []string) (*Report, error) {
	if copies == nil {
		copies = []CopyInput{}
	}
	if forbidden == nil {
		forbidden = []string{}
	}
	input := map[string]interface{}{
		"copies":          copies,
		"forbidden_words": forbidden,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return &Report{Decision: DecisionPass, Issues: []Issue{}}, nil
	}

	// Round-trip through JSON to map the generic rego value onto Report.
	raw, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy result: %w", err)
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("unexpected policy result: %w", err)
	}
	if report.Issues == nil {
		report.Issues = []Issue{}
	}
	sort.SliceStable(report.Issues, func(i, j int) bool {
		a, b := report.Issues[i], report.Issues[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.Word < b.Word
	})
	return &report, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package ad_compliance

default decision = "pass"

issues[issue] {
	some i, j
	entry := input.copies[i]
	word := input.forbidden_words[j]
	contains(lower(entry.text), lower(word))
	issue := {"index": entry.index, "tone": entry.tone, "length": entry.length, "word": word}
}

decision = "review" {
	count(issues) > 0
}

result = {"decision": decision, "issues": issues}
`
