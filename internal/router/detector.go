// Package router detects the task of a chat message and dispatches it to
// the registered pipeline.
package router

import (
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// Rule is one row of the detection table.
type Rule struct {
	Task     domain.TaskID
	Keywords []string
}

// DefaultRules is the detection table. Order is load-bearing: when a message
// carries keywords of several tasks, the earlier row wins.
var DefaultRules = []Rule{
	{domain.TaskTrend, []string{"트렌드", "유행", "인기", "검색량", "관심도", "소비"}},
	{domain.TaskAdCopy, []string{"광고", "문구", "카피", "헤드라인", "슬로건"}},
	{domain.TaskSegment, []string{"세그먼트", "고객분류", "타겟", "페르소나", "클러스터", "그룹"}},
	{domain.TaskReview, []string{"리뷰", "감성", "평가", "후기", "댓글", "의견"}},
	{domain.TaskCompetitor, []string{"경쟁사", "비교", "가격", "시장", "벤치마크", "경쟁"}},
	{domain.TaskSynthesis, []string{"종합", "통합", "전체", "보고서", "정리", "마케팅 전략", "전략 보고서"}},
}

// Detector maps a message to a task by case-insensitive substring match.
type Detector struct {
	rules []Rule
}

// NewDetector creates a detector over rules, or DefaultRules when empty.
func NewDetector(rules []Rule) *Detector {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	lowered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		lowered = append(lowered, Rule{Task: r.Task, Keywords: kws})
	}
	return &Detector{rules: lowered}
}

// RulesFromConfig converts the configured keyword table, keeping its order.
func RulesFromConfig(rows []config.TaskKeywords) ([]Rule, error) {
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		task := domain.TaskID(row.Task)
		if !task.Valid() {
			return nil, fmt.Errorf("unknown task %q in keyword table", row.Task)
		}
		rules = append(rules, Rule{Task: task, Keywords: row.Keywords})
	}
	return rules, nil
}

// Detect returns the first task in table order with a keyword contained in message.
func (d *Detector) Detect(message string) (domain.TaskID, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return "", false
	}
	for _, r := range d.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Task, true
			}
		}
	}
	return "", false
}

// Keywords returns the configured keywords of task.
func (d *Detector) Keywords(task domain.TaskID) []string {
	for _, r := range d.rules {
		if r.Task == task {
			return r.Keywords
		}
	}
	return nil
}
