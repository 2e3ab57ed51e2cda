package router

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// Handler runs the pipeline of one task.
type Handler interface {
	Run(ctx context.Context, sessionID, message string) (*domain.Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, sessionID, message string) (*domain.Result, error)

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, sessionID, message string) (*domain.Result, error) {
	return f(ctx, sessionID, message)
}

// Status is the wiring state of a registry entry.
type Status int

const (
	Unimplemented Status = iota
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "unimplemented"
}

// Entry describes one task.
type Entry struct {
	Task        domain.TaskID
	Name        string
	Description string
	Handler     Handler
}

// Status reports whether a handler is bound.
func (e Entry) Status() Status {
	if e.Handler == nil {
		return Unimplemented
	}
	return Ready
}

// Registry is the task table, built once at startup. Every known task has
// an entry; tasks without a handler stay Unimplemented.
type Registry struct {
	entries map[domain.TaskID]*Entry
}

var taskInfo = map[domain.TaskID][2]string{
	domain.TaskTrend:      {"소비 트렌드 분석", "특정 키워드나 제품의 트렌드를 분석합니다."},
	domain.TaskAdCopy:     {"광고 문구 생성", "제품/서비스에 맞는 광고 문구를 생성합니다."},
	domain.TaskSegment:    {"사용자 세그먼트 분류", "사용자 데이터를 세그먼트로 분류합니다."},
	domain.TaskReview:     {"리뷰 감성 분석", "제품 리뷰의 감성을 분석하고 요약합니다."},
	domain.TaskCompetitor: {"경쟁사 분석", "경쟁 제품/서비스를 분석하고 비교합니다."},
	domain.TaskSynthesis:  {"마케팅 전략 종합 보고서", "모든 분석 결과를 종합하여 통합 마케팅 전략을 제시합니다."},
}

// NewRegistry creates a registry with every task Unimplemented.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[domain.TaskID]*Entry, len(domain.AllTasks))}
	for _, task := range domain.AllTasks {
		info := taskInfo[task]
		r.entries[task] = &Entry{Task: task, Name: info[0], Description: info[1]}
	}
	return r
}

// Bind attaches a handler to a known task.
func (r *Registry) Bind(task domain.TaskID, h Handler) error {
	entry, ok := r.entries[task]
	if !ok {
		return fmt.Errorf("unknown task: %s", task)
	}
	if h == nil {
		return fmt.Errorf("handler for %s is nil", task)
	}
	if entry.Handler != nil {
		return fmt.Errorf("task %s already bound", task)
	}
	entry.Handler = h
	return nil
}

// Lookup returns the entry of task.
func (r *Registry) Lookup(task domain.TaskID) (Entry, bool) {
	entry, ok := r.entries[task]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Entries lists entries in declared task order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(domain.AllTasks))
	for _, task := range domain.AllTasks {
		out = append(out, *r.entries[task])
	}
	return out
}
