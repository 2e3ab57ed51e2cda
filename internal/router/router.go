package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/marketing/internal/conversation"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/metrics"
	"github.com/xiaot623/gogo/marketing/internal/observe"
)

// DefaultContinuationCues mark a follow-up that reuses the previous task.
var DefaultContinuationCues = []string{"추가", "더", "또", "계속", "more", "another", "extra"}

// Router dispatches messages to task pipelines.
type Router struct {
	detector *Detector
	registry *Registry
	log      *conversation.Log
	obs      *observe.Observer
	metrics  *metrics.Metrics
	cues     []string
	locks    *sessionLocks
}

// New creates a Router. Empty cues select DefaultContinuationCues.
func New(detector *Detector, registry *Registry, log *conversation.Log, obs *observe.Observer, m *metrics.Metrics, cues []string) *Router {
	if len(cues) == 0 {
		cues = DefaultContinuationCues
	}
	lowered := make([]string, 0, len(cues))
	for _, c := range cues {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			lowered = append(lowered, c)
		}
	}
	return &Router{
		detector: detector,
		registry: registry,
		log:      log,
		obs:      obs,
		metrics:  m,
		cues:     lowered,
		locks:    newSessionLocks(),
	}
}

// Route runs the pipeline for message. It never panics and always returns
// a result; routing outcomes carry the "Unknown task" or
// "Agent not implemented: <task>" error tokens.
func (r *Router) Route(ctx context.Context, sessionID, message string) (result *domain.Result) {
	task, ok := r.resolveTask(ctx, sessionID, message)
	if !ok {
		r.obs.Log().Info().Str("session", sessionID).Msg("no task detected")
		r.metrics.ObserveRequest("", "unknown")
		return domain.Failure(sessionID, r.CapabilityText(), domain.ErrTokenUnknownTask)
	}

	entry, _ := r.registry.Lookup(task)
	if entry.Status() == Unimplemented {
		r.obs.Log().Warn().Str("session", sessionID).Str("task", string(task)).Msg("agent not implemented")
		r.metrics.ObserveRequest(string(task), "not_implemented")
		res := domain.Failure(sessionID, r.comingSoonText(entry), (&domain.NotImplementedError{Task: task}).Error())
		res.Task = task
		return res
	}

	if sessionID != "" {
		unlock := r.locks.Lock(sessionID)
		defer unlock()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic in %s pipeline: %v", task, rec)
			r.obs.Log().Error().Str("session", sessionID).Str("task", string(task)).Err(err).Msg("pipeline panicked")
			r.metrics.ObserveRequest(string(task), "error")
			result = r.errorResult(sessionID, task, err)
		}
	}()

	r.obs.Log().Info().Str("session", sessionID).Str("task", string(task)).Msg("dispatching to agent")
	res, err := entry.Handler.Run(ctx, sessionID, message)
	if err != nil {
		r.obs.Log().Error().Str("session", sessionID).Str("task", string(task)).Err(err).Msg("agent failed")
		r.metrics.ObserveRequest(string(task), "error")
		sid := sessionID
		if res != nil && res.SessionID != "" {
			sid = res.SessionID
		}
		return r.errorResult(sid, task, err)
	}
	if res == nil {
		err := fmt.Errorf("%s pipeline returned no result", task)
		r.metrics.ObserveRequest(string(task), "error")
		return r.errorResult(sessionID, task, err)
	}
	res.Task = task
	if res.Errors == nil {
		res.Errors = []string{}
	}

	if res.Success {
		if err := r.log.AppendMarker(ctx, res.SessionID, domain.MarkerAgent, domain.AgentMarker{Task: task}); err != nil {
			r.obs.Log().Error().Str("session", res.SessionID).Str("task", string(task)).Err(err).Msg("failed to record agent marker")
			r.metrics.ObserveRequest(string(task), "error")
			return r.errorResult(res.SessionID, task, err)
		}
		r.metrics.ObserveRequest(string(task), "success")
	} else {
		r.metrics.ObserveRequest(string(task), "failure")
	}
	return res
}

// resolveTask applies detection, then the continuation fallback.
func (r *Router) resolveTask(ctx context.Context, sessionID, message string) (domain.TaskID, bool) {
	if task, ok := r.detector.Detect(message); ok {
		return task, true
	}
	if sessionID == "" || !r.isContinuation(message) {
		return "", false
	}

	var marker domain.AgentMarker
	found, err := r.log.FindLastMarker(ctx, sessionID, domain.MarkerAgent, &marker)
	if err != nil {
		r.obs.Log().Warn().Str("session", sessionID).Err(err).Msg("failed to load last agent")
		return "", false
	}
	if !found || !marker.Task.Valid() {
		return "", false
	}
	r.obs.Log().Info().Str("session", sessionID).Str("task", string(marker.Task)).Msg("continuation reuses previous agent")
	return marker.Task, true
}

func (r *Router) isContinuation(message string) bool {
	lower := strings.ToLower(message)
	for _, cue := range r.cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func (r *Router) errorResult(sessionID string, task domain.TaskID, err error) *domain.Result {
	res := domain.Failure(sessionID, fmt.Sprintf("에이전트 실행 중 오류가 발생했습니다: %v", err), err.Error())
	res.Task = task
	res.Fatal = true
	return res
}

// CapabilityText lists every task with its description and example phrasings.
func (r *Router) CapabilityText() string {
	var sb strings.Builder
	sb.WriteString("🛍️ 커머스 마케팅 AI 에이전트 - 사용 가능한 태스크:\n\n")
	for _, e := range r.registry.Entries() {
		kws := r.detector.Keywords(e.Task)
		if len(kws) > 3 {
			kws = kws[:3]
		}
		fmt.Fprintf(&sb, "• **%s**\n", e.Name)
		fmt.Fprintf(&sb, "  - 설명: %s\n", e.Description)
		fmt.Fprintf(&sb, "  - 키워드: %s\n\n", strings.Join(kws, ", "))
	}
	sb.WriteString("예시:\n")
	sb.WriteString("- \"최근 반려동물 관련 트렌드 분석해줘\"\n")
	sb.WriteString("- \"친환경 세제 광고 문구 만들어줘\"\n")
	sb.WriteString("- \"이 제품 리뷰 감성 분석해줘\"\n")
	return sb.String()
}

func (r *Router) comingSoonText(e Entry) string {
	return fmt.Sprintf("✋ **%s** 에이전트는 현재 개발 중입니다.\n\n"+
		"이 태스크는 곧 사용 가능합니다!\n\n"+
		"다른 태스크를 시도해보세요.\n\n%s", e.Name, r.CapabilityText())
}
