// Package domain defines the core domain models for the marketing orchestrator.
package domain

// Role is the speaker of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// EntryKind tags a conversation log entry.
type EntryKind string

const (
	EntryMessage      EntryKind = "message"
	EntryTurnBoundary EntryKind = "turn_boundary"
	EntryStateMarker  EntryKind = "state_marker"
)

// TaskID identifies one of the fixed analysis workflows.
type TaskID string

const (
	TaskTrend      TaskID = "trend"
	TaskAdCopy     TaskID = "ad_copy"
	TaskSegment    TaskID = "segment"
	TaskReview     TaskID = "review"
	TaskCompetitor TaskID = "competitor"
	TaskSynthesis  TaskID = "synthesis"
)

// AllTasks lists every task in declared detection order.
var AllTasks = []TaskID{TaskTrend, TaskAdCopy, TaskSegment, TaskReview, TaskCompetitor, TaskSynthesis}

// Valid reports whether t names a known task.
func (t TaskID) Valid() bool {
	for _, known := range AllTasks {
		if t == known {
			return true
		}
	}
	return false
}

// Stage names one state of the pipeline state machine.
type Stage string

const (
	StageEnsureSession   Stage = "ensure_session"
	StageLogTurnBoundary Stage = "log_turn_boundary"
	StageLogUserMessage  Stage = "log_user_message"
	StageExtract         Stage = "extract_parameters"
	StageFetch           Stage = "fetch_external_data"
	StageAnalyze         Stage = "analyze"
	StageRender          Stage = "render_artifact"
	StagePersist         Stage = "persist_result"
	StageCompose         Stage = "compose_reply"
	StageLogAssistant    Stage = "log_assistant_message"
)

// State marker keys.
const (
	MarkerAgent   = "__agent__"
	MarkerAdBrief = "__ad_brief__"
)

// RAG document categories.
const (
	RagCategoryAd = "ad"
)
