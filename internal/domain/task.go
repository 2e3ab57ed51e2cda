package domain

import (
	"encoding/json"
	"time"
)

// TaskResult is the persisted output of one successful pipeline run.
type TaskResult struct {
	ResultID    string          `json:"result_id"`
	SessionID   string          `json:"session_id"`
	TaskType    TaskID          `json:"task_type"`
	ProductName string          `json:"product_name,omitempty"`
	ResultData  json.RawMessage `json:"result_data"`
	ReportPath  string          `json:"report_path,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TaskResultFilter narrows ListTaskResults.
type TaskResultFilter struct {
	TaskType    TaskID
	ProductName string
}

// RagDoc is a write-once search document shared across sessions.
type RagDoc struct {
	DocID     string          `json:"doc_id"`
	Category  string          `json:"category"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Result is the terminal shape of every routed request.
type Result struct {
	Success     bool        `json:"success"`
	SessionID   string      `json:"session_id"`
	Task        TaskID      `json:"task,omitempty"`
	ReplyText   string      `json:"reply_text"`
	ResultData  interface{} `json:"result_data"`
	ReportID    string      `json:"report_id,omitempty"`
	DownloadURL string      `json:"download_url,omitempty"`
	Errors      []string    `json:"errors"`

	// Fatal marks a failure that is not a guidance or routing outcome.
	Fatal bool `json:"-"`
}

// Failure builds a failed result with a non-nil error list.
func Failure(sessionID, reply string, errs ...string) *Result {
	if errs == nil {
		errs = []string{}
	}
	return &Result{
		SessionID: sessionID,
		ReplyText: reply,
		Errors:    errs,
	}
}

// HasError reports whether token is one of the result's errors.
func (r *Result) HasError(token string) bool {
	for _, e := range r.Errors {
		if e == token {
			return true
		}
	}
	return false
}
