package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Routing outcome tokens. Callers branch on these, never on reply text.
const (
	ErrTokenUnknownTask       = "Unknown task"
	ErrTokenNotImplemented    = "Agent not implemented"
	ErrTokenNoTaskResults     = "No task results found"
	ErrTokenArtifactRendering = "report rendering failed"
)

var (
	// ErrUnknownTask means no task could be detected for a message.
	ErrUnknownTask = errors.New(ErrTokenUnknownTask)
	// ErrAnalysisMalformed means an analysis step produced an unusable shape.
	ErrAnalysisMalformed = errors.New("analysis output malformed")
	// ErrNoData means every tier of a fetch chain came back empty.
	ErrNoData = errors.New("no external data available")
)

// NotImplementedError is returned for a registered task without a handler.
type NotImplementedError struct {
	Task TaskID
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTokenNotImplemented, e.Task)
}

// GuidanceError ends a pipeline early with a user-facing next step.
type GuidanceError struct {
	Reply  string
	Reason string
}

func (e *GuidanceError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "user input required"
}

// Guidance builds a GuidanceError.
func Guidance(reply, reason string) error {
	return &GuidanceError{Reply: reply, Reason: reason}
}

// PersistenceError wraps a storage failure. It is the one error kind a
// pipeline propagates to its caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRoutingOutcome reports whether errs carry an informational routing token.
func IsRoutingOutcome(errs []string) bool {
	for _, e := range errs {
		if e == ErrTokenUnknownTask || strings.HasPrefix(e, ErrTokenNotImplemented) {
			return true
		}
	}
	return false
}
