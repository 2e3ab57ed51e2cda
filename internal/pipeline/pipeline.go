// Package pipeline runs task pipelines through a fixed sequence of stages:
// ensure session, log turn boundary, log user message, extract, fetch,
// analyze, render, persist, compose and log the assistant reply.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xiaot623/gogo/marketing/internal/adapter/ingress"
	"github.com/xiaot623/gogo/marketing/internal/conversation"
	"github.com/xiaot623/gogo/marketing/internal/domain"
	"github.com/xiaot623/gogo/marketing/internal/metrics"
	"github.com/xiaot623/gogo/marketing/internal/observe"
	"github.com/xiaot623/gogo/marketing/internal/report"
	store "github.com/xiaot623/gogo/marketing/internal/repository"
)

// Renderer turns a report document into a file and returns its path.
type Renderer interface {
	Render(ctx context.Context, task domain.TaskID, doc *report.Document) (string, error)
}

// StageNotifier receives stage transitions. *ingress.Client implements it.
type StageNotifier interface {
	PushStage(ctx context.Context, ev ingress.StageEvent)
}

// Runner holds the collaborators shared by every pipeline.
type Runner struct {
	Log      *conversation.Log
	Store    store.Store
	Reports  Renderer
	Obs      *observe.Observer
	Metrics  *metrics.Metrics
	Notifier StageNotifier
}

// Artifact is a rendered report.
type Artifact struct {
	Path        string
	ReportID    string
	DownloadURL string
}

// Outcome is what PERSIST stores and the result carries.
type Outcome struct {
	ProductName string
	Data        interface{}
}

// Definition describes one task. P is the extracted parameters, D the
// fetched data and A the analysis.
type Definition[P, D, A any] struct {
	Task domain.TaskID
	// Name appears in the turn boundary, "--- <Name> 시작 ---".
	Name string

	Extract func(ctx context.Context, in *Input) (P, error)
	Fetch   func(ctx context.Context, in *Input, params P) (D, error)
	Analyze func(ctx context.Context, in *Input, params P, data D) (A, error)

	// Render is optional. Its failure is a warning unless ArtifactRequired.
	Render           func(ctx context.Context, in *Input, params P, data D, analysis A) (*report.Document, error)
	ArtifactRequired bool

	Outcome func(params P, data D, analysis A) Outcome
	// AfterPersist runs once the TaskResult is stored. Its errors are logged only.
	AfterPersist func(ctx context.Context, in *Input, params P, analysis A) error

	Compose func(in *Input, params P, data D, analysis A, artifact *Artifact) string
	// ErrorReply builds the reply for an unexpected stage error.
	ErrorReply func(err error) string
}

// Pipeline binds a Definition to a Runner. It satisfies router.Handler.
type Pipeline[P, D, A any] struct {
	def    Definition[P, D, A]
	runner *Runner
}

// New validates def and binds it to runner.
func New[P, D, A any](runner *Runner, def Definition[P, D, A]) (*Pipeline[P, D, A], error) {
	if !def.Task.Valid() {
		return nil, fmt.Errorf("unknown task: %q", def.Task)
	}
	if def.Extract == nil || def.Fetch == nil || def.Analyze == nil || def.Outcome == nil || def.Compose == nil {
		return nil, fmt.Errorf("pipeline %s: extract, fetch, analyze, outcome and compose are required", def.Task)
	}
	if def.ArtifactRequired && def.Render == nil {
		return nil, fmt.Errorf("pipeline %s: artifact required but no render stage", def.Task)
	}
	if def.Name == "" {
		def.Name = string(def.Task)
	}
	if def.ErrorReply == nil {
		name := def.Name
		def.ErrorReply = func(err error) string {
			return fmt.Sprintf("%s 중 오류가 발생했습니다: %v", name, err)
		}
	}
	return &Pipeline[P, D, A]{def: def, runner: runner}, nil
}

// Task returns the task id.
func (p *Pipeline[P, D, A]) Task() domain.TaskID {
	return p.def.Task
}

// Input is the per-run context handed to every stage.
type Input struct {
	SessionID string
	Message   string
	Task      domain.TaskID

	log     *conversation.Log
	obs     *observe.Observer
	metrics *metrics.Metrics
}

// Log returns the conversation log.
func (in *Input) Log() *conversation.Log {
	return in.log
}

// Logger returns a logger for stage code.
func (in *Input) Logger() *bolt.Logger {
	return in.obs.Log()
}

// CurrentTurn returns the entries of this run, for LLM context.
func (in *Input) CurrentTurn(ctx context.Context) ([]domain.Message, error) {
	return in.log.CurrentTurn(ctx, in.SessionID)
}

// Fallback records that a stage degraded to its fallback path.
func (in *Input) Fallback(stage domain.Stage, err error) {
	ev := in.obs.Log().Warn().
		Str("session", in.SessionID).
		Str("task", string(in.Task)).
		Str("stage", string(stage))
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("using fallback")
	in.metrics.ObserveFallback(string(in.Task))
}

// run carries the mutable state of one execution.
type run struct {
	in               *Input
	errs             []string
	assistantAttempt bool
}

// Run executes the pipeline. The returned error is non-nil only for
// persistence failures; every other failure is folded into the result.
func (p *Pipeline[P, D, A]) Run(ctx context.Context, sessionID, message string) (*domain.Result, error) {
	r := p.runner
	state := &run{
		in: &Input{
			SessionID: sessionID,
			Message:   message,
			Task:      p.def.Task,
			log:       r.Log,
			obs:       r.Obs,
			metrics:   r.Metrics,
		},
		errs: []string{},
	}
	in := state.in

	// ENSURE_SESSION
	if err := p.stage(ctx, state, domain.StageEnsureSession, func(ctx context.Context) error {
		sid, err := r.Log.EnsureSession(ctx, sessionID)
		if err != nil {
			return err
		}
		in.SessionID = sid
		return nil
	}); err != nil {
		return p.fail(ctx, state, err)
	}

	// LOG_TURN_BOUNDARY, LOG_USER_MESSAGE
	if err := p.stage(ctx, state, domain.StageLogTurnBoundary, func(ctx context.Context) error {
		_, err := r.Log.Append(ctx, in.SessionID, domain.TurnBoundaryEntry(fmt.Sprintf("--- %s 시작 ---", p.def.Name)))
		return err
	}); err != nil {
		return p.fail(ctx, state, err)
	}
	if err := p.stage(ctx, state, domain.StageLogUserMessage, func(ctx context.Context) error {
		_, err := r.Log.Append(ctx, in.SessionID, domain.UserEntry(message))
		return err
	}); err != nil {
		return p.fail(ctx, state, err)
	}

	// EXTRACT_PARAMETERS
	var params P
	if err := p.stage(ctx, state, domain.StageExtract, func(ctx context.Context) (err error) {
		params, err = p.def.Extract(ctx, in)
		return err
	}); err != nil {
		return p.fail(ctx, state, err)
	}

	// FETCH_EXTERNAL_DATA
	var data D
	if err := p.stage(ctx, state, domain.StageFetch, func(ctx context.Context) (err error) {
		data, err = p.def.Fetch(ctx, in, params)
		return err
	}); err != nil {
		return p.fail(ctx, state, err)
	}

	// ANALYZE
	var analysis A
	if err := p.stage(ctx, state, domain.StageAnalyze, func(ctx context.Context) (err error) {
		analysis, err = p.def.Analyze(ctx, in, params, data)
		return err
	}); err != nil {
		return p.fail(ctx, state, err)
	}

	// RENDER_ARTIFACT
	var artifact *Artifact
	if p.def.Render != nil {
		err := p.stage(ctx, state, domain.StageRender, func(ctx context.Context) error {
			doc, err := p.def.Render(ctx, in, params, data, analysis)
			if err != nil {
				return err
			}
			if r.Reports == nil {
				return errors.New("no report renderer configured")
			}
			path, err := r.Reports.Render(ctx, p.def.Task, doc)
			if err != nil {
				return err
			}
			ref := report.ResolveDownloadRef(path)
			artifact = &Artifact{Path: path, ReportID: ref, DownloadURL: report.DownloadURL(ref)}
			return nil
		})
		if err != nil {
			if p.def.ArtifactRequired {
				return p.fail(ctx, state, err)
			}
			in.Fallback(domain.StageRender, err)
			state.errs = append(state.errs, fmt.Sprintf("%s: %v", domain.ErrTokenArtifactRendering, err))
		}
	}

	// PERSIST_RESULT
	var outcome Outcome
	if err := p.stage(ctx, state, domain.StagePersist, func(ctx context.Context) error {
		outcome = p.def.Outcome(params, data, analysis)
		payload, err := json.Marshal(outcome.Data)
		if err != nil {
			return fmt.Errorf("failed to encode result data: %w", err)
		}
		result := &domain.TaskResult{
			ResultID:    uuid.New().String(),
			SessionID:   in.SessionID,
			TaskType:    p.def.Task,
			ProductName: outcome.ProductName,
			ResultData:  payload,
		}
		if artifact != nil {
			result.ReportPath = artifact.Path
		}
		if err := r.Store.SaveTaskResult(ctx, result); err != nil {
			return &domain.PersistenceError{Op: "save task result", Err: err}
		}
		return nil
	}); err != nil {
		return p.fail(ctx, state, err)
	}
	if p.def.AfterPersist != nil {
		if err := safeCall(func() error { return p.def.AfterPersist(ctx, in, params, analysis) }); err != nil {
			in.Fallback(domain.StagePersist, err)
		}
	}

	// COMPOSE_REPLY
	var reply string
	if err := p.stage(ctx, state, domain.StageCompose, func(ctx context.Context) error {
		reply = p.def.Compose(in, params, data, analysis, artifact)
		return nil
	}); err != nil {
		return p.fail(ctx, state, err)
	}

	// LOG_ASSISTANT_MESSAGE
	if err := p.logAssistant(ctx, state, reply); err != nil {
		return p.fail(ctx, state, err)
	}

	res := &domain.Result{
		Success:    true,
		SessionID:  in.SessionID,
		Task:       p.def.Task,
		ReplyText:  reply,
		ResultData: outcome.Data,
		Errors:     state.errs,
	}
	if artifact != nil {
		res.ReportID = artifact.ReportID
		res.DownloadURL = artifact.DownloadURL
	}
	return res, nil
}

// stage runs fn as one traced, timed and panic-safe stage.
func (p *Pipeline[P, D, A]) stage(ctx context.Context, state *run, stage domain.Stage, fn func(ctx context.Context) error) error {
	r := p.runner
	in := state.in
	ctx, span := r.Obs.StartSpan(ctx, "pipeline."+string(stage),
		attribute.String("task", string(p.def.Task)),
		attribute.String("session", in.SessionID),
	)
	start := time.Now()

	err := safeCall(func() error { return fn(ctx) })

	elapsed := time.Since(start)
	r.Metrics.ObserveStage(string(p.def.Task), string(stage), elapsed)
	observe.EndSpan(span, err)

	status := "ok"
	var guidance *domain.GuidanceError
	switch {
	case err == nil:
		r.Obs.Log().Debug().
			Str("session", in.SessionID).
			Str("task", string(p.def.Task)).
			Str("stage", string(stage)).
			Int("elapsed_ms", int(elapsed.Milliseconds())).
			Msg("stage completed")
	case errors.As(err, &guidance):
		status = "guidance"
		r.Obs.Log().Info().
			Str("session", in.SessionID).
			Str("task", string(p.def.Task)).
			Str("stage", string(stage)).
			Str("reason", guidance.Error()).
			Msg("stage needs user input")
	default:
		status = "error"
		logAt := r.Obs.Log().Warn
		var perr *domain.PersistenceError
		if errors.As(err, &perr) {
			logAt = r.Obs.Log().Error
		}
		logAt().Str("session", in.SessionID).
			Str("task", string(p.def.Task)).
			Str("stage", string(stage)).
			Err(err).
			Msg("stage failed")
	}

	if r.Notifier != nil {
		r.Notifier.PushStage(ctx, ingress.StageEvent{
			SessionID: in.SessionID,
			Task:      string(p.def.Task),
			Stage:     string(stage),
			Status:    status,
		})
	}
	return err
}

// fail terminates a run. Guidance ends with success=false and the guidance
// reply. Other errors end with the task's error reply; persistence errors
// are also returned to the caller.
func (p *Pipeline[P, D, A]) fail(ctx context.Context, state *run, err error) (*domain.Result, error) {
	in := state.in
	res := &domain.Result{
		SessionID: in.SessionID,
		Task:      p.def.Task,
		Errors:    state.errs,
	}

	var guidance *domain.GuidanceError
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &guidance):
		res.ReplyText = guidance.Reply
		if guidance.Reason != "" {
			res.Errors = append(res.Errors, guidance.Reason)
		}
	default:
		res.ReplyText = p.def.ErrorReply(err)
		res.Errors = append(res.Errors, err.Error())
	}

	// A run that never got a session has nowhere to log the reply.
	if in.SessionID != "" && !state.assistantAttempt {
		if logErr := p.logAssistant(ctx, state, res.ReplyText); logErr != nil && !errors.As(err, &perr) {
			err = logErr
		}
	}

	if errors.As(err, &perr) {
		return res, err
	}
	return res, nil
}

func (p *Pipeline[P, D, A]) logAssistant(ctx context.Context, state *run, reply string) error {
	state.assistantAttempt = true
	return p.stage(ctx, state, domain.StageLogAssistant, func(ctx context.Context) error {
		_, err := p.runner.Log.Append(ctx, state.in.SessionID, domain.AssistantEntry(reply))
		return err
	})
}

// safeCall converts a panic in fn into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
