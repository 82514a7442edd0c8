// Package pipeline owns one calculation session: it gates invocations to one
// at a time, exposes progress as observable state and persists the outcome.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/50mmer/statusai/internal/common/errors"
	"github.com/50mmer/statusai/internal/common/logger"
	"github.com/50mmer/statusai/internal/common/metrics"
	"github.com/50mmer/statusai/internal/common/validation"
	"github.com/50mmer/statusai/internal/models"
	"github.com/50mmer/statusai/internal/scoring"
	"github.com/50mmer/statusai/internal/telemetry"
)

// Scorer runs the request/retry loop. *scoring.Client implements it.
type Scorer interface {
	Execute(ctx context.Context, answers models.AnswerSet, onProgress scoring.ProgressFunc) (*models.ScoreResult, error)
}

// ResultStore persists finished results and the in-progress checkpoint.
type ResultStore interface {
	SaveResult(ctx context.Context, rec models.ResultRecord) error
	SaveCalculationState(ctx context.Context, userID string, st models.CalculationState) error
	ClearCalculationState(ctx context.Context, userID string) error
}

// Tracker receives analytics events and error reports without blocking.
type Tracker interface {
	TrackEvent(name string, params map[string]interface{})
	LogError(err error, source string, context map[string]interface{})
}

// RunRecorder records run outcomes, e.g. *observability.Observability.
type RunRecorder interface {
	RecordRun(ctx context.Context, outcome string, duration time.Duration)
}

// Options wires the optional collaborators of a Controller.
type Options struct {
	Store    ResultStore
	Tracker  Tracker
	Recorder RunRecorder

	// Hub receives failure reports. Without one they go to Tracker.LogError.
	Hub    *errors.Hub
	UserID string

	// SkipValidation leaves answer completeness to the caller.
	SkipValidation bool

	// OnChange is called with a snapshot after every state change. It runs
	// outside the controller lock and must not block.
	OnChange func(State)
}

// Controller runs at most one scoring invocation at a time.
type Controller struct {
	scorer Scorer
	opts   Options
	logger logger.Logger

	mu       sync.Mutex
	state    State
	running  bool
	closed   bool
	gen      uint64
	cancelFn context.CancelFunc
}

func New(scorer Scorer, log logger.Logger, opts Options) *Controller {
	return &Controller{
		scorer: scorer,
		opts:   opts,
		logger: logger.Component(log, "pipeline"),
		state:  idleState(),
	}
}

// State returns a snapshot of the observable state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether an invocation is in flight.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Run scores answers. If an invocation is already in flight, or the
// controller is closed, it returns (nil, nil) without doing anything.
// Errors are *errors.PipelineError.
func (c *Controller) Run(ctx context.Context, answers models.AnswerSet) (*models.ScoreResult, error) {
	c.mu.Lock()
	if c.closed || c.running {
		c.mu.Unlock()
		return nil, nil
	}
	c.running = true
	c.gen++
	gen := c.gen
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelFn = cancel
	c.state = State{
		Loading:       true,
		Progress:      0,
		StatusMessage: scoring.StatusValidating,
		Phase:         scoring.PhaseValidating,
		RunID:         runID,
	}
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)

	defer func() {
		cancel()
		c.mu.Lock()
		c.running = false
		if c.gen == gen {
			c.cancelFn = nil
		}
		c.mu.Unlock()
	}()

	log := c.logger.With(map[string]interface{}{"runId": runID})
	start := time.Now()
	metrics.PipelineActive.Inc()
	defer metrics.PipelineActive.Dec()

	c.track(telemetry.EventAssessmentStart, map[string]interface{}{"runId": runID})
	log.Info("Calculation started", nil)

	if !c.opts.SkipValidation {
		if err := validation.ValidateAnswers(answers).Err(); err != nil {
			return nil, c.fail(ctx, gen, runID, start, log, errors.AsPipelineError(err))
		}
	}

	c.checkpoint(ctx, runID, models.CalculationState{
		RunID:     runID,
		Status:    "Validating",
		Progress:  0,
		Timestamp: time.Now().UTC(),
	}, log)

	result, err := c.scorer.Execute(runCtx, answers, func(p scoring.Progress) {
		c.update(gen, func(s *State) {
			s.Progress = p.Percent
			s.StatusMessage = p.Status
			s.RetryCount = p.RetryCount
			s.Phase = p.Phase
		})
	})
	if err == nil && !c.current(gen) {
		err = errors.NewCancelledError()
	}
	if err != nil {
		return nil, c.fail(ctx, gen, runID, start, log, errors.AsPipelineError(err))
	}

	c.persist(ctx, runID, result, log)

	c.update(gen, func(s *State) {
		s.Loading = false
		s.Err = ""
		s.Progress = 100
		s.StatusMessage = scoring.StatusComplete
		s.Phase = scoring.PhaseDone
	})
	c.track(telemetry.EventAssessmentComplete, map[string]interface{}{
		"runId":        runID,
		"overallScore": result.OverallScore,
		"percentile":   result.GlobalRanking.Percentile,
	})
	c.record(ctx, "success", start)
	metrics.PipelineRuns.WithLabelValues("success").Inc()
	log.Info("Calculation complete", map[string]interface{}{
		"overallScore": result.OverallScore,
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (c *Controller) fail(ctx context.Context, gen uint64, runID string, start time.Time, log logger.Logger, pErr *errors.PipelineError) error {
	if pErr.Class == errors.ClassCancelled {
		c.update(gen, func(s *State) {
			s.Loading = false
			s.Err = errors.CancelledMessage
			s.Phase = scoring.PhaseFailed
		})
		c.track(telemetry.EventAssessmentAbandon, map[string]interface{}{"runId": runID})
		c.record(ctx, "cancelled", start)
		metrics.PipelineRuns.WithLabelValues("cancelled").Inc()
		log.Info("Calculation cancelled", nil)
		return pErr
	}

	c.update(gen, func(s *State) {
		s.Loading = false
		s.Err = pErr.Message
		s.Phase = scoring.PhaseFailed
	})

	errCtx := map[string]interface{}{
		"runId":        runID,
		"failureClass": string(pErr.Class),
		"attempts":     pErr.Attempts,
	}
	// Sinks subscribed to the hub already see the report.
	switch {
	case c.opts.Hub != nil:
		c.opts.Hub.Report(pErr, "pipeline", errCtx)
	case c.opts.Tracker != nil:
		c.opts.Tracker.LogError(pErr, "pipeline", errCtx)
	}
	c.track(telemetry.EventError, map[string]interface{}{
		"runId":        runID,
		"failureClass": string(pErr.Class),
		"message":      pErr.Message,
	})
	c.record(ctx, "failed", start)
	metrics.PipelineRuns.WithLabelValues("failed").Inc()
	log.Error("Calculation failed", map[string]interface{}{
		"failureClass": string(pErr.Class),
		"error":        pErr.Message,
		"attempts":     pErr.Attempts,
	})
	return pErr
}

// persist writes the result and clears the checkpoint. Failures are logged
// and otherwise ignored; the result is still returned to the caller.
func (c *Controller) persist(ctx context.Context, runID string, result *models.ScoreResult, log logger.Logger) {
	if c.opts.Store == nil {
		return
	}
	rec := models.ResultRecord{
		ID:        uuid.NewString(),
		RunID:     runID,
		UserID:    c.opts.UserID,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.opts.Store.SaveResult(ctx, rec); err != nil {
		log.Warn("Failed to save result", map[string]interface{}{"error": err.Error()})
		if c.opts.Tracker != nil {
			c.opts.Tracker.LogError(err, "pipeline.persist", map[string]interface{}{"runId": runID})
		}
	}
	if err := c.opts.Store.ClearCalculationState(ctx, c.opts.UserID); err != nil {
		log.Warn("Failed to clear calculation state", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Controller) checkpoint(ctx context.Context, runID string, st models.CalculationState, log logger.Logger) {
	if c.opts.Store == nil {
		return
	}
	if err := c.opts.Store.SaveCalculationState(ctx, c.opts.UserID, st); err != nil {
		log.Warn("Failed to save calculation state", map[string]interface{}{"error": err.Error()})
	}
}

// Cancel aborts the in-flight invocation, if any, and shows the cancelled
// message. Later state writes from that invocation are dropped.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	c.gen++
	c.state.Loading = false
	c.state.Err = errors.CancelledMessage
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)
}

// Cleanup resets every observable field to the idle state. It does not
// stop an in-flight invocation, which keeps reporting progress. Calling it
// repeatedly has the same effect as calling it once.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := idleState()
	changed := next != c.state
	c.state = next
	c.mu.Unlock()
	if changed {
		c.notify(next)
	}
}

// Close aborts any in-flight invocation and detaches the controller. All
// later state writes and Run calls are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == gen
}

// update applies fn if gen is still the live invocation.
func (c *Controller) update(gen uint64, fn func(*State)) {
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	fn(&c.state)
	snapshot := c.state
	c.mu.Unlock()
	c.notify(snapshot)
}

func (c *Controller) notify(s State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

func (c *Controller) track(name string, params map[string]interface{}) {
	if c.opts.Tracker != nil {
		c.opts.Tracker.TrackEvent(name, params)
	}
}

func (c *Controller) record(ctx context.Context, outcome string, start time.Time) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.RecordRun(ctx, outcome, time.Since(start))
	}
}
