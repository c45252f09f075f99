// Package engine implements the Playback Engine (spec.md §4.9): the
// per-session state machine that owns SessionState, walks a recording's
// steps, drives element resolution and the healing ladder, and emits
// the events other components (UI, telemetry) observe.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/logging"
	"github.com/selfheal/playback-core/internal/perrors"
	"github.com/selfheal/playback-core/internal/playback/action"
	"github.com/selfheal/playback-core/internal/playback/delay"
	"github.com/selfheal/playback-core/internal/playback/finder"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/playback/troubleshoot"
	"github.com/selfheal/playback-core/internal/telemetry"
)

// Config tunes engine-level policy (spec.md §6's session-scoped knobs).
type Config struct {
	SelfHealingEnabled bool
	AutoApplyHealings  bool
	MaxHealingAttempts int
	StepTimeout        time.Duration
	ElementTimeout     time.Duration
	StopOnError        bool
}

func DefaultConfig() Config {
	return Config{
		SelfHealingEnabled: true,
		AutoApplyHealings:  false,
		MaxHealingAttempts: 3,
		StepTimeout:        30 * time.Second,
		ElementTimeout:     10 * time.Second,
		StopOnError:        false,
	}
}

// Engine owns a single session's SessionState and runs its steps.
type Engine struct {
	view     document.View
	finder   *finder.Finder
	executor *action.Executor
	trouble  *troubleshoot.Troubleshooter
	delay    *delay.Manager
	store    document.PatternStore
	bcast    *Broadcaster
	metrics  *telemetry.Metrics
	cfg      Config
	log      *logging.Logger

	mu      sync.Mutex
	state   model.SessionState
	paused  chan struct{}
	abort   chan struct{}
}

func New(view document.View, f *finder.Finder, exec *action.Executor, trouble *troubleshoot.Troubleshooter, delayMgr *delay.Manager, store document.PatternStore, bcast *Broadcaster, cfg Config, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.New(logging.Config{ComponentName: "ENGINE"})
	}
	if bcast == nil {
		bcast = NewBroadcaster()
	}
	return &Engine{
		view: view, finder: f, executor: exec, trouble: trouble, delay: delayMgr,
		store: store, bcast: bcast, cfg: cfg, log: log,
		abort: make(chan struct{}),
	}
}

// WithMetrics attaches a Metrics sink that subsequent Run calls report
// healing and step-duration counters to. Optional: a nil or never-set
// sink simply means no metrics are recorded.
func (e *Engine) WithMetrics(m *telemetry.Metrics) *Engine {
	e.metrics = m
	return e
}

// Broadcaster exposes the engine's event fan-out for callers that want
// to register a listening channel.
func (e *Engine) Broadcaster() *Broadcaster { return e.bcast }

// State returns a snapshot of the session's current state.
func (e *Engine) State() model.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pause requests the run loop stop before its next step; it takes
// effect at the next step boundary, not mid-step.
func (e *Engine) Pause(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != model.StatusRunning {
		return
	}
	e.state.Status = model.StatusPaused
	e.state.PauseReason = reason
	e.paused = make(chan struct{})
}

// Resume releases a paused run loop.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Status != model.StatusPaused {
		return
	}
	e.state.Status = model.StatusRunning
	e.state.PauseReason = ""
	if e.paused != nil {
		close(e.paused)
		e.paused = nil
	}
}

// Abort terminates the run loop at the next opportunity, including
// mid-wait during Pause or a delay.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.abort:
	default:
		close(e.abort)
	}
	if e.paused != nil {
		close(e.paused)
		e.paused = nil
	}
	if e.delay != nil {
		e.delay.SkipCurrentDelay()
	}
}

// Run executes every step of steps in order, returning the final
// SessionState. It blocks until the session completes, is aborted, or
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context, sessionID, projectID string, steps []model.RecordedStep) model.SessionState {
	e.mu.Lock()
	e.state = model.SessionState{
		SessionID: sessionID, ProjectID: projectID,
		TotalSteps: len(steps), Status: model.StatusRunning, StartTime: time.Now(),
	}
	e.mu.Unlock()

	for i, step := range steps {
		if e.aborted() {
			e.finish(model.StatusAborted)
			return e.State()
		}
		e.waitWhilePaused()
		if e.aborted() {
			e.finish(model.StatusAborted)
			return e.State()
		}

		e.setCurrentStep(i)
		e.bcast.OnEvent(NewStepStartEvent(sessionID, step.StepNumber))

		plan := e.delay.Calculate(step.DelayMsOverride, 0)
		e.delay.Execute(ctx, plan)
		if e.aborted() {
			e.finish(model.StatusAborted)
			return e.State()
		}

		result := e.runStep(ctx, step)

		e.mu.Lock()
		e.state.StepsExecuted = append(e.state.StepsExecuted, result)
		e.mu.Unlock()
		e.bcast.OnEvent(NewStepCompleteEvent(sessionID, result))

		if !result.Success && e.cfg.StopOnError {
			e.finish(model.StatusFailed)
			return e.State()
		}
	}

	e.finish(model.StatusCompleted)
	return e.State()
}

func (e *Engine) aborted() bool {
	select {
	case <-e.abort:
		return true
	default:
		return false
	}
}

func (e *Engine) waitWhilePaused() {
	e.mu.Lock()
	waitCh := e.paused
	e.mu.Unlock()
	if waitCh == nil {
		return
	}
	select {
	case <-waitCh:
	case <-e.abort:
	}
}

func (e *Engine) setCurrentStep(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.CurrentStepIndex = i
}

func (e *Engine) finish(status model.SessionStatus) {
	e.mu.Lock()
	e.state.Status = status
	e.mu.Unlock()
	e.bcast.OnEvent(NewSessionCompleteEvent(e.State().SessionID, string(status)))
}

// runStep resolves the step's element (first by direct lookup, then
// through the healing ladder if that fails and self-healing is
// enabled), dispatches the step's action, and records the outcome.
func (e *Engine) runStep(ctx context.Context, step model.RecordedStep) model.StepExecutionResult {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	sessionID := e.State().SessionID
	stepCtx, span := telemetry.StartSpan(stepCtx, telemetry.SpanStepExecute, sessionID, step.StepNumber)
	defer span.End()

	result := model.StepExecutionResult{StepNumber: step.StepNumber}

	el, selector, strategy, confidence, healed, troubleshootingStatus, err := e.resolve(stepCtx, step)
	result.TroubleshootingStatus = troubleshootingStatus
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		telemetry.MarkSpanResult(span, err)
		e.recordStepMetrics(result.Duration, false)
		return result
	}

	if healed {
		e.recordHealing(stepCtx, step.Descriptor, selector, strategy, confidence)
		e.bcast.OnEvent(NewHealingAppliedEvent(sessionID, step.StepNumber, strategy, confidence, selector))
		e.mu.Lock()
		e.state.HealingStats.Successful++
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.RecordHealingSuccess()
			e.metrics.RecordStrategyHit(strategy)
		}
	}

	if err := e.dispatch(stepCtx, el, step); err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		telemetry.MarkSpanResult(span, err)
		e.recordStepMetrics(result.Duration, false)
		return result
	}

	result.Success = true
	result.FinalSelector = selector
	result.HealingApplied = healed
	result.Strategy = strategy
	result.Confidence = confidence
	result.Duration = time.Since(start)
	result.SuggestRecordingUpdate = healed && confidence >= 0.9 && !e.cfg.AutoApplyHealings
	telemetry.MarkSpanResult(span, nil)
	e.recordStepMetrics(result.Duration, true)
	return result
}

func (e *Engine) recordStepMetrics(d time.Duration, success bool) {
	if e.metrics != nil {
		e.metrics.RecordStepDuration(d, success)
	}
}

// resolve finds the step's target, returning the winning strategy and
// whether healing (any strategy other than a direct selector hit) was
// required. A direct hit still has to clear the screenshot quick-compare
// gate (spec.md §4.9 step 4) before it is accepted; a mismatch is
// treated as not-found and falls through into the healing ladder.
func (e *Engine) resolve(ctx context.Context, step model.RecordedStep) (el model.ElementRef, selector, strategy string, confidence float64, healed bool, troubleshootingStatus string, err error) {
	findResult := e.finder.Find(ctx, step.Descriptor, e.cfg.ElementTimeout)
	if findResult.Element != nil && e.quickCompareOK(ctx, findResult.Element, step.Descriptor) {
		return findResult.Element, step.Descriptor.Selector, findResult.Strategy, findResult.Confidence, false, "", nil
	}

	if !e.cfg.SelfHealingEnabled {
		return nil, "", "", 0, false, "", perrors.New(perrors.KindElementNotFound, "element not found and self-healing is disabled", nil)
	}

	e.mu.Lock()
	e.state.HealingStats.Attempted++
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordHealingAttempt()
	}

	var attempted []string
	status := troubleshoot.StatusUnresolved
	for attempt := 0; attempt < e.cfg.MaxHealingAttempts; attempt++ {
		session := e.trouble.Troubleshoot(ctx, step, findResult.Element, attempted)
		status = session.Status
		outcome := session.Outcome
		if outcome.Success {
			if outcome.Strategy == troubleshoot.StrategyHealingCache && e.metrics != nil {
				e.metrics.RecordHealingCached()
			}
			return outcome.Element, outcome.Selector, outcome.Strategy, outcome.Confidence, true, status, nil
		}
		if outcome.Strategy != "" {
			attempted = append(attempted, outcome.Strategy)
		} else {
			break // no strategy produced even a failed attempt; further retries won't help
		}
	}

	e.mu.Lock()
	e.state.HealingStats.Failed++
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordHealingFailure()
	}
	return nil, "", "", 0, false, status, perrors.New(perrors.KindElementNotFound, "all resolution strategies exhausted", nil)
}

// quickCompareOK runs the Screenshot Comparator's quick compare against
// a direct-hit candidate when the step recorded a screenshot, per
// spec.md §4.9 step 4. Absent a recorded screenshot or a comparator,
// the candidate is accepted without question.
func (e *Engine) quickCompareOK(ctx context.Context, el model.ElementRef, descriptor model.Bundle) bool {
	if descriptor.RecordedScreenshot == nil {
		return true
	}
	comparator := e.trouble.Comparator()
	if comparator == nil {
		return true
	}
	bounds, err := e.view.BoundingRect(el)
	if err != nil {
		return true
	}
	current, err := e.view.CaptureRegion(ctx, bounds)
	if err != nil {
		return true
	}
	return comparator.QuickCompare(descriptor.RecordedScreenshot.Frame, current).Match
}

func (e *Engine) recordHealing(ctx context.Context, descriptor model.Bundle, selector, strategy string, confidence float64) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordSuccess(ctx, model.Fingerprint(descriptor), selector, strategy, confidence); err != nil {
		e.log.Warn("failed to record healing: %v", err)
	}
}

func (e *Engine) dispatch(ctx context.Context, el model.ElementRef, step model.RecordedStep) error {
	switch step.Kind {
	case model.EventClick:
		return e.executor.Click(ctx, el)
	case model.EventInput, model.EventType:
		return e.executor.Type(ctx, el, step.Value, step.Descriptor)
	case model.EventKeypress:
		if step.Value == "Enter" {
			return e.executor.PressEnter(ctx, el, step.Descriptor)
		}
		return e.executor.PressKey(ctx, el, step.Value)
	case model.EventSelect, model.EventNavigate, model.EventDelay, model.EventConditional:
		return nil // handled upstream of the executor, or a no-op on the element
	default:
		return fmt.Errorf("engine: unknown step kind %q", step.Kind)
	}
}
