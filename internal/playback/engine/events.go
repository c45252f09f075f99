package engine

import (
	"time"

	"github.com/selfheal/playback-core/internal/playback/model"
)

// Event is the contract every engine-emitted event satisfies, mirroring
// the agent-event shape the rest of the corpus already streams to UIs
// (EventType/Timestamp/SessionID).
type Event interface {
	EventType() string
	Timestamp() time.Time
	SessionID() string
}

type baseEvent struct {
	kind      string
	sessionID string
	ts        time.Time
}

func (e baseEvent) EventType() string { return e.kind }
func (e baseEvent) Timestamp() time.Time { return e.ts }
func (e baseEvent) SessionID() string { return e.sessionID }

func newBase(kind, sessionID string) baseEvent {
	return baseEvent{kind: kind, sessionID: sessionID, ts: time.Now()}
}

// StepStartEvent fires when the engine begins executing a step.
type StepStartEvent struct {
	baseEvent
	StepNumber int
}

func NewStepStartEvent(sessionID string, stepNumber int) StepStartEvent {
	return StepStartEvent{baseEvent: newBase("stepStart", sessionID), StepNumber: stepNumber}
}

// StepCompleteEvent fires once a step's outcome is final.
type StepCompleteEvent struct {
	baseEvent
	Result model.StepExecutionResult
}

func NewStepCompleteEvent(sessionID string, result model.StepExecutionResult) StepCompleteEvent {
	return StepCompleteEvent{baseEvent: newBase("stepComplete", sessionID), Result: result}
}

// HealingAppliedEvent fires whenever the troubleshooter's resolution
// ladder (any strategy, retry-original included) produced the element
// for a step, before that step's action is dispatched.
type HealingAppliedEvent struct {
	baseEvent
	StepNumber int
	Strategy   string
	Confidence float64
	Selector   string
}

func NewHealingAppliedEvent(sessionID string, stepNumber int, strategy string, confidence float64, selector string) HealingAppliedEvent {
	return HealingAppliedEvent{
		baseEvent:  newBase("healingApplied", sessionID),
		StepNumber: stepNumber, Strategy: strategy, Confidence: confidence, Selector: selector,
	}
}

// SessionCompleteEvent fires once the engine has no more steps to run
// or the session was aborted.
type SessionCompleteEvent struct {
	baseEvent
	Status string
}

func NewSessionCompleteEvent(sessionID, status string) SessionCompleteEvent {
	return SessionCompleteEvent{baseEvent: newBase("sessionComplete", sessionID), Status: status}
}
