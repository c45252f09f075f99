package model

import "time"

// EventKind is the kind of interaction a RecordedStep replays.
type EventKind string

const (
	EventClick       EventKind = "click"
	EventInput       EventKind = "input"
	EventType        EventKind = "type"
	EventKeypress    EventKind = "keypress"
	EventSelect      EventKind = "select"
	EventNavigate    EventKind = "navigate"
	EventDelay       EventKind = "delay"
	EventConditional EventKind = "conditional"
)

// ConditionalConfig configures an EventConditional step: poll for a
// descriptor to appear/disappear before proceeding.
type ConditionalConfig struct {
	WaitForSelector string `json:"waitForSelector"`
	WaitForAbsence  bool   `json:"waitForAbsence"`
	TimeoutMs       int    `json:"timeoutMs"`
}

// RecordedStep is one entry in a recorded session.
type RecordedStep struct {
	StepNumber int       `json:"stepNumber"`
	Kind       EventKind `json:"kind"`
	Value      string    `json:"value,omitempty"` // for input/type events
	Descriptor Bundle    `json:"descriptor"`

	RecordedScreenshot *ScreenshotRegion `json:"recordedScreenshot,omitempty"`

	DelayMsOverride *int               `json:"delayMsOverride,omitempty"`
	Conditional     *ConditionalConfig `json:"conditional,omitempty"`
}

// SessionStatus is the lifecycle state of a playback session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusAborted   SessionStatus = "aborted"
)

// HealingStats counts resolution outcomes across a session. The
// invariant Successful+Failed <= Attempted must hold at all times.
type HealingStats struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Cached     int `json:"cached"`
}

// StepExecutionResult is the outcome recorded for a single step.
type StepExecutionResult struct {
	StepNumber             int           `json:"stepNumber"`
	Success                bool          `json:"success"`
	FinalSelector          string        `json:"finalSelector,omitempty"`
	HealingApplied         bool          `json:"healingApplied"`
	Strategy               string        `json:"strategy,omitempty"`
	Confidence             float64       `json:"confidence,omitempty"`
	Error                  string        `json:"error,omitempty"`
	Duration               time.Duration `json:"durationNs"`
	SuggestRecordingUpdate bool          `json:"suggestRecordingUpdate"`

	// TroubleshootingStatus is set only when the direct lookup failed and
	// the troubleshooting phase model ran: "resolved" once a ladder
	// strategy succeeded, otherwise "manual" (every diagnostic also
	// failed — the page itself looks broken) or "unresolved" (spec.md
	// §4.8's diagnosing -> resolving -> (resolved|manual|unresolved)).
	TroubleshootingStatus string `json:"troubleshootingStatus,omitempty"`
}

// SessionState is owned exclusively by the Playback Engine; every other
// component receives only the fields it needs and returns immutable
// results.
type SessionState struct {
	SessionID        string                 `json:"sessionId"`
	ProjectID        string                 `json:"projectId"`
	CurrentStepIndex int                    `json:"currentStepIndex"`
	TotalSteps       int                    `json:"totalSteps"`
	StepsExecuted    []StepExecutionResult  `json:"stepsExecuted"`
	HealingStats     HealingStats           `json:"healingStats"`
	Status           SessionStatus          `json:"status"`
	StartTime        time.Time              `json:"startTime"`
	PauseReason      string                 `json:"pauseReason,omitempty"`
}
