// Package perrors classifies playback-core failures per spec.md §7.
// All failure paths produce structured results; only invalid
// configuration or a missing DocumentView is allowed to panic, and
// only at construction time.
package perrors

import "fmt"

// Kind is one of the closed set of failure kinds the core recognises.
type Kind int

const (
	KindInvalidSelector Kind = iota
	KindElementNotFound
	KindContextMismatch
	KindDriftBeyondCorrection
	KindScreenshotFailure
	KindHealingProviderError
	KindActionDispatchFailure
	KindSessionAborted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSelector:
		return "InvalidSelector"
	case KindElementNotFound:
		return "ElementNotFound"
	case KindContextMismatch:
		return "ContextMismatch"
	case KindDriftBeyondCorrection:
		return "DriftBeyondCorrection"
	case KindScreenshotFailure:
		return "ScreenshotFailure"
	case KindHealingProviderError:
		return "HealingProviderError"
	case KindActionDispatchFailure:
		return "ActionDispatchFailure"
	case KindSessionAborted:
		return "SessionAborted"
	default:
		return "Unknown"
	}
}

// StepError wraps a cause with its classification. It is the only
// error type the playback core constructs for step-level failures.
type StepError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StepError) Unwrap() error { return e.Cause }

// New builds a StepError of the given kind.
func New(kind Kind, message string, cause error) *StepError {
	return &StepError{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err is a *StepError of the given kind.
func IsKind(err error, kind Kind) bool {
	se, ok := err.(*StepError)
	return ok && se.Kind == kind
}

// Recoverable reports whether the kind's local-recovery policy (per
// spec.md §7) is "try the next strategy/candidate" rather than a hard
// stop. DriftBeyondCorrection, ScreenshotFailure, ContextMismatch,
// InvalidSelector, and HealingProviderError are all recoverable at the
// strategy level; ActionDispatchFailure and SessionAborted are not.
func Recoverable(kind Kind) bool {
	switch kind {
	case KindActionDispatchFailure, KindSessionAborted:
		return false
	default:
		return true
	}
}
