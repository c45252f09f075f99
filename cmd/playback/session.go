package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/selfheal/playback-core/internal/playback/model"
)

// sessionFile is the on-disk shape of a `playback run`/`replay-static`
// argument: a recorded session's identity plus its ordered steps.
type sessionFile struct {
	SessionID string              `json:"sessionId"`
	ProjectID string              `json:"projectId"`
	Steps     []model.RecordedStep `json:"steps"`
}

func loadSession(path string) (sessionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sessionFile{}, fmt.Errorf("read session file %s: %w", path, err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return sessionFile{}, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if sf.SessionID == "" {
		sf.SessionID = "session"
	}
	if sf.ProjectID == "" {
		sf.ProjectID = "project"
	}
	return sf, nil
}

// loadPriorResult reads a SessionState JSON file previously written by
// --save-result, the input a sessionReplay run narrows against.
func loadPriorResult(path string) (model.SessionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SessionState{}, fmt.Errorf("read prior result %s: %w", path, err)
	}
	var state model.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.SessionState{}, fmt.Errorf("parse prior result %s: %w", path, err)
	}
	return state, nil
}

// filterToFailedSteps narrows steps down to the ones a prior run's
// StepsExecuted recorded as failed, matched by StepNumber. Steps the
// prior run never reached (e.g. it aborted early) are left out, since
// sessionReplay only re-runs steps known to have failed.
func filterToFailedSteps(steps []model.RecordedStep, prior model.SessionState) []model.RecordedStep {
	failed := make(map[int]bool, len(prior.StepsExecuted))
	for _, r := range prior.StepsExecuted {
		if !r.Success {
			failed[r.StepNumber] = true
		}
	}
	out := make([]model.RecordedStep, 0, len(failed))
	for _, s := range steps {
		if failed[s.StepNumber] {
			out = append(out, s)
		}
	}
	return out
}

// saveResult writes a session's final state to path, producing the
// prior-result input --failed-only consumes on a later sessionReplay run.
func saveResult(path string, state model.SessionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session result %s: %w", path, err)
	}
	return nil
}
