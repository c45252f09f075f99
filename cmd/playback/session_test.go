package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/selfheal/playback-core/internal/playback/model"
)

func TestLoadSessionParsesStepsAndDefaultsIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	body := `{
		"steps": [
			{"stepNumber": 1, "kind": "click", "descriptor": {"selector": "#submit", "tagName": "button"}}
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	sf, err := loadSession(path)
	if err != nil {
		t.Fatalf("loadSession: %v", err)
	}
	if sf.SessionID != "session" || sf.ProjectID != "project" {
		t.Fatalf("expected defaulted IDs, got %+v", sf)
	}
	if len(sf.Steps) != 1 || sf.Steps[0].Descriptor.Selector != "#submit" {
		t.Fatalf("expected one parsed step, got %+v", sf.Steps)
	}
}

func TestLoadSessionMissingFileErrors(t *testing.T) {
	if _, err := loadSession("/nonexistent/session.json"); err == nil {
		t.Fatal("expected an error for a missing session file")
	}
}

func TestFilterToFailedStepsKeepsOnlyFailures(t *testing.T) {
	steps := []model.RecordedStep{
		{StepNumber: 1, Kind: model.EventClick},
		{StepNumber: 2, Kind: model.EventClick},
		{StepNumber: 3, Kind: model.EventClick},
	}
	prior := model.SessionState{
		StepsExecuted: []model.StepExecutionResult{
			{StepNumber: 1, Success: true},
			{StepNumber: 2, Success: false},
			{StepNumber: 3, Success: false},
		},
	}

	failed := filterToFailedSteps(steps, prior)
	if len(failed) != 2 || failed[0].StepNumber != 2 || failed[1].StepNumber != 3 {
		t.Fatalf("expected steps 2 and 3, got %+v", failed)
	}
}

func TestSaveResultThenLoadPriorResultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	state := model.SessionState{
		SessionID: "sess-1",
		StepsExecuted: []model.StepExecutionResult{
			{StepNumber: 1, Success: false},
		},
	}

	if err := saveResult(path, state); err != nil {
		t.Fatalf("saveResult: %v", err)
	}
	loaded, err := loadPriorResult(path)
	if err != nil {
		t.Fatalf("loadPriorResult: %v", err)
	}
	if loaded.SessionID != "sess-1" || len(loaded.StepsExecuted) != 1 || loaded.StepsExecuted[0].Success {
		t.Fatalf("expected round-tripped result, got %+v", loaded)
	}
}

func TestLoadSessionInvalidJSONErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadSession(path); err == nil {
		t.Fatal("expected a parse error")
	}
}
