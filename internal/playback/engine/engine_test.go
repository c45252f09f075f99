package engine

import (
	"context"
	"testing"
	"time"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/action"
	"github.com/selfheal/playback-core/internal/playback/contextvalidator"
	"github.com/selfheal/playback-core/internal/playback/delay"
	"github.com/selfheal/playback-core/internal/playback/drift"
	"github.com/selfheal/playback-core/internal/playback/finder"
	"github.com/selfheal/playback-core/internal/playback/graph"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/playback/screenshot"
	"github.com/selfheal/playback-core/internal/playback/troubleshoot"
	"github.com/selfheal/playback-core/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
)

type ref string

func (r ref) Ref() string { return string(r) }

type fakeView struct {
	bySelector map[string]ref
	visible    map[ref]bool
	events     []string
}

func newFakeView() *fakeView {
	return &fakeView{bySelector: map[string]ref{}, visible: map[ref]bool{}}
}

func (v *fakeView) Query(selector string) (model.ElementRef, error) {
	if r, ok := v.bySelector[selector]; ok {
		return r, nil
	}
	return nil, document.ErrNotFound
}
func (v *fakeView) QueryAll(selector string) ([]model.ElementRef, error) { return nil, nil }
func (v *fakeView) ByID(id string) (model.ElementRef, error)             { return nil, document.ErrNotFound }
func (v *fakeView) ByName(name string) (model.ElementRef, error)         { return nil, document.ErrNotFound }
func (v *fakeView) ByXPath(xpath string) (model.ElementRef, error)       { return nil, document.ErrNotFound }
func (v *fakeView) ElementFromPoint(x, y float64) (model.ElementRef, error) {
	return nil, document.ErrNotFound
}
func (v *fakeView) ComputedStyle(el model.ElementRef) (document.ComputedStyle, error) {
	return document.ComputedStyle{}, nil
}
func (v *fakeView) BoundingRect(el model.ElementRef) (model.BoundingBox, error) {
	return model.BoundingBox{Width: 10, Height: 10}, nil
}
func (v *fakeView) IsVisible(el model.ElementRef) (bool, error) {
	return v.visible[el.(ref)], nil
}
func (v *fakeView) Dispatch(ctx context.Context, el model.ElementRef, eventName string, init document.EventInit) error {
	v.events = append(v.events, eventName)
	return nil
}
func (v *fakeView) Focus(ctx context.Context, el model.ElementRef) error          { return nil }
func (v *fakeView) ScrollIntoView(ctx context.Context, el model.ElementRef) error { return nil }
func (v *fakeView) CaptureViewport(ctx context.Context) (model.Frame, error)      { return model.Frame{}, nil }
func (v *fakeView) CaptureRegion(ctx context.Context, bounds model.BoundingBox) (model.Frame, error) {
	return model.Frame{}, nil
}
func (v *fakeView) ReadyState(ctx context.Context) (string, error) { return "complete", nil }
func (v *fakeView) AncestorChain(el model.ElementRef) ([]model.ElementRef, error) {
	return nil, nil
}
func (v *fakeView) Attributes(el model.ElementRef) (map[string]string, error) { return nil, nil }
func (v *fakeView) TagName(el model.ElementRef) (string, error)               { return "", nil }
func (v *fakeView) Text(el model.ElementRef) (string, error)                  { return "", nil }
func (v *fakeView) SetNativeValue(ctx context.Context, el model.ElementRef, value string) error {
	return nil
}
func (v *fakeView) Selector(el model.ElementRef) (string, error) { return "", nil }

func buildEngine(t *testing.T, view *fakeView, cfg Config) *Engine {
	t.Helper()
	f := finder.New(view, contextvalidator.New(), time.Millisecond)
	exec := action.New(view, action.DefaultConfig())
	deps := troubleshoot.Deps{
		View:             view,
		Comparator:       screenshot.New(screenshot.DefaultConfig()),
		DriftDetector:    drift.New(drift.DefaultConfig()),
		GraphFinder:      graph.New(view),
		ContextValidator: contextvalidator.New(),
	}
	trouble := troubleshoot.New(deps, nil)
	delayMgr := delay.New(delay.Config{GlobalDelay: 0, MaxDelay: time.Second})
	return New(view, f, exec, trouble, delayMgr, nil, nil, cfg, nil)
}

func TestRunCompletesSessionOnDirectHit(t *testing.T) {
	view := newFakeView()
	view.bySelector["#submit"] = ref("submit")
	view.visible[ref("submit")] = true

	e := buildEngine(t, view, DefaultConfig())
	steps := []model.RecordedStep{
		{StepNumber: 1, Kind: model.EventClick, Descriptor: model.Bundle{Selector: "#submit"}},
	}
	state := e.Run(context.Background(), "sess-1", "proj-1", steps)

	if state.Status != model.StatusCompleted {
		t.Fatalf("expected completed session, got %s", state.Status)
	}
	if len(state.StepsExecuted) != 1 || !state.StepsExecuted[0].Success {
		t.Fatalf("expected step 1 to succeed, got %+v", state.StepsExecuted)
	}
	if state.StepsExecuted[0].HealingApplied {
		t.Fatalf("expected no healing for a direct hit")
	}
	if state.StepsExecuted[0].FinalSelector != "#submit" {
		t.Fatalf("expected finalSelector to echo the recorded selector, got %q", state.StepsExecuted[0].FinalSelector)
	}
}

func TestRunFailsStepWhenElementNeverResolves(t *testing.T) {
	view := newFakeView()
	cfg := DefaultConfig()
	cfg.ElementTimeout = 5 * time.Millisecond
	e := buildEngine(t, view, cfg)

	steps := []model.RecordedStep{
		{StepNumber: 1, Kind: model.EventClick, Descriptor: model.Bundle{Selector: "#missing"}},
	}
	state := e.Run(context.Background(), "sess-2", "proj-1", steps)

	if state.Status != model.StatusCompleted {
		t.Fatalf("expected session to complete (StopOnError is false), got %s", state.Status)
	}
	if state.StepsExecuted[0].Success {
		t.Fatalf("expected step to fail when no strategy resolves an element")
	}
}

func TestPauseBlocksUntilResume(t *testing.T) {
	view := newFakeView()
	view.bySelector["#a"] = ref("a")
	view.visible[ref("a")] = true
	view.bySelector["#b"] = ref("b")
	view.visible[ref("b")] = true

	e := buildEngine(t, view, DefaultConfig())

	stepOneDelay := 200
	steps := []model.RecordedStep{
		{StepNumber: 1, Kind: model.EventClick, Descriptor: model.Bundle{Selector: "#a"}, DelayMsOverride: &stepOneDelay},
		{StepNumber: 2, Kind: model.EventClick, Descriptor: model.Bundle{Selector: "#b"}},
	}

	done := make(chan model.SessionState, 1)
	go func() { done <- e.Run(context.Background(), "sess-3", "proj-1", steps) }()

	time.Sleep(20 * time.Millisecond)
	e.Pause("manual pause mid-run")
	time.Sleep(250 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("expected run to block while paused")
	default:
	}

	e.Resume()
	select {
	case state := <-done:
		if state.Status != model.StatusCompleted {
			t.Fatalf("expected completed session after resume, got %s", state.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("expected run to finish after resume")
	}
}

func TestAbortStopsRunEarly(t *testing.T) {
	view := newFakeView()
	view.bySelector["#a"] = ref("a")
	view.visible[ref("a")] = true

	e := buildEngine(t, view, DefaultConfig())
	e.Abort()

	steps := []model.RecordedStep{
		{StepNumber: 1, Kind: model.EventClick, Descriptor: model.Bundle{Selector: "#a"}},
	}
	state := e.Run(context.Background(), "sess-4", "proj-1", steps)
	if state.Status != model.StatusAborted {
		t.Fatalf("expected aborted status, got %s", state.Status)
	}
	if len(state.StepsExecuted) != 0 {
		t.Fatalf("expected no steps executed after immediate abort, got %+v", state.StepsExecuted)
	}
}

func TestWithMetricsRecordsStepDuration(t *testing.T) {
	view := newFakeView()
	view.bySelector["#a"] = ref("a")
	view.visible[ref("a")] = true

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetricsWithRegisterer(reg)
	e := buildEngine(t, view, DefaultConfig()).WithMetrics(metrics)

	steps := []model.RecordedStep{
		{StepNumber: 1, Kind: model.EventClick, Descriptor: model.Bundle{Selector: "#a"}},
	}
	e.Run(context.Background(), "sess-5", "proj-1", steps)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "playback_step_duration_seconds" && len(f.GetMetric()) > 0 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected playback_step_duration_seconds to have recorded a sample")
	}
}
