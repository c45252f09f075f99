package action

import (
	"context"
	"testing"
	"time"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/model"
)

type ref string

func (r ref) Ref() string { return string(r) }

type recordingView struct {
	events      []string
	datas       []string
	nativeValues []string
	failFirst   bool
}

func (v *recordingView) Query(selector string) (model.ElementRef, error)    { return nil, nil }
func (v *recordingView) QueryAll(selector string) ([]model.ElementRef, error) { return nil, nil }
func (v *recordingView) ByID(id string) (model.ElementRef, error)           { return nil, nil }
func (v *recordingView) ByName(name string) (model.ElementRef, error)       { return nil, nil }
func (v *recordingView) ByXPath(xpath string) (model.ElementRef, error)     { return nil, nil }
func (v *recordingView) ElementFromPoint(x, y float64) (model.ElementRef, error) {
	return nil, nil
}
func (v *recordingView) ComputedStyle(el model.ElementRef) (document.ComputedStyle, error) {
	return document.ComputedStyle{}, nil
}
func (v *recordingView) BoundingRect(el model.ElementRef) (model.BoundingBox, error) {
	return model.BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}, nil
}
func (v *recordingView) IsVisible(el model.ElementRef) (bool, error) { return true, nil }
func (v *recordingView) Dispatch(ctx context.Context, el model.ElementRef, eventName string, init document.EventInit) error {
	v.events = append(v.events, eventName)
	v.datas = append(v.datas, init.Data)
	return nil
}
func (v *recordingView) Focus(ctx context.Context, el model.ElementRef) error          { return nil }
func (v *recordingView) ScrollIntoView(ctx context.Context, el model.ElementRef) error { return nil }
func (v *recordingView) CaptureViewport(ctx context.Context) (model.Frame, error)      { return model.Frame{}, nil }
func (v *recordingView) CaptureRegion(ctx context.Context, bounds model.BoundingBox) (model.Frame, error) {
	return model.Frame{}, nil
}
func (v *recordingView) ReadyState(ctx context.Context) (string, error) { return "complete", nil }
func (v *recordingView) AncestorChain(el model.ElementRef) ([]model.ElementRef, error) {
	return nil, nil
}
func (v *recordingView) Attributes(el model.ElementRef) (map[string]string, error) { return nil, nil }
func (v *recordingView) TagName(el model.ElementRef) (string, error)               { return "", nil }
func (v *recordingView) Text(el model.ElementRef) (string, error)                  { return "", nil }
func (v *recordingView) SetNativeValue(ctx context.Context, el model.ElementRef, value string) error {
	v.nativeValues = append(v.nativeValues, value)
	return nil
}
func (v *recordingView) Selector(el model.ElementRef) (string, error) { return "", nil }

func fastConfig() Config {
	c := DefaultConfig()
	c.MicroEventDelayMin = 0
	c.MicroEventDelayMax = time.Microsecond
	return c
}

func TestTypeTerminalEmitsPerCharacterKeyEvents(t *testing.T) {
	v := &recordingView{}
	e := New(v, fastConfig())
	descriptor := model.Bundle{ContextHint: model.ContextTerminal}

	if err := e.Type(context.Background(), ref("term"), "ls", descriptor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.nativeValues) != 0 {
		t.Fatalf("terminal typing must not assign a native value, got %v", v.nativeValues)
	}
	wantSeq := []string{"keydown", "input", "keyup", "keydown", "input", "keyup"}
	if len(v.events) != len(wantSeq) {
		t.Fatalf("expected %d events, got %d: %v", len(wantSeq), len(v.events), v.events)
	}
	for i, ev := range wantSeq {
		if v.events[i] != ev {
			t.Fatalf("event %d: expected %s, got %s", i, ev, v.events[i])
		}
	}
}

func TestPressEnterOnTerminalEmitsCarriageReturn(t *testing.T) {
	v := &recordingView{}
	e := New(v, fastConfig())
	descriptor := model.Bundle{ContextHint: model.ContextTerminal}

	if err := e.PressEnter(context.Background(), ref("term"), descriptor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for i, ev := range v.events {
		if ev == "input" && v.datas[i] == "\r" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a trailing input{data:'\\r'} event, got %v / %v", v.events, v.datas)
	}
}

func TestTypeNativeInputSetsValueThenEmitsInputAndChange(t *testing.T) {
	v := &recordingView{}
	e := New(v, fastConfig())
	descriptor := model.Bundle{ContextHint: model.ContextGeneric}

	if err := e.Type(context.Background(), ref("box"), "hello", descriptor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.nativeValues) != 2 || v.nativeValues[0] != "" || v.nativeValues[1] != "hello" {
		t.Fatalf("expected clear then set, got %v", v.nativeValues)
	}
	if v.events[0] != "input" || v.events[1] != "change" {
		t.Fatalf("expected input then change, got %v", v.events)
	}
}
