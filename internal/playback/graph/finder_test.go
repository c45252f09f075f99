package graph

import (
	"context"
	"testing"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/model"
)

type fakeRef string

func (f fakeRef) Ref() string { return string(f) }

type fakeNode struct {
	ref      fakeRef
	tag      string
	text     string
	bounds   model.BoundingBox
	attrs    map[string]string
	selector string
}

type fakeView struct {
	nodes    map[fakeRef]fakeNode
	bySel    map[string][]fakeRef
	children map[string][]fakeRef // selector -> children for "<sel> *"
}

func (v *fakeView) Query(selector string) (model.ElementRef, error) {
	refs := v.bySel[selector]
	if len(refs) == 0 {
		return nil, document.ErrNotFound
	}
	return refs[0], nil
}
func (v *fakeView) QueryAll(selector string) ([]model.ElementRef, error) {
	refs := v.children[selector]
	out := make([]model.ElementRef, len(refs))
	for i, r := range refs {
		out[i] = r
	}
	return out, nil
}
func (v *fakeView) ByID(id string) (model.ElementRef, error)   { return nil, document.ErrNotFound }
func (v *fakeView) ByName(name string) (model.ElementRef, error) { return nil, document.ErrNotFound }
func (v *fakeView) ByXPath(xpath string) (model.ElementRef, error) { return nil, document.ErrNotFound }
func (v *fakeView) ElementFromPoint(x, y float64) (model.ElementRef, error) {
	return nil, document.ErrNotFound
}
func (v *fakeView) ComputedStyle(el model.ElementRef) (document.ComputedStyle, error) {
	return document.ComputedStyle{}, nil
}
func (v *fakeView) BoundingRect(el model.ElementRef) (model.BoundingBox, error) {
	n, ok := v.nodes[el.(fakeRef)]
	if !ok {
		return model.BoundingBox{}, document.ErrNotFound
	}
	return n.bounds, nil
}
func (v *fakeView) IsVisible(el model.ElementRef) (bool, error) { return true, nil }
func (v *fakeView) Dispatch(ctx context.Context, el model.ElementRef, eventName string, init document.EventInit) error {
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
func (v *fakeView) Attributes(el model.ElementRef) (map[string]string, error) {
	n, ok := v.nodes[el.(fakeRef)]
	if !ok {
		return nil, document.ErrNotFound
	}
	return n.attrs, nil
}
func (v *fakeView) TagName(el model.ElementRef) (string, error) {
	n, ok := v.nodes[el.(fakeRef)]
	if !ok {
		return "", document.ErrNotFound
	}
	return n.tag, nil
}
func (v *fakeView) Text(el model.ElementRef) (string, error) {
	n, ok := v.nodes[el.(fakeRef)]
	if !ok {
		return "", document.ErrNotFound
	}
	return n.text, nil
}
func (v *fakeView) SetNativeValue(ctx context.Context, el model.ElementRef, value string) error {
	return nil
}
func (v *fakeView) Selector(el model.ElementRef) (string, error) {
	n, ok := v.nodes[el.(fakeRef)]
	if !ok {
		return "", document.ErrNotFound
	}
	return n.selector, nil
}

func TestFindViaParentChild(t *testing.T) {
	parentRef := fakeRef("parent")
	targetRef := fakeRef("target")

	v := &fakeView{
		nodes: map[fakeRef]fakeNode{
			parentRef: {ref: parentRef, tag: "div", selector: "#toolbar"},
			targetRef: {ref: targetRef, tag: "button", text: "Submit", selector: "#toolbar > button", bounds: model.BoundingBox{X: 10, Y: 10, Width: 50, Height: 20}},
		},
		bySel: map[string][]fakeRef{
			"#toolbar": {parentRef},
		},
		children: map[string][]fakeRef{
			"#toolbar *": {targetRef},
		},
	}

	g := model.ElementGraph{
		Target: model.ElementNode{TagName: "button", Text: "Submit", Bounds: model.BoundingBox{X: 10, Y: 10, Width: 50, Height: 20}},
		Parents: []model.ElementNode{
			{Relationship: "parent", TagName: "div", Selector: "#toolbar"},
		},
	}

	finder := New(v)
	res := finder.Find(context.Background(), g)
	if !res.Found {
		t.Fatalf("expected a hit")
	}
	if res.Strategy != StrategyParentChild {
		t.Fatalf("expected parent-child strategy, got %s", res.Strategy)
	}
	if res.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", res.Confidence)
	}
	if res.Element.Ref() != "target" {
		t.Fatalf("expected target element, got %v", res.Element)
	}
}

func TestFindReturnsNotFoundWhenNoRelationshipResolves(t *testing.T) {
	v := &fakeView{nodes: map[fakeRef]fakeNode{}, bySel: map[string][]fakeRef{}, children: map[string][]fakeRef{}}
	finder := New(v)
	res := finder.Find(context.Background(), model.ElementGraph{})
	if res.Found {
		t.Fatalf("expected no hit, got %+v", res)
	}
}
