// Package document defines the DocumentView and HealingProvider
// adapters the playback core consumes. Concrete implementations (a
// websocket bridge to a live browser, a goquery-backed static
// snapshot) live in sibling packages; the core only ever depends on
// these interfaces, per the spec's "treat shared mutable DOM as an
// opaque adapter" design note.
package document

import (
	"context"

	"github.com/selfheal/playback-core/internal/playback/model"
)

// ComputedStyle is the subset of computed style information the core
// needs to judge visibility and interactability.
type ComputedStyle struct {
	Display       string
	Visibility    string
	Opacity       float64
	PointerEvents string
	Disabled      bool
}

// EventInit carries the fields the core needs to set on a dispatched
// DOM event; adapters translate it into their native event type.
type EventInit struct {
	ClientX   float64
	ClientY   float64
	Key       string
	Code      string
	Data      string
	InputType string
	Bubbles   bool
}

// View queries, inspects, and mutates a mutable rendered document. It
// is the seam between the playback core and any concrete
// web-automation technology.
type View interface {
	Query(selector string) (model.ElementRef, error)
	QueryAll(selector string) ([]model.ElementRef, error)
	ByID(id string) (model.ElementRef, error)
	ByName(name string) (model.ElementRef, error)
	ByXPath(xpath string) (model.ElementRef, error)
	ElementFromPoint(x, y float64) (model.ElementRef, error)

	ComputedStyle(el model.ElementRef) (ComputedStyle, error)
	BoundingRect(el model.ElementRef) (model.BoundingBox, error)
	IsVisible(el model.ElementRef) (bool, error)

	Dispatch(ctx context.Context, el model.ElementRef, eventName string, init EventInit) error
	Focus(ctx context.Context, el model.ElementRef) error
	ScrollIntoView(ctx context.Context, el model.ElementRef) error

	CaptureViewport(ctx context.Context) (model.Frame, error)
	CaptureRegion(ctx context.Context, bounds model.BoundingBox) (model.Frame, error)

	ReadyState(ctx context.Context) (string, error)

	// AncestorChain returns the element's ancestors, nearest first, for
	// Context Validator surface inference and Graph Finder re-location.
	AncestorChain(el model.ElementRef) ([]model.ElementRef, error)
	// Attributes returns the subset of attributes the finder/graph/DOM
	// axis need: id, class, name, aria-label, role, data-testid.
	Attributes(el model.ElementRef) (map[string]string, error)
	// TagName returns the element's lowercase tag name.
	TagName(el model.ElementRef) (string, error)
	// Text returns the element's immediate text content.
	Text(el model.ElementRef) (string, error)
	// SetNativeValue assigns a value via the native property setter,
	// bypassing framework wrappers, for native input/textarea elements.
	SetNativeValue(ctx context.Context, el model.ElementRef, value string) error
	// Selector returns a selector string that independently re-resolves
	// to el, for graph-path reporting and cache-record keys.
	Selector(el model.ElementRef) (string, error)
}

// ErrNotFound is returned by View lookups that find nothing; it is not
// itself a playback-core error kind (see internal/perrors), adapters
// return it and the finder classifies it.
var ErrNotFound = viewError("element not found")

type viewError string

func (e viewError) Error() string { return string(e) }

// Provider is the optional vision/AI healing fallback, consumed only by
// the Troubleshooter's last two resolution strategies.
type Provider interface {
	Name() string // "local-vision" or "ai-vision"
	Heal(ctx context.Context, step model.RecordedStep, attemptedSelectors []string) (ProviderResult, error)
}

// ProviderResult is what a Provider reports back.
type ProviderResult struct {
	Success           bool
	SuggestedSelector string
	Confidence        float64
	Provider          string
}

// PatternStore persists and looks up learned healings.
type PatternStore interface {
	Load(ctx context.Context) ([]model.HealingRecord, error)
	Save(ctx context.Context, records []model.HealingRecord) error
	RecordSuccess(ctx context.Context, fingerprint, healedSelector, strategy string, confidence float64) error
	Lookup(ctx context.Context, fingerprint string) ([]model.HealingRecord, error)
}
