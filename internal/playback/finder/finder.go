// Package finder implements the Element Finder (spec.md §4.6): an
// ordered multi-strategy lookup gated by the Context Validator, polling
// until a timeout elapses.
package finder

import (
	"context"
	"time"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/contextvalidator"
	"github.com/selfheal/playback-core/internal/playback/model"
)

// Strategy names in the fixed lookup order, with their confidences.
const (
	StrategySelector        = "selector"
	StrategyTestID          = "testId"
	StrategyID              = "id"
	StrategyName            = "name"
	StrategyXPath           = "xpath"
	StrategyAriaLabel       = "ariaLabel"
	StrategyContextSpecific = "context-specific"
	StrategyBoundsHit       = "bounds-hit"
	StrategyPlaceholder     = "placeholder"
)

var strategyConfidence = map[string]float64{
	StrategySelector:        1.0,
	StrategyTestID:          0.95,
	StrategyID:              0.9,
	StrategyName:            0.85,
	StrategyXPath:           0.8,
	StrategyAriaLabel:       0.75,
	StrategyContextSpecific: 0.7,
	StrategyBoundsHit:       0.6,
	StrategyPlaceholder:     0.65,
}

// Attempt records one strategy's failure, for diagnostics.
type Attempt struct {
	Strategy string
	Reason   string
}

// Result is the outcome of Find.
type Result struct {
	Element      model.ElementRef
	Strategy     string
	Confidence   float64
	ContextValid bool
	Attempts     []Attempt
}

// contextSpecificSelectors maps a ContextHint to the well-known inner
// selector used by that surface's own rendering, for surfaces that
// implement their own input widget rather than a native element.
var contextSpecificSelectors = map[model.ContextHint]string{
	model.ContextTerminal:        "textarea.xterm-helper-textarea, .xterm-helper-textarea",
	model.ContextChatSurface:     "[contenteditable][data-chat-input], .chat-input[contenteditable]",
	model.ContextRichTextSurface: "[contenteditable].rich-text-surface, .ProseMirror",
}

// Finder is the ordered multi-strategy lookup.
type Finder struct {
	view      document.View
	validator *contextvalidator.Validator
	interval  time.Duration
}

func New(view document.View, validator *contextvalidator.Validator, pollInterval time.Duration) *Finder {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &Finder{view: view, validator: validator, interval: pollInterval}
}

// Find polls until timeout elapses, trying the fixed strategy order
// each pass, each gated by context validity and visibility.
func (f *Finder) Find(ctx context.Context, descriptor model.Bundle, timeout time.Duration) Result {
	deadline := time.Now().Add(timeout)
	var attempts []Attempt

	for {
		if el, strategy, ok := f.tryOnce(descriptor, &attempts); ok {
			return Result{Element: el, Strategy: strategy, Confidence: strategyConfidence[strategy], ContextValid: true, Attempts: attempts}
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			return Result{Element: nil, Attempts: attempts}
		}
		select {
		case <-ctx.Done():
			return Result{Element: nil, Attempts: attempts}
		case <-time.After(f.interval):
		}
	}
}

func (f *Finder) tryOnce(descriptor model.Bundle, attempts *[]Attempt) (model.ElementRef, string, bool) {
	type strategyFn struct {
		name string
		fn   func() (model.ElementRef, error)
	}
	strategies := []strategyFn{
		{StrategySelector, func() (model.ElementRef, error) { return queryIfSet(f.view, descriptor.Selector) }},
		{StrategyTestID, func() (model.ElementRef, error) {
			if descriptor.TestID == "" {
				return nil, document.ErrNotFound
			}
			return f.view.Query(`[data-testid="` + descriptor.TestID + `"]`)
		}},
		{StrategyID, func() (model.ElementRef, error) {
			if descriptor.ID == "" {
				return nil, document.ErrNotFound
			}
			return f.view.ByID(descriptor.ID)
		}},
		{StrategyName, func() (model.ElementRef, error) {
			if descriptor.Name == "" {
				return nil, document.ErrNotFound
			}
			return f.view.ByName(descriptor.Name)
		}},
		{StrategyXPath, func() (model.ElementRef, error) {
			if descriptor.XPath == "" {
				return nil, document.ErrNotFound
			}
			return f.view.ByXPath(descriptor.XPath)
		}},
		{StrategyAriaLabel, func() (model.ElementRef, error) {
			if descriptor.AriaLabel == "" {
				return nil, document.ErrNotFound
			}
			return f.view.Query(`[aria-label="` + descriptor.AriaLabel + `"]`)
		}},
		{StrategyContextSpecific, func() (model.ElementRef, error) {
			selector, ok := contextSpecificSelectors[descriptor.ContextHint]
			if !ok {
				return nil, document.ErrNotFound
			}
			return f.view.Query(selector)
		}},
		{StrategyBoundsHit, func() (model.ElementRef, error) { return f.boundsHit(descriptor) }},
		{StrategyPlaceholder, func() (model.ElementRef, error) {
			if descriptor.Placeholder == "" {
				return nil, document.ErrNotFound
			}
			return f.view.Query(`[placeholder="` + descriptor.Placeholder + `"]`)
		}},
	}

	for _, s := range strategies {
		el, err := s.fn()
		if err != nil || el == nil {
			if err != nil && err != document.ErrNotFound {
				*attempts = append(*attempts, Attempt{Strategy: s.name, Reason: err.Error()})
			}
			continue
		}
		if !f.isAcceptable(el, descriptor, s.name) {
			*attempts = append(*attempts, Attempt{Strategy: s.name, Reason: "context or visibility rejected"})
			continue
		}
		return el, s.name, true
	}
	return nil, "", false
}

func queryIfSet(view document.View, selector string) (model.ElementRef, error) {
	if selector == "" {
		return nil, document.ErrNotFound
	}
	return view.Query(selector)
}

func (f *Finder) boundsHit(descriptor model.Bundle) (model.ElementRef, error) {
	cx, cy := descriptor.OriginalBounds.Center()
	offsets := []struct{ dx, dy float64 }{
		{0, 0}, {5, 0}, {-5, 0}, {0, 5}, {0, -5},
	}
	for _, off := range offsets {
		if el, err := f.view.ElementFromPoint(cx+off.dx, cy+off.dy); err == nil && el != nil {
			return el, nil
		}
	}
	return nil, document.ErrNotFound
}

// isAcceptable applies visibility policy (with the explicit exception
// for container-hidden input proxies) and Context Validator gating.
func (f *Finder) isAcceptable(el model.ElementRef, descriptor model.Bundle, strategy string) bool {
	if strategy != StrategyContextSpecific {
		visible, err := f.view.IsVisible(el)
		if err != nil || !visible {
			return false
		}
	}
	// else: container-hidden input proxies are allowed by design — the
	// surface renders its own view and uses an off-screen helper input.

	ancestors, err := f.view.AncestorChain(el)
	if err != nil {
		ancestors = nil
	}
	infos := make([]contextvalidator.AncestorInfo, 0, len(ancestors))
	for _, a := range ancestors {
		attrs, aerr := f.view.Attributes(a)
		if aerr != nil {
			continue
		}
		infos = append(infos, contextvalidator.AncestorInfo{ClassNames: splitClasses(attrs["class"]), Role: attrs["role"]})
	}
	result := f.validator.Validate(descriptor, infos)
	return result.IsValid
}

func splitClasses(class string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(class); i++ {
		if i == len(class) || class[i] == ' ' {
			if i > start {
				out = append(out, class[start:i])
			}
			start = i + 1
		}
	}
	return out
}
