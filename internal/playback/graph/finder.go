// Package graph implements the Graph-Based Finder (spec.md §4.3):
// locating a target by traversing parent/sibling/landmark/nearby
// relationships captured at record time.
package graph

import (
	"context"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/textsim"
)

// Strategy names, tried in this fixed order.
const (
	StrategyParentChild     = "parent-child"
	StrategySiblingRelative = "sibling-relative"
	StrategyLandmarkPath    = "landmark-path"
	StrategyNearbyText      = "nearby-text"
)

var strategyConfidence = map[string]float64{
	StrategyParentChild:     0.8,
	StrategySiblingRelative: 0.7,
	StrategyLandmarkPath:    0.65,
	StrategyNearbyText:      0.6,
}

// Alternative is a non-winning candidate collected after a hit.
type Alternative struct {
	Strategy string
	Selector string
	Element  model.ElementRef
	Score    float64
}

// Result is the outcome of Find.
type Result struct {
	Found            bool
	Element          model.ElementRef
	Selector         string
	Strategy         string
	RelationshipPath []string
	Confidence       float64
	Alternatives     []Alternative
}

// Finder re-locates a target via its recorded ElementGraph.
type Finder struct {
	view document.View
}

func New(view document.View) *Finder {
	return &Finder{view: view}
}

// Find tries each strategy in order, returning the first hit; after a
// hit, the remaining strategies are still run (best-effort) to collect
// up to 3 alternatives.
func (f *Finder) Find(ctx context.Context, g model.ElementGraph) Result {
	strategies := []func(context.Context, model.ElementGraph) (model.ElementRef, string, []string, float64, bool){
		f.tryParentChild,
		f.trySiblingRelative,
		f.tryLandmarkPath,
		f.tryNearbyText,
	}
	names := []string{StrategyParentChild, StrategySiblingRelative, StrategyLandmarkPath, StrategyNearbyText}

	var result Result
	var alternatives []Alternative

	for i, strategy := range strategies {
		el, selector, path, score, ok := strategy(ctx, g)
		if !ok {
			continue
		}
		if !result.Found {
			result = Result{
				Found:            true,
				Element:          el,
				Selector:         selector,
				Strategy:         names[i],
				RelationshipPath: path,
				Confidence:       strategyConfidence[names[i]],
			}
			continue
		}
		if len(alternatives) < 3 {
			alternatives = append(alternatives, Alternative{Strategy: names[i], Selector: selector, Element: el, Score: score})
		}
	}
	result.Alternatives = alternatives
	return result
}

// relocateNode re-locates a captured reference node by its own
// selector, then id, then testId.
func (f *Finder) relocateNode(node model.ElementNode) (model.ElementRef, bool) {
	if node.Selector != "" {
		if el, err := f.view.Query(node.Selector); err == nil && el != nil {
			if f.verifyNode(el, node) {
				return el, true
			}
		}
	}
	if node.ID != "" {
		if el, err := f.view.ByID(node.ID); err == nil && el != nil {
			if f.verifyNode(el, node) {
				return el, true
			}
		}
	}
	if node.TestID != "" {
		if el, err := f.view.Query(`[data-testid="` + node.TestID + `"]`); err == nil && el != nil {
			if f.verifyNode(el, node) {
				return el, true
			}
		}
	}
	return nil, false
}

func (f *Finder) verifyNode(el model.ElementRef, node model.ElementNode) bool {
	tag, err := f.view.TagName(el)
	if err != nil || (node.TagName != "" && tag != node.TagName) {
		return false
	}
	if node.Text != "" {
		text, err := f.view.Text(el)
		if err != nil || textsim.Similarity(text, node.Text) < 0.5 {
			return false
		}
	}
	return true
}

func (f *Finder) tryParentChild(ctx context.Context, g model.ElementGraph) (model.ElementRef, string, []string, float64, bool) {
	for _, parent := range g.Parents {
		parentEl, ok := f.relocateNode(parent)
		if !ok {
			continue
		}
		children, err := f.view.QueryAll(parent.Selector + " *")
		if err != nil {
			continue
		}
		best, score := f.bestMatch(children, g.Target)
		if best != nil && score > 0.5 {
			path := []string{"parent:" + parent.Selector}
			_ = parentEl
			return best, f.selectorOf(best), path, score, true
		}
	}
	return nil, "", nil, 0, false
}

func (f *Finder) trySiblingRelative(ctx context.Context, g model.ElementGraph) (model.ElementRef, string, []string, float64, bool) {
	for _, sibling := range g.Siblings {
		siblingEl, ok := f.relocateNode(sibling)
		if !ok {
			continue
		}
		ancestors, err := f.view.AncestorChain(siblingEl)
		if err != nil || len(ancestors) == 0 {
			continue
		}
		parentSelector := sibling.Selector
		children, err := f.view.QueryAll(parentSelector + " ~ *")
		if err != nil {
			continue
		}
		best, score := f.bestMatch(children, g.Target)
		if best != nil && score > 0.4 {
			path := []string{"sibling:" + sibling.Selector}
			return best, f.selectorOf(best), path, score, true
		}
	}
	return nil, "", nil, 0, false
}

func (f *Finder) tryLandmarkPath(ctx context.Context, g model.ElementGraph) (model.ElementRef, string, []string, float64, bool) {
	for _, landmark := range g.Landmarks {
		landmarkEl, ok := f.relocateNode(landmark)
		if !ok {
			continue
		}
		descendants, err := f.view.QueryAll(landmark.Selector + " *")
		if err != nil {
			continue
		}
		best, score := f.bestMatch(descendants, g.Target)
		if best != nil && score > 0.5 {
			path := []string{"landmark:" + landmark.Selector}
			_ = landmarkEl
			return best, f.selectorOf(best), path, score, true
		}
	}
	return nil, "", nil, 0, false
}

func (f *Finder) tryNearbyText(ctx context.Context, g model.ElementGraph) (model.ElementRef, string, []string, float64, bool) {
	for _, nearby := range g.Nearby {
		nearbyEl, ok := f.relocateNode(nearby)
		if !ok {
			continue
		}
		bounds, err := f.view.BoundingRect(nearbyEl)
		if err != nil {
			continue
		}
		offsetX := g.Target.Bounds.X - nearby.Bounds.X
		offsetY := g.Target.Bounds.Y - nearby.Bounds.Y
		targetX := bounds.X + offsetX
		targetY := bounds.Y + offsetY
		el, err := f.view.ElementFromPoint(targetX+g.Target.Bounds.Width/2, targetY+g.Target.Bounds.Height/2)
		if err != nil || el == nil {
			continue
		}
		dist := nearby.DistanceToTarget
		if dist > 100 {
			continue
		}
		path := []string{"nearby:" + nearby.Selector}
		return el, f.selectorOf(el), path, 1 - dist/100, true
	}
	return nil, "", nil, 0, false
}

// bestMatch scores candidates against the target node using text
// similarity (0.4), aria/role exact match (0.3/0.2), and bounds
// similarity (0.1).
func (f *Finder) bestMatch(candidates []model.ElementRef, target model.ElementNode) (model.ElementRef, float64) {
	var best model.ElementRef
	bestScore := -1.0
	for _, cand := range candidates {
		attrs, err := f.view.Attributes(cand)
		if err != nil {
			continue
		}
		text, _ := f.view.Text(cand)
		bounds, _ := f.view.BoundingRect(cand)

		score := 0.4*textsim.Similarity(text, target.Text) +
			0.3*boolScore(attrs["aria-label"] == target.AriaLabel && target.AriaLabel != "") +
			0.2*boolScore(attrs["role"] == target.Role && target.Role != "") +
			0.1*model.Overlap(bounds, target.Bounds)

		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (f *Finder) selectorOf(el model.ElementRef) string {
	selector, err := f.view.Selector(el)
	if err != nil || selector == "" {
		return el.Ref()
	}
	return selector
}
