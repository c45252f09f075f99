// Package drift implements the Drift Detector (spec.md §4.2):
// classifying position/size drift of a target given original and
// current bounds, and ranking drift candidates within a search radius.
package drift

import (
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/textsim"
)

// Type enumerates the drift classifications.
type Type string

const (
	TypeNone        Type = "none"
	TypePosition    Type = "position"
	TypeSize        Type = "size"
	TypeBoth        Type = "both"
	TypeDisappeared Type = "disappeared"
	TypeReplaced    Type = "replaced"
)

// CorrectionMethod enumerates how a Correction was derived.
const (
	MethodBoundsAdjust = "bounds-adjust"
	MethodBoth         = "both"
)

// Correction proposes corrected bounds and, if applicable, a
// regenerated selector.
type Correction struct {
	Bounds   model.BoundingBox
	Selector string // empty if unchanged from the recorded selector
	Method   string
}

// Result is the outcome of detect().
type Result struct {
	DriftType         Type
	DriftDistance     float64
	Direction         string // "up","down","left","right","up-left", etc, "" if none/disappeared
	SizeChangePercent float64
	StillInteractable bool
	Correction        *Correction
	Confidence        float64
}

// CurrentElement is the subset of live-element information the
// detector needs; the caller (Element Finder / Troubleshooter) is
// responsible for pulling it from the DocumentView.
type CurrentElement struct {
	Bounds        model.BoundingBox
	Text          string
	TagName       string
	RegeneratedSelector string // empty if no alternate selector was derived
	Display       string
	Visibility    string
	Opacity       float64
	PointerEvents string
	Disabled      bool
}

// Config tunes the detector's thresholds.
type Config struct {
	PositionThreshold float64 // px, default 50
	SizeThreshold     float64 // fractional area change, default 0.3
	SearchRadius      float64 // px
	MinSize           float64 // px; below this in both dims, treat as disappeared
}

func DefaultConfig() Config {
	return Config{
		PositionThreshold: 50,
		SizeThreshold:     0.3,
		SearchRadius:      300,
		MinSize:           2,
	}
}

type Detector struct {
	cfg Config
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect classifies drift between the recorded bundle and an optional
// current element. A nil or too-small current element yields
// TypeDisappeared.
func (d *Detector) Detect(descriptor model.Bundle, current *CurrentElement) Result {
	if current == nil || (current.Bounds.Width < d.cfg.MinSize && current.Bounds.Height < d.cfg.MinSize) {
		return Result{DriftType: TypeDisappeared, Confidence: 0}
	}

	original := descriptor.OriginalBounds
	distance := model.CenterDistance(original, current.Bounds)
	areaChange := model.AreaChangePercent(original, current.Bounds)

	positionDrift := distance > d.cfg.PositionThreshold
	sizeDrift := abs(areaChange) > d.cfg.SizeThreshold

	var driftType Type
	switch {
	case !positionDrift && !sizeDrift:
		driftType = TypeNone
	case positionDrift && sizeDrift:
		driftType = TypeBoth
	case positionDrift:
		driftType = TypePosition
	default:
		driftType = TypeSize
	}

	// A tag mismatch combined with drift suggests the wrong element was
	// matched entirely, not a drift of the original one.
	if current.TagName != "" && descriptor.TagName != "" && current.TagName != descriptor.TagName && driftType != TypeNone {
		driftType = TypeReplaced
	}

	stillInteractable := interactable(current)

	result := Result{
		DriftType:         driftType,
		DriftDistance:     distance,
		Direction:         direction(original, current.Bounds),
		SizeChangePercent: areaChange,
		StillInteractable: stillInteractable,
		Confidence:        confidence(distance, areaChange, d.cfg, stillInteractable),
	}

	if driftType != TypeNone && driftType != TypeDisappeared {
		result.Correction = buildCorrection(descriptor, current)
	}

	return result
}

func interactable(c *CurrentElement) bool {
	if c.Disabled {
		return false
	}
	if c.PointerEvents == "none" {
		return false
	}
	if c.Display == "none" || c.Visibility == "hidden" || c.Visibility == "collapse" {
		return false
	}
	if c.Opacity == 0 {
		return false
	}
	return true
}

func buildCorrection(descriptor model.Bundle, current *CurrentElement) *Correction {
	c := &Correction{Bounds: current.Bounds, Method: MethodBoundsAdjust}
	if current.RegeneratedSelector != "" && current.RegeneratedSelector != descriptor.Selector {
		c.Selector = current.RegeneratedSelector
		c.Method = MethodBoth
	}
	return c
}

func direction(original, current model.BoundingBox) string {
	ox, oy := original.Center()
	cx, cy := current.Center()
	dx, dy := cx-ox, cy-oy
	const epsilon = 1.0
	vertical := ""
	horizontal := ""
	if dy < -epsilon {
		vertical = "up"
	} else if dy > epsilon {
		vertical = "down"
	}
	if dx < -epsilon {
		horizontal = "left"
	} else if dx > epsilon {
		horizontal = "right"
	}
	switch {
	case vertical != "" && horizontal != "":
		return vertical + "-" + horizontal
	case vertical != "":
		return vertical
	case horizontal != "":
		return horizontal
	default:
		return ""
	}
}

// confidence decays with distance (capped at a 0.3 reduction at
// 200px), size-change excess beyond the threshold, and a
// non-interactable state.
func confidence(distance, areaChange float64, cfg Config, stillInteractable bool) float64 {
	score := 1.0

	distancePenalty := distance / 200 * 0.3
	if distancePenalty > 0.3 {
		distancePenalty = 0.3
	}
	score -= distancePenalty

	excess := abs(areaChange) - cfg.SizeThreshold
	if excess > 0 {
		penalty := excess * 0.5
		if penalty > 0.3 {
			penalty = 0.3
		}
		score -= penalty
	}

	if !stillInteractable {
		score -= 0.2
	}

	if score < 0 {
		score = 0
	}
	return score
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// CandidateNode is one enumerable DOM node considered by
// FindDriftedElement.
type CandidateNode struct {
	Element model.ElementRef
	Bounds  model.BoundingBox
	Text    string
	TagName string
}

// FindDriftedElement ranks candidate nodes of the event-appropriate tag
// set by a weighted sum of center-distance score and text similarity,
// accepting the best candidate within the search radius.
func (d *Detector) FindDriftedElement(descriptor model.Bundle, candidates []CandidateNode) (model.ElementRef, float64) {
	var best model.ElementRef
	bestScore := -1.0
	for _, cand := range candidates {
		dist := model.CenterDistance(descriptor.OriginalBounds, cand.Bounds)
		if dist > d.cfg.SearchRadius {
			continue
		}
		distanceScore := 1 - dist/d.cfg.SearchRadius
		textScore := textsim.Similarity(descriptor.Text, cand.Text)
		score := 0.6*distanceScore + 0.4*textScore
		if score > bestScore {
			bestScore = score
			best = cand.Element
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestScore
}
