// Package evidence implements the Evidence Aggregator (spec.md §4.4):
// combining spatial, sequence, visual, DOM, and historical evidence
// into a single confidence-ranked candidate.
package evidence

import (
	"context"
	"sort"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/playback/screenshot"
)

// PreviousMatch is the subset of a prior step's outcome the sequence
// axis needs.
type PreviousMatch struct {
	Bounds model.BoundingBox
	Role   string
}

// CandidateInput is one element under consideration, assembled by the
// caller (typically the Troubleshooter's evidence-scoring strategy)
// from a DocumentView query.
type CandidateInput struct {
	Element     model.ElementRef
	Selector    string
	Bounds      model.BoundingBox
	Text        string
	TagName     string
	Attrs       map[string]string
	Screenshot  *model.Frame // candidate's rendered region, if captured
	Fingerprint string
}

// Config tunes the aggregator.
type Config struct {
	Weights             Weights
	MaxCandidates       int
	SearchRadius        float64
	AcceptanceThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		MaxCandidates:       20,
		SearchRadius:        300,
		AcceptanceThreshold: 0.6,
	}
}

// Aggregator scores and selects among candidates.
type Aggregator struct {
	cfg        Config
	comparator *screenshot.Comparator
	store      document.PatternStore // may be nil: history axis scores 0
}

func New(cfg Config, comparator *screenshot.Comparator, store document.PatternStore) *Aggregator {
	if err := cfg.Weights.Validate(); err != nil {
		panic(err)
	}
	return &Aggregator{cfg: cfg, comparator: comparator, store: store}
}

// Result is the outcome of FindElement.
type Result struct {
	Success          bool
	SelectedElement  model.ElementRef
	SelectedSelector string
	Confidence       float64
	Reasoning        []string
	Scored           []model.Candidate
}

// FindElement gathers up to MaxCandidates within SearchRadius of the
// descriptor's recorded center, scores each along five axes, and picks
// the argmax with score >= AcceptanceThreshold. Ties break on DOM,
// then Visual.
func (a *Aggregator) FindElement(ctx context.Context, descriptor model.Bundle, previous []PreviousMatch, candidates []CandidateInput) Result {
	type scored struct {
		cand  CandidateInput
		total float64
		breakdown model.EvidenceBreakdown
	}

	var withinRadius []CandidateInput
	for _, c := range candidates {
		if model.CenterDistance(descriptor.OriginalBounds, c.Bounds) <= a.cfg.SearchRadius {
			withinRadius = append(withinRadius, c)
		}
		if len(withinRadius) >= a.cfg.MaxCandidates {
			break
		}
	}

	var all []scored
	for _, c := range withinRadius {
		breakdown := model.EvidenceBreakdown{
			Spatial:  a.spatialScore(descriptor, c),
			Sequence: a.sequenceScore(previous, c),
			Visual:   a.visualScore(descriptor, c),
			DOM:      a.domScore(descriptor, c),
			History:  a.historyScore(ctx, c),
		}
		total := a.cfg.Weights.Spatial*breakdown.Spatial +
			a.cfg.Weights.Sequence*breakdown.Sequence +
			a.cfg.Weights.Visual*breakdown.Visual +
			a.cfg.Weights.DOM*breakdown.DOM +
			a.cfg.Weights.History*breakdown.History
		all = append(all, scored{cand: c, total: total, breakdown: breakdown})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].total != all[j].total {
			return all[i].total > all[j].total
		}
		if all[i].breakdown.DOM != all[j].breakdown.DOM {
			return all[i].breakdown.DOM > all[j].breakdown.DOM
		}
		return all[i].breakdown.Visual > all[j].breakdown.Visual
	})

	scoredOut := make([]model.Candidate, 0, len(all))
	for _, s := range all {
		scoredOut = append(scoredOut, model.Candidate{
			Element:    s.cand.Element,
			Selector:   s.cand.Selector,
			Evidence:   s.breakdown,
			TotalScore: s.total,
		})
	}

	if len(all) == 0 || all[0].total < a.cfg.AcceptanceThreshold {
		return Result{Success: false, Scored: scoredOut, Reasoning: []string{"no candidate reached the acceptance threshold"}}
	}

	winner := all[0]
	return Result{
		Success:          true,
		SelectedElement:  winner.cand.Element,
		SelectedSelector: winner.cand.Selector,
		Confidence:       winner.total,
		Reasoning:        reasoning(winner.breakdown),
		Scored:           scoredOut,
	}
}

func reasoning(b model.EvidenceBreakdown) []string {
	var out []string
	add := func(axis string, score float64) {
		if score >= 0.7 {
			out = append(out, axis+" evidence strongly supports this candidate")
		} else if score <= 0.2 {
			out = append(out, axis+" evidence is weak for this candidate")
		}
	}
	add("spatial", b.Spatial)
	add("sequence", b.Sequence)
	add("visual", b.Visual)
	add("DOM", b.DOM)
	add("history", b.History)
	if len(out) == 0 {
		out = append(out, "evidence is moderate across all axes")
	}
	return out
}

func (a *Aggregator) spatialScore(descriptor model.Bundle, c CandidateInput) float64 {
	dist := model.CenterDistance(descriptor.OriginalBounds, c.Bounds)
	proximity := 1 - dist/a.cfg.SearchRadius
	if proximity < 0 {
		proximity = 0
	}
	overlap := model.Overlap(descriptor.OriginalBounds, c.Bounds)
	return 0.6*proximity + 0.4*overlap
}

func (a *Aggregator) sequenceScore(previous []PreviousMatch, c CandidateInput) float64 {
	if len(previous) == 0 {
		return 0.5 // neutral: no chain to compare against
	}
	last := previous[len(previous)-1]
	dist := model.CenterDistance(last.Bounds, c.Bounds)
	const chainRadius = 600.0
	proximity := 1 - dist/chainRadius
	if proximity < 0 {
		proximity = 0
	}
	roleContinuity := 0.0
	if last.Role != "" && last.Role == c.Attrs["role"] {
		roleContinuity = 1
	}
	return 0.7*proximity + 0.3*roleContinuity
}

func (a *Aggregator) visualScore(descriptor model.Bundle, c CandidateInput) float64 {
	if descriptor.RecordedScreenshot == nil || c.Screenshot == nil || a.comparator == nil {
		return 0.5 // neutral: nothing recorded to compare against
	}
	res := a.comparator.QuickCompare(descriptor.RecordedScreenshot.Frame, *c.Screenshot)
	return res.Similarity
}

func (a *Aggregator) domScore(descriptor model.Bundle, c CandidateInput) float64 {
	var matched, total float64
	check := func(recorded, current string) {
		if recorded == "" {
			return
		}
		total++
		if recorded == current {
			matched++
		}
	}
	check(descriptor.ID, c.Attrs["id"])
	check(descriptor.TestID, c.Attrs["data-testid"])
	check(descriptor.Name, c.Attrs["name"])
	check(descriptor.AriaLabel, c.Attrs["aria-label"])
	check(descriptor.Role, c.Attrs["role"])
	if descriptor.TagName != "" {
		total++
		if descriptor.TagName == c.TagName {
			matched++
		}
	}
	classScore := classOverlap(descriptor.ClassNames, c.Attrs["class"])
	if total == 0 {
		return classScore
	}
	return 0.8*(matched/total) + 0.2*classScore
}

func classOverlap(recorded []string, currentClass string) float64 {
	if len(recorded) == 0 {
		return 0.5
	}
	current := splitClasses(currentClass)
	currentSet := make(map[string]bool, len(current))
	for _, c := range current {
		currentSet[c] = true
	}
	matched := 0
	for _, c := range recorded {
		if currentSet[c] {
			matched++
		}
	}
	return float64(matched) / float64(len(recorded))
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

func (a *Aggregator) historyScore(ctx context.Context, c CandidateInput) float64 {
	if a.store == nil || c.Fingerprint == "" {
		return 0
	}
	records, err := a.store.Lookup(ctx, c.Fingerprint)
	if err != nil || len(records) == 0 {
		return 0
	}
	var best float64
	for _, r := range records {
		if r.Success && r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}
