// Package troubleshoot implements the Troubleshooter (spec.md §4.8):
// a diagnostic suite run concurrently to characterise why a step
// failed, followed by an ordered, sequential resolution ladder that
// stops at the first strategy to succeed.
package troubleshoot

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/logging"
	"github.com/selfheal/playback-core/internal/perrors"
	"github.com/selfheal/playback-core/internal/playback/contextvalidator"
	"github.com/selfheal/playback-core/internal/playback/drift"
	"github.com/selfheal/playback-core/internal/playback/evidence"
	"github.com/selfheal/playback-core/internal/playback/graph"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/playback/screenshot"
	"github.com/selfheal/playback-core/internal/telemetry"
)

// Diagnostic names, each run independently and concurrently.
const (
	DiagPageLoaded          = "page-loaded"
	DiagElementExists       = "element-exists"
	DiagElementVisible      = "element-visible"
	DiagElementInteractable = "element-interactable"
	DiagScreenshotMatch     = "screenshot-match"
	DiagDriftCheck          = "drift-check"
	DiagContextMatch        = "context-match"
	DiagGraphIntegrity      = "graph-integrity"
	DiagSelectorValid       = "selector-valid"
	DiagFrameAccessible     = "frame-accessible"
)

// Resolution strategy names, tried in this fixed order.
const (
	StrategyRetryOriginal    = "retry-original"
	StrategyDriftCorrection  = "drift-correction"
	StrategyGraphNavigation  = "graph-navigation"
	StrategyEvidenceScoring  = "evidence-scoring"
	StrategyHealingCache     = "healing-cache"
	StrategyScreenshotLocate = "screenshot-locate"
	StrategyLocalVision      = "local-vision"
	StrategyAIVision         = "ai-vision"
)

// DiagnosticReport collects every diagnostic's outcome, keyed by name.
type DiagnosticReport struct {
	Results map[string]DiagnosticResult
}

// DiagnosticResult is one diagnostic's outcome.
type DiagnosticResult struct {
	Pass   bool
	Detail string
	Err    error
}

// ResolutionOutcome is what a resolution strategy produced.
type ResolutionOutcome struct {
	Strategy   string
	Success    bool
	Element    model.ElementRef
	Selector   string
	Confidence float64
	Reasoning  string
}

// Terminal troubleshooting statuses (spec.md §4.8's phase model:
// diagnosing -> resolving -> (resolved | manual | unresolved)).
const (
	StatusResolved   = "resolved"
	StatusManual     = "manual"
	StatusUnresolved = "unresolved"
)

// TroubleshootingSession is the result of running the full diagnose ->
// resolve pipeline for one failed step.
type TroubleshootingSession struct {
	Report  DiagnosticReport
	Outcome ResolutionOutcome
	Status  string
}

// allDiagnosticsFailed reports whether every diagnostic in report
// failed, the condition spec.md §4.8 requires (alongside an exhausted
// resolution ladder) before a step is classified "manual" rather than
// merely "unresolved".
func allDiagnosticsFailed(report DiagnosticReport) bool {
	if len(report.Results) == 0 {
		return false
	}
	for _, r := range report.Results {
		if r.Pass {
			return false
		}
	}
	return true
}

// Deps bundles every collaborator the Troubleshooter orchestrates; all
// are already-built, independently testable packages (spec.md §2's
// Troubleshooter dependency row).
type Deps struct {
	View              document.View
	Comparator        *screenshot.Comparator
	DriftDetector     *drift.Detector
	GraphFinder       *graph.Finder
	Evidence          *evidence.Aggregator
	ContextValidator  *contextvalidator.Validator
	PatternStore      document.PatternStore
	LocalVision       document.Provider
	AIVision          document.Provider
	FingerprintOf     func(model.Bundle) string
}

// Troubleshooter diagnoses and resolves a failed step.
type Troubleshooter struct {
	deps Deps
	log  *logging.Logger
}

func New(deps Deps, log *logging.Logger) *Troubleshooter {
	if log == nil {
		log = logging.New(logging.Config{ComponentName: "TROUBLESHOOT"})
	}
	return &Troubleshooter{deps: deps, log: log}
}

// Comparator exposes the screenshot comparator the Troubleshooter was
// built with, so the Engine can run the same quick-compare gate
// against a direct element hit before accepting it (spec.md §4.9 step
// 4), without duplicating comparator construction.
func (t *Troubleshooter) Comparator() *screenshot.Comparator {
	return t.deps.Comparator
}

// Diagnose runs every diagnostic concurrently (they are independent
// read-only checks) and returns once all have reported.
func (t *Troubleshooter) Diagnose(ctx context.Context, descriptor model.Bundle, el model.ElementRef) DiagnosticReport {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDiagnose, "", 0)
	defer span.End()

	names := []string{
		DiagPageLoaded, DiagElementExists, DiagElementVisible, DiagElementInteractable,
		DiagScreenshotMatch, DiagDriftCheck, DiagContextMatch, DiagGraphIntegrity,
		DiagSelectorValid, DiagFrameAccessible,
	}
	results := make([]DiagnosticResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = t.runDiagnostic(gctx, name, descriptor, el)
			return nil
		})
	}
	_ = g.Wait() // diagnostics never fail the group; failures live in DiagnosticResult

	report := DiagnosticReport{Results: make(map[string]DiagnosticResult, len(names))}
	for i, name := range names {
		report.Results[name] = results[i]
	}
	return report
}

func (t *Troubleshooter) runDiagnostic(ctx context.Context, name string, descriptor model.Bundle, el model.ElementRef) DiagnosticResult {
	switch name {
	case DiagPageLoaded:
		state, err := t.deps.View.ReadyState(ctx)
		return DiagnosticResult{Pass: err == nil && state == "complete", Detail: state, Err: err}
	case DiagElementExists:
		return DiagnosticResult{Pass: el != nil}
	case DiagElementVisible:
		if el == nil {
			return DiagnosticResult{Pass: false, Detail: "no element to check"}
		}
		visible, err := t.deps.View.IsVisible(el)
		return DiagnosticResult{Pass: err == nil && visible, Err: err}
	case DiagElementInteractable:
		if el == nil {
			return DiagnosticResult{Pass: false, Detail: "no element to check"}
		}
		style, err := t.deps.View.ComputedStyle(el)
		if err != nil {
			return DiagnosticResult{Pass: false, Err: err}
		}
		ok := !style.Disabled && style.PointerEvents != "none" && style.Display != "none" && style.Visibility != "hidden"
		return DiagnosticResult{Pass: ok}
	case DiagScreenshotMatch:
		return t.diagScreenshotMatch(ctx, descriptor, el)
	case DiagDriftCheck:
		return t.diagDriftCheck(descriptor, el)
	case DiagContextMatch:
		return t.diagContextMatch(descriptor, el)
	case DiagGraphIntegrity:
		return t.diagGraphIntegrity(descriptor)
	case DiagSelectorValid:
		if descriptor.Selector == "" {
			return DiagnosticResult{Pass: false, Detail: "no recorded selector"}
		}
		_, err := t.deps.View.Query(descriptor.Selector)
		return DiagnosticResult{Pass: err == nil, Err: ignoreNotFound(err)}
	case DiagFrameAccessible:
		_, err := t.deps.View.ReadyState(ctx)
		return DiagnosticResult{Pass: err == nil, Err: err}
	default:
		return DiagnosticResult{Pass: false, Detail: "unknown diagnostic"}
	}
}

func ignoreNotFound(err error) error {
	if err == document.ErrNotFound {
		return nil
	}
	return err
}

func (t *Troubleshooter) diagScreenshotMatch(ctx context.Context, descriptor model.Bundle, el model.ElementRef) DiagnosticResult {
	if descriptor.RecordedScreenshot == nil || el == nil {
		return DiagnosticResult{Pass: true, Detail: "no recorded screenshot to compare"}
	}
	bounds, err := t.deps.View.BoundingRect(el)
	if err != nil {
		return DiagnosticResult{Pass: false, Err: err}
	}
	current, err := t.deps.View.CaptureRegion(ctx, bounds)
	if err != nil {
		return DiagnosticResult{Pass: false, Err: err}
	}
	res := t.deps.Comparator.QuickCompare(descriptor.RecordedScreenshot.Frame, current)
	return DiagnosticResult{Pass: res.Match, Detail: res.Method}
}

func (t *Troubleshooter) diagDriftCheck(descriptor model.Bundle, el model.ElementRef) DiagnosticResult {
	if el == nil {
		result := t.deps.DriftDetector.Detect(descriptor, nil)
		return DiagnosticResult{Pass: false, Detail: string(result.DriftType)}
	}
	bounds, err := t.deps.View.BoundingRect(el)
	if err != nil {
		return DiagnosticResult{Pass: false, Err: err}
	}
	tag, _ := t.deps.View.TagName(el)
	text, _ := t.deps.View.Text(el)
	current := &drift.CurrentElement{Bounds: bounds, TagName: tag, Text: text}
	result := t.deps.DriftDetector.Detect(descriptor, current)
	return DiagnosticResult{Pass: result.DriftType == drift.TypeNone, Detail: string(result.DriftType)}
}

func (t *Troubleshooter) diagContextMatch(descriptor model.Bundle, el model.ElementRef) DiagnosticResult {
	if el == nil {
		return DiagnosticResult{Pass: false, Detail: "no element to check"}
	}
	ancestors, err := t.deps.View.AncestorChain(el)
	if err != nil {
		return DiagnosticResult{Pass: false, Err: err}
	}
	infos := make([]contextvalidator.AncestorInfo, 0, len(ancestors))
	for _, a := range ancestors {
		attrs, aerr := t.deps.View.Attributes(a)
		if aerr != nil {
			continue
		}
		infos = append(infos, contextvalidator.AncestorInfo{ClassNames: splitClasses(attrs["class"]), Role: attrs["role"]})
	}
	result := t.deps.ContextValidator.Validate(descriptor, infos)
	return DiagnosticResult{Pass: result.IsValid, Detail: result.Reason}
}

func (t *Troubleshooter) diagGraphIntegrity(descriptor model.Bundle) DiagnosticResult {
	total := len(descriptor.Graph.Parents) + len(descriptor.Graph.Siblings) + len(descriptor.Graph.Children) + len(descriptor.Graph.Landmarks)
	return DiagnosticResult{Pass: total > 0, Detail: "recorded relationship count"}
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

// Resolve runs the fixed resolution ladder in strict sequence, each
// strategy's timeout independent of the others, stopping at the first
// success. Unlike Diagnose, resolution strategies are never run
// concurrently: a later strategy's cost is only paid once an earlier,
// cheaper one has already failed.
func (t *Troubleshooter) Resolve(ctx context.Context, step model.RecordedStep, attempted []string) ResolutionOutcome {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanResolve, "", step.StepNumber)
	defer span.End()

	descriptor := step.Descriptor
	outcome := t.resolveLadder(ctx, step, descriptor, attempted)
	if outcome.Success {
		span.SetAttributes(telemetry.StrategyAttr(outcome.Strategy), telemetry.ConfidenceAttr(outcome.Confidence))
	}
	telemetry.MarkSpanResult(span, nil)
	return outcome
}

// Troubleshoot runs the full diagnosing -> resolving phase model for a
// step whose direct lookup already failed: it diagnoses why (against
// whatever element, if any, the caller last held), then runs the
// resolution ladder, and classifies the terminal status.
func (t *Troubleshooter) Troubleshoot(ctx context.Context, step model.RecordedStep, el model.ElementRef, attempted []string) TroubleshootingSession {
	report := t.Diagnose(ctx, step.Descriptor, el)
	outcome := t.Resolve(ctx, step, attempted)

	status := StatusUnresolved
	switch {
	case outcome.Success:
		status = StatusResolved
	case allDiagnosticsFailed(report):
		status = StatusManual
	}
	return TroubleshootingSession{Report: report, Outcome: outcome, Status: status}
}

func (t *Troubleshooter) resolveLadder(ctx context.Context, step model.RecordedStep, descriptor model.Bundle, attempted []string) ResolutionOutcome {
	if outcome, ok := t.tryRetryOriginal(descriptor); ok {
		return outcome
	}
	if outcome, ok := t.tryDriftCorrection(descriptor); ok {
		return outcome
	}
	if outcome, ok := t.tryGraphNavigation(ctx, descriptor); ok {
		return outcome
	}
	if outcome, ok := t.tryEvidenceScoring(ctx, descriptor); ok {
		return outcome
	}
	if outcome, ok := t.tryHealingCache(ctx, descriptor); ok {
		return outcome
	}
	if outcome, ok := t.tryScreenshotLocate(ctx, descriptor); ok {
		return outcome
	}
	if outcome, ok := t.tryVisionProvider(ctx, step, append(attempted, StrategyLocalVision), t.deps.LocalVision, StrategyLocalVision); ok {
		return outcome
	}
	if outcome, ok := t.tryVisionProvider(ctx, step, append(attempted, StrategyAIVision), t.deps.AIVision, StrategyAIVision); ok {
		return outcome
	}

	return ResolutionOutcome{Strategy: "", Success: false}
}

func (t *Troubleshooter) tryRetryOriginal(descriptor model.Bundle) (ResolutionOutcome, bool) {
	if descriptor.Selector == "" {
		return ResolutionOutcome{}, false
	}
	el, err := t.deps.View.Query(descriptor.Selector)
	if err != nil || el == nil {
		return ResolutionOutcome{}, false
	}
	visible, err := t.deps.View.IsVisible(el)
	if err != nil || !visible {
		return ResolutionOutcome{}, false
	}
	return ResolutionOutcome{
		Strategy: StrategyRetryOriginal, Success: true, Element: el,
		Selector: descriptor.Selector, Confidence: 1.0,
		Reasoning: "original selector still resolves and is visible",
	}, true
}

func (t *Troubleshooter) tryDriftCorrection(descriptor model.Bundle) (ResolutionOutcome, bool) {
	var current *drift.CurrentElement
	el, err := t.deps.View.Query(descriptor.Selector)
	if err == nil && el != nil {
		bounds, berr := t.deps.View.BoundingRect(el)
		if berr == nil {
			tag, _ := t.deps.View.TagName(el)
			current = &drift.CurrentElement{Bounds: bounds, TagName: tag}
		}
	}
	result := t.deps.DriftDetector.Detect(descriptor, current)
	if result.Correction == nil || !result.StillInteractable {
		return ResolutionOutcome{}, false
	}
	selector := result.Correction.Selector
	if selector == "" {
		selector = descriptor.Selector
	}
	return ResolutionOutcome{
		Strategy: StrategyDriftCorrection, Success: true, Element: el,
		Selector: selector, Confidence: result.Confidence,
		Reasoning: "drift detector classified " + string(result.DriftType) + " and produced a correction",
	}, true
}

func (t *Troubleshooter) tryGraphNavigation(ctx context.Context, descriptor model.Bundle) (ResolutionOutcome, bool) {
	if t.deps.GraphFinder == nil {
		return ResolutionOutcome{}, false
	}
	result := t.deps.GraphFinder.Find(ctx, descriptor.Graph)
	if !result.Found {
		return ResolutionOutcome{}, false
	}
	return ResolutionOutcome{
		Strategy: StrategyGraphNavigation, Success: true, Element: result.Element,
		Selector: result.Selector, Confidence: result.Confidence,
		Reasoning: "located via " + result.Strategy + " relationship path",
	}, true
}

func (t *Troubleshooter) tryEvidenceScoring(ctx context.Context, descriptor model.Bundle) (ResolutionOutcome, bool) {
	if t.deps.Evidence == nil {
		return ResolutionOutcome{}, false
	}
	candidates, err := t.gatherCandidates(descriptor)
	if err != nil || len(candidates) == 0 {
		return ResolutionOutcome{}, false
	}
	result := t.deps.Evidence.FindElement(ctx, descriptor, nil, candidates)
	if !result.Success {
		return ResolutionOutcome{}, false
	}
	return ResolutionOutcome{
		Strategy: StrategyEvidenceScoring, Success: true, Element: result.SelectedElement,
		Selector: result.SelectedSelector, Confidence: result.Confidence,
		Reasoning: "highest-scoring candidate across spatial/sequence/visual/DOM/history axes",
	}, true
}

// gatherCandidates queries the neighbourhood around the descriptor's
// recorded bounds via ElementFromPoint sampling, since the core has no
// generic "every element in radius" query.
func (t *Troubleshooter) gatherCandidates(descriptor model.Bundle) ([]evidence.CandidateInput, error) {
	cx, cy := descriptor.OriginalBounds.Center()
	offsets := []struct{ dx, dy float64 }{
		{0, 0}, {20, 0}, {-20, 0}, {0, 20}, {0, -20}, {20, 20}, {-20, -20},
	}
	var out []evidence.CandidateInput
	for _, off := range offsets {
		el, err := t.deps.View.ElementFromPoint(cx+off.dx, cy+off.dy)
		if err != nil || el == nil {
			continue
		}
		bounds, _ := t.deps.View.BoundingRect(el)
		text, _ := t.deps.View.Text(el)
		tag, _ := t.deps.View.TagName(el)
		attrs, _ := t.deps.View.Attributes(el)
		selector, _ := t.deps.View.Selector(el)
		out = append(out, evidence.CandidateInput{
			Element: el, Selector: selector, Bounds: bounds, Text: text,
			TagName: tag, Attrs: attrs, Fingerprint: t.fingerprint(descriptor),
		})
	}
	return out, nil
}

func (t *Troubleshooter) fingerprint(descriptor model.Bundle) string {
	if t.deps.FingerprintOf == nil {
		return descriptor.Selector
	}
	return t.deps.FingerprintOf(descriptor)
}

func (t *Troubleshooter) tryHealingCache(ctx context.Context, descriptor model.Bundle) (ResolutionOutcome, bool) {
	if t.deps.PatternStore == nil {
		return ResolutionOutcome{}, false
	}
	records, err := t.deps.PatternStore.Lookup(ctx, t.fingerprint(descriptor))
	if err != nil || len(records) == 0 {
		return ResolutionOutcome{}, false
	}
	best := records[0]
	for _, r := range records {
		if r.Success && r.Confidence > best.Confidence {
			best = r
		}
	}
	if !best.Success {
		return ResolutionOutcome{}, false
	}
	el, err := t.deps.View.Query(best.HealedSelector)
	if err != nil || el == nil {
		return ResolutionOutcome{}, false
	}
	return ResolutionOutcome{
		Strategy: StrategyHealingCache, Success: true, Element: el,
		Selector: best.HealedSelector, Confidence: best.Confidence,
		Reasoning: "previously-learned healing for this fingerprint resolved again",
	}, true
}

func (t *Troubleshooter) tryScreenshotLocate(ctx context.Context, descriptor model.Bundle) (ResolutionOutcome, bool) {
	if descriptor.RecordedScreenshot == nil {
		return ResolutionOutcome{}, false
	}
	frame, err := t.deps.View.CaptureViewport(ctx)
	if err != nil {
		return ResolutionOutcome{}, false
	}
	box := t.deps.Comparator.FindTemplate(descriptor.RecordedScreenshot.Frame, frame)
	if box == nil {
		return ResolutionOutcome{}, false
	}
	cx, cy := box.Center()
	el, err := t.deps.View.ElementFromPoint(cx, cy)
	if err != nil || el == nil {
		return ResolutionOutcome{}, false
	}
	selector, err := t.deps.View.Selector(el)
	if err != nil || selector == "" {
		return ResolutionOutcome{}, false
	}
	return ResolutionOutcome{
		Strategy: StrategyScreenshotLocate, Success: true, Element: el,
		Selector: selector, Confidence: 0.6,
		Reasoning: "recorded screenshot region template-matched in the current viewport",
	}, true
}

func (t *Troubleshooter) tryVisionProvider(ctx context.Context, step model.RecordedStep, attempted []string, provider document.Provider, name string) (ResolutionOutcome, bool) {
	if provider == nil {
		return ResolutionOutcome{}, false
	}
	result, err := provider.Heal(ctx, step, attempted)
	if err != nil {
		t.log.Warn("%s provider error: %v", name, perrors.New(perrors.KindHealingProviderError, name+" failed", err))
		return ResolutionOutcome{}, false
	}
	if !result.Success {
		return ResolutionOutcome{}, false
	}
	el, err := t.deps.View.Query(result.SuggestedSelector)
	if err != nil || el == nil {
		return ResolutionOutcome{}, false
	}
	return ResolutionOutcome{
		Strategy: name, Success: true, Element: el,
		Selector: result.SuggestedSelector, Confidence: result.Confidence,
		Reasoning: name + " provider suggested a selector",
	}, true
}
