package main

import (
	"context"
	"time"

	"github.com/selfheal/playback-core/internal/document"
	playbackconfig "github.com/selfheal/playback-core/internal/config"
	"github.com/selfheal/playback-core/internal/logging"
	"github.com/selfheal/playback-core/internal/patternstore"
	"github.com/selfheal/playback-core/internal/playback/action"
	"github.com/selfheal/playback-core/internal/playback/contextvalidator"
	"github.com/selfheal/playback-core/internal/playback/delay"
	"github.com/selfheal/playback-core/internal/playback/drift"
	"github.com/selfheal/playback-core/internal/playback/engine"
	"github.com/selfheal/playback-core/internal/playback/evidence"
	"github.com/selfheal/playback-core/internal/playback/finder"
	"github.com/selfheal/playback-core/internal/playback/graph"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/playback/screenshot"
	"github.com/selfheal/playback-core/internal/playback/troubleshoot"
	"github.com/selfheal/playback-core/internal/telemetry"
)

// buildEngine wires every playback component the same way for both the
// live-bridge and static-snapshot entrypoints, differing only in the
// document.View they're handed.
func buildEngine(view document.View, pcfg playbackconfig.PlaybackConfig, store *patternstore.Store, metrics *telemetry.Metrics, log *logging.Logger) *engine.Engine {
	if pcfg.DebugLogging {
		log = log.WithDebug(true)
	}
	validator := contextvalidator.New()
	f := finder.New(view, validator, 100*time.Millisecond)
	exec := action.New(view, action.DefaultConfig())

	scfg := screenshot.DefaultConfig()
	scfg.MatchThreshold = pcfg.ScreenshotThreshold
	dcfg := drift.DefaultConfig()
	dcfg.PositionThreshold = pcfg.DriftThreshold
	comparator := screenshot.New(scfg)

	var patternStore document.PatternStore
	if store != nil {
		patternStore = store
	}

	deps := troubleshoot.Deps{
		View:             view,
		Comparator:       comparator,
		DriftDetector:    drift.New(dcfg),
		GraphFinder:      graph.New(view),
		Evidence:         evidence.New(evidence.DefaultConfig(), comparator, patternStore),
		ContextValidator: validator,
		PatternStore:     patternStore,
		FingerprintOf:    model.Fingerprint,
	}
	trouble := troubleshoot.New(deps, log)

	delayMgr := delay.New(delay.Config{GlobalDelay: 0, MaxDelay: pcfg.StepTimeout})

	ecfg := engine.Config{
		SelfHealingEnabled: pcfg.SelfHealingEnabled,
		AutoApplyHealings:  pcfg.AutoApplyHealings,
		MaxHealingAttempts: pcfg.MaxHealingAttempts,
		StepTimeout:        pcfg.StepTimeout,
		ElementTimeout:     pcfg.ElementTimeout,
		StopOnError:        pcfg.StopOnError,
	}
	if flags.elementTO > 0 {
		ecfg.ElementTimeout = flags.elementTO
	}
	if flags.stepTO > 0 {
		ecfg.StepTimeout = flags.stepTO
	}

	e := engine.New(view, f, exec, trouble, delayMgr, patternStore, nil, ecfg, log)
	if metrics != nil {
		e = e.WithMetrics(metrics)
	}
	return e
}

func openPatternStore(path string, log *logging.Logger) (*patternstore.Store, error) {
	store, err := patternstore.New(patternstore.DefaultConfig(path), log)
	if err != nil {
		return nil, err
	}
	if _, err := store.Load(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}
