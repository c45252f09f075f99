// Package healing implements the two vision-based HealingProviders
// consumed by the Troubleshooter's last two resolution strategies
// (spec.md §4.8): a local template-match fallback requiring no external
// service, and an AI-vision fallback that delegates to an injected
// multimodal client.
package healing

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/logging"
	"github.com/selfheal/playback-core/internal/playback/model"
	"github.com/selfheal/playback-core/internal/playback/screenshot"
)

// LocalVisionProvider re-locates a step's target by sliding the
// recorded screenshot region over the current viewport, with no
// external dependency. It is always attempted before AIVisionProvider
// because it is free and deterministic.
type LocalVisionProvider struct {
	view       document.View
	comparator *screenshot.Comparator
	log        *logging.Logger
}

func NewLocalVisionProvider(view document.View, comparator *screenshot.Comparator, log *logging.Logger) *LocalVisionProvider {
	if log == nil {
		log = logging.New(logging.Config{ComponentName: "LOCAL-VISION"})
	}
	return &LocalVisionProvider{view: view, comparator: comparator, log: log}
}

func (p *LocalVisionProvider) Name() string { return "local-vision" }

func (p *LocalVisionProvider) Heal(ctx context.Context, step model.RecordedStep, attemptedSelectors []string) (document.ProviderResult, error) {
	if step.RecordedScreenshot == nil {
		return document.ProviderResult{}, fmt.Errorf("healing: step %d has no recorded screenshot to template-match", step.StepNumber)
	}
	current, err := p.view.CaptureViewport(ctx)
	if err != nil {
		return document.ProviderResult{}, fmt.Errorf("healing: capture viewport: %w", err)
	}

	box := p.comparator.FindTemplate(step.RecordedScreenshot.Frame, current)
	if box == nil {
		p.log.Debug("local-vision found no template match for step %d", step.StepNumber)
		return document.ProviderResult{Success: false, Provider: p.Name()}, nil
	}
	cx, cy := box.Center()

	el, err := p.view.ElementFromPoint(cx, cy)
	if err != nil || el == nil {
		return document.ProviderResult{Success: false, Provider: p.Name()}, nil
	}
	selector, err := p.view.Selector(el)
	if err != nil || selector == "" {
		return document.ProviderResult{Success: false, Provider: p.Name()}, nil
	}

	compare := p.comparator.QuickCompare(step.RecordedScreenshot.Frame, current)
	return document.ProviderResult{
		Success:           true,
		SuggestedSelector: selector,
		Confidence:        compare.Confidence,
		Provider:          p.Name(),
	}, nil
}

// VisionClient is the multimodal completion seam AIVisionProvider
// delegates to; a concrete implementation wraps whatever LLM API the
// deployment wires up (see internal/agent/ports.LLMClient for the
// shape this is adapted from).
type VisionClient interface {
	LocateElement(ctx context.Context, req VisionRequest) (VisionResponse, error)
}

// VisionRequest describes what the model is being asked to locate.
type VisionRequest struct {
	ScreenshotPNG []byte
	Description   string
	AttemptedSelectors []string
}

// VisionResponse is the model's best guess.
type VisionResponse struct {
	Found      bool
	Selector   string
	Confidence float64
}

// AIVisionProvider is the last-resort resolution strategy: an external
// multimodal model is shown the current viewport and the step's
// recorded descriptor text, and asked to name a selector.
type AIVisionProvider struct {
	view   document.View
	client VisionClient
	encode func(model.Frame) []byte
	log    *logging.Logger
}

func NewAIVisionProvider(view document.View, client VisionClient, log *logging.Logger) *AIVisionProvider {
	if log == nil {
		log = logging.New(logging.Config{ComponentName: "AI-VISION"})
	}
	return &AIVisionProvider{view: view, client: client, encode: encodePNGPlaceholder, log: log}
}

func (p *AIVisionProvider) Name() string { return "ai-vision" }

func (p *AIVisionProvider) Heal(ctx context.Context, step model.RecordedStep, attemptedSelectors []string) (document.ProviderResult, error) {
	if p.client == nil {
		return document.ProviderResult{}, fmt.Errorf("healing: no vision client configured")
	}
	frame, err := p.view.CaptureViewport(ctx)
	if err != nil {
		return document.ProviderResult{}, fmt.Errorf("healing: capture viewport: %w", err)
	}

	req := VisionRequest{
		ScreenshotPNG:      p.encode(frame),
		Description:        describeTarget(step.Descriptor),
		AttemptedSelectors: attemptedSelectors,
	}
	resp, err := p.client.LocateElement(ctx, req)
	if err != nil {
		return document.ProviderResult{}, fmt.Errorf("healing: vision client: %w", err)
	}
	if !resp.Found {
		return document.ProviderResult{Success: false, Provider: p.Name()}, nil
	}
	return document.ProviderResult{
		Success:           true,
		SuggestedSelector: resp.Selector,
		Confidence:        resp.Confidence,
		Provider:          p.Name(),
	}, nil
}

func describeTarget(b model.Bundle) string {
	switch {
	case b.AriaLabel != "":
		return fmt.Sprintf("%s element labeled %q", b.TagName, b.AriaLabel)
	case b.Text != "":
		return fmt.Sprintf("%s element with text %q", b.TagName, b.Text)
	default:
		return fmt.Sprintf("%s element originally at selector %q", b.TagName, b.Selector)
	}
}

// encodePNGPlaceholder base64-encodes the raw RGBA buffer; a real
// deployment swaps this for an actual PNG encoder before the bytes
// reach a VisionClient, but the playback core has no image-codec
// dependency of its own (model.Frame is a raw pixel buffer, spec.md §9).
func encodePNGPlaceholder(f model.Frame) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(f.Pixels)))
	base64.StdEncoding.Encode(out, f.Pixels)
	return out
}
