// Package action implements the Action Executor (spec.md §4.7):
// dispatching click/type/keypress with container-appropriate semantics.
package action

import (
	"context"
	"math/rand"
	"time"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/perrors"
	"github.com/selfheal/playback-core/internal/playback/model"
)

// Config tunes micro-event timing.
type Config struct {
	MicroEventDelayMin time.Duration
	MicroEventDelayMax time.Duration
	HumanLikeJitterMin time.Duration
	HumanLikeJitterMax time.Duration
	HumanLike          bool
	ClickOffsetJitter   float64 // px, 0 disables randomised click offset
}

func DefaultConfig() Config {
	return Config{
		MicroEventDelayMin: 20 * time.Millisecond,
		MicroEventDelayMax: 50 * time.Millisecond,
		HumanLikeJitterMin: 30 * time.Millisecond,
		HumanLikeJitterMax: 80 * time.Millisecond,
		HumanLike:          false,
		ClickOffsetJitter:  0,
	}
}

// Executor dispatches interactions against a DocumentView.
type Executor struct {
	view document.View
	cfg  Config
	now  func() time.Time
}

func New(view document.View, cfg Config) *Executor {
	return &Executor{view: view, cfg: cfg, now: time.Now}
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Executor) microDelay(ctx context.Context) {
	d := randBetween(e.cfg.MicroEventDelayMin, e.cfg.MicroEventDelayMax)
	e.sleep(ctx, d)
}

func randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Click scrolls the element into view, focuses it, and emits
// mouseover -> mousedown -> mouseup -> click with realistic
// coordinates.
func (e *Executor) Click(ctx context.Context, el model.ElementRef) error {
	if err := e.view.ScrollIntoView(ctx, el); err != nil {
		return newDispatchErr("scroll-into-view", err)
	}
	if err := e.view.Focus(ctx, el); err != nil {
		return newDispatchErr("focus", err)
	}

	bounds, err := e.view.BoundingRect(el)
	if err != nil {
		return newDispatchErr("bounding-rect", err)
	}
	cx, cy := bounds.Center()
	if e.cfg.ClickOffsetJitter > 0 {
		cx += (rand.Float64()*2 - 1) * e.cfg.ClickOffsetJitter
		cy += (rand.Float64()*2 - 1) * e.cfg.ClickOffsetJitter
	}
	init := document.EventInit{ClientX: cx, ClientY: cy, Bubbles: true}

	events := []string{"mouseover", "mousedown", "mouseup", "click"}
	for i, ev := range events {
		if err := e.view.Dispatch(ctx, el, ev, init); err != nil {
			if i == 0 {
				return newDispatchErr(ev, err)
			}
			// later micro-events are best-effort per spec.md §4.7
			continue
		}
		e.microDelay(ctx)
	}
	return nil
}

// Type dispatches per spec.md §4.7's surface-specific rules.
func (e *Executor) Type(ctx context.Context, el model.ElementRef, value string, descriptor model.Bundle) error {
	switch {
	case descriptor.ContextHint == model.ContextTerminal:
		return e.typeTerminal(ctx, el, value)
	case descriptor.ContextHint == model.ContextRichTextSurface || descriptor.ContextHint == model.ContextChatSurface:
		return e.typeRichText(ctx, el, value)
	default:
		return e.typeNativeInput(ctx, el, value)
	}
}

func (e *Executor) typeTerminal(ctx context.Context, el model.ElementRef, value string) error {
	first := true
	for _, ch := range value {
		if err := e.keyEvent(ctx, el, "keydown", string(ch)); err != nil && first {
			return newDispatchErr("keydown", err)
		}
		if err := e.view.Dispatch(ctx, el, "input", document.EventInit{Data: string(ch), Bubbles: true}); err != nil && first {
			return newDispatchErr("input", err)
		}
		_ = e.keyEvent(ctx, el, "keyup", string(ch))
		first = false
		e.charDelay(ctx)
	}
	return nil
}

// typeNativeInput clears, sets the value through the native property
// descriptor (bypassing framework wrappers), then emits input+change.
func (e *Executor) typeNativeInput(ctx context.Context, el model.ElementRef, value string) error {
	if err := e.view.SetNativeValue(ctx, el, ""); err != nil {
		return newDispatchErr("clear", err)
	}
	if err := e.view.SetNativeValue(ctx, el, value); err != nil {
		return newDispatchErr("set-native-value", err)
	}
	if err := e.view.Dispatch(ctx, el, "input", document.EventInit{Data: value, Bubbles: true}); err != nil {
		return newDispatchErr("input", err)
	}
	_ = e.view.Dispatch(ctx, el, "change", document.EventInit{Bubbles: true})
	return nil
}

func (e *Executor) typeRichText(ctx context.Context, el model.ElementRef, value string) error {
	if err := e.view.Dispatch(ctx, el, "beforeinput", document.EventInit{Data: value, InputType: "insertText", Bubbles: true}); err == nil {
		_ = e.view.Dispatch(ctx, el, "input", document.EventInit{Data: value, InputType: "insertText", Bubbles: true})
		return nil
	}
	if err := e.view.SetNativeValue(ctx, el, value); err != nil {
		return e.typeCharFallback(ctx, el, value)
	}
	return e.view.Dispatch(ctx, el, "input", document.EventInit{Data: value, Bubbles: true})
}

func (e *Executor) typeCharFallback(ctx context.Context, el model.ElementRef, value string) error {
	first := true
	for _, ch := range value {
		if err := e.keyEvent(ctx, el, "keydown", string(ch)); err != nil && first {
			return newDispatchErr("keydown", err)
		}
		_ = e.view.Dispatch(ctx, el, "input", document.EventInit{Data: string(ch), Bubbles: true})
		_ = e.keyEvent(ctx, el, "keyup", string(ch))
		first = false
		e.charDelay(ctx)
	}
	return nil
}

func (e *Executor) charDelay(ctx context.Context) {
	if e.cfg.HumanLike {
		e.sleep(ctx, randBetween(e.cfg.HumanLikeJitterMin, e.cfg.HumanLikeJitterMax))
		return
	}
	e.microDelay(ctx)
}

// PressEnter emits keydown/keypress/keyup for Enter; on terminal
// surfaces it additionally emits input{data:'\r', insertLineBreak}.
func (e *Executor) PressEnter(ctx context.Context, el model.ElementRef, descriptor model.Bundle) error {
	if err := e.keyEvent(ctx, el, "keydown", "Enter"); err != nil {
		return newDispatchErr("keydown", err)
	}
	_ = e.view.Dispatch(ctx, el, "keypress", document.EventInit{Key: "Enter", Code: "Enter", Bubbles: true})
	_ = e.keyEvent(ctx, el, "keyup", "Enter")
	if descriptor.ContextHint == model.ContextTerminal {
		_ = e.view.Dispatch(ctx, el, "input", document.EventInit{Data: "\r", InputType: "insertLineBreak", Bubbles: true})
	}
	return nil
}

// PressKey emits keydown/keyup with the given key and its code.
func (e *Executor) PressKey(ctx context.Context, el model.ElementRef, key string) error {
	if err := e.keyEvent(ctx, el, "keydown", key); err != nil {
		return newDispatchErr("keydown", err)
	}
	_ = e.keyEvent(ctx, el, "keyup", key)
	return nil
}

func (e *Executor) keyEvent(ctx context.Context, el model.ElementRef, eventName, key string) error {
	err := e.view.Dispatch(ctx, el, eventName, document.EventInit{Key: key, Code: keyCode(key), Bubbles: true})
	e.microDelay(ctx)
	return err
}

func keyCode(key string) string {
	switch key {
	case "Enter":
		return "Enter"
	default:
		if len(key) == 1 {
			return "Key" + string(rune(key[0]&^0x20))
		}
		return key
	}
}

func newDispatchErr(phase string, cause error) error {
	return perrors.New(perrors.KindActionDispatchFailure, "action dispatch failed at "+phase, cause)
}
