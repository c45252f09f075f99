package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/model"
)

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// elementHandle is the opaque node id the browser-side client assigns;
// it implements model.ElementRef so the core never needs to know its
// representation.
type elementHandle string

func (h elementHandle) Ref() string { return string(h) }

// View implements document.View over a Bridge, translating each method
// into a JSON-RPC call the browser-side client answers.
type View struct {
	bridge *Bridge
}

func NewView(b *Bridge) *View { return &View{bridge: b} }

func (v *View) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	raw, err := v.bridge.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bridge: unmarshal %s result: %w", method, err)
	}
	return nil
}

func asHandle(id string) (model.ElementRef, error) {
	if id == "" {
		return nil, document.ErrNotFound
	}
	return elementHandle(id), nil
}

func handleID(el model.ElementRef) string {
	if el == nil {
		return ""
	}
	return el.Ref()
}

func (v *View) Query(selector string) (model.ElementRef, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := v.call(context.Background(), "document.query", map[string]string{"selector": selector}, &out); err != nil {
		return nil, err
	}
	return asHandle(out.ID)
}

func (v *View) QueryAll(selector string) ([]model.ElementRef, error) {
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := v.call(context.Background(), "document.queryAll", map[string]string{"selector": selector}, &out); err != nil {
		return nil, err
	}
	refs := make([]model.ElementRef, len(out.IDs))
	for i, id := range out.IDs {
		refs[i] = elementHandle(id)
	}
	return refs, nil
}

func (v *View) ByID(id string) (model.ElementRef, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := v.call(context.Background(), "document.byId", map[string]string{"id": id}, &out); err != nil {
		return nil, err
	}
	return asHandle(out.ID)
}

func (v *View) ByName(name string) (model.ElementRef, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := v.call(context.Background(), "document.byName", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return asHandle(out.ID)
}

func (v *View) ByXPath(xpath string) (model.ElementRef, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := v.call(context.Background(), "document.byXPath", map[string]string{"xpath": xpath}, &out); err != nil {
		return nil, err
	}
	return asHandle(out.ID)
}

func (v *View) ElementFromPoint(x, y float64) (model.ElementRef, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := v.call(context.Background(), "document.elementFromPoint", map[string]float64{"x": x, "y": y}, &out); err != nil {
		return nil, err
	}
	return asHandle(out.ID)
}

func (v *View) ComputedStyle(el model.ElementRef) (document.ComputedStyle, error) {
	var style document.ComputedStyle
	err := v.call(context.Background(), "element.computedStyle", map[string]string{"id": handleID(el)}, &style)
	return style, err
}

func (v *View) BoundingRect(el model.ElementRef) (model.BoundingBox, error) {
	var box model.BoundingBox
	err := v.call(context.Background(), "element.boundingRect", map[string]string{"id": handleID(el)}, &box)
	return box, err
}

func (v *View) IsVisible(el model.ElementRef) (bool, error) {
	var out struct {
		Visible bool `json:"visible"`
	}
	err := v.call(context.Background(), "element.isVisible", map[string]string{"id": handleID(el)}, &out)
	return out.Visible, err
}

func (v *View) Dispatch(ctx context.Context, el model.ElementRef, eventName string, init document.EventInit) error {
	params := map[string]interface{}{"id": handleID(el), "event": eventName, "init": init}
	return v.call(ctx, "element.dispatch", params, nil)
}

func (v *View) Focus(ctx context.Context, el model.ElementRef) error {
	return v.call(ctx, "element.focus", map[string]string{"id": handleID(el)}, nil)
}

func (v *View) ScrollIntoView(ctx context.Context, el model.ElementRef) error {
	return v.call(ctx, "element.scrollIntoView", map[string]string{"id": handleID(el)}, nil)
}

func (v *View) CaptureViewport(ctx context.Context) (model.Frame, error) {
	var frame frameWire
	if err := v.call(ctx, "viewport.capture", nil, &frame); err != nil {
		return model.Frame{}, err
	}
	return frame.toModel()
}

func (v *View) CaptureRegion(ctx context.Context, bounds model.BoundingBox) (model.Frame, error) {
	var frame frameWire
	if err := v.call(ctx, "viewport.captureRegion", bounds, &frame); err != nil {
		return model.Frame{}, err
	}
	return frame.toModel()
}

func (v *View) ReadyState(ctx context.Context) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	err := v.call(ctx, "document.readyState", nil, &out)
	return out.State, err
}

func (v *View) AncestorChain(el model.ElementRef) ([]model.ElementRef, error) {
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := v.call(context.Background(), "element.ancestorChain", map[string]string{"id": handleID(el)}, &out); err != nil {
		return nil, err
	}
	refs := make([]model.ElementRef, len(out.IDs))
	for i, id := range out.IDs {
		refs[i] = elementHandle(id)
	}
	return refs, nil
}

func (v *View) Attributes(el model.ElementRef) (map[string]string, error) {
	var out struct {
		Attrs map[string]string `json:"attrs"`
	}
	err := v.call(context.Background(), "element.attributes", map[string]string{"id": handleID(el)}, &out)
	return out.Attrs, err
}

func (v *View) TagName(el model.ElementRef) (string, error) {
	var out struct {
		Tag string `json:"tag"`
	}
	err := v.call(context.Background(), "element.tagName", map[string]string{"id": handleID(el)}, &out)
	return out.Tag, err
}

func (v *View) Text(el model.ElementRef) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	err := v.call(context.Background(), "element.text", map[string]string{"id": handleID(el)}, &out)
	return out.Text, err
}

func (v *View) SetNativeValue(ctx context.Context, el model.ElementRef, value string) error {
	return v.call(ctx, "element.setNativeValue", map[string]string{"id": handleID(el), "value": value}, nil)
}

func (v *View) Selector(el model.ElementRef) (string, error) {
	var out struct {
		Selector string `json:"selector"`
	}
	err := v.call(context.Background(), "element.selector", map[string]string{"id": handleID(el)}, &out)
	return out.Selector, err
}

// frameWire is the wire shape of a captured frame: base64 RGBA bytes
// plus dimensions, since JSON has no native byte-buffer type.
type frameWire struct {
	PixelsBase64 string `json:"pixelsBase64"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

func (f frameWire) toModel() (model.Frame, error) {
	pixels, err := decodeBase64(f.PixelsBase64)
	if err != nil {
		return model.Frame{}, fmt.Errorf("bridge: decode frame pixels: %w", err)
	}
	return model.Frame{Pixels: pixels, Width: f.Width, Height: f.Height}, nil
}
