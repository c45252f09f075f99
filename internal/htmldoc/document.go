// Package htmldoc implements a static-snapshot DocumentView (spec.md
// §4's offline-replay fake): a document.View backed by a single parsed
// HTML capture rather than a live, mutable page. It exists for
// engine/finder/graph tests that need a DocumentView without a browser,
// and for the `playback replay-static` CLI mode that re-drives a
// recorded session against a saved page without any live target.
package htmldoc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/selfheal/playback-core/internal/document"
	"github.com/selfheal/playback-core/internal/playback/model"
)

// nodeRef identifies a registered goquery.Selection by an opaque,
// monotonically assigned id.
type nodeRef string

func (r nodeRef) Ref() string { return string(r) }

// Document is a static DocumentView over one parsed HTML snapshot. A
// snapshot has no real layout engine behind it, so BoundingRect returns
// whatever rect was attached to the element at capture time (via
// its data-shx-rect attribute, parsed in layout.go) or the zero box if
// none was recorded.
type Document struct {
	doc            *goquery.Document
	viewportW      int
	viewportH      int
	readyState     string

	mu      sync.Mutex
	nodes   map[string]*goquery.Selection
	nextID  int
}

// New parses html and returns a Document sized to the given viewport.
func New(html string, viewportWidth, viewportHeight int) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse snapshot: %w", err)
	}
	return &Document{
		doc:        doc,
		viewportW:  viewportWidth,
		viewportH:  viewportHeight,
		readyState: "complete",
		nodes:      map[string]*goquery.Selection{},
	}, nil
}

func (d *Document) register(sel *goquery.Selection) model.ElementRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := strconv.Itoa(d.nextID)
	d.nodes[id] = sel
	return nodeRef(id)
}

func (d *Document) resolve(el model.ElementRef) (*goquery.Selection, error) {
	if el == nil {
		return nil, document.ErrNotFound
	}
	d.mu.Lock()
	sel, ok := d.nodes[el.Ref()]
	d.mu.Unlock()
	if !ok {
		return nil, document.ErrNotFound
	}
	return sel, nil
}

func (d *Document) Query(selector string) (model.ElementRef, error) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, document.ErrNotFound
	}
	return d.register(sel), nil
}

func (d *Document) QueryAll(selector string) ([]model.ElementRef, error) {
	matches := d.doc.Find(selector)
	if matches.Length() == 0 {
		return nil, nil
	}
	refs := make([]model.ElementRef, 0, matches.Length())
	matches.Each(func(_ int, sel *goquery.Selection) {
		refs = append(refs, d.register(sel))
	})
	return refs, nil
}

func (d *Document) ByID(id string) (model.ElementRef, error) {
	return d.Query(fmt.Sprintf(`[id=%q]`, id))
}

func (d *Document) ByName(name string) (model.ElementRef, error) {
	return d.Query(fmt.Sprintf(`[name=%q]`, name))
}

// ByXPath is not supported over a goquery snapshot; the finder treats
// this the same as a plain miss and moves to the next strategy.
func (d *Document) ByXPath(xpath string) (model.ElementRef, error) {
	return nil, document.ErrNotFound
}

// ElementFromPoint approximates hit-testing by returning the first
// element whose recorded layout rect (its data-shx-rect attribute) contains the
// point; snapshots with no layout data never resolve a point.
func (d *Document) ElementFromPoint(x, y float64) (model.ElementRef, error) {
	var found *goquery.Selection
	d.doc.Find("[data-shx-rect]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		box, ok := parseRect(sel)
		if !ok || !boxContains(box, x, y) {
			return true
		}
		found = sel
		return false
	})
	if found == nil {
		return nil, document.ErrNotFound
	}
	return d.register(found), nil
}

func (d *Document) ComputedStyle(el model.ElementRef) (document.ComputedStyle, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return document.ComputedStyle{}, err
	}
	style, _ := sel.Attr("style")
	_, hidden := sel.Attr("hidden")
	disabled := sel.Is("[disabled]")

	cs := document.ComputedStyle{Display: "block", Visibility: "visible", Opacity: 1, PointerEvents: "auto", Disabled: disabled}
	if hidden || strings.Contains(style, "display:none") || strings.Contains(style, "display: none") {
		cs.Display = "none"
	}
	if strings.Contains(style, "visibility:hidden") || strings.Contains(style, "visibility: hidden") {
		cs.Visibility = "hidden"
	}
	return cs, nil
}

func (d *Document) BoundingRect(el model.ElementRef) (model.BoundingBox, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return model.BoundingBox{}, err
	}
	box, _ := parseRect(sel)
	return box, nil
}

func (d *Document) IsVisible(el model.ElementRef) (bool, error) {
	style, err := d.ComputedStyle(el)
	if err != nil {
		return false, err
	}
	return style.Display != "none" && style.Visibility != "hidden", nil
}

func (d *Document) Dispatch(ctx context.Context, el model.ElementRef, eventName string, init document.EventInit) error {
	if _, err := d.resolve(el); err != nil {
		return err
	}
	return nil // a static snapshot has no scripts to react to dispatched events
}

func (d *Document) Focus(ctx context.Context, el model.ElementRef) error {
	_, err := d.resolve(el)
	return err
}

func (d *Document) ScrollIntoView(ctx context.Context, el model.ElementRef) error {
	_, err := d.resolve(el)
	return err
}

func (d *Document) CaptureViewport(ctx context.Context) (model.Frame, error) {
	return blankFrame(d.viewportW, d.viewportH), nil
}

func (d *Document) CaptureRegion(ctx context.Context, bounds model.BoundingBox) (model.Frame, error) {
	return blankFrame(int(bounds.Width), int(bounds.Height)), nil
}

func (d *Document) ReadyState(ctx context.Context) (string, error) {
	return d.readyState, nil
}

func (d *Document) AncestorChain(el model.ElementRef) ([]model.ElementRef, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return nil, err
	}
	var refs []model.ElementRef
	sel.Parents().Each(func(_ int, parent *goquery.Selection) {
		refs = append(refs, d.register(parent))
	})
	return refs, nil
}

func (d *Document) Attributes(el model.ElementRef) (map[string]string, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{}
	for _, key := range []string{"id", "class", "name", "aria-label", "role", "data-testid"} {
		if v, ok := sel.Attr(key); ok {
			attrs[key] = v
		}
	}
	return attrs, nil
}

func (d *Document) TagName(el model.ElementRef) (string, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return "", err
	}
	if len(sel.Nodes) == 0 {
		return "", document.ErrNotFound
	}
	return strings.ToLower(sel.Nodes[0].Data), nil
}

func (d *Document) Text(el model.ElementRef) (string, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sel.Text()), nil
}

func (d *Document) SetNativeValue(ctx context.Context, el model.ElementRef, value string) error {
	sel, err := d.resolve(el)
	if err != nil {
		return err
	}
	sel.SetAttr("value", value)
	return nil
}

// Selector builds a selector that re-resolves to el: its id if present,
// else a structural path down from the document root.
func (d *Document) Selector(el model.ElementRef) (string, error) {
	sel, err := d.resolve(el)
	if err != nil {
		return "", err
	}
	if id, ok := sel.Attr("id"); ok && id != "" {
		return "#" + id, nil
	}
	return structuralPath(sel), nil
}

func structuralPath(sel *goquery.Selection) string {
	var parts []string
	for s := sel; s.Length() > 0 && len(s.Nodes) > 0; s = s.Parent() {
		if s.Nodes[0].Data == "" {
			break
		}
		tag := strings.ToLower(s.Nodes[0].Data)
		if tag == "html" || tag == "#document" {
			break
		}
		idx := 1 + s.PrevAllFiltered(tag).Length()
		parts = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", tag, idx)}, parts...)
		if s.Parent().Length() == 0 {
			break
		}
	}
	return strings.Join(parts, " > ")
}
