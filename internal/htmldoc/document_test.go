package htmldoc

import (
	"context"
	"fmt"
	"testing"

	"github.com/selfheal/playback-core/internal/document"
)

const sampleHTML = `
<html><body>
  <div id="app">
    <button id="submit" data-testid="submit-btn" aria-label="Submit form" data-shx-rect="10,20,80,30">Submit</button>
    <input name="email" placeholder="Email address" />
    <span style="display:none">hidden</span>
  </div>
</body></html>
`

func TestQueryByIDAndTestID(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	byID, err := doc.ByID("submit")
	if err != nil {
		t.Fatalf("ByID returned error: %v", err)
	}
	text, err := doc.Text(byID)
	if err != nil {
		t.Fatalf("Text returned error: %v", err)
	}
	if text != "Submit" {
		t.Fatalf("expected Submit, got %q", text)
	}

	byTestID, err := doc.Query(`[data-testid="submit-btn"]`)
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	if byTestID.Ref() == "" {
		t.Fatal("expected a non-empty ref")
	}
}

func TestIsVisibleRespectsInlineDisplayNone(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	hidden, err := doc.Query("span")
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	visible, err := doc.IsVisible(hidden)
	if err != nil {
		t.Fatalf("IsVisible returned error: %v", err)
	}
	if visible {
		t.Fatal("expected span with display:none to be invisible")
	}
}

func TestBoundingRectFromDataAttribute(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	el, err := doc.ByID("submit")
	if err != nil {
		t.Fatalf("ByID returned error: %v", err)
	}
	box, err := doc.BoundingRect(el)
	if err != nil {
		t.Fatalf("BoundingRect returned error: %v", err)
	}
	if box.X != 10 || box.Y != 20 || box.Width != 80 || box.Height != 30 {
		t.Fatalf("unexpected box: %+v", box)
	}
}

func TestElementFromPointHitsRecordedRect(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	el, err := doc.ElementFromPoint(50, 35)
	if err != nil {
		t.Fatalf("ElementFromPoint returned error: %v", err)
	}
	tag, err := doc.TagName(el)
	if err != nil {
		t.Fatalf("TagName returned error: %v", err)
	}
	if tag != "button" {
		t.Fatalf("expected button, got %q", tag)
	}
}

func TestSelectorPrefersID(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	el, err := doc.ByID("submit")
	if err != nil {
		t.Fatalf("ByID returned error: %v", err)
	}
	selector, err := doc.Selector(el)
	if err != nil {
		t.Fatalf("Selector returned error: %v", err)
	}
	if selector != "#submit" {
		t.Fatalf("expected #submit, got %q", selector)
	}
}

func TestByXPathIsUnsupported(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := doc.ByXPath("//button"); err == nil {
		t.Fatal("expected an error for unsupported xpath lookup")
	}
}

func TestSetNativeValueAndDispatchRoundTrip(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	el, err := doc.ByName("email")
	if err != nil {
		t.Fatalf("ByName returned error: %v", err)
	}
	if err := doc.SetNativeValue(context.Background(), el, "a@b.com"); err != nil {
		t.Fatalf("SetNativeValue returned error: %v", err)
	}
	if err := doc.Dispatch(context.Background(), el, "input", document.EventInit{Bubbles: true}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
}

func TestAncestorChainWalksUpToBody(t *testing.T) {
	doc, err := New(sampleHTML, 1024, 768)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	el, err := doc.ByID("submit")
	if err != nil {
		t.Fatalf("ByID returned error: %v", err)
	}
	ancestors, err := doc.AncestorChain(el)
	if err != nil {
		t.Fatalf("AncestorChain returned error: %v", err)
	}
	if len(ancestors) == 0 {
		t.Fatal("expected at least one ancestor")
	}
}

func TestRectHelperFormatsValues(t *testing.T) {
	got := Rect(1, 2, 3, 4)
	want := fmt.Sprintf("%g,%g,%g,%g", 1.0, 2.0, 3.0, 4.0)
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
