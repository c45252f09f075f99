package htmldoc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/selfheal/playback-core/internal/playback/model"
)

// parseRect reads a data-shx-rect="x,y,width,height" attribute, the
// convention test fixtures use to attach a fake layout to a static
// snapshot since goquery never runs a layout engine.
func parseRect(sel *goquery.Selection) (model.BoundingBox, bool) {
	raw, ok := sel.Attr("data-shx-rect")
	if !ok {
		return model.BoundingBox{}, false
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.BoundingBox{}, false
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.BoundingBox{}, false
		}
		vals[i] = v
	}
	return model.BoundingBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true
}

func boxContains(box model.BoundingBox, x, y float64) bool {
	return x >= box.X && x <= box.X+box.Width && y >= box.Y && y <= box.Y+box.Height
}

// blankFrame returns a flat, mid-gray placeholder frame of the given
// size: a static snapshot has no renderer, so screenshot-based healing
// strategies degrade to a uniform frame rather than failing outright.
func blankFrame(width, height int) model.Frame {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	pixels := make([]byte, width*height*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 0x80, 0x80, 0x80, 0xff
	}
	return model.Frame{Pixels: pixels, Width: width, Height: height}
}

// Rect formats a data-shx-rect attribute value for test fixtures.
func Rect(x, y, width, height float64) string {
	return fmt.Sprintf("%g,%g,%g,%g", x, y, width, height)
}
