package screenshot

import (
	"testing"

	"github.com/selfheal/playback-core/internal/playback/model"
)

func solidFrame(w, h int, r, g, b byte) model.Frame {
	px := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		px[i*4] = r
		px[i*4+1] = g
		px[i*4+2] = b
		px[i*4+3] = 255
	}
	return model.Frame{Pixels: px, Width: w, Height: h}
}

func invertedColors(f model.Frame) model.Frame {
	out := make([]byte, len(f.Pixels))
	copy(out, f.Pixels)
	for i := 0; i < f.Width*f.Height; i++ {
		off := i * 4
		out[off] = 255 - out[off]
		out[off+1] = 255 - out[off+1]
		out[off+2] = 255 - out[off+2]
	}
	return model.Frame{Pixels: out, Width: f.Width, Height: f.Height}
}

func TestCompareIdenticalFramesMatch(t *testing.T) {
	c := New(DefaultConfig())
	f := solidFrame(20, 20, 100, 150, 200)
	res := c.Compare(f, f)
	if res.Similarity != 1 {
		t.Fatalf("expected similarity 1, got %v", res.Similarity)
	}
	if !res.Match {
		t.Fatalf("expected match true")
	}
}

func TestCompareInvertedColorsNoMatch(t *testing.T) {
	c := New(DefaultConfig())
	f := solidFrame(20, 20, 10, 200, 50)
	inv := invertedColors(f)
	res := c.Compare(f, inv)
	if res.Match {
		t.Fatalf("expected inverted colors to not match, got similarity %v", res.Similarity)
	}
}

func TestCompareDecodeFailureIsInconclusiveNotError(t *testing.T) {
	c := New(DefaultConfig())
	res := c.Compare(model.Frame{}, solidFrame(5, 5, 1, 1, 1))
	if res.Match || res.Similarity != 0 {
		t.Fatalf("expected inconclusive zero-similarity result, got %+v", res)
	}
	if res.Method != MethodDecodeFailure {
		t.Fatalf("expected decode-failure method, got %s", res.Method)
	}
}

func TestFindTemplateLocatesShiftedRegion(t *testing.T) {
	c := New(DefaultConfig())
	frame := solidFrame(40, 40, 0, 0, 0)
	// paint a distinct 10x10 template region into the frame at (20,20)
	template := solidFrame(10, 10, 250, 10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			fx, fy := 20+x, 20+y
			fIdx := (fy*40 + fx) * 4
			tIdx := (y*10 + x) * 4
			frame.Pixels[fIdx] = template.Pixels[tIdx]
			frame.Pixels[fIdx+1] = template.Pixels[tIdx+1]
			frame.Pixels[fIdx+2] = template.Pixels[tIdx+2]
		}
	}

	box := c.FindTemplate(template, frame)
	if box == nil {
		t.Fatalf("expected template to be found")
	}
	if box.X < 18 || box.X > 22 || box.Y < 18 || box.Y > 22 {
		t.Fatalf("expected box near (20,20), got %+v", box)
	}
}

func TestFindTemplateReturnsNilBelowThreshold(t *testing.T) {
	c := New(DefaultConfig())
	template := solidFrame(10, 10, 255, 0, 0)
	frame := solidFrame(40, 40, 0, 255, 0)
	if box := c.FindTemplate(template, frame); box != nil {
		t.Fatalf("expected no match, got %+v", box)
	}
}
