// Package screenshot implements the Screenshot Comparator (spec.md
// §4.1): pixel + structural similarity, diff regions, and template
// search for locating a drifted element in a larger frame.
package screenshot

import (
	"math"

	"github.com/selfheal/playback-core/internal/playback/model"
)

// Method names returned in Result.Method.
const (
	MethodPixelStructural = "pixel-structural"
	MethodDecodeFailure   = "decode-failure"
)

// Result is the outcome of comparing two captures.
type Result struct {
	Match         bool
	Similarity    float64
	DiffRegions   []model.BoundingBox
	ElementVisible bool
	ElementMoved  bool
	NewBounds     *model.BoundingBox
	Confidence    float64
	Method        string
}

// Config tunes the comparator's thresholds.
type Config struct {
	PixelTau      float64 // per-channel Euclidean distance tolerance
	MatchThreshold float64
	Padding        int
	NoiseThreshold int // minimum blob size (pixels) to report as a diff region
}

// DefaultConfig matches spec.md §4.1 / §6 defaults.
func DefaultConfig() Config {
	return Config{
		PixelTau:       24,
		MatchThreshold: 0.85,
		Padding:        4,
		NoiseThreshold: 9,
	}
}

// Comparator compares recorded vs. current captures.
type Comparator struct {
	cfg Config
}

func New(cfg Config) *Comparator {
	return &Comparator{cfg: cfg}
}

// Compare compares two frames, both already cropped to (roughly) the
// same focus region by the caller. A capture/decode problem (empty or
// mismatched-format frame) resolves to a no-match result rather than
// an error, per spec.md §4.1's failure policy.
func (c *Comparator) Compare(recorded, current model.Frame) Result {
	if !validFrame(recorded) || !validFrame(current) {
		return Result{Match: false, Similarity: 0, Method: MethodDecodeFailure}
	}

	rr, cr := alignRegions(recorded, current, c.cfg.Padding)

	pixelSim := pixelSimilarity(rr, cr, c.cfg.PixelTau)
	structSim := structuralSimilarity(rr, cr)
	similarity := (pixelSim + structSim) / 2
	match := similarity >= c.cfg.MatchThreshold

	diffRegions := diffRegions(rr, cr, c.cfg.NoiseThreshold)

	return Result{
		Match:          match,
		Similarity:     similarity,
		DiffRegions:    diffRegions,
		ElementVisible: true,
		ElementMoved:   len(diffRegions) > 0 && !match,
		Confidence:     similarity,
		Method:         MethodPixelStructural,
	}
}

// QuickCompare is a cheaper variant used by the Evidence Aggregator's
// visual axis and the Playback Engine's per-step mismatch check: same
// algorithm, but callers typically pass already-small regions so no
// extra downsampling is performed here; kept as a distinct entrypoint
// so call sites document intent.
func (c *Comparator) QuickCompare(recorded, current model.Frame) Result {
	return c.Compare(recorded, current)
}

func validFrame(f model.Frame) bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pixels) >= f.Width*f.Height*4
}

// alignRegions crops both frames to their shared width/height (the
// smaller of the two, minus padding) so per-pixel comparisons are
// always in bounds.
func alignRegions(a, b model.Frame, padding int) (model.Frame, model.Frame) {
	w := a.Width
	if b.Width < w {
		w = b.Width
	}
	h := a.Height
	if b.Height < h {
		h = b.Height
	}
	w -= 2 * padding
	h -= 2 * padding
	if w <= 0 || h <= 0 {
		w = a.Width
		if b.Width < w {
			w = b.Width
		}
		h = a.Height
		if b.Height < h {
			h = b.Height
		}
	}
	return cropTopLeft(a, w, h), cropTopLeft(b, w, h)
}

func cropTopLeft(f model.Frame, w, h int) model.Frame {
	if w <= 0 || h <= 0 || w > f.Width || h > f.Height {
		return f
	}
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		srcStart := y * f.Width * 4
		copy(out[y*w*4:(y+1)*w*4], f.Pixels[srcStart:srcStart+w*4])
	}
	return model.Frame{Pixels: out, Width: w, Height: h}
}

// pixelSimilarity counts the fraction of pixel pairs within tau of each
// other in Euclidean RGB distance.
func pixelSimilarity(a, b model.Frame, tau float64) float64 {
	n := a.Width * a.Height
	if n == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < n; i++ {
		if pixelClose(a.Pixels, b.Pixels, i, tau) {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

func pixelClose(a, b []byte, idx int, tau float64) bool {
	off := idx * 4
	dr := float64(a[off]) - float64(b[off])
	dg := float64(a[off+1]) - float64(b[off+1])
	db := float64(a[off+2]) - float64(b[off+2])
	dist := math.Sqrt(dr*dr + dg*dg + db*db)
	return dist <= tau
}

// structuralSimilarity computes a single-window SSIM over the whole
// region using luminance mean/variance/covariance, with the standard
// stabilising constants.
func structuralSimilarity(a, b model.Frame) float64 {
	n := a.Width * a.Height
	if n == 0 {
		return 0
	}
	la := luminances(a)
	lb := luminances(b)

	meanA := mean(la)
	meanB := mean(lb)
	varA := variance(la, meanA)
	varB := variance(lb, meanB)
	covAB := covariance(la, lb, meanA, meanB)

	const L = 255.0
	c1 := math.Pow(0.01*L, 2)
	c2 := math.Pow(0.03*L, 2)

	numerator := (2*meanA*meanB + c1) * (2*covAB + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	ssim := numerator / denominator
	if ssim < 0 {
		ssim = 0
	}
	if ssim > 1 {
		ssim = 1
	}
	return ssim
}

func luminances(f model.Frame) []float64 {
	n := f.Width * f.Height
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		off := i * 4
		r := float64(f.Pixels[off])
		g := float64(f.Pixels[off+1])
		b := float64(f.Pixels[off+2])
		out[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func covariance(xs, ys []float64, mx, my float64) float64 {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0
	}
	var sum float64
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs))
}

// diffRegions flood-fills a per-pixel mismatch map and discards blobs
// below noiseThreshold pixels.
func diffRegions(a, b model.Frame, noiseThreshold int) []model.BoundingBox {
	w, h := a.Width, a.Height
	if w == 0 || h == 0 {
		return nil
	}
	mismatch := make([]bool, w*h)
	for i := range mismatch {
		mismatch[i] = !pixelClose(a.Pixels, b.Pixels, i, 24)
	}

	visited := make([]bool, w*h)
	var regions []model.BoundingBox
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !mismatch[idx] || visited[idx] {
				continue
			}
			minX, minY, maxX, maxY, size := floodFill(mismatch, visited, w, h, x, y)
			if size < noiseThreshold {
				continue
			}
			regions = append(regions, model.BoundingBox{
				X:      float64(minX),
				Y:      float64(minY),
				Width:  float64(maxX - minX + 1),
				Height: float64(maxY - minY + 1),
			})
		}
	}
	return regions
}

func floodFill(mismatch, visited []bool, w, h, startX, startY int) (minX, minY, maxX, maxY, size int) {
	minX, minY = startX, startY
	maxX, maxY = startX, startY
	stack := [][2]int{{startX, startY}}
	visited[startY*w+startX] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := p[0], p[1]
		size++
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if visited[nidx] || !mismatch[nidx] {
				continue
			}
			visited[nidx] = true
			stack = append(stack, [2]int{nx, ny})
		}
	}
	return
}

// FindTemplate slides the recorded region over the current full frame
// at stride 2, scoring per-pixel matches, and reports the best box if
// its score reaches 0.7.
func (c *Comparator) FindTemplate(template, frame model.Frame) *model.BoundingBox {
	if !validFrame(template) || !validFrame(frame) {
		return nil
	}
	if template.Width > frame.Width || template.Height > frame.Height {
		return nil
	}
	const stride = 2
	const acceptThreshold = 0.7

	bestScore := -1.0
	var bestBox model.BoundingBox
	for y := 0; y <= frame.Height-template.Height; y += stride {
		for x := 0; x <= frame.Width-template.Width; x += stride {
			score := templateScore(template, frame, x, y, c.cfg.PixelTau)
			if score > bestScore {
				bestScore = score
				bestBox = model.BoundingBox{
					X: float64(x), Y: float64(y),
					Width: float64(template.Width), Height: float64(template.Height),
				}
			}
		}
	}
	if bestScore < acceptThreshold {
		return nil
	}
	return &bestBox
}

func templateScore(template, frame model.Frame, ox, oy int, tau float64) float64 {
	matches := 0
	total := template.Width * template.Height
	if total == 0 {
		return 0
	}
	for ty := 0; ty < template.Height; ty++ {
		for tx := 0; tx < template.Width; tx++ {
			tIdx := ty*template.Width + tx
			fIdx := (oy+ty)*frame.Width + (ox + tx)
			if templatePixelClose(template, frame, tIdx, fIdx, tau) {
				matches++
			}
		}
	}
	return float64(matches) / float64(total)
}

// templatePixelClose compares template pixel tIdx against frame pixel
// fIdx: the two indices address different underlying frames, so this
// pulls bytes out of each independently rather than assuming a shared
// index space.
func templatePixelClose(template, frame model.Frame, tIdx, fIdx int, tau float64) bool {
	tOff := tIdx * 4
	fOff := fIdx * 4
	if fOff+2 >= len(frame.Pixels) || tOff+2 >= len(template.Pixels) {
		return false
	}
	dr := float64(template.Pixels[tOff]) - float64(frame.Pixels[fOff])
	dg := float64(template.Pixels[tOff+1]) - float64(frame.Pixels[fOff+1])
	db := float64(template.Pixels[tOff+2]) - float64(frame.Pixels[fOff+2])
	dist := math.Sqrt(dr*dr + dg*dg + db*db)
	return dist <= tau
}
