// Package model defines the data types shared across the playback core:
// bounding boxes, recorded element descriptors, relationship graphs,
// steps, session state, and the records produced by healing.
package model

import "math"

// BoundingBox is an axis-aligned rectangle in document coordinates
// (scroll-adjusted). Width and Height are never negative.
type BoundingBox struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether the box satisfies the width/height >= 0 invariant.
func (b BoundingBox) Valid() bool {
	return b.Width >= 0 && b.Height >= 0
}

// Center returns the box's center point.
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns width*height.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// CenterDistance returns the Euclidean distance between the centers of
// two boxes.
func CenterDistance(a, b BoundingBox) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(ax-bx, ay-by)
}

// Near reports whether two boxes' centers are within radius of each
// other. radius <= 0 always yields false.
func Near(a, b BoundingBox, radius float64) bool {
	if radius <= 0 {
		return false
	}
	return CenterDistance(a, b) <= radius
}

// Overlap returns the fractional intersection-over-union of two boxes,
// in [0,1]. Two zero-area boxes never overlap.
func Overlap(a, b BoundingBox) float64 {
	x1 := math.Max(a.X, b.X)
	y1 := math.Max(a.Y, b.Y)
	x2 := math.Min(a.X+a.Width, b.X+b.Width)
	y2 := math.Min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	intersection := (x2 - x1) * (y2 - y1)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// AreaChangePercent returns the signed percentage change in area from
// a to b, e.g. 0.5 means b is 50% larger than a.
func AreaChangePercent(a, b BoundingBox) float64 {
	if a.Area() == 0 {
		if b.Area() == 0 {
			return 0
		}
		return 1
	}
	return (b.Area() - a.Area()) / a.Area()
}
