package geom

import "fmt"

// Rectangle is an axis-aligned 2D rectangle in frame F, stored as the
// top-left (X0, Y0) and bottom-right (X1, Y1) corners. Construct via
// NewRectangle or RectangleFromPoint so the X0 < X1, Y0 < Y1 invariant
// holds; a zero-area or inverted rectangle is a construction error, never
// a value in flight.
type Rectangle[F Frame] struct {
	X0, Y0, X1, Y1 float64
}

// NewRectangle builds a rectangle from its top-left and bottom-right
// corner coordinates.
func NewRectangle[F Frame](x0, y0, x1, y1 float64) (Rectangle[F], error) {
	if x1 <= x0 {
		return Rectangle[F]{}, fmt.Errorf("expected x0 < x1, got x0=%g x1=%g", x0, x1)
	}
	if y1 <= y0 {
		return Rectangle[F]{}, fmt.Errorf("expected y0 < y1, got y0=%g y1=%g", y0, y1)
	}
	return Rectangle[F]{X0: x0, Y0: y0, X1: x1, Y1: y1}, nil
}

// RectangleFromPoint builds a rectangle from its top-left corner plus
// positive width and height extents.
func RectangleFromPoint[F Frame](topLeft Point[F], width, height float64) (Rectangle[F], error) {
	return NewRectangle[F](topLeft.X, topLeft.Y, topLeft.X+width, topLeft.Y+height)
}

// Center returns the center point of the rectangle.
func (r Rectangle[F]) Center() Point[F] {
	return Point[F]{X: (r.X0 + r.X1) / 2, Y: (r.Y0 + r.Y1) / 2}
}

// TopLeft returns the top-left corner.
func (r Rectangle[F]) TopLeft() Point[F] {
	return Point[F]{X: r.X0, Y: r.Y0}
}

// BottomRight returns the bottom-right corner.
func (r Rectangle[F]) BottomRight() Point[F] {
	return Point[F]{X: r.X1, Y: r.Y1}
}

// Width returns the horizontal extent.
func (r Rectangle[F]) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent.
func (r Rectangle[F]) Height() float64 { return r.Y1 - r.Y0 }

// Area returns width times height.
func (r Rectangle[F]) Area() float64 { return r.Width() * r.Height() }

// IoU returns the intersection-over-union of a and b: intersection area
// divided by union area. Intersection extents are clamped to zero on each
// axis, so disjoint rectangles yield 0. The result is symmetric, in
// [0, 1], and 1 exactly when a == b.
func IoU[F Frame](a, b Rectangle[F]) float64 {
	xOverlap := max(0, min(a.X1, b.X1)-max(a.X0, b.X0))
	yOverlap := max(0, min(a.Y1, b.Y1)-max(a.Y0, b.Y0))
	intersection := xOverlap * yOverlap
	union := a.Area() + b.Area() - intersection
	return intersection / union
}
