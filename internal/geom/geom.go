package geom

import "math"

// Point represents a point on the canvas in canvas (not screen) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle. Width/Height may be negative while a
// drag is in progress; call Normalized before persisting.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalized returns an equivalent rectangle with non-negative extents.
// The bounding box is unchanged: a negative extent flips the origin.
func (r Rect) Normalized() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Contains reports whether p lies inside r (inclusive of edges).
func (r Rect) Contains(p Point) bool {
	n := r.Normalized()
	return p.X >= n.X && p.X <= n.X+n.Width &&
		p.Y >= n.Y && p.Y <= n.Y+n.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Corners returns the four corners of r in clockwise order from the origin.
func (r Rect) Corners() [4]Point {
	n := r.Normalized()
	return [4]Point{
		{n.X, n.Y},
		{n.X + n.Width, n.Y},
		{n.X + n.Width, n.Y + n.Height},
		{n.X, n.Y + n.Height},
	}
}

// RotatePoint rotates p around center by the given angle in degrees.
func RotatePoint(p, center Point, degrees float64) Point {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx, dy := p.X-center.X, p.Y-center.Y
	return Point{
		X: center.X + dx*cos - dy*sin,
		Y: center.Y + dx*sin + dy*cos,
	}
}

// RotatedCorners returns the corners of r after rotating it around its
// center by the given angle in degrees.
func RotatedCorners(r Rect, degrees float64) [4]Point {
	corners := r.Corners()
	if degrees == 0 {
		return corners
	}
	center := r.Normalized().Center()
	for i, c := range corners {
		corners[i] = RotatePoint(c, center, degrees)
	}
	return corners
}

// RotatedBounds returns the axis-aligned bounding box of r rotated around
// its center. A rotated rectangle contributes its corner extrema, which is
// generally larger than its unrotated box.
func RotatedBounds(r Rect, degrees float64) Rect {
	if degrees == 0 {
		return r.Normalized()
	}
	corners := RotatedCorners(r, degrees)
	return BoundsOfPoints(corners[:])
}

// BoundsOfPoints returns the smallest rectangle containing all points.
// An empty slice yields the zero Rect.
func BoundsOfPoints(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Union returns the smallest rectangle containing every given rectangle.
// An empty slice yields the zero Rect.
func Union(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	first := rects[0].Normalized()
	minX, minY := first.X, first.Y
	maxX, maxY := first.X+first.Width, first.Y+first.Height
	for _, r := range rects[1:] {
		n := r.Normalized()
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X+n.Width)
		maxY = math.Max(maxY, n.Y+n.Height)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Overlaps reports whether two rectangles intersect.
func Overlaps(a, b Rect) bool {
	an, bn := a.Normalized(), b.Normalized()
	return !(an.X+an.Width < bn.X || bn.X+bn.Width < an.X ||
		an.Y+an.Height < bn.Y || bn.Y+bn.Height < an.Y)
}
