package state

import (
	"fmt"
	"math"
	"time"

	"LiveCanvas/internal/geom"
)

// ShapeType identifies one of the supported shape variants. The set is
// closed: adding a kind of shape means adding a constant here and extending
// the switches below.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeLine      ShapeType = "line"
	ShapeText      ShapeType = "text"
)

// Valid reports whether t is one of the supported variants.
func (t ShapeType) Valid() bool {
	switch t {
	case ShapeRectangle, ShapeCircle, ShapeLine, ShapeText:
		return true
	}
	return false
}

// Shape is a drawable entity on the shared canvas. Geometry fields are
// variant-specific: rectangle and text use X/Y/Width/Height, circle uses
// X/Y (center) and Radius, line uses X/Y and X2/Y2 as endpoints.
//
// LockedBy/LockedAt carry the advisory edit claim; they are replicated with
// the shape and interpreted by the lock coordinator, never enforced here.
type Shape struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Type ShapeType `json:"type"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	X2     float64 `json:"x2,omitempty"`
	Y2     float64 `json:"y2,omitempty"`

	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	Rotation    float64 `json:"rotation"`

	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`

	ZIndex    int       `json:"zIndex"`
	CreatedBy string    `json:"createdBy"`
	LockedBy  string    `json:"lockedBy,omitempty"`
	LockedAt  time.Time `json:"lockedAt,omitempty"`
}

// NewShape returns a shape of the given type with default style and a fresh
// id and human-readable name.
func NewShape(t ShapeType, createdBy string) Shape {
	s := Shape{
		ID:          NewShapeID(),
		Name:        NewShapeName(t),
		Type:        t,
		Stroke:      "#1e1e1e",
		StrokeWidth: 2,
		Opacity:     1,
		CreatedBy:   createdBy,
	}
	switch t {
	case ShapeRectangle:
		s.Fill = "#4a90d9"
		s.Width, s.Height = 100, 100
	case ShapeCircle:
		s.Fill = "#d94a4a"
		s.Radius = 50
	case ShapeLine:
		s.X2, s.Y2 = 100, 0
	case ShapeText:
		s.Fill = "#1e1e1e"
		s.Text = "Text"
		s.FontSize = 16
		s.Width, s.Height = 120, 24
	}
	return s
}

// Bounds returns the axis-aligned bounding box of the shape, ignoring
// rotation.
func (s Shape) Bounds() geom.Rect {
	switch s.Type {
	case ShapeCircle:
		return geom.Rect{X: s.X - s.Radius, Y: s.Y - s.Radius, Width: 2 * s.Radius, Height: 2 * s.Radius}
	case ShapeLine:
		return geom.BoundsOfPoints([]geom.Point{{X: s.X, Y: s.Y}, {X: s.X2, Y: s.Y2}})
	default:
		return geom.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}.Normalized()
	}
}

// RotatedBounds returns the bounding box after applying the shape's
// rotation, so rotated corners contribute their extrema.
func (s Shape) RotatedBounds() geom.Rect {
	return geom.RotatedBounds(s.Bounds(), s.Rotation)
}

// Normalized returns the shape with any inverted extents fixed up: negative
// width/height are flipped around the drag anchor and a negative radius is
// made positive. The bounding box is unchanged.
func (s Shape) Normalized() Shape {
	switch s.Type {
	case ShapeCircle:
		s.Radius = math.Abs(s.Radius)
	case ShapeLine:
		// Endpoints carry no extent to normalize.
	default:
		r := geom.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}.Normalized()
		s.X, s.Y, s.Width, s.Height = r.X, r.Y, r.Width, r.Height
	}
	return s
}

// HitTest reports whether the canvas point p falls on the shape, honoring
// rotation. Lines are hit within half their stroke width plus a small grab
// margin.
func (s Shape) HitTest(p geom.Point) bool {
	if s.Rotation != 0 {
		// Undo the shape's rotation instead of rotating the shape.
		p = geom.RotatePoint(p, s.Bounds().Center(), -s.Rotation)
	}
	switch s.Type {
	case ShapeCircle:
		dx, dy := p.X-s.X, p.Y-s.Y
		return math.Hypot(dx, dy) <= s.Radius
	case ShapeLine:
		tolerance := s.StrokeWidth/2 + 4
		return distanceToSegment(p, geom.Point{X: s.X, Y: s.Y}, geom.Point{X: s.X2, Y: s.Y2}) <= tolerance
	default:
		return s.Bounds().Contains(p)
	}
}

// DimensionLabel formats the shape's size for status displays, one format
// per variant.
func (s Shape) DimensionLabel() string {
	switch s.Type {
	case ShapeCircle:
		return fmt.Sprintf("r=%.0f", s.Radius)
	case ShapeLine:
		return fmt.Sprintf("length %.0f", math.Hypot(s.X2-s.X, s.Y2-s.Y))
	default:
		return fmt.Sprintf("%.0f × %.0f", s.Width, s.Height)
	}
}

// MeetsMinSize reports whether the shape is large enough to persist; drags
// below the threshold are treated as accidental clicks.
func (s Shape) MeetsMinSize(min float64) bool {
	switch s.Type {
	case ShapeCircle:
		return math.Abs(s.Radius) >= min/2
	case ShapeLine:
		return math.Hypot(s.X2-s.X, s.Y2-s.Y) >= min
	default:
		return math.Abs(s.Width) >= min && math.Abs(s.Height) >= min
	}
}

// Translate moves the shape by (dx, dy). Lines move both endpoints.
func (s Shape) Translate(dx, dy float64) Shape {
	s.X += dx
	s.Y += dy
	if s.Type == ShapeLine {
		s.X2 += dx
		s.Y2 += dy
	}
	return s
}

// ResizeTo stretches the shape so its extent follows the pointer at p while
// the drag anchor stays fixed. The result may have inverted extents; callers
// normalize on commit.
func (s Shape) ResizeTo(p geom.Point) Shape {
	switch s.Type {
	case ShapeCircle:
		s.Radius = math.Hypot(p.X-s.X, p.Y-s.Y)
	case ShapeLine:
		s.X2, s.Y2 = p.X, p.Y
	default:
		s.Width = p.X - s.X
		s.Height = p.Y - s.Y
	}
	return s
}

func distanceToSegment(p, a, b geom.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	length2 := abx*abx + aby*aby
	if length2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / length2
	t = math.Max(0, math.Min(1, t))
	cx, cy := a.X+t*abx, a.Y+t*aby
	return math.Hypot(p.X-cx, p.Y-cy)
}
