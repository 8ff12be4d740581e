package export

import (
	"math"

	"github.com/jung-kurt/gofpdf"

	"LiveCanvas/internal/state"
)

// canvas units to millimeters; an A4 page fits a ~600x850 canvas.
const scale = 3

// PDF writes a snapshot of the shapes to an A4 page at path, painting in
// ZIndex order. Rotation is applied per shape via the PDF transform stack.
func PDF(path string, shapes []state.Shape) error {
	p := gofpdf.New("P", "mm", "A4", "")
	p.AddPage()

	for _, s := range shapes {
		p.SetDrawColor(rgb(s.Stroke))
		p.SetFillColor(rgb(s.Fill))
		p.SetLineWidth(s.StrokeWidth / scale)
		p.SetAlpha(s.Opacity, "Normal")

		if s.Rotation != 0 {
			c := s.Bounds().Center()
			p.TransformBegin()
			// gofpdf rotates counter-clockwise; canvas rotation is clockwise.
			p.TransformRotate(-s.Rotation, c.X/scale, c.Y/scale)
		}
		drawShape(p, s)
		if s.Rotation != 0 {
			p.TransformEnd()
		}
	}
	p.SetAlpha(1, "Normal")
	return p.OutputFileAndClose(path)
}

func drawShape(p *gofpdf.Fpdf, s state.Shape) {
	switch s.Type {
	case state.ShapeRectangle:
		p.Rect(s.X/scale, s.Y/scale, s.Width/scale, s.Height/scale, "FD")
	case state.ShapeCircle:
		p.Circle(s.X/scale, s.Y/scale, s.Radius/scale, "FD")
	case state.ShapeLine:
		p.Line(s.X/scale, s.Y/scale, s.X2/scale, s.Y2/scale)
	case state.ShapeText:
		p.SetFont("Helvetica", "", math.Max(s.FontSize/scale*2.83, 4))
		p.Text(s.X/scale, (s.Y+s.FontSize)/scale, s.Text)
	}
}

// rgb parses "#rrggbb"; anything else paints black.
func rgb(hex string) (int, int, int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0
	}
	v := 0
	for _, c := range hex[1:] {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= int(c - '0')
		case c >= 'a' && c <= 'f':
			v |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= int(c-'A') + 10
		default:
			return 0, 0, 0
		}
	}
	return v >> 16 & 0xff, v >> 8 & 0xff, v & 0xff
}
