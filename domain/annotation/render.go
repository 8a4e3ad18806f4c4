package annotation

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style controls how boxes are drawn onto a canvas.
type Style struct {
	Classes      *ClassTable
	DefaultColor color.RGBA
	Thickness    int
	GuideColor   color.RGBA
}

// labelOffset is the distance of the label baseline above the box top.
const labelOffset = 10

func (s Style) thickness() int {
	if s.Thickness <= 0 {
		return 2
	}
	return s.Thickness
}

// Color returns the outline colour of b.
func (s Style) Color(b Box) color.RGBA {
	if idx, ok := b.Class(); ok {
		if c, ok := s.Classes.Color(idx); ok {
			return c
		}
	}
	return s.DefaultColor
}

// Render draws the box outline, and for classed boxes the class name above
// the top-left corner.
func (b Box) Render(dst draw.Image, s Style) {
	col := s.Color(b)
	strokeRect(dst, b.Rect(), s.thickness(), col)
	idx, ok := b.Class()
	if !ok {
		return
	}
	name := s.Classes.Name(idx)
	if name == "" {
		return
	}
	// drawn twice with a 1px offset for a bold look
	drawText(dst, b.XMin, b.YMin-labelOffset, name, col)
	drawText(dst, b.XMin+1, b.YMin-labelOffset+1, name, col)
}

// Render draws every box in insertion order.
func (a *Annotation) Render(dst draw.Image, s Style) {
	for _, b := range a.Boxes() {
		b.Render(dst, s)
	}
}

// RenderGuide draws the provisional rectangle of a drag in progress: corner
// dots and a thin outline from anchor to cur.
func RenderGuide(dst draw.Image, anchor, cur image.Point, s Style) {
	col := s.GuideColor
	if col.A == 0 {
		col = color.RGBA{255, 255, 255, 255}
	}
	xmin, xmax, ymin, ymax := FromCorners(anchor, cur)
	for _, p := range []image.Point{{xmin, ymin}, {xmin, ymax}, {xmax, ymin}, {xmax, ymax}} {
		fillDisc(dst, p, 4, col)
	}
	strokeRect(dst, image.Rect(xmin, ymin, xmax, ymax), 1, col)
}

func fillRect(dst draw.Image, r image.Rectangle, col color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// strokeRect draws an outline of the given thickness centred on r's edges.
func strokeRect(dst draw.Image, r image.Rectangle, thickness int, col color.Color) {
	lo := thickness / 2
	hi := thickness - lo
	fillRect(dst, image.Rect(r.Min.X-lo, r.Min.Y-lo, r.Max.X+hi, r.Min.Y+hi), col)
	fillRect(dst, image.Rect(r.Min.X-lo, r.Max.Y-lo, r.Max.X+hi, r.Max.Y+hi), col)
	fillRect(dst, image.Rect(r.Min.X-lo, r.Min.Y-lo, r.Min.X+hi, r.Max.Y+hi), col)
	fillRect(dst, image.Rect(r.Max.X-lo, r.Min.Y-lo, r.Max.X+hi, r.Max.Y+hi), col)
}

func fillDisc(dst draw.Image, c image.Point, radius int, col color.Color) {
	b := dst.Bounds()
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > radius*radius {
				continue
			}
			p := image.Pt(c.X+x, c.Y+y)
			if p.In(b) {
				dst.Set(p.X, p.Y, col)
			}
		}
	}
}

func drawText(dst draw.Image, x, baseline int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}
