package annotation

import (
	"fmt"
	"image"
	"math"
)

// Box is an axis-aligned rectangle in pixel units, optionally carrying a
// class index. The bounds satisfy XMin <= XMax and YMin <= YMax when built
// from FromCorners.
type Box struct {
	XMin, XMax, YMin, YMax int

	kind  Kind
	class int
}

// NewBox returns an unclassed box.
func NewBox(xmin, xmax, ymin, ymax int) Box {
	return Box{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax, kind: Unclassed}
}

// NewClassBox returns a classed box after validating class against t.
func NewClassBox(xmin, xmax, ymin, ymax, class int, t *ClassTable) (Box, error) {
	if !t.Valid(class) {
		return Box{}, fmt.Errorf("%w: index %d (have %d classes)", ErrInvalidClass, class, t.Len())
	}
	return Box{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax, kind: Classed, class: class}, nil
}

// NewNamedClassBox returns a classed box whose class is given by name.
func NewNamedClassBox(xmin, xmax, ymin, ymax int, name string, t *ClassTable) (Box, error) {
	idx, ok := t.Lookup(name)
	if !ok {
		return Box{}, fmt.Errorf("%w: %q", ErrInvalidClass, name)
	}
	return NewClassBox(xmin, xmax, ymin, ymax, idx, t)
}

// FromCorners normalises two opposite drag corners into bounds.
func FromCorners(a, b image.Point) (xmin, xmax, ymin, ymax int) {
	return min(a.X, b.X), max(a.X, b.X), min(a.Y, b.Y), max(a.Y, b.Y)
}

// Kind returns the box variant.
func (b Box) Kind() Kind { return b.kind }

// Class returns the class index; ok is false for unclassed boxes.
func (b Box) Class() (idx int, ok bool) {
	if b.kind != Classed {
		return 0, false
	}
	return b.class, true
}

// Width returns XMax - XMin.
func (b Box) Width() int { return b.XMax - b.XMin }

// Height returns YMax - YMin.
func (b Box) Height() int { return b.YMax - b.YMin }

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle { return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax) }

// Contains reports whether (x, y) lies strictly inside the box. Boundary
// pixels are outside.
func (b Box) Contains(x, y int) bool {
	return b.XMin < x && x < b.XMax && b.YMin < y && y < b.YMax
}

// Rescale multiplies all bounds by factor, rounding half to even.
func (b Box) Rescale(factor float64) Box {
	scale := func(v int) int { return int(math.RoundToEven(float64(v) * factor)) }
	b.XMin, b.XMax = scale(b.XMin), scale(b.XMax)
	b.YMin, b.YMax = scale(b.YMin), scale(b.YMax)
	return b
}

// CycleClass advances the class index, wrapping from the last class to 0.
func (b *Box) CycleClass(t *ClassTable) error {
	if b.kind != Classed {
		return fmt.Errorf("%w: cannot cycle class of %s box", ErrTypeMismatch, b.kind)
	}
	n := t.Len()
	if n == 0 {
		return fmt.Errorf("%w: empty class table", ErrInvalidClass)
	}
	b.class = (b.class + 1) % n
	return nil
}

// Rename sets the class by name.
func (b *Box) Rename(name string, t *ClassTable) error {
	if b.kind != Classed {
		return fmt.Errorf("%w: cannot rename %s box", ErrTypeMismatch, b.kind)
	}
	idx, ok := t.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClassName, name)
	}
	b.class = idx
	return nil
}

func (b Box) String() string {
	if b.kind == Classed {
		return fmt.Sprintf("<class %d: x: %d-%d; y: %d-%d>", b.class, b.XMin, b.XMax, b.YMin, b.YMax)
	}
	return fmt.Sprintf("<Bbox: x: %d-%d; y: %d-%d>", b.XMin, b.XMax, b.YMin, b.YMax)
}
