package annotation

import (
	"fmt"
	"strings"
)

// Annotation is an ordered collection of boxes on one image. Insertion order
// is preserved and every box shares the annotation's kind.
type Annotation struct {
	kind  Kind
	boxes []Box
}

// New returns an empty annotation. Pass KindUnset to let the first appended
// box establish the variant.
func New(kind Kind) *Annotation { return &Annotation{kind: kind} }

// Kind returns the established variant, or KindUnset.
func (a *Annotation) Kind() Kind {
	if a == nil {
		return KindUnset
	}
	return a.kind
}

// Establish fixes the variant of an annotation that has none yet. It fails
// when a different variant is already established.
func (a *Annotation) Establish(kind Kind) error {
	if a.kind == KindUnset || a.kind == kind {
		a.kind = kind
		return nil
	}
	return fmt.Errorf("%w: annotation is %s, want %s", ErrTypeMismatch, a.kind, kind)
}

// Len returns the number of boxes.
func (a *Annotation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.boxes)
}

// At returns the box at insertion index i.
func (a *Annotation) At(i int) Box { return a.boxes[i] }

// Boxes returns a copy of the boxes in insertion order.
func (a *Annotation) Boxes() []Box {
	if a == nil {
		return nil
	}
	return append([]Box(nil), a.boxes...)
}

// Append adds b as the most recent box.
func (a *Annotation) Append(b Box) error {
	if b.kind == KindUnset {
		return fmt.Errorf("%w: box has no variant", ErrTypeMismatch)
	}
	if a.kind != KindUnset && a.kind != b.kind {
		return fmt.Errorf("%w: cannot append %s box to %s annotation", ErrTypeMismatch, b.kind, a.kind)
	}
	a.kind = b.kind
	a.boxes = append(a.boxes, b)
	return nil
}

// RemoveAt deletes the box at insertion index i.
func (a *Annotation) RemoveAt(i int) error {
	if i < 0 || i >= len(a.boxes) {
		return fmt.Errorf("box index %d out of range [0,%d)", i, len(a.boxes))
	}
	a.boxes = append(a.boxes[:i], a.boxes[i+1:]...)
	return nil
}

// HitTest returns the insertion index of the newest box strictly containing
// (x, y).
func (a *Annotation) HitTest(x, y int) (int, bool) {
	if a == nil {
		return 0, false
	}
	for i := len(a.boxes) - 1; i >= 0; i-- {
		if a.boxes[i].Contains(x, y) {
			return i, true
		}
	}
	return 0, false
}

// CycleClassAt cycles the class of the box at index i.
func (a *Annotation) CycleClassAt(i int, t *ClassTable) error {
	if i < 0 || i >= len(a.boxes) {
		return fmt.Errorf("box index %d out of range [0,%d)", i, len(a.boxes))
	}
	return a.boxes[i].CycleClass(t)
}

// RenameAt sets the class of the box at index i by name.
func (a *Annotation) RenameAt(i int, name string, t *ClassTable) error {
	if i < 0 || i >= len(a.boxes) {
		return fmt.Errorf("box index %d out of range [0,%d)", i, len(a.boxes))
	}
	return a.boxes[i].Rename(name, t)
}

// Rescale returns a new annotation with every box rescaled by factor.
func (a *Annotation) Rescale(factor float64) *Annotation {
	out := &Annotation{kind: a.Kind(), boxes: make([]Box, 0, a.Len())}
	for _, b := range a.Boxes() {
		out.boxes = append(out.boxes, b.Rescale(factor))
	}
	return out
}

// Clone returns an independent copy.
func (a *Annotation) Clone() *Annotation {
	return &Annotation{kind: a.Kind(), boxes: a.Boxes()}
}

func (a *Annotation) String() string {
	var sb strings.Builder
	sb.WriteString("-----\nAnnotation:\n")
	for _, b := range a.Boxes() {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("-----")
	return sb.String()
}
