package annotation

import (
	"errors"
	"fmt"
	"image/color"
)

var (
	// ErrInvalidClass reports an unknown class name or an out-of-range class index.
	ErrInvalidClass = errors.New("invalid class")
	// ErrUnknownClassName is returned when renaming to a name missing from the class table.
	ErrUnknownClassName = fmt.Errorf("%w: unknown class name", ErrInvalidClass)
	// ErrMalformedLabel reports a label file with an unexpected shape or encoding.
	ErrMalformedLabel = errors.New("malformed label")
	// ErrTypeMismatch reports mixing classed and unclassed boxes in one annotation.
	ErrTypeMismatch = errors.New("box type mismatch")
)

// Kind is the variant of a bounding box.
type Kind uint8

const (
	// KindUnset marks an annotation whose variant is not established yet.
	KindUnset Kind = iota
	Unclassed
	Classed
)

func (k Kind) String() string {
	switch k {
	case Unclassed:
		return "unclassed"
	case Classed:
		return "classed"
	default:
		return "unset"
	}
}

// Class is a named, coloured category.
type Class struct {
	Name  string
	Color color.RGBA
}

// ClassTable is the closed, ordered set of classes shared by every box in a
// session. Boxes store only an index into it. The zero value has no classes.
type ClassTable struct {
	classes []Class
	byName  map[string]int
}

// NewClassTable builds a table from an ordered class list. Names must be
// unique and non-empty.
func NewClassTable(classes []Class) (*ClassTable, error) {
	t := &ClassTable{classes: make([]Class, 0, len(classes)), byName: make(map[string]int, len(classes))}
	for _, c := range classes {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: empty class name", ErrInvalidClass)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate class %q", ErrInvalidClass, c.Name)
		}
		t.byName[c.Name] = len(t.classes)
		t.classes = append(t.classes, c)
	}
	return t, nil
}

// Len returns the number of classes.
func (t *ClassTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.classes)
}

// Lookup resolves a class name to its index.
func (t *ClassTable) Lookup(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.byName[name]
	return i, ok
}

// Valid reports whether idx addresses a class.
func (t *ClassTable) Valid(idx int) bool { return idx >= 0 && idx < t.Len() }

// Name returns the class name at idx, or "" when out of range.
func (t *ClassTable) Name(idx int) string {
	if !t.Valid(idx) {
		return ""
	}
	return t.classes[idx].Name
}

// Color returns the class colour at idx.
func (t *ClassTable) Color(idx int) (color.RGBA, bool) {
	if !t.Valid(idx) {
		return color.RGBA{}, false
	}
	return t.classes[idx].Color, true
}

// Names returns class names in index order.
func (t *ClassTable) Names() []string {
	out := make([]string, t.Len())
	for i := range out {
		out[i] = t.classes[i].Name
	}
	return out
}
