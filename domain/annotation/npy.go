package annotation

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbinet/npyio"
)

// The canonical label format is a NumPy .npy file holding a 2-D int32 array
// with one row per box: (xmin, xmax, ymin, ymax) or
// (xmin, xmax, ymin, ymax, class).

const (
	npyMagic       = "\x93NUMPY"
	npyAlign       = 64
	maxNpyElements = 1 << 24
)

// Rows returns the annotation as integer rows in insertion order.
func (a *Annotation) Rows() [][]int {
	rows := make([][]int, 0, a.Len())
	for _, b := range a.Boxes() {
		row := []int{b.XMin, b.XMax, b.YMin, b.YMax}
		if idx, ok := b.Class(); ok {
			row = append(row, idx)
		}
		rows = append(rows, row)
	}
	return rows
}

// Encode writes a as a version 1.0 .npy int32 array. npyio writes slices as
// 1-D arrays and matrices as float64, so the 2-D int32 header is written here.
func Encode(w io.Writer, a *Annotation) error {
	rows := a.Rows()
	shape := "(0,)"
	if len(rows) > 0 {
		shape = fmt.Sprintf("(%d, %d)", len(rows), len(rows[0]))
	}
	header := fmt.Sprintf("{'descr': '<i4', 'fortran_order': False, 'shape': %s, }", shape)
	// magic(6) + version(2) + header length(2) + header + '\n' is padded to the alignment.
	pad := npyAlign - (10+len(header)+1)%npyAlign
	if pad == npyAlign {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.WriteString(npyMagic)
	bw.Write([]byte{1, 0})
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	bw.WriteString(header)
	for _, row := range rows {
		for _, v := range row {
			if v > math.MaxInt32 || v < math.MinInt32 {
				return fmt.Errorf("value %d overflows int32", v)
			}
			if err := binary.Write(bw, binary.LittleEndian, int32(v)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Marshal returns the .npy encoding of a.
func Marshal(a *Annotation) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// intValue is the set of element types a label array may be stored as.
type intValue interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// readValues reads n elements of type T and truncates them to int.
func readValues[T intValue](r *npyio.Reader, n int) ([]int, error) {
	raw := make([]T, n)
	if err := r.Read(&raw); err != nil {
		return nil, err
	}
	if len(raw) != n {
		return nil, fmt.Errorf("read %d of %d values", len(raw), n)
	}
	out := make([]int, n)
	for i, v := range raw {
		out[i] = int(v)
	}
	return out, nil
}

func readTyped(r *npyio.Reader, n int) ([]int, error) {
	descr := r.Header.Descr.Type
	if len(descr) < 2 {
		return nil, fmt.Errorf("unsupported dtype %q", descr)
	}
	switch descr[1:] {
	case "i1":
		return readValues[int8](r, n)
	case "i2":
		return readValues[int16](r, n)
	case "i4":
		return readValues[int32](r, n)
	case "i8":
		return readValues[int64](r, n)
	case "u1":
		return readValues[uint8](r, n)
	case "u2":
		return readValues[uint16](r, n)
	case "u4":
		return readValues[uint32](r, n)
	case "u8":
		return readValues[uint64](r, n)
	case "f4":
		return readValues[float32](r, n)
	case "f8":
		return readValues[float64](r, n)
	}
	return nil, fmt.Errorf("unsupported dtype %q", descr)
}

// Decode reads an .npy label array. Rows of width 4 become unclassed boxes,
// rows of width 5 become classed boxes validated against t. Float values are
// truncated toward zero.
func Decode(r io.Reader, t *ClassTable) (*Annotation, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLabel, err)
	}
	shape := nr.Header.Descr.Shape
	var rows, cols int
	switch {
	case len(shape) == 1 && shape[0] == 0:
		return New(KindUnset), nil
	case len(shape) == 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("%w: expected 2-D array, got shape %v", ErrMalformedLabel, shape)
	}
	var kind Kind
	switch cols {
	case 4:
		kind = Unclassed
	case 5:
		kind = Classed
	default:
		return nil, fmt.Errorf("%w: row width %d", ErrMalformedLabel, cols)
	}
	if rows < 0 || rows > maxNpyElements/cols {
		return nil, fmt.Errorf("%w: %d rows out of range", ErrMalformedLabel, rows)
	}
	vals, err := readTyped(nr, rows*cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLabel, err)
	}
	fortran := nr.Header.Descr.Fortran
	at := func(row, col int) int {
		if fortran {
			return vals[col*rows+row]
		}
		return vals[row*cols+col]
	}

	a := New(kind)
	for i := 0; i < rows; i++ {
		var b Box
		if kind == Classed {
			b, err = NewClassBox(at(i, 0), at(i, 1), at(i, 2), at(i, 3), at(i, 4), t)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
		} else {
			b = NewBox(at(i, 0), at(i, 1), at(i, 2), at(i, 3))
		}
		if err := a.Append(b); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Unmarshal decodes .npy bytes.
func Unmarshal(data []byte, t *ClassTable) (*Annotation, error) {
	return Decode(bytes.NewReader(data), t)
}

// Load reads the label file at path.
func Load(path string, t *ClassTable) (*Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, err := Decode(f, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Save writes a to path, creating missing parent directories and replacing
// any existing file.
func Save(path string, a *Annotation) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create label directory: %w", err)
		}
	}
	data, err := Marshal(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write label: %w", err)
	}
	return nil
}
