package annotation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// GenericClassName labels unclassed boxes in KITTI rows.
const GenericClassName = "Object"

// Rows are "type 0 0 0 left top right bottom 0 0 0 0": the 2-D box framed by
// seven zeroed placeholder fields.
const kittiFields = 12

// EncodeKITTI writes one KITTI row per box.
func EncodeKITTI(w io.Writer, a *Annotation, t *ClassTable) error {
	bw := bufio.NewWriter(w)
	for i, b := range a.Boxes() {
		name := GenericClassName
		if idx, ok := b.Class(); ok {
			if name = t.Name(idx); name == "" {
				return fmt.Errorf("box %d: %w: index %d", i, ErrInvalidClass, idx)
			}
		}
		if i > 0 {
			bw.WriteByte('\n')
		}
		fmt.Fprintf(bw, "%s 0 0 0 %d %d %d %d 0 0 0 0", name, b.XMin, b.YMin, b.XMax, b.YMax)
	}
	return bw.Flush()
}

// DecodeKITTI parses KITTI rows. Rows named GenericClassName become unclassed
// boxes; other names must exist in t. Mixed variants fail with ErrTypeMismatch.
func DecodeKITTI(r io.Reader, t *ClassTable) (*Annotation, error) {
	a := New(KindUnset)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 8 {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformedLabel, line, len(fields), kittiFields)
		}
		var ltrb [4]int
		for i := range ltrb {
			f, err := strconv.ParseFloat(fields[4+i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedLabel, line, err)
			}
			ltrb[i] = int(math.Trunc(f))
		}
		l, top, right, bottom := ltrb[0], ltrb[1], ltrb[2], ltrb[3]
		var b Box
		if fields[0] == GenericClassName {
			b = NewBox(l, right, top, bottom)
		} else {
			var err error
			if b, err = NewNamedClassBox(l, right, top, bottom, fields[0], t); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if err := a.Append(b); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read kitti: %w", err)
	}
	return a, nil
}
