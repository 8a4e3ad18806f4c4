// Package queue builds the ordered list of images an annotation run walks
// through and tracks the position within it.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soocke/bbox-annotator/domain/raster"
)

// ErrMalformedManifest reports a manifest without a usable data array.
var ErrMalformedManifest = errors.New("malformed manifest")

// Item is one queued image with the label file that belongs to it.
type Item struct {
	ID        string
	ImagePath string
	LabelPath string
	// FilteredPath is where the image is copied once it carries a saved
	// label. Empty disables copying.
	FilteredPath string
	// Record holds the manifest entry the item was read from, if any.
	Record map[string]any
}

// Layout describes where images, labels and filtered copies live.
type Layout struct {
	ImageDir    string
	LabelDir    string
	FilteredDir string
	LabelExt    string
}

func (l Layout) labelExt() string {
	if l.LabelExt == "" {
		return ".npy"
	}
	return l.LabelExt
}

// stem drops everything after the first dot.
func stem(name string) string {
	base, _, _ := strings.Cut(name, ".")
	return base
}

// item builds the queue entry for rel, a slash separated path below ImageDir.
func (l Layout) item(rel string) Item {
	rel = filepath.FromSlash(rel)
	dir, name := filepath.Split(rel)
	it := Item{
		ID:        filepath.ToSlash(rel),
		ImagePath: filepath.Join(l.ImageDir, rel),
		LabelPath: filepath.Join(l.LabelDir, dir, stem(name)+l.labelExt()),
	}
	if l.FilteredDir != "" {
		it.FilteredPath = filepath.Join(l.FilteredDir, rel)
	}
	return it
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !raster.IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FromDir queues every image directly inside l.ImageDir in name order.
func FromDir(l Layout) ([]Item, error) {
	names, err := listImages(l.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	items := make([]Item, 0, len(names))
	for _, n := range names {
		items = append(items, l.item(n))
	}
	return items, nil
}

// Subdirs lists the image sets below l.ImageDir.
func Subdirs(l Layout) ([]string, error) {
	entries, err := os.ReadDir(l.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("list image sets: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// FromSubdir queues the images of one set. Labels and filtered copies mirror
// the set directory below LabelDir and FilteredDir.
func FromSubdir(l Layout, subdir string) ([]Item, error) {
	names, err := listImages(filepath.Join(l.ImageDir, subdir))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	items := make([]Item, 0, len(names))
	for _, n := range names {
		it := l.item(subdir + "/" + n)
		// set labels keep the image extension: labels/<set>/<name.ext>.npy
		it.LabelPath = filepath.Join(l.LabelDir, subdir, n+l.labelExt())
		items = append(items, it)
	}
	return items, nil
}

// Manifests lists the JSON manifest files in dir.
func Manifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), "json") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

type manifest struct {
	Data []map[string]any `json:"data"`
}

// FromManifest queues the images named by field in each data record of the
// manifest at path, keeping the manifest order.
func FromManifest(l Layout, path, field string) ([]Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedManifest, path, err)
	}
	if m.Data == nil {
		return nil, fmt.Errorf("%w: %s: missing data array", ErrMalformedManifest, path)
	}
	items := make([]Item, 0, len(m.Data))
	for i, rec := range m.Data {
		name, ok := rec[field].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %s: record %d has no %q", ErrMalformedManifest, path, i, field)
		}
		it := l.item(name)
		it.Record = rec
		items = append(items, it)
	}
	return items, nil
}

// Rotate starts the queue at index from and wraps the skipped items to the
// end. Out of range values leave items unchanged.
func Rotate(items []Item, from int) []Item {
	if from <= 0 || from >= len(items) {
		return items
	}
	out := make([]Item, 0, len(items))
	out = append(out, items[from:]...)
	return append(out, items[:from]...)
}

// Queue is a cursor over a fixed item list.
type Queue struct {
	items []Item
	idx   int
}

// New returns a queue positioned at the first item.
func New(items []Item) *Queue { return &Queue{items: items} }

// Len returns the number of items.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Index returns the current position.
func (q *Queue) Index() int {
	if q == nil {
		return 0
	}
	return q.idx
}

// Done reports whether the cursor has run past the last item.
func (q *Queue) Done() bool { return q == nil || q.idx >= len(q.items) }

// Current returns the item under the cursor.
func (q *Queue) Current() (Item, bool) {
	if q.Done() {
		return Item{}, false
	}
	return q.items[q.idx], true
}

// Next moves forward one item.
func (q *Queue) Next() {
	if q != nil && q.idx < len(q.items) {
		q.idx++
	}
}

// Prev moves back one item, staying on the first.
func (q *Queue) Prev() {
	if q != nil && q.idx > 0 {
		q.idx--
	}
}
