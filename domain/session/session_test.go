package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/soocke/bbox-annotator/domain/annotation"
	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/raster"
)

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&discardWriter{}, nil))
}

// fakeLoader returns a blank image of the configured size.
type fakeLoader struct {
	size  image.Point
	err   error
	calls int
}

func (f *fakeLoader) Load(string) (image.Image, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, f.size.X, f.size.Y)), nil
}

// scriptedEvents replays events and then reports io.EOF.
type scriptedEvents struct {
	events []Event
}

func (s *scriptedEvents) NextEvent(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.events) == 0 {
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

type recordingView struct {
	frames int
	last   image.Image
}

func (v *recordingView) Show(frame image.Image) error {
	v.frames++
	v.last = frame
	return nil
}

func classTable(t *testing.T) *annotation.ClassTable {
	t.Helper()
	tbl, err := annotation.NewClassTable([]annotation.Class{
		{Name: "Container", Color: color.RGBA{255, 100, 0, 255}},
		{Name: "Damage", Color: color.RGBA{255, 0, 0, 255}},
	})
	if err != nil {
		t.Fatalf("class table: %v", err)
	}
	return tbl
}

func drag(x0, y0, x1, y1 int) []Event {
	return []Event{
		MouseEvent{Action: ActionPress, Button: ButtonLeft, X: x0, Y: y0},
		MouseEvent{Action: ActionMove, X: (x0 + x1) / 2, Y: (y0 + y1) / 2},
		MouseEvent{Action: ActionRelease, Button: ButtonLeft, X: x1, Y: y1},
	}
}

func key(r rune) Event { return KeyEvent{Rune: r} }

func move(x, y int) MouseEvent { return MouseEvent{Action: ActionMove, X: x, Y: y} }

type harness struct {
	sess   *Session
	loader *fakeLoader
	events *scriptedEvents
	view   *recordingView
	item   queue.Item
}

func newHarness(t *testing.T, opts Options, size image.Point, events ...Event) *harness {
	t.Helper()
	if opts.MaxSize == (image.Point{}) {
		opts.MaxSize = image.Pt(1500, 900)
	}
	h := &harness{
		loader: &fakeLoader{size: size},
		events: &scriptedEvents{events: events},
		view:   &recordingView{},
	}
	dir := t.TempDir()
	h.item = queue.Item{ID: "img.png", ImagePath: filepath.Join(dir, "img.png"), LabelPath: filepath.Join(dir, "labels", "img.npy")}
	s, err := New(discardLogger(), opts, h.loader, h.events, h.view)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	h.sess = s
	return h
}

func (h *harness) run(t *testing.T) Signal {
	t.Helper()
	sig, err := h.sess.ProcessImage(context.Background(), h.item)
	if err != nil {
		t.Fatalf("process image: %v", err)
	}
	return sig
}

func (h *harness) saved(t *testing.T, tbl *annotation.ClassTable) *annotation.Annotation {
	t.Helper()
	a, err := annotation.Load(h.item.LabelPath, tbl)
	if err != nil {
		t.Fatalf("load saved label: %v", err)
	}
	return a
}

func TestProcessImage_DragCreatesUnclassedBox(t *testing.T) {
	events := append(drag(10, 10, 50, 50), key('n'))
	h := newHarness(t, Options{}, image.Pt(200, 100), events...)
	if sig := h.run(t); sig != SignalNext {
		t.Fatalf("expected next, got %s", sig)
	}
	got := h.saved(t, nil)
	if got.Len() != 1 || got.At(0) != annotation.NewBox(10, 50, 10, 50) {
		t.Fatalf("unexpected saved annotation %v", got)
	}
	if h.sess.State() != StateAdvancing {
		t.Fatalf("expected advancing, got %s", h.sess.State())
	}
}

func TestProcessImage_StrayClickDiscarded(t *testing.T) {
	// 5 pixels is not enough, both sides must exceed the threshold
	events := append(drag(10, 10, 15, 60), key('n'))
	h := newHarness(t, Options{}, image.Pt(200, 100), events...)
	h.run(t)
	if h.sess.Dirty() {
		t.Fatalf("stray click must not mark dirty")
	}
	if _, err := os.Stat(h.item.LabelPath); !os.IsNotExist(err) {
		t.Fatalf("no label must be written, stat err=%v", err)
	}
}

func TestProcessImage_ForceSaveWritesEmpty(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(20, 20), key('s'))
	if sig := h.run(t); sig != SignalSave {
		t.Fatalf("expected save, got %s", sig)
	}
	if got := h.saved(t, nil); got.Len() != 0 {
		t.Fatalf("expected empty label, got %v", got)
	}
}

func TestProcessImage_MiddleClickCyclesClass(t *testing.T) {
	tbl := classTable(t)
	events := append(drag(10, 10, 50, 50),
		MouseEvent{Action: ActionPress, Button: ButtonMiddle, X: 30, Y: 30},
		key('n'))
	h := newHarness(t, Options{UseClasses: true, Classes: tbl}, image.Pt(200, 100), events...)
	h.run(t)
	rows := h.saved(t, tbl).Rows()
	if len(rows) != 1 || len(rows[0]) != 5 || rows[0][4] != 1 {
		t.Fatalf("expected [10 50 10 50 1], got %v", rows)
	}
}

func TestProcessImage_MiddleClickIgnoredWithoutClasses(t *testing.T) {
	events := []Event{MouseEvent{Action: ActionPress, Button: ButtonMiddle, X: 5, Y: 5}, key('n')}
	h := newHarness(t, Options{}, image.Pt(20, 20), events...)
	h.run(t)
	if h.sess.Dirty() {
		t.Fatalf("middle click without classes must be a no-op")
	}
}

func TestProcessImage_RightClickDeletesNewest(t *testing.T) {
	events := append(drag(10, 10, 50, 50), drag(20, 20, 60, 60)...)
	events = append(events, MouseEvent{Action: ActionPress, Button: ButtonRight, X: 30, Y: 30}, key('n'))
	h := newHarness(t, Options{}, image.Pt(200, 100), events...)
	h.run(t)
	got := h.saved(t, nil)
	if got.Len() != 1 || got.At(0) != annotation.NewBox(10, 50, 10, 50) {
		t.Fatalf("expected only the older box to remain, got %v", got)
	}
}

func TestProcessImage_DeleteKeyUsesMousePosition(t *testing.T) {
	events := append(drag(10, 10, 50, 50), drag(60, 10, 90, 50)...)
	events = append(events, move(70, 20), key('d'), key('n'))
	h := newHarness(t, Options{}, image.Pt(200, 100), events...)
	h.run(t)
	got := h.saved(t, nil)
	if got.Len() != 1 || got.At(0).XMin != 10 {
		t.Fatalf("expected the box under the cursor to be removed, got %v", got)
	}
}

func TestProcessImage_DeletingLastBoxSkipsWrite(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(200, 100))
	existing := annotation.New(annotation.Unclassed)
	_ = existing.Append(annotation.NewBox(10, 50, 10, 50))
	if err := annotation.Save(h.item.LabelPath, existing); err != nil {
		t.Fatalf("seed label: %v", err)
	}
	h.events.events = []Event{MouseEvent{Action: ActionPress, Button: ButtonRight, X: 20, Y: 20}, key('n')}
	h.run(t)
	if !h.sess.Dirty() || h.sess.Annotation().Len() != 0 {
		t.Fatalf("expected dirty empty annotation")
	}
	if got := h.saved(t, nil); got.Len() != 1 {
		t.Fatalf("dirty but empty annotation must not overwrite, got %v", got)
	}
}

func TestProcessImage_ShortcutRenamesBoxUnderCursor(t *testing.T) {
	tbl := classTable(t)
	events := append(drag(10, 10, 50, 50), move(20, 20), key('x'), key('q'))
	opts := Options{UseClasses: true, Classes: tbl, Shortcuts: map[rune]string{'x': "Damage"}}
	h := newHarness(t, opts, image.Pt(200, 100), events...)
	if sig := h.run(t); sig != SignalQuit {
		t.Fatalf("expected quit, got %s", sig)
	}
	if idx, _ := h.saved(t, tbl).At(0).Class(); idx != 1 {
		t.Fatalf("expected Damage, got class %d", idx)
	}
	if h.sess.State() != StateQuit {
		t.Fatalf("expected quit state, got %s", h.sess.State())
	}
}

func TestProcessImage_DownsampledRoundTrip(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(3000, 2000))
	existing := annotation.New(annotation.Unclassed)
	_ = existing.Append(annotation.NewBox(0, 1000, 200, 2000))
	if err := annotation.Save(h.item.LabelPath, existing); err != nil {
		t.Fatalf("seed label: %v", err)
	}
	h.events.events = append(drag(10, 10, 100, 100), key('n'))
	h.run(t)

	if f := h.sess.DownsamplingFactor(); f <= 2.22 || f >= 2.23 {
		t.Fatalf("unexpected factor %v", f)
	}
	if b := h.view.last.Bounds(); b.Dx() != 1350 || b.Dy() != 900 {
		t.Fatalf("display must fit the max box, got %v", b)
	}
	if h.sess.Annotation().At(0) != annotation.NewBox(0, 450, 90, 900) {
		t.Fatalf("existing label must be shown in display coordinates, got %v", h.sess.Annotation().At(0))
	}
	got := h.saved(t, nil)
	if got.At(0) != annotation.NewBox(0, 1000, 200, 2000) {
		t.Fatalf("untouched box must round trip, got %v", got.At(0))
	}
	if got.At(1) != annotation.NewBox(22, 222, 22, 222) {
		t.Fatalf("new box must be stored in source coordinates, got %v", got.At(1))
	}
}

func TestProcessImage_MalformedLabelStartsEmpty(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(20, 20), key('n'))
	if err := os.MkdirAll(filepath.Dir(h.item.LabelPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(h.item.LabelPath, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h.run(t)
	if h.sess.Annotation().Len() != 0 || h.sess.Annotation().Kind() != annotation.Unclassed {
		t.Fatalf("expected empty unclassed annotation, got %v", h.sess.Annotation())
	}
}

func TestProcessImage_UnclassedLabelRejectsClassedBoxes(t *testing.T) {
	tbl := classTable(t)
	events := append(drag(10, 10, 50, 50), key('n'))
	h := newHarness(t, Options{UseClasses: true, Classes: tbl}, image.Pt(200, 100), events...)
	existing := annotation.New(annotation.Unclassed)
	_ = existing.Append(annotation.NewBox(100, 150, 20, 60))
	if err := annotation.Save(h.item.LabelPath, existing); err != nil {
		t.Fatalf("seed label: %v", err)
	}
	h.run(t)

	a := h.sess.Annotation()
	if a.Kind() != annotation.Unclassed || a.Len() != 1 {
		t.Fatalf("width-4 label must stay unclassed with one box, got kind=%s %v", a.Kind(), a)
	}
	if h.sess.Dirty() || h.sess.Saved() {
		t.Fatalf("rejected box must not mark the annotation dirty")
	}
	if got := h.saved(t, tbl); got.Len() != 1 || got.At(0) != existing.At(0) {
		t.Fatalf("label file must be untouched, got %v", got)
	}
}

func TestNew_CommandKeysAlwaysReserved(t *testing.T) {
	opts := Options{UseClasses: true, Classes: classTable(t), Reserved: map[rune]bool{}, Shortcuts: map[rune]string{'q': "Damage"}}
	if _, err := New(discardLogger(), opts, &fakeLoader{}, &scriptedEvents{}, nil); !errors.Is(err, ErrReservedShortcut) {
		t.Fatalf("expected ErrReservedShortcut with an empty reserved set, got %v", err)
	}
}

func TestProcessImage_WindowCloseQuitsAndSaves(t *testing.T) {
	events := append(drag(10, 10, 50, 50), CloseEvent{})
	h := newHarness(t, Options{}, image.Pt(200, 100), events...)
	if sig := h.run(t); sig != SignalQuit {
		t.Fatalf("expected quit, got %s", sig)
	}
	if h.saved(t, nil).Len() != 1 {
		t.Fatalf("closing the window must apply the save decision")
	}
}

func TestProcessImage_CancelledContextDoesNotSave(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(200, 100), drag(10, 10, 50, 50)...)
	ctx, cancel := context.WithCancel(context.Background())
	h.sess.AddListener(func(_, next State) {
		if next == StateEditing {
			cancel()
		}
	})
	if _, err := h.sess.ProcessImage(ctx, h.item); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(h.item.LabelPath); !os.IsNotExist(err) {
		t.Fatalf("interrupted session must not write, stat err=%v", err)
	}
}

func TestProcessImage_MissingImage(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(1, 1))
	h.loader.err = raster.ErrMissingResource
	if _, err := h.sess.ProcessImage(context.Background(), h.item); !errors.Is(err, raster.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource, got %v", err)
	}
	if h.sess.State() != StateIdle {
		t.Fatalf("expected idle, got %s", h.sess.State())
	}
}

func TestProcessImage_RedrawsAfterEveryEvent(t *testing.T) {
	events := []Event{move(1, 1), key('z'), ExposeEvent{}, key('n')}
	h := newHarness(t, Options{}, image.Pt(20, 20), events...)
	h.run(t)
	// initial frame plus one per non-terminal event
	if h.view.frames != 4 {
		t.Fatalf("expected 4 frames, got %d", h.view.frames)
	}
	if h.sess.Dirty() {
		t.Fatalf("moves and unknown keys must not mark dirty")
	}
	if h.sess.MousePosition() != image.Pt(1, 1) {
		t.Fatalf("expected recorded mouse position, got %v", h.sess.MousePosition())
	}
}

func TestFrame_ShowsDragGuide(t *testing.T) {
	h := newHarness(t, Options{}, image.Pt(100, 100))
	if err := h.sess.LoadImage(h.item.ImagePath); err != nil {
		t.Fatalf("load image: %v", err)
	}
	h.sess.HandleMouse(MouseEvent{Action: ActionPress, Button: ButtonLeft, X: 10, Y: 10})
	h.sess.HandleMouse(move(60, 60))
	if !h.sess.Dragging() {
		t.Fatalf("expected drag in progress")
	}
	frame := h.sess.Frame()
	if frame.RGBAAt(35, 10).A == 0 {
		t.Fatalf("expected guide outline on the provisional rectangle")
	}
	if h.sess.Annotation().Len() != 0 {
		t.Fatalf("drag must not mutate the annotation before release")
	}
}

func TestNew_RejectsReservedShortcut(t *testing.T) {
	tbl := classTable(t)
	opts := Options{UseClasses: true, Classes: tbl, Shortcuts: map[rune]string{'n': "Damage"}}
	if _, err := New(discardLogger(), opts, &fakeLoader{}, &scriptedEvents{}, nil); !errors.Is(err, ErrReservedShortcut) {
		t.Fatalf("expected ErrReservedShortcut, got %v", err)
	}
	opts.Shortcuts = map[rune]string{'z': "Truck"}
	if _, err := New(discardLogger(), opts, &fakeLoader{}, &scriptedEvents{}, nil); !errors.Is(err, annotation.ErrInvalidClass) {
		t.Fatalf("expected ErrInvalidClass, got %v", err)
	}
}

func TestSignalAndStateStrings(t *testing.T) {
	if SignalPrev.String() != "prev" || StateSaving.String() != "saving" || State(99).String() != "unknown" {
		t.Fatalf("unexpected names")
	}
}
