package presenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/raster"
	"github.com/soocke/bbox-annotator/domain/session"
	"github.com/soocke/bbox-annotator/ui/model"
)

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&discardWriter{}, nil))
}

type step struct {
	sig   session.Signal
	err   error
	dirty bool
	saved bool
}

// mockProcessor replays one step per ProcessImage call and records the items seen.
type mockProcessor struct {
	steps []step
	seen  []string
	cur   step
}

func (m *mockProcessor) ProcessImage(_ context.Context, item queue.Item) (session.Signal, error) {
	m.seen = append(m.seen, item.ID)
	if len(m.steps) == 0 {
		return session.SignalQuit, nil
	}
	m.cur, m.steps = m.steps[0], m.steps[1:]
	return m.cur.sig, m.cur.err
}

func (m *mockProcessor) Dirty() bool { return m.cur.dirty }
func (m *mockProcessor) Saved() bool { return m.cur.saved }

func items(ids ...string) []queue.Item {
	out := make([]queue.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, queue.Item{ID: id, ImagePath: id, LabelPath: id + ".npy"})
	}
	return out
}

func TestQueuePresenter_FollowsSignals(t *testing.T) {
	proc := &mockProcessor{steps: []step{
		{sig: session.SignalNext},
		{sig: session.SignalPrev},
		{sig: session.SignalNext},
		{sig: session.SignalSave, saved: true},
		{sig: session.SignalNext},
	}}
	pm := model.NewProgressModel()
	p := NewQueuePresenter(queue.New(items("a", "b", "c")), proc, pm, discardLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"a", "b", "a", "b", "c"}
	if fmt.Sprint(proc.seen) != fmt.Sprint(want) {
		t.Fatalf("visited %v want %v", proc.seen, want)
	}
	if v := pm.Values(); v.Visited != 5 || v.Saved != 1 || v.Unchanged != 4 {
		t.Fatalf("unexpected progress %+v", v)
	}
}

func TestQueuePresenter_PrevAtStartStays(t *testing.T) {
	proc := &mockProcessor{steps: []step{{sig: session.SignalPrev}, {sig: session.SignalQuit}}}
	p := NewQueuePresenter(queue.New(items("a", "b")), proc, nil, discardLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fmt.Sprint(proc.seen) != "[a a]" {
		t.Fatalf("expected to stay on first image, got %v", proc.seen)
	}
}

func TestQueuePresenter_SkipsMissingImages(t *testing.T) {
	proc := &mockProcessor{steps: []step{
		{err: fmt.Errorf("decode: %w", raster.ErrMissingResource)},
		{sig: session.SignalNext},
	}}
	pm := model.NewProgressModel()
	p := NewQueuePresenter(queue.New(items("a", "b")), proc, pm, discardLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fmt.Sprint(proc.seen) != "[a b]" || pm.Values().Failed != 1 {
		t.Fatalf("expected skip and continue, seen=%v progress=%+v", proc.seen, pm.Values())
	}
}

func TestQueuePresenter_OtherErrorsStop(t *testing.T) {
	boom := errors.New("disk full")
	proc := &mockProcessor{steps: []step{{err: boom}}}
	p := NewQueuePresenter(queue.New(items("a", "b")), proc, nil, discardLogger())
	if err := p.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestQueuePresenter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := &mockProcessor{steps: []step{{err: context.Canceled}}}
	p := NewQueuePresenter(queue.New(items("a")), proc, nil, discardLogger())
	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestQueuePresenter_CopiesFilteredImage(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "img", "cam1", "a.png")
	label := filepath.Join(dir, "lbl", "cam1", "a.npy")
	filtered := filepath.Join(dir, "flt", "cam1", "a.png")
	for _, path := range []string{img, label} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(path), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	q := queue.New([]queue.Item{
		{ID: "cam1/a.png", ImagePath: img, LabelPath: label, FilteredPath: filtered},
		{ID: "cam1/b.png", ImagePath: img, LabelPath: label + ".missing", FilteredPath: filtered + ".b"},
	})
	proc := &mockProcessor{steps: []step{
		{sig: session.SignalNext, dirty: true, saved: true},
		{sig: session.SignalSave, saved: true},
	}}
	p := NewQueuePresenter(q, proc, nil, discardLogger())
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(filtered)
	if err != nil || string(got) != img {
		t.Fatalf("expected filtered copy of the image, got %q err=%v", got, err)
	}
	if _, err := os.Stat(filtered + ".b"); !os.IsNotExist(err) {
		t.Fatalf("no copy without a label on disk, stat err=%v", err)
	}
}

func TestQueuePresenter_UnchangedImageNotCopied(t *testing.T) {
	copies := 0
	proc := &mockProcessor{steps: []step{{sig: session.SignalNext}}}
	q := queue.New([]queue.Item{{ID: "a", ImagePath: "a", LabelPath: "a.npy", FilteredPath: "f/a"}})
	p := NewQueuePresenter(q, proc, nil, discardLogger())
	p.CopyFile = func(string, string) error { copies++; return nil }
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if copies != 0 {
		t.Fatalf("expected no copy, got %d", copies)
	}
}
