// Package session runs the interactive editing of one image at a time: it
// turns mouse and key events into annotation edits, redraws after every event
// and decides on exit whether the label is persisted.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/soocke/bbox-annotator/domain/annotation"
	"github.com/soocke/bbox-annotator/domain/queue"
	"github.com/soocke/bbox-annotator/domain/raster"
)

// ErrReservedShortcut is returned when a class shortcut shadows a command key.
var ErrReservedShortcut = errors.New("shortcut collides with reserved hotkey")

// Options configures a Session.
type Options struct {
	MaxSize    image.Point
	UseClasses bool
	Classes    *annotation.ClassTable
	// Shortcuts maps a key to the class name it assigns.
	Shortcuts map[rune]string
	// Reserved extends ReservedKeys(); the command keys are always reserved.
	Reserved   map[rune]bool
	Style      annotation.Style
	MinBoxSize int
}

// Session is the per-run annotation state machine. It is single threaded:
// every method must be called from the goroutine driving the event source.
type Session struct {
	logger    *slog.Logger
	opts      Options
	loader    ImageLoader
	events    EventSource
	view      View
	state     State
	listeners []StateListener

	base   *image.RGBA
	canvas *image.RGBA
	factor float64

	anno      *annotation.Annotation
	labelPath string
	dirty     bool
	saved     bool
	dragging  bool
	anchor    image.Point
	mouse     image.Point
}

// New validates opts and returns an idle session.
func New(logger *slog.Logger, opts Options, loader ImageLoader, events EventSource, view View) (*Session, error) {
	if loader == nil {
		loader = raster.Loader{}
	}
	reserved := ReservedKeys()
	for r, ok := range opts.Reserved {
		if ok {
			reserved[r] = true
		}
	}
	opts.Reserved = reserved
	if opts.MinBoxSize <= 0 {
		opts.MinBoxSize = 5
	}
	if opts.Style.Classes == nil {
		opts.Style.Classes = opts.Classes
	}
	if opts.UseClasses && opts.Classes.Len() == 0 {
		return nil, fmt.Errorf("%w: classes enabled with an empty class table", annotation.ErrInvalidClass)
	}
	for r, name := range opts.Shortcuts {
		if opts.Reserved[r] {
			return nil, fmt.Errorf("%w: %q", ErrReservedShortcut, r)
		}
		if _, ok := opts.Classes.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: shortcut %q -> %q", annotation.ErrUnknownClassName, r, name)
		}
	}
	return &Session{
		logger: logger,
		opts:   opts,
		loader: loader,
		events: events,
		view:   view,
		state:  StateIdle,
		factor: 1,
	}, nil
}

// AddListener registers a listener for state transitions.
func (s *Session) AddListener(l StateListener) {
	s.listeners = append(s.listeners, l)
}

func (s *Session) transition(next State) {
	prev := s.state
	if prev == next {
		return
	}
	s.state = next
	if s.logger != nil {
		s.logger.Debug("session state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range s.listeners {
		l(prev, next)
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Dirty reports whether the current annotation changed since it was opened.
func (s *Session) Dirty() bool { return s.dirty }

// DownsamplingFactor returns the display scale of the current image.
func (s *Session) DownsamplingFactor() float64 { return s.factor }

// Annotation returns the current annotation in display coordinates.
func (s *Session) Annotation() *annotation.Annotation { return s.anno }

// Saved reports whether the last finished image was written to disk.
func (s *Session) Saved() bool { return s.saved }

// MousePosition returns the last known pointer position.
func (s *Session) MousePosition() image.Point { return s.mouse }

// Dragging reports whether a box is being drawn.
func (s *Session) Dragging() bool { return s.dragging }

// LoadImage decodes path and fits it into the maximum display size with a
// single uniform factor.
func (s *Session) LoadImage(path string) error {
	img, err := s.loader.Load(path)
	if err != nil {
		s.transition(StateIdle)
		return err
	}
	orig := img.Bounds().Size()
	factor, size := raster.DisplayScale(orig, s.opts.MaxSize)
	if factor > 1 {
		if s.logger != nil {
			s.logger.Info("downsampling image", "width", orig.X, "height", orig.Y,
				"factor", factor, "display_width", size.X, "display_height", size.Y)
		}
		img = raster.Resize(img, size)
	}
	s.factor = factor
	s.base = raster.ToRGBA(img)
	s.canvas = image.NewRGBA(s.base.Bounds())
	s.transition(StateImageLoaded)
	return nil
}

func (s *Session) defaultKind() annotation.Kind {
	if s.opts.UseClasses {
		return annotation.Classed
	}
	return annotation.Unclassed
}

// loadLabel opens the existing label at path in display coordinates. A
// missing or unreadable label yields an empty annotation.
func (s *Session) loadLabel(path string) *annotation.Annotation {
	a, err := annotation.Load(path, s.opts.Classes)
	switch {
	case err == nil:
		if s.logger != nil {
			s.logger.Info("loading existing annotation", "path", path, "boxes", a.Len())
		}
		if s.factor > 1 {
			a = a.Rescale(1 / s.factor)
		}
	case errors.Is(err, os.ErrNotExist):
		a = annotation.New(annotation.KindUnset)
	default:
		if s.logger != nil {
			s.logger.Error("failed to load label, starting empty", "path", path, "error", err)
		}
		a = annotation.New(annotation.KindUnset)
	}
	if a.Kind() == annotation.KindUnset {
		_ = a.Establish(s.defaultKind())
	}
	return a
}

// ProcessImage opens item, runs the editing loop until a navigation signal
// arrives and applies the save decision. A cancelled context returns its
// error without saving.
func (s *Session) ProcessImage(ctx context.Context, item queue.Item) (Signal, error) {
	if err := s.LoadImage(item.ImagePath); err != nil {
		return SignalNext, err
	}
	s.labelPath = item.LabelPath
	s.anno = s.loadLabel(item.LabelPath)
	s.dirty = false
	s.saved = false
	s.dragging = false
	s.transition(StateEditing)
	if err := s.redraw(); err != nil {
		return SignalNext, err
	}

	sig, err := s.run(ctx)
	if err != nil {
		return sig, err
	}
	if _, err := s.Finish(sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (s *Session) run(ctx context.Context) (Signal, error) {
	for {
		ev, err := s.events.NextEvent(ctx)
		if err != nil {
			return SignalQuit, err
		}
		switch e := ev.(type) {
		case MouseEvent:
			s.HandleMouse(e)
		case KeyEvent:
			if sig, done := s.HandleKey(e.Rune); done {
				return sig, nil
			}
		case CloseEvent:
			return SignalQuit, nil
		case ExposeEvent:
		}
		if err := s.redraw(); err != nil {
			return SignalQuit, err
		}
	}
}

// HandleMouse applies one pointer event to the current annotation.
func (s *Session) HandleMouse(e MouseEvent) {
	p := image.Pt(e.X, e.Y)
	if s.anno == nil {
		s.anno = annotation.New(s.defaultKind())
	}
	switch {
	case e.Action == ActionPress && e.Button == ButtonLeft:
		s.dragging = true
		s.anchor = p
	case e.Action == ActionRelease && e.Button == ButtonLeft && s.dragging:
		s.dragging = false
		s.finishDrag(p)
	case e.Action == ActionPress && e.Button == ButtonMiddle:
		if s.opts.UseClasses {
			s.cycleAt(p)
		}
	case e.Action == ActionPress && e.Button == ButtonRight:
		s.deleteAt(p)
	}
	s.mouse = p
}

func (s *Session) finishDrag(p image.Point) {
	xmin, xmax, ymin, ymax := annotation.FromCorners(s.anchor, p)
	if xmax-xmin <= s.opts.MinBoxSize || ymax-ymin <= s.opts.MinBoxSize {
		if s.logger != nil {
			s.logger.Debug("discarding stray click", "x", p.X, "y", p.Y)
		}
		return
	}
	var b annotation.Box
	if s.opts.UseClasses {
		var err error
		if b, err = annotation.NewClassBox(xmin, xmax, ymin, ymax, 0, s.opts.Classes); err != nil {
			s.logError("create box", err)
			return
		}
	} else {
		b = annotation.NewBox(xmin, xmax, ymin, ymax)
	}
	if err := s.anno.Append(b); err != nil {
		s.logError("append box", err)
		return
	}
	s.dirty = true
	if s.logger != nil {
		s.logger.Debug("box added", "box", b.String(), "boxes", s.anno.Len())
	}
}

func (s *Session) cycleAt(p image.Point) {
	i, ok := s.anno.HitTest(p.X, p.Y)
	if !ok {
		return
	}
	if err := s.anno.CycleClassAt(i, s.opts.Classes); err != nil {
		s.logError("cycle class", err)
		return
	}
	s.dirty = true
}

func (s *Session) deleteAt(p image.Point) {
	i, ok := s.anno.HitTest(p.X, p.Y)
	if !ok {
		return
	}
	if err := s.anno.RemoveAt(i); err != nil {
		s.logError("delete box", err)
		return
	}
	s.dirty = true
}

func (s *Session) renameAt(p image.Point, name string) {
	i, ok := s.anno.HitTest(p.X, p.Y)
	if !ok {
		return
	}
	if err := s.anno.RenameAt(i, name, s.opts.Classes); err != nil {
		s.logError("rename box", err)
		return
	}
	s.dirty = true
}

// HandleKey applies a key press. done reports that editing of the current
// image is finished with sig.
func (s *Session) HandleKey(r rune) (sig Signal, done bool) {
	switch r {
	case KeyNext:
		return SignalNext, true
	case KeyPrev:
		return SignalPrev, true
	case KeyQuit:
		return SignalQuit, true
	case KeySave:
		return SignalSave, true
	case KeyDelete:
		s.deleteAt(s.mouse)
		return SignalNext, false
	}
	if name, ok := s.opts.Shortcuts[r]; ok && s.opts.UseClasses {
		s.renameAt(s.mouse, name)
		return SignalNext, false
	}
	if s.logger != nil {
		s.logger.Info("unrecognised key", "key", keyName(r))
	}
	return SignalNext, false
}

func keyName(r rune) string {
	if r == utf8.RuneError || r < ' ' {
		return fmt.Sprintf("0x%x", r)
	}
	return string(r)
}

// Finish applies the save decision for sig and moves to Advancing, or Quit
// for SignalQuit. The label is written when the annotation is dirty and
// non-empty, or when sig is SignalSave.
func (s *Session) Finish(sig Signal) (saved bool, err error) {
	defer func() {
		if sig == SignalQuit {
			s.transition(StateQuit)
		} else {
			s.transition(StateAdvancing)
		}
	}()
	if !((s.dirty && s.anno.Len() > 0) || sig == SignalSave) {
		if s.logger != nil {
			s.logger.Info("no changes made to this annotation", "path", s.labelPath)
		}
		return false, nil
	}
	s.transition(StateSaving)
	out := s.anno
	if out == nil {
		out = annotation.New(s.defaultKind())
	}
	if s.factor > 1 {
		out = out.Rescale(s.factor)
	}
	if s.logger != nil {
		if _, statErr := os.Stat(s.labelPath); statErr == nil {
			s.logger.Info("overwriting label", "path", s.labelPath, "boxes", out.Len())
		} else {
			s.logger.Info("saving new label", "path", s.labelPath, "boxes", out.Len())
		}
	}
	if err := annotation.Save(s.labelPath, out); err != nil {
		return false, err
	}
	s.saved = true
	return true, nil
}

// Frame composes the display image, the annotation and any drag guide.
func (s *Session) Frame() *image.RGBA {
	if s.base == nil {
		return nil
	}
	draw.Draw(s.canvas, s.canvas.Bounds(), s.base, image.Point{}, draw.Src)
	s.anno.Render(s.canvas, s.opts.Style)
	if s.dragging {
		annotation.RenderGuide(s.canvas, s.anchor, s.mouse, s.opts.Style)
	}
	return s.canvas
}

func (s *Session) redraw() error {
	if s.view == nil {
		return nil
	}
	frame := s.Frame()
	if frame == nil {
		return nil
	}
	return s.view.Show(frame)
}

func (s *Session) logError(op string, err error) {
	if s.logger != nil {
		s.logger.Warn(op+" failed", "error", err)
	}
}
