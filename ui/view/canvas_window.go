package view

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/soocke/bbox-annotator/domain/session"
)

// interrupt is pushed onto the window queue when the run context ends so a
// blocked NextEvent returns.
type interrupt struct{}

// CanvasWindow is the editor window. It shows composed frames and delivers
// pointer and key input as session events. All methods must be called from
// the goroutine running the shiny driver.
type CanvasWindow struct {
	win    screen.Window
	buf    screen.Buffer
	logger *slog.Logger
	last   *image.RGBA
}

// NewCanvasWindow opens a window able to show frames up to maxSize.
func NewCanvasWindow(s screen.Screen, maxSize image.Point, title string, logger *slog.Logger) (*CanvasWindow, error) {
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: maxSize.X, Height: maxSize.Y, Title: title})
	if err != nil {
		return nil, err
	}
	b, err := s.NewBuffer(maxSize)
	if err != nil {
		w.Release()
		return nil, err
	}
	return &CanvasWindow{win: w, buf: b, logger: logger}, nil
}

// Watch unblocks NextEvent once ctx is done.
func (c *CanvasWindow) Watch(ctx context.Context) {
	go func() {
		<-ctx.Done()
		c.win.Send(interrupt{})
	}()
}

// Release closes the window.
func (c *CanvasWindow) Release() {
	if c == nil {
		return
	}
	c.buf.Release()
	c.win.Release()
}

// Show copies frame into the window buffer, anchored top-left, and publishes it.
func (c *CanvasWindow) Show(frame image.Image) error {
	if c == nil || frame == nil {
		return nil
	}
	dst := c.buf.RGBA()
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, frame.Bounds().Sub(frame.Bounds().Min), frame, frame.Bounds().Min, draw.Src)
	c.publish()
	return nil
}

func (c *CanvasWindow) publish() {
	c.win.Upload(image.Point{}, c.buf, c.buf.Bounds())
	c.win.Publish()
}

// NextEvent blocks until the next input the session cares about.
func (c *CanvasWindow) NextEvent(ctx context.Context) (session.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := c.win.NextEvent()
		if _, ok := e.(interrupt); ok {
			return nil, ctx.Err()
		}
		if ev, ok := translate(e); ok {
			return ev, nil
		}
		if c.logger != nil {
			c.logger.Debug("ignoring window event", "event", e)
		}
	}
}

// translate maps a shiny event onto a session event.
func translate(e any) (session.Event, bool) {
	switch e := e.(type) {
	case lifecycle.Event:
		if e.To == lifecycle.StageDead {
			return session.CloseEvent{}, true
		}
	case paint.Event, size.Event:
		return session.ExposeEvent{}, true
	case mouse.Event:
		return translateMouse(e)
	case key.Event:
		if e.Direction == key.DirPress && e.Rune > 0 {
			return session.KeyEvent{Rune: e.Rune}, true
		}
	}
	return nil, false
}

func translateMouse(e mouse.Event) (session.Event, bool) {
	ev := session.MouseEvent{X: int(e.X), Y: int(e.Y)}
	switch e.Button {
	case mouse.ButtonNone:
		ev.Button = session.ButtonNone
	case mouse.ButtonLeft:
		ev.Button = session.ButtonLeft
	case mouse.ButtonMiddle:
		ev.Button = session.ButtonMiddle
	case mouse.ButtonRight:
		ev.Button = session.ButtonRight
	default:
		// wheel
		return nil, false
	}
	switch e.Direction {
	case mouse.DirPress:
		ev.Action = session.ActionPress
	case mouse.DirRelease:
		ev.Action = session.ActionRelease
	case mouse.DirNone:
		ev.Action = session.ActionMove
	default:
		return nil, false
	}
	return ev, true
}
