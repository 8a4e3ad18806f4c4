package session

import (
	"context"
	"image"
)

// State is a phase of the per-image annotation cycle.
type State int

const (
	StateIdle        State = iota // no image open
	StateImageLoaded              // raster decoded and fitted to the display
	StateEditing                  // consuming mouse and key events
	StateSaving                   // persisting the annotation
	StateAdvancing                // image finished, host moves on
	StateQuit                     // run is over
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImageLoaded:
		return "image_loaded"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	case StateAdvancing:
		return "advancing"
	case StateQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Signal tells the host how to move through the queue after an image.
type Signal int

const (
	SignalNext Signal = iota
	SignalPrev
	SignalQuit
	SignalSave
)

func (s Signal) String() string {
	switch s {
	case SignalNext:
		return "next"
	case SignalPrev:
		return "prev"
	case SignalQuit:
		return "quit"
	case SignalSave:
		return "save"
	default:
		return "unknown"
	}
}

// Hotkeys bound to session commands. They can never be class shortcuts.
const (
	KeyNext   = 'n'
	KeyPrev   = 'p'
	KeyQuit   = 'q'
	KeySave   = 's'
	KeyDelete = 'd'
)

// ReservedKeys returns the command hotkeys.
func ReservedKeys() map[rune]bool {
	return map[rune]bool{KeyNext: true, KeyPrev: true, KeyQuit: true, KeySave: true, KeyDelete: true}
}

// Action is what a mouse event did.
type Action int

const (
	ActionMove Action = iota
	ActionPress
	ActionRelease
)

// Button identifies a mouse button.
type Button int

const (
	ButtonNone Button = iota
	ButtonLeft
	ButtonMiddle
	ButtonRight
)

// Event is one input delivered by an EventSource.
type Event interface{ isEvent() }

// MouseEvent carries a pointer action in display coordinates.
type MouseEvent struct {
	Action Action
	Button Button
	X, Y   int
}

// KeyEvent carries a pressed key.
type KeyEvent struct{ Rune rune }

// CloseEvent reports that the window was closed.
type CloseEvent struct{}

// ExposeEvent asks for a redraw without changing anything.
type ExposeEvent struct{}

func (MouseEvent) isEvent()  {}
func (KeyEvent) isEvent()    {}
func (CloseEvent) isEvent()  {}
func (ExposeEvent) isEvent() {}

// EventSource blocks until the next input event is available.
type EventSource interface {
	NextEvent(ctx context.Context) (Event, error)
}

// View displays a fully composed frame.
type View interface {
	Show(frame image.Image) error
}

// ImageLoader decodes an image from disk.
type ImageLoader interface {
	Load(path string) (image.Image, error)
}

// StateListener is invoked on every state transition.
type StateListener func(prev, next State)
