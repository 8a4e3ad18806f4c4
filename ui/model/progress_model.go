package model

import (
	"time"
)

// Outcome classifies how an image left the editor.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeSaved
	OutcomeFailed
)

// ProgressModel tracks per-run counters and the accumulated editing time.
// It is decoupled from the UI; presenters record outcomes and read Values().
// The zero value is ready to use.
type ProgressModel struct {
	visited   int
	saved     int
	unchanged int
	failed    int

	active      bool
	editStart   time.Time
	lastEdit    time.Duration
	accumulated time.Duration
}

// NewProgressModel returns a pointer to a ready-to-use ProgressModel.
func NewProgressModel() *ProgressModel { return &ProgressModel{} }

// OnTick updates the editing clock from the current editing state and timestamp.
// Call when an image is opened and again when it is finished.
func (m *ProgressModel) OnTick(editing bool, now time.Time) {
	if m == nil {
		return
	}
	if editing {
		if !m.active { // transition off -> on
			m.active = true
			m.editStart = now
			m.lastEdit = 0
		}
		m.lastEdit = now.Sub(m.editStart)
	} else if m.active { // transition on -> off
		m.lastEdit = now.Sub(m.editStart)
		m.accumulated += m.lastEdit
		m.active = false
	}
}

// Record counts one finished image.
func (m *ProgressModel) Record(o Outcome) {
	if m == nil {
		return
	}
	m.visited++
	switch o {
	case OutcomeSaved:
		m.saved++
	case OutcomeFailed:
		m.failed++
	default:
		m.unchanged++
	}
}

// Summary is a snapshot of the run counters.
type Summary struct {
	Visited   int
	Saved     int
	Unchanged int
	Failed    int
	LastEdit  time.Duration
	Total     time.Duration
}

// Values returns the current counters. Total includes the ongoing edit when active.
func (m *ProgressModel) Values() Summary {
	if m == nil {
		return Summary{}
	}
	s := Summary{
		Visited:   m.visited,
		Saved:     m.saved,
		Unchanged: m.unchanged,
		Failed:    m.failed,
		LastEdit:  m.lastEdit,
		Total:     m.accumulated,
	}
	if m.active {
		s.Total += m.lastEdit
	}
	return s
}
