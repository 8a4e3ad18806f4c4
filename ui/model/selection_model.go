package model

import (
	"sync/atomic"
)

// SelectionModel holds the label set chosen in the picker. The zero value has
// no selection and is usable. Concurrency-safe because Tk callbacks and the
// run goroutine may race.
type SelectionModel struct{ chosen atomic.Pointer[string] }

// Chosen returns the selected set and whether one was chosen.
func (m *SelectionModel) Chosen() (string, bool) {
	if m == nil {
		return "", false
	}
	p := m.chosen.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetChosen stores the selected set.
func (m *SelectionModel) SetChosen(name string) {
	if m == nil {
		return
	}
	m.chosen.Store(&name)
}

// Clear drops any selection.
func (m *SelectionModel) Clear() {
	if m == nil {
		return
	}
	m.chosen.Store(nil)
}
