//go:build windows

package app

import (
	"golang.org/x/sys/windows"
)

// enableDPIAwareness opts the process out of bitmap scaling so one image
// pixel maps to one screen pixel.
func enableDPIAwareness() {
	user32 := windows.NewLazySystemDLL("user32.dll")
	setDPIAware := user32.NewProc("SetProcessDPIAware")
	if setDPIAware.Find() != nil {
		return
	}
	_, _, _ = setDPIAware.Call()
}

// screenSize returns the primary screen size, or zeros when unknown.
func screenSize() (cx, cy int) {
	user32 := windows.NewLazySystemDLL("user32.dll")
	getSystemMetrics := user32.NewProc("GetSystemMetrics")
	w, _, _ := getSystemMetrics.Call(uintptr(0)) // SM_CXSCREEN
	h, _, _ := getSystemMetrics.Call(uintptr(1)) // SM_CYSCREEN
	return int(w), int(h)
}
